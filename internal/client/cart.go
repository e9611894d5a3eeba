package client

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
)

const pushTimeout = 15 * time.Second

// Cart is the local cart. Changes apply immediately and are pushed to the server
// after a quiet period; the server's answer then replaces the local copy.
type Cart struct {
	client *Client

	mu      sync.Mutex
	timer   *time.Timer
	dirty   bool
	version uint64

	// pushMu keeps at most one push in flight.
	pushMu sync.Mutex
}

func newCart(c *Client) *Cart {
	return &Cart{client: c}
}

// Items returns a copy of the local cart.
func (ct *Cart) Items() map[string]int {
	ct.client.mu.Lock()
	defer ct.client.mu.Unlock()
	return cloneItems(ct.client.state.Cart)
}

// Count returns the number of units in the local cart.
func (ct *Cart) Count() int {
	total := 0
	for _, qty := range ct.Items() {
		total += qty
	}
	return total
}

// Add increases the quantity of a product.
func (ct *Cart) Add(productID string, qty int) {
	if qty <= 0 {
		qty = 1
	}
	productID = normalizeID(productID)
	ct.update(func(items map[string]int) {
		items[productID] = clampQuantity(clampQuantity(items[productID]) + clampQuantity(qty))
	})
}

// Set replaces the quantity of a product. Zero or less removes it.
func (ct *Cart) Set(productID string, qty int) {
	productID = normalizeID(productID)
	ct.update(func(items map[string]int) {
		if qty <= 0 {
			delete(items, productID)
			return
		}
		items[productID] = clampQuantity(qty)
	})
}

// Remove drops a product from the cart.
func (ct *Cart) Remove(productID string) {
	productID = normalizeID(productID)
	ct.update(func(items map[string]int) {
		delete(items, productID)
	})
}

// Clear empties the cart.
func (ct *Cart) Clear() {
	ct.update(func(items map[string]int) {
		for id := range items {
			delete(items, id)
		}
	})
}

func (ct *Cart) update(apply func(map[string]int)) {
	c := ct.client
	c.mu.Lock()
	if c.state.Cart == nil {
		c.state.Cart = map[string]int{}
	}
	apply(c.state.Cart)
	c.mu.Unlock()
	c.persist()

	if c.Authenticated() {
		ct.schedule()
	}
}

func (ct *Cart) schedule() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.dirty = true
	ct.version++
	if ct.timer != nil {
		ct.timer.Stop()
	}
	ct.timer = time.AfterFunc(ct.client.syncDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		_ = ct.push(ctx)
	})
}

func (ct *Cart) stop() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.timer != nil {
		ct.timer.Stop()
		ct.timer = nil
	}
	ct.dirty = false
}

// Flush pushes pending changes now and waits for the result.
func (ct *Cart) Flush(ctx context.Context) error {
	ct.mu.Lock()
	if ct.timer != nil {
		ct.timer.Stop()
		ct.timer = nil
	}
	ct.mu.Unlock()
	return ct.push(ctx)
}

// Fetch replaces the local cart with the server cart.
func (ct *Cart) Fetch(ctx context.Context) (*dto.CartResponse, error) {
	generation := ct.client.sessionGeneration()
	var out dto.CartResponse
	if err := ct.client.Do(ctx, http.MethodGet, "/cart", nil, &out); err != nil {
		return nil, err
	}
	ct.adopt(generation, out.Items)
	return &out, nil
}

func (ct *Cart) push(ctx context.Context) error {
	ct.pushMu.Lock()
	defer ct.pushMu.Unlock()

	ct.mu.Lock()
	if !ct.dirty {
		ct.mu.Unlock()
		return nil
	}
	ct.dirty = false
	version := ct.version
	ct.mu.Unlock()
	generation := ct.client.sessionGeneration()

	var out dto.CartResponse
	err := ct.client.Do(ctx, http.MethodPut, "/cart", dto.ReplaceCartRequest{Items: ct.Items()}, &out)
	if ct.client.sessionGeneration() != generation {
		// signed out (or in as someone else) while the push was in flight
		return err
	}
	if err != nil {
		ct.client.logger.Warn("cart sync failed", zap.Error(err))
		if _, ferr := ct.Fetch(ctx); ferr != nil {
			ct.client.logger.Warn("cart refetch failed", zap.Error(ferr))
		}
		ct.reportSyncError(err)
		return err
	}

	ct.mu.Lock()
	stale := ct.version != version
	ct.mu.Unlock()
	if !stale {
		ct.adopt(generation, out.Items)
	}
	return nil
}

func (ct *Cart) mergeAfterLogin(ctx context.Context) error {
	generation := ct.client.sessionGeneration()
	local := ct.Items()
	if len(local) == 0 {
		_, err := ct.Fetch(ctx)
		return err
	}
	var out dto.CartResponse
	if err := ct.client.Do(ctx, http.MethodPost, "/cart/merge", dto.ReplaceCartRequest{Items: local}, &out); err != nil {
		return err
	}
	ct.adopt(generation, out.Items)
	return nil
}

// adopt replaces the local cart with a server answer, unless the session that
// asked for it has ended in the meantime.
func (ct *Cart) adopt(generation uint64, items map[string]int) {
	c := ct.client
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return
	}
	c.state.Cart = cloneItems(items)
	c.mu.Unlock()
	c.persist()
}

func (ct *Cart) reportSyncError(err error) {
	if ct.client.onSyncError != nil {
		ct.client.onSyncError(err)
	}
}

func clampQuantity(qty int) int {
	if qty > entity.MaxLineQuantity {
		return entity.MaxLineQuantity
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// normalizeID trims user input before it is used as a cart key.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
