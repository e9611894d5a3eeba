package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/metrics"
	"github.com/deepak445566/cv/internal/repository"
)

// OrderEventStatus is the event type pushed to websocket subscribers.
const OrderEventStatus = "order.status"

// OrderEvent notifies the owner of an order about a status change.
type OrderEvent struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
	Number  string `json:"number"`
	Status  string `json:"status"`
}

// OrderPublisher delivers order events to a user's live connections.
type OrderPublisher interface {
	PublishToUser(userID string, payload any)
}

// ShippingPolicy charges a flat fee unless the subtotal reaches FreeOver.
type ShippingPolicy struct {
	Flat     decimal.Decimal
	FreeOver decimal.Decimal
}

// FeeCents returns the shipping fee for a subtotal, both in minor units.
func (p ShippingPolicy) FeeCents(subtotalCents int64) int64 {
	if p.FreeOver.IsPositive() && subtotalCents >= entity.AmountToCents(p.FreeOver) {
		return 0
	}
	return entity.AmountToCents(p.Flat)
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Items   []entity.Order `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

type orderNumbers struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (g *orderNumbers) next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return "ORD-" + ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

// OrderService handles checkout and the order lifecycle.
type OrderService struct {
	orders    repository.OrdersRepository
	addresses repository.AddressesRepository
	shipping  ShippingPolicy
	publisher OrderPublisher
	logger    *zap.Logger
	numbers   *orderNumbers
	now       func() time.Time
}

// NewOrderService wires the order service. publisher and logger may be nil.
func NewOrderService(orders repository.OrdersRepository, addresses repository.AddressesRepository, shipping ShippingPolicy, publisher OrderPublisher, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:    orders,
		addresses: addresses,
		shipping:  shipping,
		publisher: publisher,
		logger:    logger,
		numbers:   &orderNumbers{entropy: ulid.Monotonic(rand.Reader, 0)},
		now:       time.Now,
	}
}

// Place checks out the user's cart to the chosen address.
func (s *OrderService) Place(ctx context.Context, userID uuid.UUID, req dto.PlaceOrderRequest) (*entity.Order, error) {
	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return nil, invalid("invalid address id")
	}
	address, err := s.addresses.FindByID(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Place(ctx, repository.PlaceOrderInput{
		UserID:          userID,
		Number:          s.numbers.next(s.now()),
		ShippingAddress: address.Snapshot(),
		ShippingCents:   s.shipping.FeeCents,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmptyCart):
			metrics.CheckoutFailures.WithLabelValues("empty_cart").Inc()
		case errors.Is(err, repository.ErrInsufficientStock):
			metrics.CheckoutFailures.WithLabelValues("insufficient_stock").Inc()
		default:
			metrics.CheckoutFailures.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.OrdersPlaced.Inc()
	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("number", order.Number),
		zap.String("user_id", userID.String()),
		zap.String("total", order.Total.StringFixed(2)),
	)
	s.publish(order)
	return order, nil
}

// ListMine returns a page of the user's orders.
func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) (*OrderPage, error) {
	if err := normalizeOrderFilter(&filter); err != nil {
		return nil, err
	}
	items, total, err := s.orders.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	return newOrderPage(items, total, filter), nil
}

// List returns a page of all orders.
func (s *OrderService) List(ctx context.Context, filter dto.OrderFilter) (*OrderPage, error) {
	if err := normalizeOrderFilter(&filter); err != nil {
		return nil, err
	}
	items, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newOrderPage(items, total, filter), nil
}

// Get returns an order visible to the caller. Orders of other users look like missing ones.
func (s *OrderService) Get(ctx context.Context, userID uuid.UUID, role, id string) (*entity.Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid order id")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != entity.RoleAdmin {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// Cancel cancels one of the user's orders while it has not shipped yet.
func (s *OrderService) Cancel(ctx context.Context, userID uuid.UUID, id string) (*entity.Order, error) {
	order, err := s.Get(ctx, userID, entity.RoleUser, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransition(order.Status, entity.OrderCancelled) {
		return nil, fmt.Errorf("%w: %s orders cannot be cancelled", repository.ErrInvalidTransition, order.Status)
	}
	return s.transition(ctx, order.ID, entity.OrderCancelled)
}

// UpdateStatus moves an order to status on behalf of an administrator.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*entity.Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid order id")
	}
	if !entity.ValidOrderStatus(status) {
		return nil, invalid("unknown order status")
	}
	return s.transition(ctx, orderID, status)
}

func (s *OrderService) transition(ctx context.Context, id uuid.UUID, status string) (*entity.Order, error) {
	order, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	metrics.OrderStatusChanges.WithLabelValues(status).Inc()
	s.logger.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("status", status),
	)
	s.publish(order)
	return order, nil
}

func (s *OrderService) publish(order *entity.Order) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishToUser(order.UserID.String(), OrderEvent{
		Type:    OrderEventStatus,
		OrderID: order.ID.String(),
		Number:  order.Number,
		Status:  order.Status,
	})
}

func normalizeOrderFilter(filter *dto.OrderFilter) error {
	if filter.Status != "" && !entity.ValidOrderStatus(filter.Status) {
		return invalid("unknown order status")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	return nil
}

func newOrderPage(items []entity.Order, total int, filter dto.OrderFilter) *OrderPage {
	if items == nil {
		items = []entity.Order{}
	}
	return &OrderPage{Items: items, Total: total, Page: filter.Page, PerPage: filter.PerPage}
}
