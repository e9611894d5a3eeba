package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/repository"
	"github.com/deepak445566/cv/internal/session"
)

type mockUsersRepository struct {
	findByEmail func(ctx context.Context, email string) (*entity.User, error)
	findByID    func(ctx context.Context, id uuid.UUID) (*entity.User, error)
	create      func(ctx context.Context, email, passwordHash, name, role string) (*entity.User, error)
	list        func(ctx context.Context) ([]entity.User, error)
	update      func(ctx context.Context, id uuid.UUID, patch repository.UserPatch) (*entity.User, error)
	delete      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockUsersRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if m.findByEmail != nil {
		return m.findByEmail(ctx, email)
	}
	return nil, errors.New("findByEmail not implemented")
}

func (m *mockUsersRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	if m.findByID != nil {
		return m.findByID(ctx, id)
	}
	return nil, errors.New("FindByID not implemented")
}

func (m *mockUsersRepository) Create(ctx context.Context, email, passwordHash, name, role string) (*entity.User, error) {
	if m.create != nil {
		return m.create(ctx, email, passwordHash, name, role)
	}
	return nil, errors.New("create not implemented")
}

func (m *mockUsersRepository) List(ctx context.Context) ([]entity.User, error) {
	if m.list != nil {
		return m.list(ctx)
	}
	return nil, errors.New("List not implemented")
}

func (m *mockUsersRepository) Update(ctx context.Context, id uuid.UUID, patch repository.UserPatch) (*entity.User, error) {
	if m.update != nil {
		return m.update(ctx, id, patch)
	}
	return nil, errors.New("Update not implemented")
}

func (m *mockUsersRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.delete != nil {
		return m.delete(ctx, id)
	}
	return errors.New("Delete not implemented")
}

// memorySessions mirrors the rotation semantics of the Redis store.
type memorySessions struct {
	mu      sync.Mutex
	next    int
	active  map[string]string
	rotated map[string]string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{active: map[string]string{}, rotated: map[string]string{}}
}

func (m *memorySessions) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("sid-%d", m.next)
	m.active[id] = userID
	return id, nil
}

func (m *memorySessions) Rotate(ctx context.Context, oldID, userID string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	owner, ok := m.active[oldID]
	if !ok {
		reused := m.rotated[oldID] == userID
		m.mu.Unlock()
		if reused {
			_ = m.RevokeAll(ctx, userID)
			return "", session.ErrSessionReused
		}
		return "", session.ErrSessionNotFound
	}
	delete(m.active, oldID)
	m.rotated[oldID] = owner
	m.mu.Unlock()
	if owner != userID {
		return "", session.ErrSessionNotFound
	}
	return m.Create(ctx, userID, ttl)
}

func (m *memorySessions) Validate(ctx context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.active[sessionID]; !ok || owner != userID {
		return session.ErrSessionNotFound
	}
	return nil
}

func (m *memorySessions) Revoke(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, sessionID)
	return nil
}

func (m *memorySessions) RevokeAll(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, owner := range m.active {
		if owner == userID {
			delete(m.active, id)
		}
	}
	return nil
}

func (m *memorySessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

type mockProductsRepository struct {
	list       func(ctx context.Context, filter dto.ProductFilter) ([]entity.Product, int, error)
	findByID   func(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	findByIDs  func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.Product, error)
	create     func(ctx context.Context, product *entity.Product) (*entity.Product, error)
	update     func(ctx context.Context, id uuid.UUID, patch repository.ProductPatch) (*entity.Product, error)
	delete     func(ctx context.Context, id uuid.UUID) error
	setImage   func(ctx context.Context, id uuid.UUID, url string) (*entity.Product, error)
	bulkUpsert func(ctx context.Context, records []repository.BulkUpsertProductInput) (repository.BulkUpsertResult, error)
}

func (m *mockProductsRepository) List(ctx context.Context, filter dto.ProductFilter) ([]entity.Product, int, error) {
	if m.list != nil {
		return m.list(ctx, filter)
	}
	return nil, 0, errors.New("List not implemented")
}

func (m *mockProductsRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	if m.findByID != nil {
		return m.findByID(ctx, id)
	}
	return nil, errors.New("FindByID not implemented")
}

func (m *mockProductsRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.Product, error) {
	if m.findByIDs != nil {
		return m.findByIDs(ctx, ids)
	}
	return nil, errors.New("FindByIDs not implemented")
}

func (m *mockProductsRepository) Create(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	if m.create != nil {
		return m.create(ctx, product)
	}
	return nil, errors.New("Create not implemented")
}

func (m *mockProductsRepository) Update(ctx context.Context, id uuid.UUID, patch repository.ProductPatch) (*entity.Product, error) {
	if m.update != nil {
		return m.update(ctx, id, patch)
	}
	return nil, errors.New("Update not implemented")
}

func (m *mockProductsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.delete != nil {
		return m.delete(ctx, id)
	}
	return errors.New("Delete not implemented")
}

func (m *mockProductsRepository) SetImage(ctx context.Context, id uuid.UUID, url string) (*entity.Product, error) {
	if m.setImage != nil {
		return m.setImage(ctx, id, url)
	}
	return nil, errors.New("SetImage not implemented")
}

func (m *mockProductsRepository) BulkUpsert(ctx context.Context, records []repository.BulkUpsertProductInput) (repository.BulkUpsertResult, error) {
	if m.bulkUpsert != nil {
		return m.bulkUpsert(ctx, records)
	}
	return repository.BulkUpsertResult{}, errors.New("BulkUpsert not implemented")
}

// catalogue answers FindByIDs from a fixed product set.
func catalogue(products ...entity.Product) *mockProductsRepository {
	byID := make(map[uuid.UUID]entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductsRepository{
		findByIDs: func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.Product, error) {
			out := map[uuid.UUID]entity.Product{}
			for _, id := range ids {
				if p, ok := byID[id]; ok {
					out[id] = p
				}
			}
			return out, nil
		},
		findByID: func(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
			if p, ok := byID[id]; ok {
				return &p, nil
			}
			return nil, repository.ErrProductNotFound
		},
	}
}

// memoryCarts is an in-memory CartsRepository.
type memoryCarts struct {
	mu      sync.Mutex
	carts   map[uuid.UUID]entity.CartItems
	saves   int
	saveErr error
}

func newMemoryCarts() *memoryCarts {
	return &memoryCarts{carts: map[uuid.UUID]entity.CartItems{}}
}

func (m *memoryCarts) Get(ctx context.Context, userID uuid.UUID) (*entity.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.carts[userID].Clone()
	return &entity.Cart{UserID: userID, Items: items, UpdatedAt: time.Now()}, nil
}

func (m *memoryCarts) Save(ctx context.Context, userID uuid.UUID, items entity.CartItems) (*entity.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.saves++
	m.carts[userID] = items.Clone()
	return &entity.Cart{UserID: userID, Items: items.Clone(), UpdatedAt: time.Now()}, nil
}

func (m *memoryCarts) Clear(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = entity.CartItems{}
	return nil
}

type mockAddressesRepository struct {
	listByUser func(ctx context.Context, userID uuid.UUID) ([]entity.Address, error)
	findByID   func(ctx context.Context, userID, id uuid.UUID) (*entity.Address, error)
	create     func(ctx context.Context, address *entity.Address) (*entity.Address, error)
	update     func(ctx context.Context, userID, id uuid.UUID, patch repository.AddressPatch) (*entity.Address, error)
	delete     func(ctx context.Context, userID, id uuid.UUID) error
	setDefault func(ctx context.Context, userID, id uuid.UUID) (*entity.Address, error)
}

func (m *mockAddressesRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Address, error) {
	if m.listByUser != nil {
		return m.listByUser(ctx, userID)
	}
	return nil, errors.New("ListByUser not implemented")
}

func (m *mockAddressesRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*entity.Address, error) {
	if m.findByID != nil {
		return m.findByID(ctx, userID, id)
	}
	return nil, errors.New("FindByID not implemented")
}

func (m *mockAddressesRepository) Create(ctx context.Context, address *entity.Address) (*entity.Address, error) {
	if m.create != nil {
		return m.create(ctx, address)
	}
	return nil, errors.New("Create not implemented")
}

func (m *mockAddressesRepository) Update(ctx context.Context, userID, id uuid.UUID, patch repository.AddressPatch) (*entity.Address, error) {
	if m.update != nil {
		return m.update(ctx, userID, id, patch)
	}
	return nil, errors.New("Update not implemented")
}

func (m *mockAddressesRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if m.delete != nil {
		return m.delete(ctx, userID, id)
	}
	return errors.New("Delete not implemented")
}

func (m *mockAddressesRepository) SetDefault(ctx context.Context, userID, id uuid.UUID) (*entity.Address, error) {
	if m.setDefault != nil {
		return m.setDefault(ctx, userID, id)
	}
	return nil, errors.New("SetDefault not implemented")
}

type mockOrdersRepository struct {
	place        func(ctx context.Context, input repository.PlaceOrderInput) (*entity.Order, error)
	findByID     func(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	listByUser   func(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) ([]entity.Order, int, error)
	list         func(ctx context.Context, filter dto.OrderFilter) ([]entity.Order, int, error)
	updateStatus func(ctx context.Context, id uuid.UUID, status string) (*entity.Order, error)
}

func (m *mockOrdersRepository) Place(ctx context.Context, input repository.PlaceOrderInput) (*entity.Order, error) {
	if m.place != nil {
		return m.place(ctx, input)
	}
	return nil, errors.New("Place not implemented")
}

func (m *mockOrdersRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	if m.findByID != nil {
		return m.findByID(ctx, id)
	}
	return nil, errors.New("FindByID not implemented")
}

func (m *mockOrdersRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) ([]entity.Order, int, error) {
	if m.listByUser != nil {
		return m.listByUser(ctx, userID, filter)
	}
	return nil, 0, errors.New("ListByUser not implemented")
}

func (m *mockOrdersRepository) List(ctx context.Context, filter dto.OrderFilter) ([]entity.Order, int, error) {
	if m.list != nil {
		return m.list(ctx, filter)
	}
	return nil, 0, errors.New("List not implemented")
}

func (m *mockOrdersRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*entity.Order, error) {
	if m.updateStatus != nil {
		return m.updateStatus(ctx, id, status)
	}
	return nil, errors.New("UpdateStatus not implemented")
}
