package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	middlewarepkg "github.com/deepak445566/cv/internal/middleware"
	"github.com/deepak445566/cv/internal/service"
)

var errNotImplemented = errors.New("not implemented")

type stubAuthService struct {
	register  func(ctx context.Context, req dto.RegisterRequest) (*service.TokenPair, error)
	login     func(ctx context.Context, email, password string) (*service.TokenPair, error)
	refresh   func(ctx context.Context, token string) (*service.TokenPair, error)
	logout    func(ctx context.Context, token string) error
	logoutAll func(ctx context.Context, userID uuid.UUID) error
	me        func(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error)
}

func (s *stubAuthService) Register(ctx context.Context, req dto.RegisterRequest) (*service.TokenPair, error) {
	if s.register != nil {
		return s.register(ctx, req)
	}
	return nil, errNotImplemented
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*service.TokenPair, error) {
	if s.login != nil {
		return s.login(ctx, email, password)
	}
	return nil, errNotImplemented
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (*service.TokenPair, error) {
	if s.refresh != nil {
		return s.refresh(ctx, token)
	}
	return nil, errNotImplemented
}

func (s *stubAuthService) Logout(ctx context.Context, token string) error {
	if s.logout != nil {
		return s.logout(ctx, token)
	}
	return errNotImplemented
}

func (s *stubAuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if s.logoutAll != nil {
		return s.logoutAll(ctx, userID)
	}
	return errNotImplemented
}

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	if s.me != nil {
		return s.me(ctx, userID)
	}
	return nil, errNotImplemented
}

type stubUserService struct {
	list   func(ctx context.Context) ([]dto.UserResponse, error)
	create func(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error)
	update func(ctx context.Context, id string, req dto.UpdateUserRequest) (*dto.UserResponse, error)
	delete func(ctx context.Context, id string) error
}

func (s *stubUserService) ListUsers(ctx context.Context) ([]dto.UserResponse, error) {
	if s.list != nil {
		return s.list(ctx)
	}
	return nil, errNotImplemented
}

func (s *stubUserService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if s.create != nil {
		return s.create(ctx, req)
	}
	return nil, errNotImplemented
}

func (s *stubUserService) UpdateUser(ctx context.Context, id string, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	if s.update != nil {
		return s.update(ctx, id, req)
	}
	return nil, errNotImplemented
}

func (s *stubUserService) DeleteUser(ctx context.Context, id string) error {
	if s.delete != nil {
		return s.delete(ctx, id)
	}
	return errNotImplemented
}

type stubProductsService struct {
	list        func(ctx context.Context, filter dto.ProductFilter) (*service.ProductPage, error)
	get         func(ctx context.Context, id string, includeInactive bool) (*entity.Product, error)
	create      func(ctx context.Context, req dto.CreateProductRequest) (*entity.Product, error)
	update      func(ctx context.Context, id string, req dto.UpdateProductRequest) (*entity.Product, error)
	delete      func(ctx context.Context, id string) error
	uploadImage func(ctx context.Context, id, filename, contentType string, body io.Reader) (*entity.Product, error)
	importCSV   func(ctx context.Context, r io.Reader) (service.UploadSummary, error)
}

func (s *stubProductsService) ListProducts(ctx context.Context, filter dto.ProductFilter) (*service.ProductPage, error) {
	if s.list != nil {
		return s.list(ctx, filter)
	}
	return nil, errNotImplemented
}

func (s *stubProductsService) GetProduct(ctx context.Context, id string, includeInactive bool) (*entity.Product, error) {
	if s.get != nil {
		return s.get(ctx, id, includeInactive)
	}
	return nil, errNotImplemented
}

func (s *stubProductsService) CreateProduct(ctx context.Context, req dto.CreateProductRequest) (*entity.Product, error) {
	if s.create != nil {
		return s.create(ctx, req)
	}
	return nil, errNotImplemented
}

func (s *stubProductsService) UpdateProduct(ctx context.Context, id string, req dto.UpdateProductRequest) (*entity.Product, error) {
	if s.update != nil {
		return s.update(ctx, id, req)
	}
	return nil, errNotImplemented
}

func (s *stubProductsService) DeleteProduct(ctx context.Context, id string) error {
	if s.delete != nil {
		return s.delete(ctx, id)
	}
	return errNotImplemented
}

func (s *stubProductsService) UploadImage(ctx context.Context, id, filename, contentType string, body io.Reader) (*entity.Product, error) {
	if s.uploadImage != nil {
		return s.uploadImage(ctx, id, filename, contentType, body)
	}
	return nil, errNotImplemented
}

func (s *stubProductsService) ImportProductsCSV(ctx context.Context, r io.Reader) (service.UploadSummary, error) {
	if s.importCSV != nil {
		return s.importCSV(ctx, r)
	}
	return service.UploadSummary{}, errNotImplemented
}

// stubCartService records the last call and answers every operation with cart.
type stubCartService struct {
	cart  *dto.CartResponse
	err   error
	calls []string
	items map[string]int
	qty   int
	id    string
}

func (s *stubCartService) result(call string) (*dto.CartResponse, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return nil, s.err
	}
	if s.cart == nil {
		return &dto.CartResponse{Items: map[string]int{}}, nil
	}
	return s.cart, nil
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	return s.result("get")
}

func (s *stubCartService) Replace(ctx context.Context, userID uuid.UUID, items map[string]int) (*dto.CartResponse, error) {
	s.items = items
	return s.result("replace")
}

func (s *stubCartService) Merge(ctx context.Context, userID uuid.UUID, local map[string]int) (*dto.CartResponse, error) {
	s.items = local
	return s.result("merge")
}

func (s *stubCartService) AddItem(ctx context.Context, userID uuid.UUID, productID string, qty int) (*dto.CartResponse, error) {
	s.id, s.qty = productID, qty
	return s.result("add")
}

func (s *stubCartService) SetItem(ctx context.Context, userID uuid.UUID, productID string, qty int) (*dto.CartResponse, error) {
	s.id, s.qty = productID, qty
	return s.result("set")
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID string) (*dto.CartResponse, error) {
	s.id = productID
	return s.result("remove")
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	return s.result("clear")
}

type stubAddressService struct {
	list       func(ctx context.Context, userID uuid.UUID) ([]entity.Address, error)
	create     func(ctx context.Context, userID uuid.UUID, req dto.AddressRequest) (*entity.Address, error)
	update     func(ctx context.Context, userID uuid.UUID, id string, req dto.UpdateAddressRequest) (*entity.Address, error)
	delete     func(ctx context.Context, userID uuid.UUID, id string) error
	setDefault func(ctx context.Context, userID uuid.UUID, id string) (*entity.Address, error)
}

func (s *stubAddressService) List(ctx context.Context, userID uuid.UUID) ([]entity.Address, error) {
	if s.list != nil {
		return s.list(ctx, userID)
	}
	return nil, errNotImplemented
}

func (s *stubAddressService) Create(ctx context.Context, userID uuid.UUID, req dto.AddressRequest) (*entity.Address, error) {
	if s.create != nil {
		return s.create(ctx, userID, req)
	}
	return nil, errNotImplemented
}

func (s *stubAddressService) Update(ctx context.Context, userID uuid.UUID, id string, req dto.UpdateAddressRequest) (*entity.Address, error) {
	if s.update != nil {
		return s.update(ctx, userID, id, req)
	}
	return nil, errNotImplemented
}

func (s *stubAddressService) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	if s.delete != nil {
		return s.delete(ctx, userID, id)
	}
	return errNotImplemented
}

func (s *stubAddressService) SetDefault(ctx context.Context, userID uuid.UUID, id string) (*entity.Address, error) {
	if s.setDefault != nil {
		return s.setDefault(ctx, userID, id)
	}
	return nil, errNotImplemented
}

type stubOrderService struct {
	place        func(ctx context.Context, userID uuid.UUID, req dto.PlaceOrderRequest) (*entity.Order, error)
	listMine     func(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) (*service.OrderPage, error)
	list         func(ctx context.Context, filter dto.OrderFilter) (*service.OrderPage, error)
	get          func(ctx context.Context, userID uuid.UUID, role, id string) (*entity.Order, error)
	cancel       func(ctx context.Context, userID uuid.UUID, id string) (*entity.Order, error)
	updateStatus func(ctx context.Context, id, status string) (*entity.Order, error)
}

func (s *stubOrderService) Place(ctx context.Context, userID uuid.UUID, req dto.PlaceOrderRequest) (*entity.Order, error) {
	if s.place != nil {
		return s.place(ctx, userID, req)
	}
	return nil, errNotImplemented
}

func (s *stubOrderService) ListMine(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) (*service.OrderPage, error) {
	if s.listMine != nil {
		return s.listMine(ctx, userID, filter)
	}
	return nil, errNotImplemented
}

func (s *stubOrderService) List(ctx context.Context, filter dto.OrderFilter) (*service.OrderPage, error) {
	if s.list != nil {
		return s.list(ctx, filter)
	}
	return nil, errNotImplemented
}

func (s *stubOrderService) Get(ctx context.Context, userID uuid.UUID, role, id string) (*entity.Order, error) {
	if s.get != nil {
		return s.get(ctx, userID, role, id)
	}
	return nil, errNotImplemented
}

func (s *stubOrderService) Cancel(ctx context.Context, userID uuid.UUID, id string) (*entity.Order, error) {
	if s.cancel != nil {
		return s.cancel(ctx, userID, id)
	}
	return nil, errNotImplemented
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, id, status string) (*entity.Order, error) {
	if s.updateStatus != nil {
		return s.updateStatus(ctx, id, status)
	}
	return nil, errNotImplemented
}

var testUserID = uuid.MustParse("11111111-2222-3333-4444-555555555555")

// newContext builds an echo context for method and path with an optional JSON body.
func newContext(method, path string, body any) (echo.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		data, _ := json.Marshal(v)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

// authenticated marks the context as coming from testUserID with role.
func authenticated(c echo.Context, role string) echo.Context {
	c.Set(middlewarepkg.ContextKeyUserID, testUserID.String())
	c.Set(middlewarepkg.ContextKeyUserRole, role)
	return c
}

func multipartRequest(t *testing.T, path, field, filename, contentType, content string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	return req, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) APIResponse {
	t.Helper()
	var raw struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return APIResponse{Status: raw.Status, Message: raw.Message}
}
