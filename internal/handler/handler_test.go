package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/mesafood/comanda/internal/domain/auth"
	"github.com/mesafood/comanda/internal/domain/catalog"
	"github.com/mesafood/comanda/internal/domain/order"
	"github.com/mesafood/comanda/internal/events"
)

var testSecret = []byte("handler-test-secret")

type memCatalog struct {
	products map[string]catalog.Product
}

func (m *memCatalog) List(_ context.Context, f catalog.Filter) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range m.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memCatalog) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok || !p.Available {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (m *memCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// memOrders is an in-memory order.Repository that honors the lifecycle rules
// the way the real store does.
type memOrders struct {
	orders map[string]*order.Order
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	m.orders[o.ID] = o
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrders) Cancel(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status.Terminal() {
		return nil, order.ErrNotCancellable
	}
	o.Status = order.StatusCancelled
	return o, nil
}

func (m *memOrders) Transition(_ context.Context, id string, to order.Status) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if !order.CanTransition(o.Status, to) {
		return nil, &order.IllegalTransitionError{From: o.Status, To: to}
	}
	o.Status = to
	return o, nil
}

func (m *memOrders) TransitionPayment(_ context.Context, id string, to order.PaymentStatus, method string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if !order.CanTransitionPayment(o.PaymentStatus, to) {
		return nil, &order.IllegalPaymentTransitionError{From: o.PaymentStatus, To: to}
	}
	o.PaymentStatus = to
	if method != "" {
		o.PaymentMethod = method
	}
	return o, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat := &memCatalog{products: map[string]catalog.Product{
		"pizza": {ID: "pizza", Name: "Margherita", Price: decimal.RequireFromString("12.50"), Category: "mains", StockQuantity: 10, Available: true},
		"water": {ID: "water", Name: "Sparkling Water", Price: decimal.RequireFromString("3.00"), Category: "drinks", StockQuantity: 50, Available: true},
	}}
	repo := &memOrders{orders: map[string]*order.Order{}}

	svc, err := order.NewService(cat, repo, events.Nop{},
		decimal.RequireFromString("0.10"), order.NoDiscount{},
		noop.NewMeterProvider().Meter(""))
	require.NoError(t, err)

	h := NewHandler(svc, cat, auth.NewJWTVerifier(testSecret))
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func placeOrder(t *testing.T, srv *httptest.Server, bearer string) orderResponse {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/orders", bearer, map[string]any{
		"order_type": "dine_in",
		"table_id":   "4",
		"items": []map[string]any{
			{"product_id": "pizza", "quantity": 2},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[orderResponse](t, resp)
}

func TestProductsArePublic(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decode[[]productResponse](t, resp)
	assert.Len(t, products, 2)

	resp = do(t, http.MethodGet, srv.URL+"/products/pizza", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[productResponse](t, resp)
	assert.Equal(t, "Margherita", p.Name)
	assert.Equal(t, "12.50", p.Price)

	resp = do(t, http.MethodGet, srv.URL+"/products/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrdersRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "auth_error", body.Error.Kind)
	assert.Equal(t, "missing_token", body.Error.Code)

	resp = do(t, http.MethodGet, srv.URL+"/orders", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body = decode[errorBody](t, resp)
	assert.Equal(t, "invalid_token", body.Error.Code)
}

func TestCreateOrder(t *testing.T) {
	srv := newTestServer(t)

	o := placeOrder(t, srv, token(t, "user-1", auth.RoleCustomer))
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, "pending", o.Status)
	assert.Equal(t, "pending", o.PaymentStatus)
	assert.Equal(t, "25.00", o.Subtotal)
	assert.Equal(t, "2.50", o.TaxAmount)
	assert.Equal(t, "27.50", o.TotalAmount)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Margherita", o.Items[0].ProductName)
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	bearer := token(t, "user-1", auth.RoleCustomer)

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{
			name: "empty cart",
			body: map[string]any{"order_type": "dine_in", "items": []any{}},
			code: "empty_order",
		},
		{
			name: "bad order type",
			body: map[string]any{"order_type": "space_delivery", "items": []map[string]any{{"product_id": "pizza", "quantity": 1}}},
			code: "invalid_order_type",
		},
		{
			name: "delivery without address",
			body: map[string]any{"order_type": "delivery", "items": []map[string]any{{"product_id": "pizza", "quantity": 1}}},
			code: "missing_delivery_address",
		},
		{
			name: "unknown product",
			body: map[string]any{"order_type": "dine_in", "items": []map[string]any{{"product_id": "ghost", "quantity": 1}}},
			code: "product_not_found",
		},
		{
			name: "too much",
			body: map[string]any{"order_type": "dine_in", "items": []map[string]any{{"product_id": "pizza", "quantity": 11}}},
			code: "insufficient_stock",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/orders", bearer, tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestGetOrder_OwnerIsolation(t *testing.T) {
	srv := newTestServer(t)

	o := placeOrder(t, srv, token(t, "user-1", auth.RoleCustomer))

	// The owner can read it.
	resp := do(t, http.MethodGet, srv.URL+"/orders/"+o.ID, token(t, "user-1", auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Another customer cannot.
	resp = do(t, http.MethodGet, srv.URL+"/orders/"+o.ID, token(t, "user-2", auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Staff can.
	resp = do(t, http.MethodGet, srv.URL+"/orders/"+o.ID, token(t, "staff-1", auth.RoleStaff), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListOrders_CustomerSeesOnlyOwn(t *testing.T) {
	srv := newTestServer(t)

	placeOrder(t, srv, token(t, "user-1", auth.RoleCustomer))
	placeOrder(t, srv, token(t, "user-2", auth.RoleCustomer))

	resp := do(t, http.MethodGet, srv.URL+"/orders", token(t, "user-1", auth.RoleCustomer), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := decode[[]orderResponse](t, resp)
	require.Len(t, mine, 1)
	assert.Equal(t, "user-1", mine[0].UserID)

	resp = do(t, http.MethodGet, srv.URL+"/orders", token(t, "staff-1", auth.RoleStaff), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[[]orderResponse](t, resp)
	assert.Len(t, all, 2)

	resp = do(t, http.MethodGet, srv.URL+"/orders/my", token(t, "user-2", auth.RoleCustomer), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine = decode[[]orderResponse](t, resp)
	require.Len(t, mine, 1)
	assert.Equal(t, "user-2", mine[0].UserID)
}

func TestUpdateStatus_StaffGate(t *testing.T) {
	srv := newTestServer(t)
	o := placeOrder(t, srv, token(t, "user-1", auth.RoleCustomer))

	// Customers cannot move the lifecycle.
	resp := do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/status",
		token(t, "user-1", auth.RoleCustomer), map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Staff can.
	resp = do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/status",
		token(t, "staff-1", auth.RoleStaff), map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[orderResponse](t, resp)
	assert.Equal(t, "confirmed", updated.Status)

	// Skipping states is rejected.
	resp = do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/status",
		token(t, "staff-1", auth.RoleStaff), map[string]string{"status": "delivered"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "illegal_transition", body.Error.Code)

	// Unknown statuses never reach the state machine.
	resp = do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/status",
		token(t, "staff-1", auth.RoleStaff), map[string]string{"status": "vaporized"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decode[errorBody](t, resp)
	assert.Equal(t, "invalid_status", body.Error.Code)
}

func TestUpdatePayment(t *testing.T) {
	srv := newTestServer(t)
	o := placeOrder(t, srv, token(t, "user-1", auth.RoleCustomer))
	staff := token(t, "staff-1", auth.RoleStaff)

	resp := do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/payment",
		staff, map[string]string{"payment_status": "paid", "payment_method": "card"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[orderResponse](t, resp)
	assert.Equal(t, "paid", updated.PaymentStatus)
	assert.Equal(t, "card", updated.PaymentMethod)

	// paid -> failed is not a legal payment transition.
	resp = do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/payment",
		staff, map[string]string{"payment_status": "failed"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "illegal_transition", body.Error.Code)
}

func TestCancelOrder(t *testing.T) {
	srv := newTestServer(t)
	o := placeOrder(t, srv, token(t, "user-1", auth.RoleCustomer))

	// A different customer cannot cancel someone else's order.
	resp := do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/cancel",
		token(t, "user-2", auth.RoleCustomer), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/cancel",
		token(t, "user-1", auth.RoleCustomer), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[orderResponse](t, resp)
	assert.Equal(t, "cancelled", cancelled.Status)

	// Cancelling twice fails: the order is terminal now.
	resp = do(t, http.MethodPatch, srv.URL+"/orders/"+o.ID+"/cancel",
		token(t, "user-1", auth.RoleCustomer), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "order_not_cancellable", body.Error.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/orders/nope", token(t, "user-1", auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
