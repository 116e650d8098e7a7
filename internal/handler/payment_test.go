package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/buyer"
	"github.com/sellergate/storefront/internal/domain/cart"
	"github.com/sellergate/storefront/internal/domain/checkout"
	"github.com/sellergate/storefront/internal/domain/order"
	"github.com/sellergate/storefront/internal/gateway"
	"github.com/sellergate/storefront/internal/session"
)

// --- Mock implementations ---

type mockBuyerRepo struct {
	byID map[string]*buyer.Buyer
}

func (m *mockBuyerRepo) Create(context.Context, *buyer.Buyer) error { return nil }

func (m *mockBuyerRepo) FindByID(_ context.Context, id string) (*buyer.Buyer, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, buyer.ErrNotFound
	}
	return b, nil
}

func (m *mockBuyerRepo) FindByEmail(context.Context, string) (*buyer.Buyer, error) {
	return nil, buyer.ErrNotFound
}

func (m *mockBuyerRepo) UpdateAddress(context.Context, string, buyer.Address) error {
	return nil
}

type mockOrderRepo struct {
	created []*order.Order
	err     error
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrderRepo) FindByID(context.Context, string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) FindByBuyer(context.Context, string) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) FindAll(context.Context) ([]order.Order, error) { return nil, nil }

func (m *mockOrderRepo) UpdateStatus(context.Context, string, order.Status) error {
	return nil
}

func (m *mockOrderRepo) Delete(context.Context, string) error { return nil }

type stubGateway struct {
	token     string
	tokenErr  error
	tx        *gateway.Transaction
	saleErr   error
	saleCalls int
}

func (s *stubGateway) ClientToken(context.Context) (string, error) {
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return s.token, nil
}

func (s *stubGateway) Sale(_ context.Context, _ decimal.Decimal, _ string) (*gateway.Transaction, error) {
	s.saleCalls++
	if s.saleErr != nil {
		return nil, s.saleErr
	}
	return s.tx, nil
}

// --- Test fixture ---

type fixture struct {
	handler  http.Handler
	sessions *session.Manager
	gateway  *stubGateway
	orders   *mockOrderRepo
	carts    *cart.MemStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	buyers := &mockBuyerRepo{byID: map[string]*buyer.Buyer{
		"buyer-1": {
			ID:    "buyer-1",
			Name:  "Ada",
			Email: "ada@example.com",
			Role:  buyer.RoleBuyer,
			Address: &buyer.Address{
				Street: "1 Main St",
				City:   "Springfield",
			},
		},
		"buyer-2": {
			ID:    "buyer-2",
			Name:  "Bob",
			Email: "bob@example.com",
			Role:  buyer.RoleBuyer,
		},
	}}

	orders := &mockOrderRepo{}
	gw := &stubGateway{
		token: "tok-1",
		tx:    &gateway.Transaction{ID: "tx-1", Status: "submitted_for_settlement"},
	}

	sessions := session.NewManager([]byte("test-secret"), time.Hour)
	guard := checkout.NewGuard("/login", "/dashboard/user/profile")
	orchestrator := checkout.NewOrchestrator(guard, orders, nil, zap.NewNop())
	carts := cart.NewMemStorage()

	h := NewHandler(
		buyers, nil, orders,
		sessions, guard, orchestrator,
		gw, gateway.NewNonceGuard(1000, 0.001), carts,
		zap.NewNop(),
	)

	return &fixture{
		handler:  h.Routes(),
		sessions: sessions,
		gateway:  gw,
		orders:   orders,
		carts:    carts,
	}
}

func (f *fixture) login(t *testing.T, buyerID string) string {
	t.Helper()
	token, err := f.sessions.Issue(buyerID, buyerID+"@example.com", buyer.RoleBuyer)
	require.NoError(t, err)
	return token
}

func (f *fixture) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const paymentBody = `{
	"nonce": "nonce-1",
	"cart": [
		{"productId": "p1", "name": "Widget", "price": "100", "quantity": 1},
		{"productId": "p2", "name": "Gadget", "price": "100", "quantity": 2}
	]
}`

// --- Tests ---

func TestBraintreeToken(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/product/braintree/token", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", decodeBody(t, rec)["clientToken"])
}

func TestBraintreeToken_GatewayDown(t *testing.T) {
	f := newFixture(t)
	f.gateway.tokenErr = gateway.ErrUnavailable

	rec := f.request(t, http.MethodGet, "/api/v1/product/braintree/token", "", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBraintreePayment_Settles(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-1")

	// A cart persisted earlier in the session; the settle must remove it.
	require.NoError(t, f.carts.Write(context.Background(), "buyer-1", []byte(`[{"productId":"p1"}]`)))

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token, paymentBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["ok"])

	require.Len(t, f.orders.created, 1)
	ord := f.orders.created[0]
	assert.Equal(t, order.StatusNotProcess, ord.Status)
	assert.Equal(t, "tx-1", ord.Payment.TransactionID)
	assert.True(t, ord.Total.Equal(decimal.NewFromInt(300)))

	_, err := f.carts.Read(context.Background(), "buyer-1")
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestBraintreePayment_Declined(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-1")
	f.gateway.saleErr = &gateway.DeclineError{Message: "Credit card declined"}

	persisted := []byte(`[{"productId":"p1"}]`)
	require.NoError(t, f.carts.Write(context.Background(), "buyer-1", persisted))

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token, paymentBody)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "Credit card declined", decodeBody(t, rec)["message"])
	assert.Empty(t, f.orders.created)

	// Persisted cart untouched on decline.
	raw, err := f.carts.Read(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, persisted, raw)
}

func TestBraintreePayment_SettledNotRecorded(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-1")
	f.orders.err = assert.AnError

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token, paymentBody)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "settled_not_recorded", decodeBody(t, rec)["error"])
	assert.Equal(t, 1, f.gateway.saleCalls)
}

func TestBraintreePayment_GatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-1")
	f.gateway.saleErr = gateway.ErrUnavailable

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token, paymentBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, f.orders.created)
}

func TestBraintreePayment_MissingNonce(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-1")

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token,
		`{"cart": [{"productId": "p1", "price": "100"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.gateway.saleCalls)
}

func TestBraintreePayment_EmptyCart(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-1")

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token,
		`{"nonce": "nonce-1", "cart": []}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.gateway.saleCalls)
}

func TestBraintreePayment_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", "", paymentBody)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "/login", body["redirect"])
	assert.Equal(t, "/api/v1/product/braintree/payment", body["from"])
	assert.Zero(t, f.gateway.saleCalls)
}

func TestBraintreePayment_NoAddress(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-2")

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token, paymentBody)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "/dashboard/user/profile", decodeBody(t, rec)["redirect"])
	assert.Zero(t, f.gateway.saleCalls)
}

func TestBraintreePayment_NonceReplay(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-1")

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token, paymentBody)
	require.Equal(t, http.StatusOK, rec.Code)

	// Resubmitting the same nonce must not produce a second charge.
	rec = f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token, paymentBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, f.gateway.saleCalls)
	assert.Len(t, f.orders.created, 1)
}

func TestBraintreePayment_MalformedPrice(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "buyer-1")

	rec := f.request(t, http.MethodPost, "/api/v1/product/braintree/payment", token,
		`{"nonce": "nonce-1", "cart": [{"productId": "p1", "name": "Widget", "price": "oops"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, f.gateway.saleCalls, "no charge for a cart that cannot become an order")
}
