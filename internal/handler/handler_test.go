package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/infrastructure/payment"
	"perfume-storefront/internal/service"
)

const testSecret = "test-jwt-secret"

type stubCartService struct {
	service.CartService
	add func(customerID, productID uuid.UUID, qty int) (domain.CartView, error)
	get func(customerID uuid.UUID) (domain.CartView, error)
}

func (s *stubCartService) Add(_ context.Context, customerID, productID uuid.UUID, qty int) (domain.CartView, error) {
	return s.add(customerID, productID, qty)
}

func (s *stubCartService) GetCart(_ context.Context, customerID uuid.UUID) (domain.CartView, error) {
	return s.get(customerID)
}

func (s *stubCartService) Undo(context.Context, uuid.UUID) (domain.CartView, error) {
	return domain.CartView{}, domain.ErrNothingToUndo
}

type stubOrderService struct {
	service.OrderService
	checkout func(customerID uuid.UUID, addr uuid.NullUUID) (*domain.CheckoutResult, error)
	listAll  func() ([]domain.Order, error)
}

func (s *stubOrderService) Checkout(_ context.Context, customerID uuid.UUID, addr uuid.NullUUID) (*domain.CheckoutResult, error) {
	return s.checkout(customerID, addr)
}

func (s *stubOrderService) ListAllOrders(context.Context) ([]domain.Order, error) {
	return s.listAll()
}

type stubPaymentService struct {
	service.PaymentService
	webhook func(event *payment.WebhookEvent) error
	refund  func(orderID uuid.UUID, amount *decimal.Decimal) (*service.RefundResult, error)
}

func (s *stubPaymentService) HandleWebhook(_ context.Context, event *payment.WebhookEvent) error {
	return s.webhook(event)
}

func (s *stubPaymentService) Refund(_ context.Context, orderID uuid.UUID, amount *decimal.Decimal) (*service.RefundResult, error) {
	return s.refund(orderID, amount)
}

type stubHealth struct{ status string }

func (h stubHealth) Health(context.Context) map[string]string {
	return map[string]string{"status": h.status}
}

type testServer struct {
	router   *gin.Engine
	carts    *stubCartService
	orders   *stubOrderService
	payments *stubPaymentService
}

func newTestServer(t *testing.T, webhookSecret string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	ts := &testServer{
		carts:    &stubCartService{},
		orders:   &stubOrderService{},
		payments: &stubPaymentService{},
	}
	ts.router = NewRouter(RouterConfig{JWTSecret: testSecret, CORSOrigins: []string{"http://localhost:5173"}}, Handlers{
		Cart:    NewCartHandler(ts.carts, logger),
		Order:   NewOrderHandler(ts.orders, logger),
		Payment: NewPaymentHandler(ts.payments, webhookSecret, logger),
		DB:      stubHealth{status: "up"},
	}, logger)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, customerID uuid.UUID, admin bool) string {
	t.Helper()
	tok, err := IssueToken(testSecret, customerID, admin, time.Hour)
	require.NoError(t, err)
	return tok
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, "")
	customer := uuid.New()
	ts.carts.get = func(id uuid.UUID) (domain.CartView, error) {
		assert.Equal(t, customer, id)
		return domain.CartView{Items: []domain.CartItem{}, Total: decimal.Zero}, nil
	}

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/cart", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/cart", "", "not-a-jwt").Code)

	expired, err := IssueToken(testSecret, customer, false, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/cart", "", expired).Code)

	forged, err := IssueToken("other-secret", customer, false, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/cart", "", forged).Code)

	w := ts.do(t, http.MethodGet, "/cart", "", token(t, customer, false))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, "")
	ts.orders.listAll = func() ([]domain.Order, error) { return nil, nil }

	w := ts.do(t, http.MethodGet, "/orders", "", token(t, uuid.New(), false))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/orders", "", token(t, uuid.New(), true))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["orders"])
}

func TestCartAdd(t *testing.T) {
	ts := newTestServer(t, "")
	customer := uuid.New()
	product := uuid.New()
	tok := token(t, customer, false)

	ts.carts.add = func(c, p uuid.UUID, qty int) (domain.CartView, error) {
		assert.Equal(t, customer, c)
		assert.Equal(t, product, p)
		if qty > 10 {
			return domain.CartView{}, fmt.Errorf("%w: Chanel No. 5 has 10 left", domain.ErrInsufficientStock)
		}
		return domain.CartView{
			Items:     []domain.CartItem{{ProductID: p, Name: "Chanel No. 5", Quantity: qty, UnitPrice: decimal.NewFromInt(85)}},
			Total:     decimal.NewFromInt(int64(85 * qty)),
			ItemCount: 1,
		}, nil
	}

	w := ts.do(t, http.MethodPost, "/cart/add", fmt.Sprintf(`{"product_id":%q,"quantity":2}`, product), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "170", decode(t, w)["total"])

	w = ts.do(t, http.MethodPost, "/cart/add", fmt.Sprintf(`{"product_id":%q,"quantity":20}`, product), tok)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode(t, w)["error"], "insufficient stock")

	w = ts.do(t, http.MethodPost, "/cart/add", `{"quantity":2}`, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/cart/add", `{"product_id":`, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartUndoNothing(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(t, http.MethodPost, "/cart/undo", "", token(t, uuid.New(), false))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrNothingToUndo.Error(), decode(t, w)["error"])
}

func TestCheckoutErrors(t *testing.T) {
	ts := newTestServer(t, "")
	tok := token(t, uuid.New(), false)

	cases := []struct {
		err    error
		status int
		body   string
	}{
		{domain.ErrEmptyCart, http.StatusUnprocessableEntity, domain.ErrEmptyCart.Error()},
		{fmt.Errorf("%w: %w", domain.ErrPaymentGateway, errors.New("dial tcp 10.0.0.1:443")), http.StatusBadGateway, domain.ErrPaymentGateway.Error()},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		ts.orders.checkout = func(uuid.UUID, uuid.NullUUID) (*domain.CheckoutResult, error) { return nil, tc.err }

		w := ts.do(t, http.MethodPost, "/orders/checkout", `{}`, tok)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Equal(t, tc.body, decode(t, w)["error"], "internals are not leaked")
	}
}

func TestCheckoutCreated(t *testing.T) {
	ts := newTestServer(t, "")
	addr := uuid.New()
	ts.orders.checkout = func(_ uuid.UUID, a uuid.NullUUID) (*domain.CheckoutResult, error) {
		assert.Equal(t, uuid.NullUUID{UUID: addr, Valid: true}, a)
		return &domain.CheckoutResult{PaymentID: "pay_1", CheckoutURL: "https://pay/1", Order: &domain.Order{ID: uuid.New()}}, nil
	}

	w := ts.do(t, http.MethodPost, "/orders/checkout", fmt.Sprintf(`{"shipping_address_id":%q}`, addr), token(t, uuid.New(), false))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://pay/1", decode(t, w)["checkout_url"])
}

func TestWebhook(t *testing.T) {
	ts := newTestServer(t, "whsec")
	var got *payment.WebhookEvent
	ts.payments.webhook = func(e *payment.WebhookEvent) error {
		got = e
		return nil
	}
	body := `{"type":"payment.succeeded","data":{"id":"pay_1","amount":25500}}`

	send := func(body, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
		if signature != "" {
			req.Header.Set(payment.SignatureHeader, signature)
		}
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, send(body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, send(body, payment.Sign([]byte(body), "wrong")).Code)
	assert.Nil(t, got)

	w := send(body, payment.Sign([]byte(body), "whsec"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["received"])
	require.NotNil(t, got)
	assert.Equal(t, "pay_1", got.Data.ID)

	bad := `{"type":"payment.failed","data":{}}`
	assert.Equal(t, http.StatusBadRequest, send(bad, payment.Sign([]byte(bad), "whsec")).Code)

	ts.payments.webhook = func(*payment.WebhookEvent) error { return errors.New("db down") }
	w = send(body, payment.Sign([]byte(body), "whsec"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decode(t, w)["received"])
}

func TestRefundPassesAmount(t *testing.T) {
	ts := newTestServer(t, "")
	orderID := uuid.New()
	ts.payments.refund = func(id uuid.UUID, amount *decimal.Decimal) (*service.RefundResult, error) {
		assert.Equal(t, orderID, id)
		require.NotNil(t, amount)
		assert.True(t, amount.Equal(decimal.RequireFromString("50.5")))
		return &service.RefundResult{RefundID: "re_1", Amount: *amount}, nil
	}

	w := ts.do(t, http.MethodPost, "/payments/refund/"+orderID.String(), `{"amount":"50.50"}`, token(t, uuid.New(), true))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "re_1", decode(t, w)["refund_id"])

	w = ts.do(t, http.MethodPost, "/payments/refund/not-a-uuid", `{}`, token(t, uuid.New(), true))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "up", decode(t, w)["status"])
}
