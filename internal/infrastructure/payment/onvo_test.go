package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnvoClient_CreateCheckoutSession(t *testing.T) {
	var got onvoCheckoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout-sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_123","url":"https://checkout.onvo/pay_123","status":"pending"}`))
	}))
	defer srv.Close()

	client := NewOnvoClient(srv.URL+"/", "sk_test", time.Second)
	session, err := client.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Amount:      25500,
		Description: "Order #42 - JyJ Essence",
		OrderID:     "42",
		SuccessURL:  "http://shop/success",
		CancelURL:   "http://shop/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, "pay_123", session.PaymentID)
	assert.Equal(t, "https://checkout.onvo/pay_123", session.CheckoutURL)
	assert.Equal(t, int64(25500), got.Amount)
	assert.Equal(t, "COP", got.Currency)
	assert.Equal(t, "42", got.Metadata["order_id"])
}

func TestOnvoClient_UpstreamErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"amount too small"}`))
	}))
	defer srv.Close()

	client := NewOnvoClient(srv.URL, "sk_test", time.Second)
	_, err := client.CreateCheckoutSession(context.Background(), CheckoutRequest{Amount: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount too small")
	assert.Contains(t, err.Error(), "422")
}

func TestOnvoClient_GetPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_9", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay_9","status":"succeeded","amount":1000,"currency":"COP"}`))
	}))
	defer srv.Close()

	info, err := NewOnvoClient(srv.URL, "sk", time.Second).GetPaymentStatus(context.Background(), "pay_9")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, info.Status)
	assert.Equal(t, int64(1000), info.Amount)
}

func TestOnvoClient_CreateRefundSendsNullForFullRefund(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refunds", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"id":"re_1","status":"succeeded","amount":1000}`))
	}))
	defer srv.Close()

	refund, err := NewOnvoClient(srv.URL, "sk", time.Second).CreateRefund(context.Background(), "pay_9", nil)
	require.NoError(t, err)
	assert.Equal(t, "re_1", refund.RefundID)
	assert.Equal(t, "pay_9", raw["payment_id"])
	assert.Nil(t, raw["amount"])
}

func TestOnvoClient_RespectsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOnvoClient(srv.URL, "sk", 5*time.Second).GetPaymentStatus(ctx, "pay_1")
	require.Error(t, err)
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(8500), ToCents(decimal.RequireFromString("85.00")))
	assert.Equal(t, int64(1999), ToCents(decimal.RequireFromString("19.99")))
	assert.True(t, FromCents(25500).Equal(decimal.NewFromInt(255)))
}
