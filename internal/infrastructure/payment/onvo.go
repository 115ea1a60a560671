package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OnvoClient talks to the Onvo Pay REST API.
type OnvoClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewOnvoClient(baseURL, secretKey string, timeout time.Duration) *OnvoClient {
	return &OnvoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type onvoCheckoutRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Customer    onvoCustomer      `json:"customer"`
	Metadata    map[string]string `json:"metadata"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
}

type onvoCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type onvoCheckoutResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
	URL         string `json:"url"`
	PaymentURL  string `json:"payment_url"`
	Status      string `json:"status"`
}

type onvoPaymentResponse struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata"`
}

type onvoRefundRequest struct {
	PaymentID string `json:"payment_id"`
	Amount    *int64 `json:"amount"`
}

type onvoRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type onvoError struct {
	Message string `json:"message"`
}

func (c *OnvoClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	currency := req.Currency
	if currency == "" {
		currency = "COP"
	}
	body := onvoCheckoutRequest{
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
		Customer:    onvoCustomer{Email: req.CustomerEmail, Name: req.CustomerName},
		Metadata:    map[string]string{"order_id": req.OrderID},
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
	}

	var resp onvoCheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/checkout-sessions", body, &resp); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	checkoutURL := resp.CheckoutURL
	if checkoutURL == "" {
		checkoutURL = resp.URL
	}
	if checkoutURL == "" {
		checkoutURL = resp.PaymentURL
	}
	if resp.ID == "" || checkoutURL == "" {
		return nil, fmt.Errorf("create checkout session: incomplete response from gateway")
	}

	return &CheckoutSession{PaymentID: resp.ID, CheckoutURL: checkoutURL, Status: resp.Status}, nil
}

func (c *OnvoClient) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	var resp onvoPaymentResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get payment status: %w", err)
	}
	return &PaymentInfo{
		ID:       resp.ID,
		Status:   resp.Status,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Metadata: resp.Metadata,
	}, nil
}

func (c *OnvoClient) CreateRefund(ctx context.Context, paymentID string, amount *int64) (*Refund, error) {
	var resp onvoRefundResponse
	if err := c.do(ctx, http.MethodPost, "/refunds", onvoRefundRequest{PaymentID: paymentID, Amount: amount}, &resp); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return &Refund{RefundID: resp.ID, Status: resp.Status, Amount: resp.Amount}, nil
}

func (c *OnvoClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr onvoError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("gateway error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("gateway error (%d)", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse gateway response: %w", err)
	}
	return nil
}
