package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PayPalClient handles communication with the PayPal Orders API.
// Opaque collaborator: only order creation, refunds and success/failure
// signals cross this boundary.
type PayPalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewPayPalClient creates a new PayPal client
func NewPayPalClient(baseURL, clientID, clientSecret string) *PayPalClient {
	return &PayPalClient{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateOrderRequest represents a PayPal order creation request
type CreateOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// PurchaseUnit is one purchase unit of a PayPal order
type PurchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	Amount      Amount `json:"amount"`
}

// Amount is a PayPal money amount
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// CreateOrderResponse represents the PayPal order creation response
type CreateOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CaptureRefundRequest represents a PayPal refund request
type CaptureRefundRequest struct {
	Amount       *Amount `json:"amount,omitempty"`
	NoteToPayer  string  `json:"note_to_payer,omitempty"`
	InvoiceID    string  `json:"invoice_id,omitempty"`
}

// CaptureRefundResponse represents the PayPal refund response
type CaptureRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder creates a PayPal order and returns its ID as the payment
// reference for out-of-band approval and capture
func (c *PayPalClient) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	var resp CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("paypal returned no order ID (status: %s)", resp.Status)
	}
	return &resp, nil
}

// RefundCapture refunds a captured payment identified by the capture ID
func (c *PayPalClient) RefundCapture(ctx context.Context, captureID string, req *CaptureRefundRequest) error {
	var resp CaptureRefundResponse
	path := fmt.Sprintf("/v2/payments/captures/%s/refund", captureID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return err
	}
	if resp.Status != "COMPLETED" && resp.Status != "PENDING" {
		return fmt.Errorf("paypal refund not accepted: %s", resp.Status)
	}
	return nil
}

func (c *PayPalClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read paypal response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paypal returned status %d: %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode paypal response: %w", err)
	}
	return nil
}
