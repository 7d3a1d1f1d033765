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

// PesapalClient handles communication with the Pesapal payment gateway.
// The gateway is treated as opaque: only order submission, refund requests
// and their success/failure signals cross this boundary.
type PesapalClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

// NewPesapalClient creates a new Pesapal client
func NewPesapalClient(baseURL, consumerKey, consumerSecret string) *PesapalClient {
	return &PesapalClient{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitOrderRequest represents a Pesapal order submission
type SubmitOrderRequest struct {
	ID             string  `json:"id"`
	Currency       string  `json:"currency"`
	Amount         float64 `json:"amount"`
	Description    string  `json:"description"`
	CallbackURL    string  `json:"callback_url"`
	NotificationID string  `json:"notification_id"`
}

// SubmitOrderResponse represents the Pesapal order submission response
type SubmitOrderResponse struct {
	OrderTrackingID string `json:"order_tracking_id"`
	MerchantRef     string `json:"merchant_reference"`
	RedirectURL     string `json:"redirect_url"`
	Status          string `json:"status"`
}

// RefundRequest represents a Pesapal refund request
type RefundRequest struct {
	ConfirmationCode string  `json:"confirmation_code"`
	Amount           float64 `json:"amount"`
	Username         string  `json:"username"`
	Remarks          string  `json:"remarks"`
}

// RefundResponse represents the Pesapal refund response
type RefundResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SubmitOrder submits an order for payment collection and returns the
// tracking reference the storefront uses to complete payment
func (c *PesapalClient) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*SubmitOrderResponse, error) {
	var resp SubmitOrderResponse
	if err := c.post(ctx, "/api/Transactions/SubmitOrderRequest", req, &resp); err != nil {
		return nil, err
	}
	if resp.OrderTrackingID == "" {
		return nil, fmt.Errorf("pesapal returned no tracking ID (status: %s)", resp.Status)
	}
	return &resp, nil
}

// Refund requests a refund for a previously captured payment
func (c *PesapalClient) Refund(ctx context.Context, req *RefundRequest) error {
	var resp RefundResponse
	if err := c.post(ctx, "/api/Transactions/RefundRequest", req, &resp); err != nil {
		return err
	}
	if resp.Status != "200" && resp.Status != "OK" {
		return fmt.Errorf("pesapal refund rejected: %s", resp.Message)
	}
	return nil
}

func (c *PesapalClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.consumerKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pesapal request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read pesapal response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pesapal returned status %d: %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode pesapal response: %w", err)
	}
	return nil
}
