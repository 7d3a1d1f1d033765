package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tesseract-hub/commerce-service/internal/clients"
	"github.com/tesseract-hub/commerce-service/internal/models"
)

// Payment method names accepted at checkout
const (
	PaymentMethodPesapal        = "pesapal"
	PaymentMethodPayPal         = "paypal"
	PaymentMethodCashOnDelivery = "cod"
)

// PaymentProvider is one opaque external payment gateway. Only
// success/failure signaling and a provider reference cross this boundary.
type PaymentProvider interface {
	Name() string
	InitiatePayment(ctx context.Context, order *models.Order) (string, error)
	Refund(ctx context.Context, order *models.Order, amountCents int64) error
}

// PaymentService routes payment initiation and refunds to the provider
// matching the order's payment method. Provider calls go through a circuit
// breaker so a misbehaving gateway fails fast instead of piling up requests.
type PaymentService struct {
	providers map[string]PaymentProvider
	breakers  map[string]*gobreaker.CircuitBreaker
}

// NewPaymentService creates a payment service with the given providers
func NewPaymentService(providers ...PaymentProvider) *PaymentService {
	s := &PaymentService{
		providers: make(map[string]PaymentProvider),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
		s.breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "payment-" + p.Name(),
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logrus.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Payment provider circuit breaker state changed")
			},
		})
	}
	return s
}

// ProviderName resolves the provider name for a payment method
func (s *PaymentService) ProviderName(method string) string {
	if p, ok := s.providers[strings.ToLower(method)]; ok {
		return p.Name()
	}
	return method
}

// InitiatePayment starts payment collection with the order's provider and
// returns a reference the caller uses to complete payment out-of-band
func (s *PaymentService) InitiatePayment(ctx context.Context, order *models.Order) (string, error) {
	provider, breaker, err := s.resolve(order.PaymentMethod)
	if err != nil {
		return "", err
	}
	ref, err := breaker.Execute(func() (interface{}, error) {
		return provider.InitiatePayment(ctx, order)
	})
	if err != nil {
		return "", fmt.Errorf("payment initiation via %s failed: %w", provider.Name(), err)
	}
	return ref.(string), nil
}

// Refund requests a refund from the order's provider
func (s *PaymentService) Refund(ctx context.Context, order *models.Order, amountCents int64) error {
	provider, breaker, err := s.resolve(order.PaymentMethod)
	if err != nil {
		return err
	}
	_, err = breaker.Execute(func() (interface{}, error) {
		return nil, provider.Refund(ctx, order, amountCents)
	})
	return err
}

func (s *PaymentService) resolve(method string) (PaymentProvider, *gobreaker.CircuitBreaker, error) {
	provider, ok := s.providers[strings.ToLower(method)]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported payment method: %s", method)
	}
	return provider, s.breakers[provider.Name()], nil
}

// PesapalProvider adapts the Pesapal client to the PaymentProvider interface
type PesapalProvider struct {
	client      *clients.PesapalClient
	callbackURL string
}

// NewPesapalProvider creates a Pesapal payment provider
func NewPesapalProvider(client *clients.PesapalClient, callbackURL string) *PesapalProvider {
	return &PesapalProvider{client: client, callbackURL: callbackURL}
}

// Name returns the provider name
func (p *PesapalProvider) Name() string { return PaymentMethodPesapal }

// InitiatePayment submits the order to Pesapal and returns the tracking ID
func (p *PesapalProvider) InitiatePayment(ctx context.Context, order *models.Order) (string, error) {
	resp, err := p.client.SubmitOrder(ctx, &clients.SubmitOrderRequest{
		ID:          order.OrderNumber,
		Currency:    "KES",
		Amount:      float64(order.TotalCents) / 100,
		Description: fmt.Sprintf("Order %s", order.OrderNumber),
		CallbackURL: p.callbackURL,
	})
	if err != nil {
		return "", err
	}
	return resp.OrderTrackingID, nil
}

// Refund requests a Pesapal refund against the order's payment reference
func (p *PesapalProvider) Refund(ctx context.Context, order *models.Order, amountCents int64) error {
	if order.PaymentRef == "" {
		return fmt.Errorf("order %s has no payment reference to refund", order.OrderNumber)
	}
	return p.client.Refund(ctx, &clients.RefundRequest{
		ConfirmationCode: order.PaymentRef,
		Amount:           float64(amountCents) / 100,
		Remarks:          order.CancelReason,
	})
}

// PayPalProvider adapts the PayPal client to the PaymentProvider interface
type PayPalProvider struct {
	client   *clients.PayPalClient
	currency string
}

// NewPayPalProvider creates a PayPal payment provider
func NewPayPalProvider(client *clients.PayPalClient, currency string) *PayPalProvider {
	if currency == "" {
		currency = "USD"
	}
	return &PayPalProvider{client: client, currency: currency}
}

// Name returns the provider name
func (p *PayPalProvider) Name() string { return PaymentMethodPayPal }

// InitiatePayment creates a PayPal order and returns its ID
func (p *PayPalProvider) InitiatePayment(ctx context.Context, order *models.Order) (string, error) {
	resp, err := p.client.CreateOrder(ctx, &clients.CreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []clients.PurchaseUnit{{
			ReferenceID: order.OrderNumber,
			Amount: clients.Amount{
				CurrencyCode: p.currency,
				Value:        fmt.Sprintf("%.2f", float64(order.TotalCents)/100),
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Refund refunds the captured PayPal payment
func (p *PayPalProvider) Refund(ctx context.Context, order *models.Order, amountCents int64) error {
	if order.PaymentRef == "" {
		return fmt.Errorf("order %s has no payment reference to refund", order.OrderNumber)
	}
	return p.client.RefundCapture(ctx, order.PaymentRef, &clients.CaptureRefundRequest{
		Amount: &clients.Amount{
			CurrencyCode: p.currency,
			Value:        fmt.Sprintf("%.2f", float64(amountCents)/100),
		},
		InvoiceID: order.OrderNumber,
	})
}

// CashOnDeliveryProvider handles cash-on-delivery orders: no gateway is
// involved, payment is collected physically and refunds are a bookkeeping
// acknowledgement
type CashOnDeliveryProvider struct{}

// NewCashOnDeliveryProvider creates a cash-on-delivery provider
func NewCashOnDeliveryProvider() *CashOnDeliveryProvider {
	return &CashOnDeliveryProvider{}
}

// Name returns the provider name
func (p *CashOnDeliveryProvider) Name() string { return PaymentMethodCashOnDelivery }

// InitiatePayment generates a local reference; nothing external to call
func (p *CashOnDeliveryProvider) InitiatePayment(ctx context.Context, order *models.Order) (string, error) {
	return fmt.Sprintf("cod_%s", uuid.New().String()[:16]), nil
}

// Refund acknowledges the refund; cash is returned outside the system
func (p *CashOnDeliveryProvider) Refund(ctx context.Context, order *models.Order, amountCents int64) error {
	logrus.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"amount_cents": amountCents,
	}).Info("Cash-on-delivery refund acknowledged")
	return nil
}
