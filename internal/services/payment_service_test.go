package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tesseract-hub/commerce-service/internal/models"
)

// MockPaymentProvider is a mock implementation of PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
	name string
}

func (m *MockPaymentProvider) Name() string { return m.name }

func (m *MockPaymentProvider) InitiatePayment(ctx context.Context, order *models.Order) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProvider) Refund(ctx context.Context, order *models.Order, amountCents int64) error {
	args := m.Called(ctx, order, amountCents)
	return args.Error(0)
}

func TestPaymentService_InitiatePayment_RoutesByMethod(t *testing.T) {
	provider := &MockPaymentProvider{name: "paypal"}
	order := &models.Order{PaymentMethod: "paypal", TotalCents: 1000}
	provider.On("InitiatePayment", mock.Anything, order).Return("pp_ref", nil)

	svc := NewPaymentService(provider)
	ref, err := svc.InitiatePayment(context.Background(), order)

	require.NoError(t, err)
	assert.Equal(t, "pp_ref", ref)
}

func TestPaymentService_InitiatePayment_UnsupportedMethod(t *testing.T) {
	svc := NewPaymentService(&MockPaymentProvider{name: "paypal"})

	_, err := svc.InitiatePayment(context.Background(), &models.Order{PaymentMethod: "bitcoin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported payment method")
}

func TestPaymentService_MethodLookupIsCaseInsensitive(t *testing.T) {
	provider := &MockPaymentProvider{name: "pesapal"}
	order := &models.Order{PaymentMethod: "PesaPal"}
	provider.On("InitiatePayment", mock.Anything, order).Return("pesa_ref", nil)

	svc := NewPaymentService(provider)
	ref, err := svc.InitiatePayment(context.Background(), order)

	require.NoError(t, err)
	assert.Equal(t, "pesa_ref", ref)
}

func TestPaymentService_CircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	provider := &MockPaymentProvider{name: "paypal"}
	order := &models.Order{PaymentMethod: "paypal"}
	provider.On("InitiatePayment", mock.Anything, order).Return("", errors.New("gateway down"))

	svc := NewPaymentService(provider)
	for i := 0; i < 5; i++ {
		_, err := svc.InitiatePayment(context.Background(), order)
		require.Error(t, err)
	}

	// Breaker is open now; the provider is no longer called
	_, err := svc.InitiatePayment(context.Background(), order)
	require.Error(t, err)
	provider.AssertNumberOfCalls(t, "InitiatePayment", 5)
}

func TestPaymentService_ProviderName_FallsBackToMethod(t *testing.T) {
	svc := NewPaymentService(&MockPaymentProvider{name: "paypal"})

	assert.Equal(t, "paypal", svc.ProviderName("PayPal"))
	assert.Equal(t, "mpesa", svc.ProviderName("mpesa"))
}

func TestCashOnDeliveryProvider(t *testing.T) {
	p := NewCashOnDeliveryProvider()
	order := &models.Order{OrderNumber: "ORD-00001"}

	ref, err := p.InitiatePayment(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "cod_"))

	assert.NoError(t, p.Refund(context.Background(), order, 500))
}
