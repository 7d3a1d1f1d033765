package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tesseract-hub/commerce-service/internal/models"
)

// MockQuotaChecker is a mock implementation of QuotaChecker
type MockQuotaChecker struct {
	mock.Mock
}

func (m *MockQuotaChecker) CanCreate(ctx context.Context, tenantID uuid.UUID, resource models.ResourceType) error {
	args := m.Called(ctx, tenantID, resource)
	return args.Error(0)
}

func (m *MockQuotaChecker) InvalidateSnapshot(ctx context.Context, tenantID uuid.UUID) {
	m.Called(ctx, tenantID)
}

// MockStockReserver is a mock implementation of StockReserver
type MockStockReserver struct {
	mock.Mock
}

func (m *MockStockReserver) Reserve(ctx context.Context, items []models.OrderItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

// MockCheckoutOrderStore is a mock implementation of CheckoutOrderStore
type MockCheckoutOrderStore struct {
	mock.Mock
}

func (m *MockCheckoutOrderStore) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockCheckoutOrderStore) Save(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockCheckoutOrderStore) NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockCheckoutOrderStore) GetCouponByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Coupon, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

// MockProductReader is a mock implementation of ProductReader
type MockProductReader struct {
	mock.Mock
}

func (m *MockProductReader) GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductReader) GetVariantByID(ctx context.Context, variantID uuid.UUID) (*models.Variant, error) {
	args := m.Called(ctx, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Variant), args.Error(1)
}

// MockPaymentInitiator is a mock implementation of PaymentInitiator
type MockPaymentInitiator struct {
	mock.Mock
}

func (m *MockPaymentInitiator) InitiatePayment(ctx context.Context, order *models.Order) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

type checkoutFixture struct {
	quota    *MockQuotaChecker
	stock    *MockStockReserver
	orders   *MockCheckoutOrderStore
	products *MockProductReader
	payments *MockPaymentInitiator
	notifier *MockNotifier
	svc      *CheckoutService
}

func newCheckoutFixture(maxRetries int) *checkoutFixture {
	f := &checkoutFixture{
		quota:    new(MockQuotaChecker),
		stock:    new(MockStockReserver),
		orders:   new(MockCheckoutOrderStore),
		products: new(MockProductReader),
		payments: new(MockPaymentInitiator),
		notifier: quietNotifier(),
	}
	f.svc = NewCheckoutService(f.quota, f.stock, f.orders, f.products, f.payments, f.notifier, fakeTx{}, maxRetries)
	return f
}

func activeProduct(tenantID uuid.UUID, name string, priceCents int64) *models.Product {
	return &models.Product{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Name:       name,
		Status:     models.ProductStatusActive,
		PriceCents: priceCents,
	}
}

func TestCheckoutService_Checkout_HappyPath(t *testing.T) {
	tenantID := uuid.New()
	shirt := activeProduct(tenantID, "T-Shirt", 1500)
	mug := activeProduct(tenantID, "Mug", 900)
	variantPrice := int64(1800)
	largeShirt := &models.Variant{
		ID:         uuid.New(),
		ProductID:  shirt.ID,
		Name:       "Large",
		PriceCents: &variantPrice,
	}

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.quota.On("InvalidateSnapshot", mock.Anything, tenantID).Return()
	f.products.On("GetByID", mock.Anything, shirt.ID).Return(shirt, nil)
	f.products.On("GetByID", mock.Anything, mug.ID).Return(mug, nil)
	f.products.On("GetVariantByID", mock.Anything, largeShirt.ID).Return(largeShirt, nil)
	f.stock.On("Reserve", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("NextOrderNumber", mock.Anything, tenantID).Return("ORD-00042", nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("InitiatePayment", mock.Anything, mock.Anything).Return("pay_ref_123", nil)

	result, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID: tenantID,
		Items: []CartItem{
			{ProductID: shirt.ID, VariantID: &largeShirt.ID, Quantity: 2},
			{ProductID: mug.ID, Quantity: 1},
		},
		ShippingAddr:  models.Address{Line1: "1 Main St", City: "Nairobi", Country: "KE"},
		PaymentMethod: "paypal",
	})

	require.NoError(t, err)
	order := result.Order
	require.Len(t, order.Items, 2)

	// Variant price overrides the product price in the snapshot
	assert.Equal(t, int64(1800), order.Items[0].UnitPriceCents)
	assert.Equal(t, "Large", order.Items[0].VariantName)
	assert.Equal(t, int64(3600), order.Items[0].LineTotalCents)
	assert.Equal(t, int64(900), order.Items[1].UnitPriceCents)

	assert.Equal(t, int64(4500), order.SubtotalCents)
	assert.Equal(t, int64(4500), order.TotalCents)
	assert.Equal(t, "ORD-00042", order.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "pay_ref_123", result.PaymentRef)
	assert.Equal(t, "pay_ref_123", order.PaymentRef)

	f.quota.AssertExpectations(t)
	f.orders.AssertExpectations(t)
}

func TestCheckoutService_Checkout_QuotaDenialAbortsBeforeReservation(t *testing.T) {
	tenantID := uuid.New()

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(&QuotaExceededError{
		Resource: models.ResourceOrders,
		Current:  50,
		Limit:    50,
	})

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: uuid.New(), Quantity: 1}},
		PaymentMethod: "cod",
	})

	_, ok := IsQuotaExceededError(err)
	require.True(t, ok)
	f.stock.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckoutService_Checkout_InsufficientStockPropagates(t *testing.T) {
	tenantID := uuid.New()
	shirt := activeProduct(tenantID, "T-Shirt", 1500)

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.products.On("GetByID", mock.Anything, shirt.ID).Return(shirt, nil)
	f.stock.On("Reserve", mock.Anything, mock.Anything).Return(&InsufficientStockError{
		ProductName: "T-Shirt",
		Requested:   5,
		Available:   2,
	})

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: shirt.ID, Quantity: 5}},
		PaymentMethod: "cod",
	})

	stockErr, ok := IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, "T-Shirt", stockErr.ProductName)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckoutService_Checkout_CouponDiscountApplied(t *testing.T) {
	tenantID := uuid.New()
	shirt := activeProduct(tenantID, "T-Shirt", 1000)
	code := "SAVE10"

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.quota.On("InvalidateSnapshot", mock.Anything, tenantID).Return()
	f.products.On("GetByID", mock.Anything, shirt.ID).Return(shirt, nil)
	f.stock.On("Reserve", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("GetCouponByCode", mock.Anything, tenantID, code).Return(&models.Coupon{
		Code:         code,
		DiscountType: models.CouponTypePercent,
		Amount:       10,
		IsActive:     true,
	}, nil)
	f.orders.On("NextOrderNumber", mock.Anything, tenantID).Return("ORD-00043", nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("InitiatePayment", mock.Anything, mock.Anything).Return("", nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: shirt.ID, Quantity: 2}},
		PaymentMethod: "cod",
		CouponCode:    &code,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2000), result.Order.SubtotalCents)
	assert.Equal(t, int64(200), result.Order.DiscountCents)
	assert.Equal(t, int64(1800), result.Order.TotalCents)
}

func TestCheckoutService_Checkout_ExpiredCouponFailsCheckout(t *testing.T) {
	tenantID := uuid.New()
	shirt := activeProduct(tenantID, "T-Shirt", 1000)
	code := "STALE"

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.products.On("GetByID", mock.Anything, shirt.ID).Return(shirt, nil)
	f.stock.On("Reserve", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("GetCouponByCode", mock.Anything, tenantID, code).Return(&models.Coupon{
		Code:         code,
		DiscountType: models.CouponTypePercent,
		Amount:       10,
		IsActive:     false,
	}, nil)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: shirt.ID, Quantity: 1}},
		PaymentMethod: "cod",
		CouponCode:    &code,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired or inactive")
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckoutService_Checkout_RetriesSerializationConflicts(t *testing.T) {
	tenantID := uuid.New()
	shirt := activeProduct(tenantID, "T-Shirt", 1000)

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.quota.On("InvalidateSnapshot", mock.Anything, tenantID).Return()
	f.products.On("GetByID", mock.Anything, shirt.ID).Return(shirt, nil)
	f.stock.On("Reserve", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("NextOrderNumber", mock.Anything, tenantID).Return("ORD-00044", nil)
	// Two serialization failures, then success on the third attempt
	f.orders.On("Create", mock.Anything, mock.Anything).Return(&pgconn.PgError{Code: "40001"}).Twice()
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.payments.On("InitiatePayment", mock.Anything, mock.Anything).Return("", nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: shirt.ID, Quantity: 1}},
		PaymentMethod: "cod",
	})

	require.NoError(t, err)
	assert.NotNil(t, result.Order)
	f.orders.AssertNumberOfCalls(t, "Create", 3)
}

func TestCheckoutService_Checkout_ExhaustedRetriesSurfaceConflict(t *testing.T) {
	tenantID := uuid.New()
	shirt := activeProduct(tenantID, "T-Shirt", 1000)

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.products.On("GetByID", mock.Anything, shirt.ID).Return(shirt, nil)
	f.stock.On("Reserve", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("NextOrderNumber", mock.Anything, tenantID).Return("ORD-00045", nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(&pgconn.PgError{Code: "40P01"})

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: shirt.ID, Quantity: 1}},
		PaymentMethod: "cod",
	})

	_, ok := IsPersistenceConflictError(err)
	require.True(t, ok)
	f.orders.AssertNumberOfCalls(t, "Create", 3)
	f.payments.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestCheckoutService_Checkout_PaymentFailureLeavesOrderPending(t *testing.T) {
	tenantID := uuid.New()
	shirt := activeProduct(tenantID, "T-Shirt", 1000)

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.quota.On("InvalidateSnapshot", mock.Anything, tenantID).Return()
	f.products.On("GetByID", mock.Anything, shirt.ID).Return(shirt, nil)
	f.stock.On("Reserve", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("NextOrderNumber", mock.Anything, tenantID).Return("ORD-00046", nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("InitiatePayment", mock.Anything, mock.Anything).Return("", assert.AnError)

	result, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: shirt.ID, Quantity: 1}},
		PaymentMethod: "paypal",
	})

	// The order committed; payment collection is retried out-of-band or the
	// reservation sweep reclaims it
	require.NoError(t, err)
	assert.Empty(t, result.PaymentRef)
	assert.Equal(t, models.OrderStatusPending, result.Order.Status)
	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// memoryCatalog is a stateful CatalogStore: reads observe earlier writes,
// the way row locks make sequentially-serialized transactions behave
type memoryCatalog struct {
	products map[uuid.UUID]*models.Product
}

func (c *memoryCatalog) GetForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, ok := c.products[productID]
	if !ok {
		return nil, assert.AnError
	}
	snapshot := *product
	return &snapshot, nil
}

func (c *memoryCatalog) GetVariantForUpdate(ctx context.Context, variantID uuid.UUID) (*models.Variant, error) {
	return nil, assert.AnError
}

func (c *memoryCatalog) UpdateStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	c.products[productID].StockQuantity = quantity
	return nil
}

func (c *memoryCatalog) UpdateVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	return nil
}

func (c *memoryCatalog) CountVariants(ctx context.Context, productID uuid.UUID) (int64, error) {
	return 0, nil
}

func (c *memoryCatalog) SumVariantStock(ctx context.Context, productID uuid.UUID) (int, error) {
	return 0, nil
}

func TestCheckoutService_Checkout_LastUnitGoesToExactlyOneOrder(t *testing.T) {
	// Row locks serialize two checkouts racing for the last unit; whichever
	// commits second reads the decremented count. Drive the real reconciler
	// over a stateful catalog in that serialized order and assert the loser
	// gets InsufficientStock, not an oversold order.
	tenantID := uuid.New()
	shirt := activeProduct(tenantID, "T-Shirt", 1500)
	shirt.StockQuantity = 1
	catalog := &memoryCatalog{products: map[uuid.UUID]*models.Product{shirt.ID: shirt}}

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.quota.On("InvalidateSnapshot", mock.Anything, tenantID).Return()
	f.products.On("GetByID", mock.Anything, shirt.ID).Return(shirt, nil)
	f.orders.On("NextOrderNumber", mock.Anything, tenantID).Return("ORD-00047", nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("InitiatePayment", mock.Anything, mock.Anything).Return("", nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)

	reconciler := NewStockService(catalog, new(MockOrderFlagStore))
	svc := NewCheckoutService(f.quota, reconciler, f.orders, f.products, f.payments, f.notifier, fakeTx{}, 3)

	req := CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: shirt.ID, Quantity: 1}},
		PaymentMethod: "cod",
	}

	first, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, first.Order)
	assert.Equal(t, 0, catalog.products[shirt.ID].StockQuantity)

	_, err = svc.Checkout(context.Background(), req)
	stockErr, ok := IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, 0, stockErr.Available)
	f.orders.AssertNumberOfCalls(t, "Create", 1)
}

func TestCheckoutService_Checkout_RejectsForeignProduct(t *testing.T) {
	tenantID := uuid.New()
	foreign := activeProduct(uuid.New(), "Not Yours", 1000)

	f := newCheckoutFixture(3)
	f.quota.On("CanCreate", mock.Anything, tenantID, models.ResourceOrders).Return(nil)
	f.products.On("GetByID", mock.Anything, foreign.ID).Return(foreign, nil)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		TenantID:      tenantID,
		Items:         []CartItem{{ProductID: foreign.ID, Quantity: 1}},
		PaymentMethod: "cod",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong to tenant")
	f.stock.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}
