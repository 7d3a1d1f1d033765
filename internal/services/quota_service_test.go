package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tesseract-hub/commerce-service/internal/models"
)

// MockTenantStore is a mock implementation of TenantStore
type MockTenantStore struct {
	mock.Mock
}

func (m *MockTenantStore) GetByID(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantStore) GetForUpdate(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantStore) Count(ctx context.Context, tenantID uuid.UUID, resource models.ResourceType) (int64, error) {
	args := m.Called(ctx, tenantID, resource)
	return args.Get(0).(int64), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OrderCreated(ctx context.Context, order *models.Order) {
	m.Called(ctx, order)
}

func (m *MockNotifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	m.Called(ctx, order)
}

func (m *MockNotifier) OrderCancelled(ctx context.Context, order *models.Order, reason string) {
	m.Called(ctx, order, reason)
}

func (m *MockNotifier) RefundFailed(ctx context.Context, order *models.Order, message string) {
	m.Called(ctx, order, message)
}

func (m *MockNotifier) QuotaBreached(ctx context.Context, tenant *models.Tenant, resource models.ResourceType, current, limit int64) {
	m.Called(ctx, tenant, resource, current, limit)
}

func tenantWithPlan(t *testing.T, limits models.PlanLimits) *models.Tenant {
	t.Helper()
	plan := &models.Plan{
		ID:       uuid.New(),
		Name:     "Starter",
		IsActive: true,
	}
	require.NoError(t, plan.SetLimits(limits))
	return &models.Tenant{
		ID:     uuid.New(),
		Name:   "Acme",
		Slug:   "acme",
		PlanID: &plan.ID,
		Plan:   plan,
	}
}

func TestQuotaService_CanCreate_AllowsBelowLimit(t *testing.T) {
	tenant := tenantWithPlan(t, models.PlanLimits{Products: models.Bounded(12)})
	store := new(MockTenantStore)
	store.On("GetForUpdate", mock.Anything, tenant.ID).Return(tenant, nil)
	store.On("Count", mock.Anything, tenant.ID, models.ResourceProducts).Return(int64(11), nil)

	svc := NewQuotaService(store, nil, nil)
	err := svc.CanCreate(context.Background(), tenant.ID, models.ResourceProducts)

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestQuotaService_CanCreate_DeniesAtLimit(t *testing.T) {
	tenant := tenantWithPlan(t, models.PlanLimits{Products: models.Bounded(12)})
	store := new(MockTenantStore)
	store.On("GetForUpdate", mock.Anything, tenant.ID).Return(tenant, nil)
	store.On("Count", mock.Anything, tenant.ID, models.ResourceProducts).Return(int64(12), nil)

	notifier := new(MockNotifier)
	notifier.On("QuotaBreached", mock.Anything, tenant, models.ResourceProducts, int64(12), int64(12)).Return()

	svc := NewQuotaService(store, nil, notifier)
	err := svc.CanCreate(context.Background(), tenant.ID, models.ResourceProducts)

	quotaErr, ok := IsQuotaExceededError(err)
	require.True(t, ok)
	assert.Equal(t, int64(12), quotaErr.Current)
	assert.Equal(t, int64(12), quotaErr.Limit)
	assert.Equal(t, "Product limit reached (12/12)", quotaErr.Error())
	notifier.AssertExpectations(t)
}

func TestQuotaService_CanCreate_UnlimitedSkipsCounting(t *testing.T) {
	tenant := tenantWithPlan(t, models.PlanLimits{})
	store := new(MockTenantStore)
	store.On("GetForUpdate", mock.Anything, tenant.ID).Return(tenant, nil)

	svc := NewQuotaService(store, nil, nil)
	err := svc.CanCreate(context.Background(), tenant.ID, models.ResourceOrders)

	assert.NoError(t, err)
	store.AssertNotCalled(t, "Count", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuotaService_CanCreate_FailsClosedWithoutPlan(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New(), Name: "No Plan"}
	store := new(MockTenantStore)
	store.On("GetForUpdate", mock.Anything, tenant.ID).Return(tenant, nil)

	svc := NewQuotaService(store, nil, nil)
	err := svc.CanCreate(context.Background(), tenant.ID, models.ResourceProducts)

	_, ok := IsNoActivePlanError(err)
	assert.True(t, ok)
}

func TestQuotaService_CanCreate_FailsClosedWithInactivePlan(t *testing.T) {
	tenant := tenantWithPlan(t, models.PlanLimits{Products: models.Bounded(10)})
	tenant.Plan.IsActive = false

	store := new(MockTenantStore)
	store.On("GetForUpdate", mock.Anything, tenant.ID).Return(tenant, nil)

	svc := NewQuotaService(store, nil, nil)
	err := svc.CanCreate(context.Background(), tenant.ID, models.ResourceProducts)

	_, ok := IsNoActivePlanError(err)
	assert.True(t, ok)
}

func TestQuotaService_CanCreate_StorageIsPassThrough(t *testing.T) {
	// Storage has a bounded limit but byte accounting is not implemented,
	// so the check passes without counting
	tenant := tenantWithPlan(t, models.PlanLimits{StorageMB: models.Bounded(500)})
	store := new(MockTenantStore)
	store.On("GetForUpdate", mock.Anything, tenant.ID).Return(tenant, nil)

	svc := NewQuotaService(store, nil, nil)
	err := svc.CanCreate(context.Background(), tenant.ID, models.ResourceStorageMB)

	assert.NoError(t, err)
	store.AssertNotCalled(t, "Count", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuotaService_UsageSnapshot_ReportsEveryResource(t *testing.T) {
	tenant := tenantWithPlan(t, models.PlanLimits{
		Products: models.Bounded(10),
		Orders:   models.Bounded(50),
	})
	store := new(MockTenantStore)
	store.On("GetByID", mock.Anything, tenant.ID).Return(tenant, nil)
	for _, resource := range models.AllResourceTypes {
		store.On("Count", mock.Anything, tenant.ID, resource).Return(int64(3), nil)
	}

	svc := NewQuotaService(store, nil, nil)
	snapshot, err := svc.UsageSnapshot(context.Background(), tenant.ID)

	require.NoError(t, err)
	assert.Equal(t, "Starter", snapshot.PlanName)
	assert.True(t, snapshot.HasActivePlan)
	assert.Len(t, snapshot.Resources, len(models.AllResourceTypes))
	assert.WithinDuration(t, time.Now(), snapshot.GeneratedAt, 5*time.Second)

	byResource := make(map[models.ResourceType]ResourceUsage)
	for _, usage := range snapshot.Resources {
		byResource[usage.Resource] = usage
	}
	value, bounded := byResource[models.ResourceProducts].Limit.Value()
	assert.True(t, bounded)
	assert.Equal(t, int64(10), value)
	assert.True(t, byResource[models.ResourcePages].Limit.IsUnlimited())
}

func TestQuotaService_UsageSnapshot_NoPlanReportsZeroLimits(t *testing.T) {
	// Creation fails closed without an active plan; the snapshot must not
	// render that as unlimited
	tenant := &models.Tenant{ID: uuid.New(), Name: "No Plan"}
	store := new(MockTenantStore)
	store.On("GetByID", mock.Anything, tenant.ID).Return(tenant, nil)
	for _, resource := range models.AllResourceTypes {
		store.On("Count", mock.Anything, tenant.ID, resource).Return(int64(0), nil)
	}

	svc := NewQuotaService(store, nil, nil)
	snapshot, err := svc.UsageSnapshot(context.Background(), tenant.ID)

	require.NoError(t, err)
	assert.False(t, snapshot.HasActivePlan)
	assert.Empty(t, snapshot.PlanName)
	for _, usage := range snapshot.Resources {
		value, bounded := usage.Limit.Value()
		assert.True(t, bounded, "resource %s", usage.Resource)
		assert.Equal(t, int64(0), value, "resource %s", usage.Resource)
	}
}
