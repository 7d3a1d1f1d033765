package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tesseract-hub/commerce-service/internal/models"
)

// TenantStore is the tenant/plan data the quota ledger reads.
// Implemented by repository.TenantRepository.
type TenantStore interface {
	GetByID(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
	// GetForUpdate locks the tenant row; quota checks performed inside the
	// creating transaction go through this so concurrent creations serialize
	GetForUpdate(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
	Count(ctx context.Context, tenantID uuid.UUID, resource models.ResourceType) (int64, error)
}

// SnapshotCache caches usage snapshots for dashboard display.
// Implemented by the Redis client; enforcement never reads it.
type SnapshotCache interface {
	GetUsageSnapshot(ctx context.Context, tenantID string) (*UsageSnapshot, error)
	SetUsageSnapshot(ctx context.Context, tenantID string, snapshot *UsageSnapshot, ttl time.Duration) error
	InvalidateUsageSnapshot(ctx context.Context, tenantID string) error
}

// ResourceUsage is one row of a usage snapshot: current count plus the plan
// limit, where a null limit means unlimited
type ResourceUsage struct {
	Resource models.ResourceType `json:"resource"`
	Current  int64               `json:"current"`
	Limit    models.Limit        `json:"limit"`
}

// UsageSnapshot reports a tenant's usage of every countable resource
type UsageSnapshot struct {
	TenantID      string          `json:"tenant_id"`
	PlanName      string          `json:"plan_name"`
	HasActivePlan bool            `json:"has_active_plan"`
	Resources     []ResourceUsage `json:"resources"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// QuotaService answers "can tenant X create one more resource of type Y"
// and reports usage. Enforcement decisions always read live counts from the
// database inside the creating transaction; the cache is display-only.
type QuotaService struct {
	tenants  TenantStore
	cache    SnapshotCache
	notifier Notifier
	cacheTTL time.Duration
}

// NewQuotaService creates a new quota service
func NewQuotaService(tenants TenantStore, cache SnapshotCache, notifier Notifier) *QuotaService {
	return &QuotaService{
		tenants:  tenants,
		cache:    cache,
		notifier: notifier,
		cacheTTL: 60 * time.Second,
	}
}

// CanCreate checks whether the tenant may create one more resource of the
// given type. Must be called inside the same transaction as the creating
// write; it locks the tenant row to serialize concurrent creations.
// Returns nil when allowed, QuotaExceededError or NoActivePlanError when not.
func (s *QuotaService) CanCreate(ctx context.Context, tenantID uuid.UUID, resource models.ResourceType) error {
	tenant, err := s.tenants.GetForUpdate(ctx, tenantID)
	if err != nil {
		return err
	}

	limit, err := s.limitFor(tenant, resource)
	if err != nil {
		return err
	}
	if limit.IsUnlimited() {
		return nil
	}

	// Storage quota is a known gap: byte accounting against the object
	// store is not implemented, so storage checks pass through
	if resource == models.ResourceStorageMB {
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"resource":  resource,
		}).Warn("Storage quota check is a pass-through (byte accounting not implemented)")
		return nil
	}

	current, err := s.tenants.Count(ctx, tenantID, resource)
	if err != nil {
		return err
	}

	if !limit.Allows(current) {
		limitValue, _ := limit.Value()
		quotaErr := &QuotaExceededError{Resource: resource, Current: current, Limit: limitValue}
		if s.notifier != nil {
			s.notifier.QuotaBreached(ctx, tenant, resource, current, limitValue)
		}
		return quotaErr
	}
	return nil
}

// UsageSnapshot returns current/limit pairs for every resource type.
// Read-only; results may be served from the display cache.
func (s *QuotaService) UsageSnapshot(ctx context.Context, tenantID uuid.UUID) (*UsageSnapshot, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetUsageSnapshot(ctx, tenantID.String()); err == nil && cached != nil {
			return cached, nil
		}
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	snapshot := &UsageSnapshot{
		TenantID:    tenantID.String(),
		GeneratedAt: time.Now().UTC(),
	}

	var limits models.PlanLimits
	if tenant.Plan != nil && tenant.Plan.IsActive {
		snapshot.PlanName = tenant.Plan.Name
		snapshot.HasActivePlan = true
		limits, err = tenant.Plan.Limits()
		if err != nil {
			return nil, err
		}
	}

	for _, resource := range models.AllResourceTypes {
		current, err := s.tenants.Count(ctx, tenantID, resource)
		if err != nil {
			return nil, err
		}
		limit := limits.For(resource)
		// Creation fails closed without an active plan, so the snapshot
		// reports zero limits rather than unlimited
		if !snapshot.HasActivePlan {
			limit = models.Bounded(0)
		}
		snapshot.Resources = append(snapshot.Resources, ResourceUsage{
			Resource: resource,
			Current:  current,
			Limit:    limit,
		})
	}

	if s.cache != nil {
		if err := s.cache.SetUsageSnapshot(ctx, tenantID.String(), snapshot, s.cacheTTL); err != nil {
			logrus.WithError(err).WithField("tenant_id", tenantID).Warn("Failed to cache usage snapshot")
		}
	}
	return snapshot, nil
}

// InvalidateSnapshot drops the cached snapshot after a resource mutation so
// the dashboard reflects the change promptly
func (s *QuotaService) InvalidateSnapshot(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUsageSnapshot(ctx, tenantID.String()); err != nil {
		logrus.WithError(err).WithField("tenant_id", tenantID).Warn("Failed to invalidate usage snapshot")
	}
}

// limitFor resolves the plan limit for a resource, failing closed when the
// tenant has no active plan
func (s *QuotaService) limitFor(tenant *models.Tenant, resource models.ResourceType) (models.Limit, error) {
	if tenant.PlanID == nil || tenant.Plan == nil || !tenant.Plan.IsActive {
		return models.Limit{}, &NoActivePlanError{TenantID: tenant.ID.String()}
	}
	limits, err := tenant.Plan.Limits()
	if err != nil {
		return models.Limit{}, err
	}
	return limits.For(resource), nil
}
