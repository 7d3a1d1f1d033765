package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tesseract-hub/commerce-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantRepository handles tenant and plan-assignment database operations
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetByID retrieves a tenant with its plan preloaded
func (r *TenantRepository) GetByID(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := dbFrom(ctx, r.db).Preload("Plan").First(&tenant, "id = ?", tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant not found: %s", tenantID)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// GetBySlug retrieves a tenant by its URL slug with its plan preloaded
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := dbFrom(ctx, r.db).Preload("Plan").Where("slug = ?", slug).First(&tenant).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant not found: %s", slug)
		}
		return nil, fmt.Errorf("failed to get tenant by slug: %w", err)
	}
	return &tenant, nil
}

// GetForUpdate retrieves a tenant row under a FOR UPDATE lock. Quota-gated
// creates lock the tenant row so two concurrent creations for the same
// tenant serialize on the quota check.
func (r *TenantRepository) GetForUpdate(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := dbFrom(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tenant, "id = ?", tenantID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant not found: %s", tenantID)
		}
		return nil, fmt.Errorf("failed to lock tenant: %w", err)
	}
	if tenant.PlanID != nil {
		var plan models.Plan
		if err := dbFrom(ctx, r.db).First(&plan, "id = ?", *tenant.PlanID).Error; err == nil {
			tenant.Plan = &plan
		}
	}
	return &tenant, nil
}

// Create persists a new tenant
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if err := dbFrom(ctx, r.db).Create(tenant).Error; err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// Update persists tenant changes
func (r *TenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now()
	if err := dbFrom(ctx, r.db).Save(tenant).Error; err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

// AssignPlan points the tenant at a plan and refreshes the cached pricing blob
func (r *TenantRepository) AssignPlan(ctx context.Context, tenantID uuid.UUID, plan *models.Plan) error {
	cache, err := models.NewJSONB(map[string]interface{}{
		"plan_name":   plan.Name,
		"price_cents": plan.PriceCents,
		"currency":    plan.Currency,
		"cached_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to build plan cache: %w", err)
	}
	result := dbFrom(ctx, r.db).Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		Updates(map[string]interface{}{
			"plan_id":    plan.ID,
			"plan_cache": cache,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to assign plan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("tenant not found: %s", tenantID)
	}
	return nil
}

// Count returns the tenant's committed count of the given resource type.
// Cancelled orders still count against the order quota; they consumed a
// creation slot even though their stock was returned.
func (r *TenantRepository) Count(ctx context.Context, tenantID uuid.UUID, resource models.ResourceType) (int64, error) {
	db := dbFrom(ctx, r.db)
	var count int64
	var err error

	switch resource {
	case models.ResourceProducts:
		err = db.Model(&models.Product{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	case models.ResourceOrders:
		err = db.Model(&models.Order{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	case models.ResourcePages:
		err = db.Model(&models.Page{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	case models.ResourceBlogs:
		err = db.Model(&models.BlogPost{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	case models.ResourceStaff:
		err = db.Model(&models.StaffMember{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	case models.ResourceCustomers:
		err = db.Model(&models.Customer{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	case models.ResourceStorageMB:
		// Byte-usage accounting against the object store is not implemented;
		// storage quota is a pass-through (see DESIGN.md)
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown resource type: %s", resource)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count %s for tenant %s: %w", resource, tenantID, err)
	}
	return count, nil
}
