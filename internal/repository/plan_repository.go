package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tesseract-hub/commerce-service/internal/models"
	"gorm.io/gorm"
)

// PlanRepository handles subscription plan database operations
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create persists a new plan after validating its feature map parses
func (r *PlanRepository) Create(ctx context.Context, plan *models.Plan) error {
	if _, err := plan.Limits(); err != nil {
		return err
	}
	if err := dbFrom(ctx, r.db).Create(plan).Error; err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// GetByID retrieves a plan by ID
func (r *PlanRepository) GetByID(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := dbFrom(ctx, r.db).First(&plan, "id = ?", planID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("plan not found: %s", planID)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

// List returns all active plans ordered by price
func (r *PlanRepository) List(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := dbFrom(ctx, r.db).Where("is_active = ?", true).Order("price_cents asc").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// Update persists plan changes (admin update path; plans are otherwise
// immutable while referenced by active tenants)
func (r *PlanRepository) Update(ctx context.Context, plan *models.Plan) error {
	if _, err := plan.Limits(); err != nil {
		return err
	}
	plan.UpdatedAt = time.Now()
	if err := dbFrom(ctx, r.db).Save(plan).Error; err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return nil
}
