package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tesseract-hub/commerce-service/internal/middleware"
	"github.com/tesseract-hub/commerce-service/internal/models"
	"github.com/tesseract-hub/commerce-service/internal/repository"
	"github.com/tesseract-hub/commerce-service/internal/services"
)

// PlanHandler handles subscription plan and usage HTTP requests
type PlanHandler struct {
	plans   *repository.PlanRepository
	tenants *repository.TenantRepository
	quota   *services.QuotaService
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(plans *repository.PlanRepository, tenants *repository.TenantRepository, quota *services.QuotaService) *PlanHandler {
	return &PlanHandler{
		plans:   plans,
		tenants: tenants,
		quota:   quota,
	}
}

// CreatePlanRequest represents the request to create a plan
type CreatePlanRequest struct {
	Name           string                 `json:"name" binding:"required,min=2,max=100"`
	PriceCents     int64                  `json:"price_cents" binding:"gte=0"`
	Currency       string                 `json:"currency"`
	DurationMonths int                    `json:"duration_months"`
	TrialDays      int                    `json:"trial_days"`
	Features       map[string]interface{} `json:"features" binding:"required"`
}

// CreatePlan creates a subscription plan. The features blob must parse as
// valid limits or the plan is rejected.
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	features, err := models.NewJSONB(req.Features)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid plan features", err)
		return
	}

	plan := &models.Plan{
		Name:           req.Name,
		PriceCents:     req.PriceCents,
		Currency:       req.Currency,
		DurationMonths: req.DurationMonths,
		TrialDays:      req.TrialDays,
		Features:       features,
		IsActive:       true,
	}
	if plan.Currency == "" {
		plan.Currency = "USD"
	}

	if err := h.plans.Create(c.Request.Context(), plan); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Plan limits are invalid", err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Plan created successfully", plan)
}

// ListPlans returns all active plans ordered by price
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.plans.List(c.Request.Context())
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Plans retrieved", plans)
}

// GetPlan returns a single plan
func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid plan ID", err)
		return
	}

	plan, err := h.plans.GetByID(c.Request.Context(), planID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Plan retrieved", plan)
}

// AssignPlanRequest represents the request to assign a plan to a tenant
type AssignPlanRequest struct {
	PlanID uuid.UUID `json:"plan_id" binding:"required"`
}

// AssignPlan subscribes the tenant to a plan and refreshes the denormalized
// plan cache on the tenant row. Quota decisions take effect immediately.
func (h *PlanHandler) AssignPlan(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	var req AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	plan, err := h.plans.GetByID(c.Request.Context(), req.PlanID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	if !plan.IsActive {
		ErrorResponse(c, http.StatusBadRequest, "Plan is not active", nil)
		return
	}

	if err := h.tenants.AssignPlan(c.Request.Context(), tenantID, plan); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	h.quota.InvalidateSnapshot(c.Request.Context(), tenantID)
	SuccessResponse(c, http.StatusOK, "Plan assigned successfully", gin.H{
		"tenant_id": tenantID,
		"plan":      plan,
	})
}

// GetUsage returns the tenant's usage snapshot: current count and plan
// limit for every countable resource. Display-only; may be cached.
func (h *PlanHandler) GetUsage(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	snapshot, err := h.quota.UsageSnapshot(c.Request.Context(), tenantID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Usage retrieved", snapshot)
}
