package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tesseract-hub/commerce-service/internal/middleware"
	"github.com/tesseract-hub/commerce-service/internal/models"
	"github.com/tesseract-hub/commerce-service/internal/repository"
	"github.com/tesseract-hub/commerce-service/internal/services"
)

// ContentHandler handles pages, blog posts and staff members. All three are
// quota-counted resources gated the same way products are.
type ContentHandler struct {
	content *repository.ContentRepository
	quota   *services.QuotaService
	tx      services.TxRunner
}

// NewContentHandler creates a new content handler
func NewContentHandler(content *repository.ContentRepository, quota *services.QuotaService, tx services.TxRunner) *ContentHandler {
	return &ContentHandler{
		content: content,
		quota:   quota,
		tx:      tx,
	}
}

// createGated runs the quota gate and the insert in one transaction
func (h *ContentHandler) createGated(c *gin.Context, tenantID uuid.UUID, resource models.ResourceType, create func(ctx context.Context) error) error {
	err := h.tx.Do(c.Request.Context(), func(ctx context.Context) error {
		if err := h.quota.CanCreate(ctx, tenantID, resource); err != nil {
			return err
		}
		return create(ctx)
	})
	if err != nil {
		return err
	}
	h.quota.InvalidateSnapshot(c.Request.Context(), tenantID)
	return nil
}

// CreatePageRequest represents the request to create a page
type CreatePageRequest struct {
	Title     string `json:"title" binding:"required,min=1"`
	Slug      string `json:"slug" binding:"required,min=1,max=100"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
}

// CreatePage creates a storefront page after the quota gate passes
func (h *ContentHandler) CreatePage(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	var req CreatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	page := &models.Page{
		TenantID:  tenantID,
		Title:     req.Title,
		Slug:      req.Slug,
		Content:   req.Content,
		Published: req.Published,
	}

	if err := h.createGated(c, tenantID, models.ResourcePages, func(ctx context.Context) error {
		return h.content.CreatePage(ctx, page)
	}); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Page created successfully", page)
}

// ListPages returns all pages for the tenant
func (h *ContentHandler) ListPages(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	pages, err := h.content.ListPages(c.Request.Context(), tenantID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Pages retrieved", pages)
}

// DeletePage deletes a page
func (h *ContentHandler) DeletePage(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	pageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid page ID", err)
		return
	}

	if err := h.content.DeletePage(c.Request.Context(), tenantID, pageID); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	h.quota.InvalidateSnapshot(c.Request.Context(), tenantID)
	SuccessResponse(c, http.StatusOK, "Page deleted successfully", nil)
}

// CreateBlogPostRequest represents the request to create a blog post
type CreateBlogPostRequest struct {
	Title     string `json:"title" binding:"required,min=1"`
	Slug      string `json:"slug" binding:"required,min=1,max=100"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
}

// CreateBlogPost creates a blog post after the quota gate passes
func (h *ContentHandler) CreateBlogPost(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	var req CreateBlogPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	post := &models.BlogPost{
		TenantID:  tenantID,
		Title:     req.Title,
		Slug:      req.Slug,
		Body:      req.Body,
		Published: req.Published,
	}

	if err := h.createGated(c, tenantID, models.ResourceBlogs, func(ctx context.Context) error {
		return h.content.CreateBlogPost(ctx, post)
	}); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Blog post created successfully", post)
}

// ListBlogPosts returns all blog posts for the tenant
func (h *ContentHandler) ListBlogPosts(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	posts, err := h.content.ListBlogPosts(c.Request.Context(), tenantID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Blog posts retrieved", posts)
}

// DeleteBlogPost deletes a blog post
func (h *ContentHandler) DeleteBlogPost(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid blog post ID", err)
		return
	}

	if err := h.content.DeleteBlogPost(c.Request.Context(), tenantID, postID); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	h.quota.InvalidateSnapshot(c.Request.Context(), tenantID)
	SuccessResponse(c, http.StatusOK, "Blog post deleted successfully", nil)
}

// CreateStaffRequest represents the request to add a staff member
type CreateStaffRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
	Role  string `json:"role" binding:"omitempty,oneof=owner admin staff"`
}

// CreateStaff adds a dashboard staff member after the quota gate passes
func (h *ContentHandler) CreateStaff(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	var req CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	staff := &models.StaffMember{
		TenantID: tenantID,
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		IsActive: true,
	}
	if staff.Role == "" {
		staff.Role = "staff"
	}

	if err := h.createGated(c, tenantID, models.ResourceStaff, func(ctx context.Context) error {
		return h.content.CreateStaffMember(ctx, staff)
	}); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Staff member added successfully", staff)
}

// ListStaff returns all staff members for the tenant
func (h *ContentHandler) ListStaff(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	staff, err := h.content.ListStaffMembers(c.Request.Context(), tenantID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Staff retrieved", staff)
}

// DeleteStaff removes a staff member
func (h *ContentHandler) DeleteStaff(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid staff ID", err)
		return
	}

	if err := h.content.DeleteStaffMember(c.Request.Context(), tenantID, staffID); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	h.quota.InvalidateSnapshot(c.Request.Context(), tenantID)
	SuccessResponse(c, http.StatusOK, "Staff member removed successfully", nil)
}
