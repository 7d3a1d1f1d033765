package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tesseract-hub/commerce-service/internal/models"
	"gorm.io/gorm"
)

// ContentRepository handles pages, blog posts and staff members — the
// remaining quota-counted resources behind the dashboard CRUD surface
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// CreatePage persists a new page
func (r *ContentRepository) CreatePage(ctx context.Context, page *models.Page) error {
	if err := dbFrom(ctx, r.db).Create(page).Error; err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

// ListPages returns a tenant's pages
func (r *ContentRepository) ListPages(ctx context.Context, tenantID uuid.UUID) ([]models.Page, error) {
	var pages []models.Page
	if err := dbFrom(ctx, r.db).Where("tenant_id = ?", tenantID).Order("created_at desc").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// DeletePage removes a tenant's page
func (r *ContentRepository) DeletePage(ctx context.Context, tenantID, pageID uuid.UUID) error {
	return deleteOwned(dbFrom(ctx, r.db), &models.Page{}, tenantID, pageID, "page")
}

// CreateBlogPost persists a new blog post
func (r *ContentRepository) CreateBlogPost(ctx context.Context, post *models.BlogPost) error {
	if err := dbFrom(ctx, r.db).Create(post).Error; err != nil {
		return fmt.Errorf("failed to create blog post: %w", err)
	}
	return nil
}

// ListBlogPosts returns a tenant's blog posts
func (r *ContentRepository) ListBlogPosts(ctx context.Context, tenantID uuid.UUID) ([]models.BlogPost, error) {
	var posts []models.BlogPost
	if err := dbFrom(ctx, r.db).Where("tenant_id = ?", tenantID).Order("created_at desc").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list blog posts: %w", err)
	}
	return posts, nil
}

// DeleteBlogPost removes a tenant's blog post
func (r *ContentRepository) DeleteBlogPost(ctx context.Context, tenantID, postID uuid.UUID) error {
	return deleteOwned(dbFrom(ctx, r.db), &models.BlogPost{}, tenantID, postID, "blog post")
}

// CreateStaffMember persists a new staff member
func (r *ContentRepository) CreateStaffMember(ctx context.Context, staff *models.StaffMember) error {
	if err := dbFrom(ctx, r.db).Create(staff).Error; err != nil {
		return fmt.Errorf("failed to create staff member: %w", err)
	}
	return nil
}

// ListStaffMembers returns a tenant's staff members
func (r *ContentRepository) ListStaffMembers(ctx context.Context, tenantID uuid.UUID) ([]models.StaffMember, error) {
	var staff []models.StaffMember
	if err := dbFrom(ctx, r.db).Where("tenant_id = ?", tenantID).Order("created_at asc").Find(&staff).Error; err != nil {
		return nil, fmt.Errorf("failed to list staff members: %w", err)
	}
	return staff, nil
}

// DeleteStaffMember removes a tenant's staff member
func (r *ContentRepository) DeleteStaffMember(ctx context.Context, tenantID, staffID uuid.UUID) error {
	return deleteOwned(dbFrom(ctx, r.db), &models.StaffMember{}, tenantID, staffID, "staff member")
}

func deleteOwned(db *gorm.DB, model interface{}, tenantID, id uuid.UUID, name string) error {
	result := db.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(model)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s not found: %s", name, id)
	}
	return nil
}
