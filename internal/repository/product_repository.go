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

// ProductRepository handles product and variant database operations.
// Stock columns are only ever written through the stock service, which
// reads rows here under FOR UPDATE locks.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create persists a new product
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := dbFrom(ctx, r.db).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID retrieves a product with its variants preloaded
func (r *ProductRepository) GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := dbFrom(ctx, r.db).Preload("Variants").First(&product, "id = ?", productID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("product not found: %s", productID)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// GetForUpdate retrieves a product row under a FOR UPDATE lock
func (r *ProductRepository) GetForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := dbFrom(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", productID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("product not found: %s", productID)
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return &product, nil
}

// List returns a tenant's products with variants, newest first
func (r *ProductRepository) List(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]models.Product, int64, error) {
	db := dbFrom(ctx, r.db).Model(&models.Product{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	if err := db.Preload("Variants").
		Order("created_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// Update persists product changes. Stock writes must go through UpdateStock.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	if err := dbFrom(ctx, r.db).Omit("Variants").Save(product).Error; err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// UpdateStock writes the product-level stock count
func (r *ProductRepository) UpdateStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	result := dbFrom(ctx, r.db).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{"stock_quantity": quantity, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update product stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product not found: %s", productID)
	}
	return nil
}

// Delete removes a product and (via FK cascade) its variants
func (r *ProductRepository) Delete(ctx context.Context, tenantID, productID uuid.UUID) error {
	result := dbFrom(ctx, r.db).
		Where("id = ? AND tenant_id = ?", productID, tenantID).
		Delete(&models.Product{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product not found: %s", productID)
	}
	return nil
}

// CreateVariant persists a new variant
func (r *ProductRepository) CreateVariant(ctx context.Context, variant *models.Variant) error {
	if err := dbFrom(ctx, r.db).Create(variant).Error; err != nil {
		return fmt.Errorf("failed to create variant: %w", err)
	}
	return nil
}

// GetVariantByID retrieves a variant by ID
func (r *ProductRepository) GetVariantByID(ctx context.Context, variantID uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := dbFrom(ctx, r.db).First(&variant, "id = ?", variantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("variant not found: %s", variantID)
		}
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}
	return &variant, nil
}

// GetVariantForUpdate retrieves a variant row under a FOR UPDATE lock
func (r *ProductRepository) GetVariantForUpdate(ctx context.Context, variantID uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	err := dbFrom(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&variant, "id = ?", variantID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("variant not found: %s", variantID)
		}
		return nil, fmt.Errorf("failed to lock variant: %w", err)
	}
	return &variant, nil
}

// UpdateVariant persists variant changes. Stock writes must go through UpdateVariantStock.
func (r *ProductRepository) UpdateVariant(ctx context.Context, variant *models.Variant) error {
	variant.UpdatedAt = time.Now()
	if err := dbFrom(ctx, r.db).Save(variant).Error; err != nil {
		return fmt.Errorf("failed to update variant: %w", err)
	}
	return nil
}

// UpdateVariantStock writes a variant's stock count
func (r *ProductRepository) UpdateVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	result := dbFrom(ctx, r.db).Model(&models.Variant{}).
		Where("id = ?", variantID).
		Updates(map[string]interface{}{"stock_quantity": quantity, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update variant stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("variant not found: %s", variantID)
	}
	return nil
}

// DeleteVariant removes a variant
func (r *ProductRepository) DeleteVariant(ctx context.Context, variantID uuid.UUID) error {
	result := dbFrom(ctx, r.db).Where("id = ?", variantID).Delete(&models.Variant{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete variant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("variant not found: %s", variantID)
	}
	return nil
}

// CountVariants returns the number of variants on a product
func (r *ProductRepository) CountVariants(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	if err := dbFrom(ctx, r.db).Model(&models.Variant{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count variants: %w", err)
	}
	return count, nil
}

// SumVariantStock returns the total stock across a product's variants
func (r *ProductRepository) SumVariantStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var sum *int
	err := dbFrom(ctx, r.db).Model(&models.Variant{}).
		Where("product_id = ?", productID).
		Select("SUM(stock_quantity)").
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum variant stock: %w", err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// ListVariantProductIDs returns the IDs of all products that have at least
// one variant (used by the background stock audit)
func (r *ProductRepository) ListVariantProductIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := dbFrom(ctx, r.db).Model(&models.Variant{}).
		Distinct("product_id").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list variant product IDs: %w", err)
	}
	return ids, nil
}
