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

// OrderRepository handles order, order item and coupon database operations
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order with its line items
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := dbFrom(ctx, r.db).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order with its items preloaded
func (r *OrderRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := dbFrom(ctx, r.db).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order not found: %s", orderID)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// GetForUpdate retrieves an order row under a FOR UPDATE lock so that
// concurrent status transitions on the same order serialize
func (r *OrderRepository) GetForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := dbFrom(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order not found: %s", orderID)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if err := dbFrom(ctx, r.db).Where("order_id = ?", orderID).Find(&order.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return &order, nil
}

// List returns a tenant's orders, newest first
func (r *OrderRepository) List(ctx context.Context, tenantID uuid.UUID, status string, page, pageSize int) ([]models.Order, int64, error) {
	db := dbFrom(ctx, r.db).Model(&models.Order{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	if err := db.Preload("Items").
		Order("created_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// Save persists order changes
func (r *OrderRepository) Save(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now()
	if err := dbFrom(ctx, r.db).Omit("Items").Save(order).Error; err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// NextOrderNumber allocates the next human-readable order number for a
// tenant. Runs inside the checkout transaction, after the tenant row is
// locked, so concurrent checkouts cannot allocate the same number.
func (r *OrderRepository) NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var count int64
	if err := dbFrom(ctx, r.db).Model(&models.Order{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%06d", time.Now().UTC().Format("20060102"), count+1), nil
}

// MarkStockReleased flips the order's stock_released flag. The stock
// service calls this in the same transaction as the release itself.
func (r *OrderRepository) MarkStockReleased(ctx context.Context, orderID uuid.UUID) error {
	result := dbFrom(ctx, r.db).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{"stock_released": true, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to mark stock released: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}

// ListStalePending returns orders still pending payment whose stock
// reservation is older than the cutoff (reservation-expiry sweep input)
func (r *OrderRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := dbFrom(ctx, r.db).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			models.OrderStatusPending, models.PaymentStatusPending, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending orders: %w", err)
	}
	return orders, nil
}

// GetCouponByCode retrieves a tenant's coupon by code
func (r *OrderRepository) GetCouponByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := dbFrom(ctx, r.db).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&coupon).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("coupon not found: %s", code)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &coupon, nil
}

// CreateCoupon persists a new coupon
func (r *OrderRepository) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	if err := dbFrom(ctx, r.db).Create(coupon).Error; err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}
