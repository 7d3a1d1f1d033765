package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tesseract-hub/commerce-service/internal/models"
)

// CatalogStore is the product/variant data the stock reconciler reads and
// writes. Implemented by repository.ProductRepository. The *ForUpdate
// methods must take row locks inside the caller's transaction.
type CatalogStore interface {
	GetForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	GetVariantForUpdate(ctx context.Context, variantID uuid.UUID) (*models.Variant, error)
	UpdateStock(ctx context.Context, productID uuid.UUID, quantity int) error
	UpdateVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error
	CountVariants(ctx context.Context, productID uuid.UUID) (int64, error)
	SumVariantStock(ctx context.Context, productID uuid.UUID) (int, error)
}

// OrderFlagStore persists the per-order stock-released flag that makes
// release idempotent. Implemented by repository.OrderRepository.
type OrderFlagStore interface {
	MarkStockReleased(ctx context.Context, orderID uuid.UUID) error
}

// StockService keeps product-level stock synchronized with variant-level
// stock and applies/reverses stock consumption from order events. It is the
// only write path for stock fields; handlers and services never write the
// counts directly.
type StockService struct {
	catalog CatalogStore
	orders  OrderFlagStore
}

// NewStockService creates a new stock service
func NewStockService(catalog CatalogStore, orders OrderFlagStore) *StockService {
	return &StockService{catalog: catalog, orders: orders}
}

// RecomputeProductStock overwrites the product's top-level stock count with
// the sum of its variants whenever at least one variant exists. With zero
// variants the top-level count stays authoritative and is left alone.
// Must run in the same transaction as every variant create/update/delete.
func (s *StockService) RecomputeProductStock(ctx context.Context, productID uuid.UUID) error {
	count, err := s.catalog.CountVariants(ctx, productID)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	sum, err := s.catalog.SumVariantStock(ctx, productID)
	if err != nil {
		return err
	}
	return s.catalog.UpdateStock(ctx, productID, sum)
}

// Reserve decrements stock for every line item, failing the whole call with
// InsufficientStockError if any single item exceeds availability. Runs
// inside the checkout transaction, so a failure rolls back every decrement
// already applied — partial reservation is never a valid end state.
func (s *StockService) Reserve(ctx context.Context, items []models.OrderItem) error {
	touched := make(map[uuid.UUID]bool)

	for i := range items {
		item := &items[i]
		if item.VariantID != nil {
			variant, err := s.catalog.GetVariantForUpdate(ctx, *item.VariantID)
			if err != nil {
				return err
			}
			if variant.StockQuantity < item.Quantity {
				return &InsufficientStockError{
					ProductName: item.ProductName,
					Requested:   item.Quantity,
					Available:   variant.StockQuantity,
				}
			}
			if err := s.catalog.UpdateVariantStock(ctx, variant.ID, variant.StockQuantity-item.Quantity); err != nil {
				return err
			}
			touched[item.ProductID] = true
			continue
		}

		product, err := s.catalog.GetForUpdate(ctx, item.ProductID)
		if err != nil {
			return err
		}

		// A variant-bearing product's top-level count is derived from its
		// variants; decrementing it directly would be erased by the next
		// recompute, so such lines must reference a variant
		variantCount, err := s.catalog.CountVariants(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if variantCount > 0 {
			return fmt.Errorf("product %q stock is variant-managed; the order line must reference a variant", item.ProductName)
		}

		if product.StockQuantity < item.Quantity {
			return &InsufficientStockError{
				ProductName: item.ProductName,
				Requested:   item.Quantity,
				Available:   product.StockQuantity,
			}
		}
		if err := s.catalog.UpdateStock(ctx, product.ID, product.StockQuantity-item.Quantity); err != nil {
			return err
		}
	}

	// Variant decrements changed the variant sums; bring the parent
	// product counts back in line within the same transaction
	for productID := range touched {
		if err := s.RecomputeProductStock(ctx, productID); err != nil {
			return err
		}
	}
	return nil
}

// Release is the inverse of Reserve, used on cancellation and refund.
// Idempotent per order: an order whose stock was already released is a
// no-op, tracked via the order-level stock_released flag.
func (s *StockService) Release(ctx context.Context, order *models.Order) error {
	if order.StockReleased {
		logrus.WithField("order_id", order.ID).Debug("Stock already released, skipping")
		return nil
	}

	touched := make(map[uuid.UUID]bool)

	for i := range order.Items {
		item := &order.Items[i]
		if item.VariantID != nil {
			variant, err := s.catalog.GetVariantForUpdate(ctx, *item.VariantID)
			if err != nil {
				return err
			}
			if err := s.catalog.UpdateVariantStock(ctx, variant.ID, variant.StockQuantity+item.Quantity); err != nil {
				return err
			}
			touched[item.ProductID] = true
			continue
		}

		product, err := s.catalog.GetForUpdate(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if err := s.catalog.UpdateStock(ctx, product.ID, product.StockQuantity+item.Quantity); err != nil {
			return err
		}
	}

	for productID := range touched {
		if err := s.RecomputeProductStock(ctx, productID); err != nil {
			return err
		}
	}

	if err := s.orders.MarkStockReleased(ctx, order.ID); err != nil {
		return err
	}
	order.StockReleased = true

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"items":    len(order.Items),
	}).Info("Released reserved stock")
	return nil
}
