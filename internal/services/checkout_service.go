package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tesseract-hub/commerce-service/internal/models"
	"github.com/tesseract-hub/commerce-service/internal/repository"
	"gorm.io/datatypes"
)

// CartItem is one line of an incoming checkout request
type CartItem struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity" binding:"required,gt=0"`
}

// CheckoutRequest is the full input to a checkout
type CheckoutRequest struct {
	TenantID      uuid.UUID       `json:"-"`
	Items         []CartItem      `json:"items" binding:"required,min=1"`
	ShippingAddr  models.Address  `json:"shipping_address" binding:"required"`
	BillingAddr   *models.Address `json:"billing_address,omitempty"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
	CouponCode    *string         `json:"coupon_code,omitempty"`
}

// CheckoutResult is returned to the caller so payment can be completed
// out-of-band with the provider reference
type CheckoutResult struct {
	Order      *models.Order `json:"order"`
	PaymentRef string        `json:"payment_ref,omitempty"`
}

// QuotaChecker gates resource creation. Implemented by QuotaService.
type QuotaChecker interface {
	CanCreate(ctx context.Context, tenantID uuid.UUID, resource models.ResourceType) error
	InvalidateSnapshot(ctx context.Context, tenantID uuid.UUID)
}

// StockReserver reserves stock for order line items. Implemented by StockService.
type StockReserver interface {
	Reserve(ctx context.Context, items []models.OrderItem) error
}

// CheckoutOrderStore is the order persistence checkout needs.
// Implemented by repository.OrderRepository.
type CheckoutOrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Save(ctx context.Context, order *models.Order) error
	NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
	GetCouponByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Coupon, error)
}

// ProductReader loads products/variants to snapshot prices into line items.
// Implemented by repository.ProductRepository.
type ProductReader interface {
	GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	GetVariantByID(ctx context.Context, variantID uuid.UUID) (*models.Variant, error)
}

// PaymentInitiator starts payment collection with the chosen provider.
// Implemented by PaymentService.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, order *models.Order) (string, error)
}

// CheckoutService is the single entry point converting a cart into a
// committed order: quota gate, stock reservation, totals, persistence and
// payment initiation. It is the only writer allowed to create orders from
// cart contents.
type CheckoutService struct {
	quota      QuotaChecker
	stock      StockReserver
	orders     CheckoutOrderStore
	products   ProductReader
	payments   PaymentInitiator
	notifier   Notifier
	tx         TxRunner
	maxRetries int
}

// NewCheckoutService creates a new checkout orchestrator
func NewCheckoutService(
	quota QuotaChecker,
	stock StockReserver,
	orders CheckoutOrderStore,
	products ProductReader,
	payments PaymentInitiator,
	notifier Notifier,
	tx TxRunner,
	maxRetries int,
) *CheckoutService {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &CheckoutService{
		quota:      quota,
		stock:      stock,
		orders:     orders,
		products:   products,
		payments:   payments,
		notifier:   notifier,
		tx:         tx,
		maxRetries: maxRetries,
	}
}

// Checkout validates quota, reserves stock, computes totals, persists the
// order and initiates payment. Quota check through order persistence run in
// one transaction: all take effect or none do. Concurrent-write conflicts
// are retried a bounded number of times before surfacing.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	var order *models.Order
	var lastErr error

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		order, lastErr = s.checkoutOnce(ctx, req)
		if lastErr == nil {
			break
		}
		if conflict, ok := IsPersistenceConflictError(lastErr); ok {
			logrus.WithFields(logrus.Fields{
				"tenant_id": req.TenantID,
				"attempt":   attempt,
				"error":     conflict.Error(),
			}).Warn("Checkout hit a persistence conflict, retrying")
			continue
		}
		return nil, lastErr
	}
	if lastErr != nil {
		return nil, lastErr
	}

	s.quota.InvalidateSnapshot(ctx, req.TenantID)
	if s.notifier != nil {
		s.notifier.OrderCreated(ctx, order)
	}

	// Payment initiation happens after the order committed. A provider
	// failure or timeout leaves the order pending/pending with stock
	// reserved; the reservation-expiry sweep reclaims it if payment never
	// completes.
	ref, err := s.payments.InitiatePayment(ctx, order)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		}).Error("Payment initiation failed; order left pending for retry or expiry")
		return &CheckoutResult{Order: order}, nil
	}

	order.PaymentRef = ref
	if err := s.orders.Save(ctx, order); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("Failed to persist payment reference")
	}
	return &CheckoutResult{Order: order, PaymentRef: ref}, nil
}

// checkoutOnce runs steps 1–4 in a single transaction
func (s *CheckoutService) checkoutOnce(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	var order *models.Order

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		// Step 1: quota gate (locks the tenant row, reads live counts)
		if err := s.quota.CanCreate(ctx, req.TenantID, models.ResourceOrders); err != nil {
			return err
		}

		// Snapshot prices into immutable line items before touching stock
		items, subtotal, err := s.buildLineItems(ctx, req.TenantID, req.Items)
		if err != nil {
			return err
		}

		// Step 2: reserve stock atomically across all lines
		if err := s.stock.Reserve(ctx, items); err != nil {
			return err
		}

		// Step 3: totals, applying the coupon if one was supplied.
		// An invalid or expired coupon fails the whole checkout rather
		// than silently charging full price.
		var discount int64
		if req.CouponCode != nil && *req.CouponCode != "" {
			coupon, err := s.orders.GetCouponByCode(ctx, req.TenantID, *req.CouponCode)
			if err != nil {
				return fmt.Errorf("coupon %q is not valid: %w", *req.CouponCode, err)
			}
			if !coupon.IsRedeemable(time.Now()) {
				return fmt.Errorf("coupon %q is expired or inactive", *req.CouponCode)
			}
			discount = coupon.DiscountFor(subtotal)
		}

		number, err := s.orders.NextOrderNumber(ctx, req.TenantID)
		if err != nil {
			return err
		}

		shippingJSON, err := json.Marshal(req.ShippingAddr)
		if err != nil {
			return fmt.Errorf("invalid shipping address: %w", err)
		}
		var billingJSON datatypes.JSON
		if req.BillingAddr != nil {
			data, err := json.Marshal(req.BillingAddr)
			if err != nil {
				return fmt.Errorf("invalid billing address: %w", err)
			}
			billingJSON = data
		}

		// Step 4: persist the order as pending/pending
		order = &models.Order{
			TenantID:      req.TenantID,
			OrderNumber:   number,
			Status:        models.OrderStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			PaymentMethod: req.PaymentMethod,
			SubtotalCents: subtotal,
			DiscountCents: discount,
			TotalCents:    subtotal - discount,
			CouponCode:    req.CouponCode,
			ShippingAddr:  shippingJSON,
			BillingAddr:   billingJSON,
			Items:         items,
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"tenant_id":    req.TenantID,
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"total_cents":  order.TotalCents,
			"items":        len(order.Items),
		}).Info("Order created from checkout")
		return nil
	})

	if err != nil {
		if repository.IsSerializationFailure(err) {
			return nil, &PersistenceConflictError{Cause: err}
		}
		return nil, err
	}
	return order, nil
}

// buildLineItems snapshots product/variant names and prices into order
// items; later price changes must not retroactively change the totals
func (s *CheckoutService) buildLineItems(ctx context.Context, tenantID uuid.UUID, cart []CartItem) ([]models.OrderItem, int64, error) {
	items := make([]models.OrderItem, 0, len(cart))
	var subtotal int64

	for _, line := range cart {
		if line.Quantity <= 0 {
			return nil, 0, fmt.Errorf("line quantity must be positive")
		}

		product, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, 0, err
		}
		if product.TenantID != tenantID {
			return nil, 0, fmt.Errorf("product %s does not belong to tenant %s", line.ProductID, tenantID)
		}
		if product.Status != models.ProductStatusActive {
			return nil, 0, fmt.Errorf("product %q is not available for purchase", product.Name)
		}

		item := models.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: product.EffectivePriceCents(),
		}

		if line.VariantID != nil {
			variant, err := s.products.GetVariantByID(ctx, *line.VariantID)
			if err != nil {
				return nil, 0, err
			}
			if variant.ProductID != product.ID {
				return nil, 0, fmt.Errorf("variant %s does not belong to product %s", variant.ID, product.ID)
			}
			item.VariantID = &variant.ID
			item.VariantName = variant.Name
			if variant.PriceCents != nil {
				item.UnitPriceCents = *variant.PriceCents
			}
		}

		item.LineTotalCents = item.UnitPriceCents * int64(item.Quantity)
		subtotal += item.LineTotalCents
		items = append(items, item)
	}
	return items, subtotal, nil
}
