package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tesseract-hub/commerce-service/internal/models"
)

// orderTransitions is the set of valid forward order-status transitions.
// Cancellation and refund are handled separately because they carry side
// effects (stock release, provider refund).
var orderTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
	models.OrderStatusRefunded:   {},
}

// paymentTransitions is the parallel payment-status machine
var paymentTransitions = map[string][]string{
	models.PaymentStatusPending:  {models.PaymentStatusPaid, models.PaymentStatusFailed},
	models.PaymentStatusPaid:     {models.PaymentStatusRefunded},
	models.PaymentStatusFailed:   {},
	models.PaymentStatusRefunded: {},
}

// CanTransitionOrderStatus reports whether an order may move from one
// status to another, ignoring the refund path
func CanTransitionOrderStatus(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	// Refunded is reachable from any state once payment was captured;
	// the payment-status guard is applied by the caller
	return to == models.OrderStatusRefunded && from != models.OrderStatusRefunded
}

// CanTransitionPaymentStatus reports whether a payment status move is valid
func CanTransitionPaymentStatus(from, to string) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionMetadata carries the optional fields that become mandatory at
// specific transitions (tracking details at shipped)
type TransitionMetadata struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Note           string `json:"note,omitempty"`
}

// OrderStore is the order persistence the lifecycle machine needs.
// Implemented by repository.OrderRepository.
type OrderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
}

// StockReleaser reverses stock consumption on cancellation.
// Implemented by StockService.
type StockReleaser interface {
	Release(ctx context.Context, order *models.Order) error
}

// Refunder requests refunds from the external payment provider for the
// order's payment method. Implemented by PaymentService.
type Refunder interface {
	Refund(ctx context.Context, order *models.Order, amountCents int64) error
	ProviderName(method string) string
}

// TxRunner runs a function inside one database transaction.
// Implemented by repository.TxManager.
type TxRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderService owns order status and payment status transitions, including
// cancellation with refund and stock restoration
type OrderService struct {
	orders   OrderStore
	stock    StockReleaser
	payments Refunder
	notifier Notifier
	tx       TxRunner
}

// NewOrderService creates a new order lifecycle service
func NewOrderService(orders OrderStore, stock StockReleaser, payments Refunder, notifier Notifier, tx TxRunner) *OrderService {
	return &OrderService{
		orders:   orders,
		stock:    stock,
		payments: payments,
		notifier: notifier,
		tx:       tx,
	}
}

// AdvanceStatus moves an order forward through its lifecycle. Forward
// transitions never touch stock. Re-invoking the current status is a no-op
// returning the current state; unreachable targets fail with
// InvalidTransitionError regardless of repetition.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID uuid.UUID, targetStatus string, metadata TransitionMetadata) (*models.Order, error) {
	if targetStatus == models.OrderStatusCancelled {
		return nil, &InvalidTransitionError{Field: "status", From: "(any)", To: targetStatus + " (use cancel)"}
	}
	if targetStatus == models.OrderStatusRefunded {
		return nil, &InvalidTransitionError{Field: "status", From: "(any)", To: targetStatus + " (use refund)"}
	}

	var updated *models.Order
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if order.Status == targetStatus {
			updated = order
			return nil
		}
		if !CanTransitionOrderStatus(order.Status, targetStatus) {
			return &InvalidTransitionError{Field: "status", From: order.Status, To: targetStatus}
		}

		if targetStatus == models.OrderStatusShipped {
			if strings.TrimSpace(metadata.TrackingNumber) == "" || strings.TrimSpace(metadata.Carrier) == "" {
				return fmt.Errorf("shipping an order requires tracking number and carrier")
			}
			order.TrackingNo = metadata.TrackingNumber
			order.Carrier = metadata.Carrier
		}

		previous := order.Status
		order.Status = targetStatus
		if err := s.orders.Save(ctx, order); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"from":         previous,
			"to":           targetStatus,
		}).Info("Order status advanced")

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, updated)
	}
	return updated, nil
}

// Cancel cancels an order, releases its reserved stock and, when payment
// was captured, requests a refund from the provider. A provider failure
// leaves the order cancelled with payment status unchanged and surfaces
// RefundFailedError so the refund can be retried — never silently dropped.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("cancellation requires a non-empty reason")
	}

	var cancelled *models.Order
	var wasPaid bool

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if order.Status == models.OrderStatusCancelled {
			// Idempotent: already cancelled is a no-op
			cancelled = order
			return nil
		}
		if order.Status == models.OrderStatusDelivered || order.Status == models.OrderStatusRefunded {
			return &InvalidTransitionError{Field: "status", From: order.Status, To: models.OrderStatusCancelled}
		}

		order.Status = models.OrderStatusCancelled
		order.CancelReason = reason
		wasPaid = order.PaymentStatus == models.PaymentStatusPaid

		if err := s.stock.Release(ctx, order); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, order); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"reason":       reason,
			"was_paid":     wasPaid,
		}).Info("Order cancelled")

		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.OrderCancelled(ctx, cancelled, reason)
	}

	// Refund happens after the cancellation committed: a provider failure
	// must not roll back the cancellation itself
	if wasPaid && cancelled.PaymentStatus == models.PaymentStatusPaid {
		if err := s.refundCancelled(ctx, cancelled); err != nil {
			return cancelled, err
		}
	}
	return cancelled, nil
}

// Refund refunds a paid order from any state, delivered included. The
// provider refund is requested first; only on confirmation does the order
// move to refunded/refunded and its stock get released. Already-refunded
// orders are a no-op.
func (s *OrderService) Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusRefunded {
		return order, nil
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		return nil, &InvalidTransitionError{Field: "payment_status", From: order.PaymentStatus, To: models.PaymentStatusRefunded}
	}

	if err := s.requestProviderRefund(ctx, order); err != nil {
		return order, err
	}

	var refunded *models.Order
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		fresh, err := s.orders.GetForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := s.stock.Release(ctx, fresh); err != nil {
			return err
		}
		fresh.Status = models.OrderStatusRefunded
		fresh.PaymentStatus = models.PaymentStatusRefunded
		if err := s.orders.Save(ctx, fresh); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"order_id":     fresh.ID,
			"order_number": fresh.OrderNumber,
		}).Info("Order refunded")

		refunded = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, refunded)
	}
	return refunded, nil
}

// requestProviderRefund asks the provider to return the full order total,
// wrapping a failure as RefundFailedError and notifying so it is never
// silently dropped
func (s *OrderService) requestProviderRefund(ctx context.Context, order *models.Order) error {
	if err := s.payments.Refund(ctx, order, order.TotalCents); err != nil {
		refundErr := &RefundFailedError{
			OrderID:  order.ID.String(),
			Provider: s.payments.ProviderName(order.PaymentMethod),
			Cause:    err,
		}
		logrus.WithError(refundErr).WithField("order_id", order.ID).Error("Provider refund failed")
		if s.notifier != nil {
			s.notifier.RefundFailed(ctx, order, refundErr.Error())
		}
		return refundErr
	}
	return nil
}

// refundCancelled requests a provider refund for a cancelled order and, on
// confirmation, moves payment status to refunded
func (s *OrderService) refundCancelled(ctx context.Context, order *models.Order) error {
	if err := s.requestProviderRefund(ctx, order); err != nil {
		return err
	}

	return s.tx.Do(ctx, func(ctx context.Context) error {
		fresh, err := s.orders.GetForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		fresh.PaymentStatus = models.PaymentStatusRefunded
		if err := s.orders.Save(ctx, fresh); err != nil {
			return err
		}
		order.PaymentStatus = models.PaymentStatusRefunded
		logrus.WithField("order_id", order.ID).Info("Refund confirmed, payment status set to refunded")
		return nil
	})
}

// RetryRefund re-attempts the provider refund for a cancelled order whose
// earlier refund failed (payment still paid)
func (s *OrderService) RetryRefund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusCancelled || order.PaymentStatus != models.PaymentStatusPaid {
		return nil, &InvalidTransitionError{Field: "payment_status", From: order.PaymentStatus, To: models.PaymentStatusRefunded}
	}
	if err := s.refundCancelled(ctx, order); err != nil {
		return order, err
	}
	return order, nil
}

// UpdatePaymentStatus moves the payment-status machine independently of
// order status, except that refunded requires the order to already be
// cancelled. Same-target re-invocation is a no-op.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, targetStatus string) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if order.PaymentStatus == targetStatus {
			updated = order
			return nil
		}
		if !CanTransitionPaymentStatus(order.PaymentStatus, targetStatus) {
			return &InvalidTransitionError{Field: "payment_status", From: order.PaymentStatus, To: targetStatus}
		}
		if targetStatus == models.PaymentStatusRefunded &&
			order.Status != models.OrderStatusCancelled && order.Status != models.OrderStatusRefunded {
			return &InvalidTransitionError{Field: "payment_status", From: order.PaymentStatus, To: targetStatus}
		}

		order.PaymentStatus = targetStatus
		if err := s.orders.Save(ctx, order); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"order_id":       order.ID,
			"payment_status": targetStatus,
		}).Info("Payment status updated")

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, updated)
	}
	return updated, nil
}

// ExpireStaleReservation cancels one order whose payment never completed
// within the reservation window. Called by the background sweep.
func (s *OrderService) ExpireStaleReservation(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.Cancel(ctx, orderID, fmt.Sprintf("reservation expired at %s", time.Now().UTC().Format(time.RFC3339)))
	return err
}
