package services

import (
	"errors"
	"fmt"

	"github.com/tesseract-hub/commerce-service/internal/models"
)

// InvalidTransitionError represents an order-status change that is not
// reachable from the current state. Client error, never retried.
type InvalidTransitionError struct {
	Field string `json:"field"` // "status" or "payment_status"
	From  string `json:"from"`
	To    string `json:"to"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Field, e.From, e.To)
}

// IsInvalidTransitionError checks if an error is an InvalidTransitionError
func IsInvalidTransitionError(err error) (*InvalidTransitionError, bool) {
	var transitionErr *InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return transitionErr, true
	}
	return nil, false
}

// InsufficientStockError represents a reservation request that exceeds
// availability. User-facing; the enclosing checkout aborts cleanly.
type InsufficientStockError struct {
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// IsInsufficientStockError checks if an error is an InsufficientStockError
func IsInsufficientStockError(err error) (*InsufficientStockError, bool) {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr, true
	}
	return nil, false
}

// QuotaExceededError represents a tenant plan limit being reached.
// The message carries current/limit so the dashboard can prompt an upgrade
// without re-deriving the numbers.
type QuotaExceededError struct {
	Resource models.ResourceType `json:"resource"`
	Current  int64               `json:"current"`
	Limit    int64               `json:"limit"`
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s limit reached (%d/%d)", resourceLabel(e.Resource), e.Current, e.Limit)
}

// IsQuotaExceededError checks if an error is a QuotaExceededError
func IsQuotaExceededError(err error) (*QuotaExceededError, bool) {
	var quotaErr *QuotaExceededError
	if errors.As(err, &quotaErr) {
		return quotaErr, true
	}
	return nil, false
}

// NoActivePlanError blocks all quota-gated creation for tenants without a
// subscription plan (fail closed)
type NoActivePlanError struct {
	TenantID string `json:"tenant_id"`
}

func (e *NoActivePlanError) Error() string {
	return fmt.Sprintf("tenant %s has no active subscription plan", e.TenantID)
}

// IsNoActivePlanError checks if an error is a NoActivePlanError
func IsNoActivePlanError(err error) (*NoActivePlanError, bool) {
	var planErr *NoActivePlanError
	if errors.As(err, &planErr) {
		return planErr, true
	}
	return nil, false
}

// RefundFailedError represents a provider refund call that failed after an
// order was cancelled. The order stays cancelled; the refund must be
// retried or escalated, never silently dropped.
type RefundFailedError struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	Cause    error  `json:"-"`
}

func (e *RefundFailedError) Error() string {
	return fmt.Sprintf("refund failed for order %s via %s: %v", e.OrderID, e.Provider, e.Cause)
}

func (e *RefundFailedError) Unwrap() error {
	return e.Cause
}

// IsRefundFailedError checks if an error is a RefundFailedError
func IsRefundFailedError(err error) (*RefundFailedError, bool) {
	var refundErr *RefundFailedError
	if errors.As(err, &refundErr) {
		return refundErr, true
	}
	return nil, false
}

// PersistenceConflictError represents a concurrent-write race detected by
// the database. The orchestration layer retries a bounded number of times.
type PersistenceConflictError struct {
	Cause error `json:"-"`
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("persistence conflict: %v", e.Cause)
}

func (e *PersistenceConflictError) Unwrap() error {
	return e.Cause
}

// IsPersistenceConflictError checks if an error is a PersistenceConflictError
func IsPersistenceConflictError(err error) (*PersistenceConflictError, bool) {
	var conflictErr *PersistenceConflictError
	if errors.As(err, &conflictErr) {
		return conflictErr, true
	}
	return nil, false
}

func resourceLabel(resource models.ResourceType) string {
	switch resource {
	case models.ResourceProducts:
		return "Product"
	case models.ResourceOrders:
		return "Order"
	case models.ResourcePages:
		return "Page"
	case models.ResourceBlogs:
		return "Blog"
	case models.ResourceStaff:
		return "Staff"
	case models.ResourceCustomers:
		return "Customer"
	case models.ResourceStorageMB:
		return "Storage"
	default:
		return string(resource)
	}
}
