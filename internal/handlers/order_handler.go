package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tesseract-hub/commerce-service/internal/metrics"
	"github.com/tesseract-hub/commerce-service/internal/middleware"
	"github.com/tesseract-hub/commerce-service/internal/repository"
	"github.com/tesseract-hub/commerce-service/internal/services"
)

// OrderHandler handles checkout and order lifecycle HTTP requests
type OrderHandler struct {
	checkout *services.CheckoutService
	orders   *services.OrderService
	repo     *repository.OrderRepository
	metrics  *metrics.Metrics
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(
	checkout *services.CheckoutService,
	orders *services.OrderService,
	repo *repository.OrderRepository,
	m *metrics.Metrics,
) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		orders:   orders,
		repo:     repo,
		metrics:  m,
	}
}

// Checkout converts a cart into a committed order: quota gate, stock
// reservation, totals and payment initiation
func (h *OrderHandler) Checkout(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	req.TenantID = tenantID

	result, err := h.checkout.Checkout(c.Request.Context(), req)
	if err != nil {
		h.recordCheckoutOutcome(err)
		ServiceErrorResponse(c, err)
		return
	}

	h.recordCheckoutOutcome(nil)
	SuccessResponse(c, http.StatusCreated, "Order created successfully", result)
}

func (h *OrderHandler) recordCheckoutOutcome(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case err == nil:
		h.metrics.CheckoutsTotal.WithLabelValues("success").Inc()
	case isQuota(err):
		h.metrics.CheckoutsTotal.WithLabelValues("quota_exceeded").Inc()
	case isStock(err):
		h.metrics.CheckoutsTotal.WithLabelValues("insufficient_stock").Inc()
		h.metrics.StockShortfalls.Inc()
	case isConflict(err):
		h.metrics.CheckoutsTotal.WithLabelValues("conflict").Inc()
	default:
		h.metrics.CheckoutsTotal.WithLabelValues("error").Inc()
	}
}

// GetOrder returns a single order with its line items
func (h *OrderHandler) GetOrder(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid order ID", err)
		return
	}

	order, err := h.repo.GetByID(c.Request.Context(), orderID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	if order.TenantID != tenantID {
		ErrorResponse(c, http.StatusNotFound, "order not found", nil)
		return
	}

	SuccessResponse(c, http.StatusOK, "Order retrieved", order)
}

// ListOrders returns a paginated order list, optionally filtered by status
func (h *OrderHandler) ListOrders(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)
	page, pageSize := paginationParams(c)
	status := c.Query("status")

	orders, total, err := h.repo.List(c.Request.Context(), tenantID, status, page, pageSize)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Orders retrieved", gin.H{
		"orders":    orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateStatusRequest represents an order-status transition request
type UpdateStatusRequest struct {
	Status         string `json:"status" binding:"required,oneof=pending processing shipped delivered"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	Note           string `json:"note"`
}

// UpdateStatus advances an order through its lifecycle. Cancellation goes
// through the dedicated cancel endpoint because it carries side effects.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	orderID, err := h.ownedOrderID(c, tenantID)
	if err != nil {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	order, err := h.orders.AdvanceStatus(c.Request.Context(), orderID, req.Status, services.TransitionMetadata{
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Note:           req.Note,
	})
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Order status updated", order)
}

// CancelOrderRequest represents an order cancellation request
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required,min=1"`
}

// CancelOrder cancels an order, releasing reserved stock and refunding
// captured payment. A refund failure leaves the order cancelled and
// surfaces so the refund can be retried.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	orderID, err := h.ownedOrderID(c, tenantID)
	if err != nil {
		return
	}

	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	order, err := h.orders.Cancel(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		if refundErr, ok := services.IsRefundFailedError(err); ok {
			if h.metrics != nil {
				h.metrics.RefundFailures.Inc()
			}
			// The cancellation itself committed; report partial success
			c.JSON(http.StatusAccepted, gin.H{
				"success":    true,
				"message":    "Order cancelled, but the refund failed and must be retried",
				"refund":     refundErr.Error(),
				"data":       order,
				"request_id": getRequestID(c),
			})
			return
		}
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Order cancelled successfully", order)
}

// RefundOrder refunds a paid order from any state, delivered included.
// Stock is released and the order moves to refunded once the provider
// confirms.
func (h *OrderHandler) RefundOrder(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	orderID, err := h.ownedOrderID(c, tenantID)
	if err != nil {
		return
	}

	order, err := h.orders.Refund(c.Request.Context(), orderID)
	if err != nil {
		if _, ok := services.IsRefundFailedError(err); ok && h.metrics != nil {
			h.metrics.RefundFailures.Inc()
		}
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Order refunded successfully", order)
}

// RetryRefund re-attempts a failed refund on a cancelled order
func (h *OrderHandler) RetryRefund(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	orderID, err := h.ownedOrderID(c, tenantID)
	if err != nil {
		return
	}

	order, err := h.orders.RetryRefund(c.Request.Context(), orderID)
	if err != nil {
		if _, ok := services.IsRefundFailedError(err); ok && h.metrics != nil {
			h.metrics.RefundFailures.Inc()
		}
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Refund completed", order)
}

// UpdatePaymentStatusRequest represents a payment-status transition request
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required,oneof=pending paid failed refunded"`
}

// UpdatePaymentStatus moves the payment-status machine, typically driven by
// provider webhooks relayed through the gateway
func (h *OrderHandler) UpdatePaymentStatus(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	orderID, err := h.ownedOrderID(c, tenantID)
	if err != nil {
		return
	}

	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	order, err := h.orders.UpdatePaymentStatus(c.Request.Context(), orderID, req.PaymentStatus)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Payment status updated", order)
}

// ownedOrderID parses the path order ID and verifies tenant ownership,
// writing the error response itself on failure
func (h *OrderHandler) ownedOrderID(c *gin.Context, tenantID uuid.UUID) (uuid.UUID, error) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid order ID", err)
		return uuid.Nil, err
	}

	order, err := h.repo.GetByID(c.Request.Context(), orderID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return uuid.Nil, err
	}
	if order.TenantID != tenantID {
		ErrorResponse(c, http.StatusNotFound, "order not found", nil)
		return uuid.Nil, errOrderNotFound
	}
	return orderID, nil
}
