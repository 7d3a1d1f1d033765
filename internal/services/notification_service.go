package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tesseract-hub/commerce-service/internal/models"
	"github.com/tesseract-hub/commerce-service/internal/nats"
)

// Notifier emits domain events for downstream consumers (notification
// service, analytics). All methods are fire-and-forget: delivery failures
// are logged and never fail the triggering operation.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order)
	OrderStatusChanged(ctx context.Context, order *models.Order)
	OrderCancelled(ctx context.Context, order *models.Order, reason string)
	RefundFailed(ctx context.Context, order *models.Order, message string)
	QuotaBreached(ctx context.Context, tenant *models.Tenant, resource models.ResourceType, current, limit int64)
}

// NATSNotifier publishes domain events to JetStream
type NATSNotifier struct {
	client *nats.Client
}

// NewNATSNotifier creates a NATS-backed notifier
func NewNATSNotifier(client *nats.Client) *NATSNotifier {
	return &NATSNotifier{client: client}
}

// OrderCreated publishes an order-created event
func (n *NATSNotifier) OrderCreated(ctx context.Context, order *models.Order) {
	n.publishOrderEvent(nats.EventOrderCreated, order, "")
}

// OrderStatusChanged publishes an order-status-changed event
func (n *NATSNotifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	n.publishOrderEvent(nats.EventOrderStatusChanged, order, "")
}

// OrderCancelled publishes an order-cancelled event
func (n *NATSNotifier) OrderCancelled(ctx context.Context, order *models.Order, reason string) {
	n.publishOrderEvent(nats.EventOrderCancelled, order, reason)
}

// RefundFailed publishes a refund-failed event so operators can retry
func (n *NATSNotifier) RefundFailed(ctx context.Context, order *models.Order, message string) {
	n.publishOrderEvent(nats.EventOrderRefundFailed, order, message)
}

// QuotaBreached publishes a quota-breached event
func (n *NATSNotifier) QuotaBreached(ctx context.Context, tenant *models.Tenant, resource models.ResourceType, current, limit int64) {
	if n.client == nil || !n.client.IsConnected() {
		return
	}
	event := &nats.QuotaBreachedEvent{
		TenantID: tenant.ID.String(),
		Resource: string(resource),
		Current:  current,
		Limit:    limit,
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.client.PublishQuotaBreached(pubCtx, event); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"tenant_id": event.TenantID,
				"resource":  event.Resource,
			}).Warn("Failed to publish quota breach event")
		}
	}()
}

// publishOrderEvent publishes asynchronously with a detached context so the
// triggering request is never held up or failed by the event bus
func (n *NATSNotifier) publishOrderEvent(eventType string, order *models.Order, reason string) {
	if n.client == nil || !n.client.IsConnected() {
		return
	}
	event := &nats.OrderEvent{
		TenantID:      order.TenantID.String(),
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalCents:    order.TotalCents,
		Reason:        reason,
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.client.PublishOrderEvent(pubCtx, eventType, event); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"event_type":   eventType,
				"order_number": event.OrderNumber,
			}).Warn("Failed to publish order event")
		}
	}()
}

// NoopNotifier discards all events; used when NATS is unavailable
type NoopNotifier struct{}

// NewNoopNotifier creates a notifier that discards everything
func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (NoopNotifier) OrderCreated(ctx context.Context, order *models.Order)                  {}
func (NoopNotifier) OrderStatusChanged(ctx context.Context, order *models.Order)            {}
func (NoopNotifier) OrderCancelled(ctx context.Context, order *models.Order, reason string) {}
func (NoopNotifier) RefundFailed(ctx context.Context, order *models.Order, message string)  {}
func (NoopNotifier) QuotaBreached(ctx context.Context, tenant *models.Tenant, resource models.ResourceType, current, limit int64) {
}
