package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"
)

// Event subjects published by the commerce service
const (
	EventOrderCreated       = "commerce.order.created"
	EventOrderStatusChanged = "commerce.order.status_changed"
	EventOrderCancelled     = "commerce.order.cancelled"
	EventOrderRefundFailed  = "commerce.order.refund_failed"
	EventQuotaBreached      = "commerce.quota.breached"
)

// OrderEvent is published on order creation and lifecycle transitions
type OrderEvent struct {
	EventType     string    `json:"event_type"`
	TenantID      string    `json:"tenant_id"`
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalCents    int64     `json:"total_cents"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// QuotaBreachedEvent is published when a tenant hits a plan limit so the
// notification service can prompt an upgrade
type QuotaBreachedEvent struct {
	EventType string    `json:"event_type"`
	TenantID  string    `json:"tenant_id"`
	Resource  string    `json:"resource"`
	Current   int64     `json:"current"`
	Limit     int64     `json:"limit"`
	Timestamp time.Time `json:"timestamp"`
}

// Client wraps the NATS connection
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Config holds NATS connection configuration
type Config struct {
	URL string
}

// DefaultConfig returns the default NATS configuration
func DefaultConfig() *Config {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	return &Config{
		URL: url,
	}
}

// NewClient creates a new NATS client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	log.Printf("[NATS] Connecting to %s", cfg.URL)

	opts := []nats.Option{
		nats.Name("commerce-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[NATS] Disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] Reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] Connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// Ensure the commerce events stream exists. LimitsPolicy lets multiple
	// downstream consumers (notifications, analytics) read independently.
	_, err = js.AddStream(&nats.StreamConfig{
		Name:        "COMMERCE_EVENTS",
		Description: "Order lifecycle and quota events",
		Subjects:    []string{"commerce.>"},
		Storage:     nats.FileStorage,
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxMsgs:     500000,
		Discard:     nats.DiscardOld,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		log.Printf("[NATS] Warning: Could not create stream (may already exist): %v", err)
	}

	log.Printf("[NATS] Connected successfully to %s", cfg.URL)

	return &Client{
		conn: conn,
		js:   js,
	}, nil
}

// PublishOrderEvent publishes an order lifecycle event with bounded retry
func (c *Client) PublishOrderEvent(ctx context.Context, eventType string, event *OrderEvent) error {
	if c == nil || c.js == nil {
		return fmt.Errorf("NATS client not initialized")
	}

	event.EventType = eventType
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var ack *nats.PubAck
	maxRetries := 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ack, err = c.js.Publish(eventType, data)
		if err == nil {
			break
		}
		log.Printf("[NATS] Attempt %d/%d: Failed to publish %s event: %v", attempt, maxRetries, eventType, err)
		if attempt < maxRetries {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while retrying publish: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, err)
	}

	log.Printf("[NATS] Published %s event for order %s (seq: %d)", eventType, event.OrderNumber, ack.Sequence)
	return nil
}

// PublishQuotaBreached publishes a quota breach event
func (c *Client) PublishQuotaBreached(ctx context.Context, event *QuotaBreachedEvent) error {
	if c == nil || c.js == nil {
		return fmt.Errorf("NATS client not initialized")
	}

	event.EventType = EventQuotaBreached
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := c.js.Publish(EventQuotaBreached, data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("[NATS] Published %s event for tenant %s (seq: %d)", EventQuotaBreached, event.TenantID, ack.Sequence)
	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c != nil && c.conn != nil {
		c.conn.Close()
		log.Printf("[NATS] Connection closed")
	}
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c != nil && c.conn != nil && c.conn.IsConnected()
}
