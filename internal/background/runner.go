package background

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/tesseract-hub/commerce-service/internal/config"
	"github.com/tesseract-hub/commerce-service/internal/metrics"
	"github.com/tesseract-hub/commerce-service/internal/models"
)

// StaleOrderLister finds pending orders whose payment never completed.
// Implemented by repository.OrderRepository.
type StaleOrderLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ReservationExpirer cancels one expired reservation.
// Implemented by services.OrderService.
type ReservationExpirer interface {
	ExpireStaleReservation(ctx context.Context, orderID uuid.UUID) error
}

// StockAuditor recomputes parent product stock from variant sums.
// Implemented by services.StockService.
type StockAuditor interface {
	RecomputeProductStock(ctx context.Context, productID uuid.UUID) error
}

// VariantProductLister lists products that have variants.
// Implemented by repository.ProductRepository.
type VariantProductLister interface {
	ListVariantProductIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Runner manages the scheduled maintenance jobs: the reservation-expiry
// sweep and the nightly stock audit
type Runner struct {
	orders   StaleOrderLister
	expirer  ReservationExpirer
	auditor  StockAuditor
	products VariantProductLister
	config   config.CheckoutConfig
	metrics  *metrics.Metrics
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
}

// NewRunner creates a new background runner
func NewRunner(
	orders StaleOrderLister,
	expirer ReservationExpirer,
	auditor StockAuditor,
	products VariantProductLister,
	cfg config.CheckoutConfig,
	m *metrics.Metrics,
) *Runner {
	return &Runner{
		orders:   orders,
		expirer:  expirer,
		auditor:  auditor,
		products: products,
		config:   cfg,
		metrics:  m,
	}
}

// Start schedules and starts the background jobs
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	r.cron = cron.New()

	// Reservation expiry sweep every 5 minutes
	if _, err := r.cron.AddFunc("*/5 * * * *", r.runExpirySweep); err != nil {
		return err
	}

	// Nightly stock audit at 03:00
	if _, err := r.cron.AddFunc("0 3 * * *", r.runStockAudit); err != nil {
		return err
	}

	r.cron.Start()
	r.running = true

	logrus.WithFields(logrus.Fields{
		"expiry_minutes": r.config.ReservationExpiryMinutes,
		"batch_size":     r.config.ExpirySweepBatchSize,
	}).Info("Background job runner started")
	return nil
}

// Stop gracefully stops the background jobs, waiting for in-flight runs
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running || r.cron == nil {
		return
	}

	ctx := r.cron.Stop()
	<-ctx.Done()
	r.running = false
	logrus.Info("Background job runner stopped")
}

// runExpirySweep cancels pending orders whose payment never completed
// within the reservation window, returning their stock to the pool
func (r *Runner) runExpirySweep() {
	ctx := context.Background()
	start := time.Now()
	cutoff := start.Add(-time.Duration(r.config.ReservationExpiryMinutes) * time.Minute)

	stale, err := r.orders.ListStalePending(ctx, cutoff, r.config.ExpirySweepBatchSize)
	if err != nil {
		logrus.WithError(err).Error("Reservation expiry sweep failed to list stale orders")
		return
	}
	if len(stale) == 0 {
		return
	}

	var expired, failed int
	for _, order := range stale {
		if err := r.expirer.ExpireStaleReservation(ctx, order.ID); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"order_id":     order.ID,
				"order_number": order.OrderNumber,
			}).Warn("Failed to expire stale reservation")
			failed++
			continue
		}
		expired++
		if r.metrics != nil {
			r.metrics.ExpiredReservations.Inc()
		}
	}

	logrus.WithFields(logrus.Fields{
		"expired":  expired,
		"failed":   failed,
		"cutoff":   cutoff.Format(time.RFC3339),
		"duration": time.Since(start).String(),
	}).Info("Reservation expiry sweep completed")
}

// runStockAudit recomputes product stock from variant sums across all
// products that have variants, repairing any drift
func (r *Runner) runStockAudit() {
	ctx := context.Background()
	start := time.Now()

	productIDs, err := r.products.ListVariantProductIDs(ctx)
	if err != nil {
		logrus.WithError(err).Error("Stock audit failed to list products with variants")
		return
	}

	var repaired, failed int
	for _, productID := range productIDs {
		if err := r.auditor.RecomputeProductStock(ctx, productID); err != nil {
			logrus.WithError(err).WithField("product_id", productID).Warn("Stock audit failed for product")
			failed++
			continue
		}
		repaired++
	}

	logrus.WithFields(logrus.Fields{
		"products": repaired,
		"failed":   failed,
		"duration": time.Since(start).String(),
	}).Info("Stock audit completed")
}
