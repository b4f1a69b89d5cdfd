// Package sweeper is the periodic janitor for timed-out dispatch state. Every
// expiry is a guarded compare-and-set: a document that moved on since it was
// listed is simply skipped, so the sweeper and live callables never fight.
package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/pkg/config"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	"github.com/mishwari/taxi-dispatch/pkg/metrics"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// batchLimit caps how many documents one sweep picks up per kind.
const batchLimit = 500

// Store abstracts sweep persistence for testing.
type Store interface {
	ListTimedOutRequests(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	ExpireRequest(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	ListTripsWithExpiredOffers(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ExpireOfferTrip(ctx context.Context, tripID uuid.UUID) (bool, error)
	ListNoShowTrips(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	CancelNoShow(ctx context.Context, tripID uuid.UUID) (bool, error)
}

// Worker runs the timeout sweeps on a fixed cadence.
type Worker struct {
	store Store
	cfg   config.DispatchConfig
	done  chan struct{}
	now   func() time.Time
}

// NewWorker creates a new sweeper worker
func NewWorker(store Store, cfg config.DispatchConfig) *Worker {
	return &Worker{
		store: store,
		cfg:   cfg,
		done:  make(chan struct{}),
		now:   time.Now,
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	logger.Info("starting timeout sweeper",
		zap.Duration("interval", w.cfg.SweepInterval),
	)

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-ctx.Done():
			logger.Info("timeout sweeper stopped")
			return
		case <-w.done:
			logger.Info("timeout sweeper shutdown requested")
			return
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	close(w.done)
}

// RunOnce executes one full sweep pass. Per-document failures are logged and
// skipped; the document is retried on the next pass.
func (w *Worker) RunOnce(ctx context.Context) {
	start := w.now()

	if w.cfg.SweepBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.SweepBudget)
		defer cancel()
	}

	w.sweepTimedOutRequests(ctx)
	w.sweepExpiredOffers(ctx)
	w.sweepNoShows(ctx)

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
}

func (w *Worker) sweepTimedOutRequests(ctx context.Context) {
	cutoff := w.now().Add(-w.cfg.SearchTimeout)
	ids, err := w.store.ListTimedOutRequests(ctx, cutoff, batchLimit)
	if err != nil {
		logger.Error("failed to list timed-out requests", zap.Error(err))
		metrics.SweepErrors.Inc()
		return
	}

	for _, id := range ids {
		ok, err := w.store.ExpireRequest(ctx, id, models.ReasonNoDriverFound)
		if err != nil {
			logger.Error("failed to expire request",
				zap.String("request_id", id.String()),
				zap.Error(err),
			)
			metrics.SweepErrors.Inc()
			continue
		}
		if ok {
			metrics.SweepExpirations.WithLabelValues("search_timeout").Inc()
			logger.Info("expired timed-out request", zap.String("request_id", id.String()))
		}
	}
}

func (w *Worker) sweepExpiredOffers(ctx context.Context) {
	ids, err := w.store.ListTripsWithExpiredOffers(ctx, w.now(), batchLimit)
	if err != nil {
		logger.Error("failed to list expired offers", zap.Error(err))
		metrics.SweepErrors.Inc()
		return
	}

	for _, id := range ids {
		ok, err := w.store.ExpireOfferTrip(ctx, id)
		if err != nil {
			logger.Error("failed to expire offer trip",
				zap.String("trip_id", id.String()),
				zap.Error(err),
			)
			metrics.SweepErrors.Inc()
			continue
		}
		if ok {
			metrics.SweepExpirations.WithLabelValues("offer_expired").Inc()
			logger.Info("expired unanswered offer", zap.String("trip_id", id.String()))
		}
	}
}

func (w *Worker) sweepNoShows(ctx context.Context) {
	cutoff := w.now().Add(-w.cfg.DriverArrivalTimeout)
	ids, err := w.store.ListNoShowTrips(ctx, cutoff, batchLimit)
	if err != nil {
		logger.Error("failed to list no-show trips", zap.Error(err))
		metrics.SweepErrors.Inc()
		return
	}

	for _, id := range ids {
		ok, err := w.store.CancelNoShow(ctx, id)
		if err != nil {
			logger.Error("failed to cancel no-show trip",
				zap.String("trip_id", id.String()),
				zap.Error(err),
			)
			metrics.SweepErrors.Inc()
			continue
		}
		if ok {
			metrics.SweepExpirations.WithLabelValues("driver_no_show").Inc()
			logger.Warn("cancelled trip, driver never arrived", zap.String("trip_id", id.String()))
		}
	}
}
