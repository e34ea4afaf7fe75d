package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/pkg/config"
	"go.uber.org/zap"
)

// Transitions are the booking state changes the sweep drives.
type Transitions interface {
	ExpireHold(ctx context.Context, bookingID uuid.UUID) (*booking.Booking, error)
	MarkNoShow(ctx context.Context, bookingID uuid.UUID) (*booking.Booking, error)
	Complete(ctx context.Context, bookingID uuid.UUID) (*booking.Booking, error)
}

// Report counts what one sweep changed.
type Report struct {
	HoldsExpired         int
	NoShows              int
	BookingsCompleted    int
	SubscriptionsExpired int64
	TripsCompleted       int64
	Failures             int
}

// Worker runs the time-driven sweep.
type Worker struct {
	db       Database
	bookings Transitions
	logger   *zap.Logger
	cfg      config.SweepConfig
	now      func() time.Time
	done     chan struct{}
}

// NewWorker creates a sweep worker. Zero config values fall back to defaults.
func NewWorker(db Database, bookings Transitions, logger *zap.Logger, cfg config.SweepConfig) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Worker{
		db:       db,
		bookings: bookings,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start sweeps once immediately and then every interval until Stop or ctx ends.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting sweep worker", zap.Duration("interval", w.cfg.Interval))

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.done:
			w.logger.Info("Sweep worker stopped")
			return
		case <-ctx.Done():
			w.logger.Info("Sweep worker context cancelled")
			return
		}
	}
}

// Stop stops the worker. It must be called at most once.
func (w *Worker) Stop() {
	close(w.done)
}

// RunOnce performs a single sweep. Bookings are handled before trips so a trip
// is only completed once none of its bookings are still open.
func (w *Worker) RunOnce(ctx context.Context) Report {
	var r Report
	now := w.now().UTC()

	r.HoldsExpired = w.sweepBookings(ctx, "expire_hold", expiredHoldsQuery, now, w.bookings.ExpireHold, &r.Failures)
	r.NoShows = w.sweepBookings(ctx, "no_show", noShowQuery, now.Add(-w.cfg.NoShowGrace), w.bookings.MarkNoShow, &r.Failures)
	r.BookingsCompleted = w.sweepBookings(ctx, "complete", arrivedQuery, now.Add(-w.cfg.CompletedGrace), w.bookings.Complete, &r.Failures)

	if n, err := w.expireSubscriptions(ctx, now); err != nil {
		r.Failures++
		w.logger.Error("Failed to expire subscriptions", zap.Error(err))
	} else {
		r.SubscriptionsExpired = n
	}

	if n, err := w.completeTrips(ctx, now.Add(-w.cfg.CompletedGrace)); err != nil {
		r.Failures++
		w.logger.Error("Failed to complete trips", zap.Error(err))
	} else {
		r.TripsCompleted = n
	}

	if r.HoldsExpired+r.NoShows+r.BookingsCompleted > 0 || r.SubscriptionsExpired+r.TripsCompleted > 0 || r.Failures > 0 {
		w.logger.Info("Sweep finished",
			zap.Int("holds_expired", r.HoldsExpired),
			zap.Int("no_shows", r.NoShows),
			zap.Int("bookings_completed", r.BookingsCompleted),
			zap.Int64("subscriptions_expired", r.SubscriptionsExpired),
			zap.Int64("trips_completed", r.TripsCompleted),
			zap.Int("failures", r.Failures))
	}
	return r
}

const (
	expiredHoldsQuery = `
		SELECT id FROM bookings
		WHERE status = 'pending_payment' AND hold_expires_at <= $1
		ORDER BY hold_expires_at
		LIMIT $2`

	noShowQuery = `
		SELECT id FROM bookings
		WHERE status = 'confirmed' AND trip_departure_at <= $1
		ORDER BY trip_departure_at
		LIMIT $2`

	arrivedQuery = `
		SELECT b.id FROM bookings b
		JOIN scheduled_trips t ON t.id = b.scheduled_trip_id
		WHERE b.status = 'ongoing' AND t.estimated_arrival_at <= $1
		ORDER BY t.estimated_arrival_at
		LIMIT $2`
)

func (w *Worker) sweepBookings(ctx context.Context, name, query string, cutoff time.Time, transition func(context.Context, uuid.UUID) (*booking.Booking, error), failures *int) int {
	ids, err := w.listIDs(ctx, query, cutoff)
	if err != nil {
		*failures++
		w.logger.Error("Failed to list bookings for sweep", zap.String("sweep", name), zap.Error(err))
		return 0
	}

	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := transition(ctx, id); err != nil {
			// Riders and drivers race the sweep; a booking that moved on is not a failure.
			if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrHoldStillActive) || errors.Is(err, domain.ErrBookingNotFound) {
				w.logger.Debug("Booking no longer eligible for sweep",
					zap.String("sweep", name), zap.String("booking_id", id.String()), zap.Error(err))
				continue
			}
			*failures++
			w.logger.Error("Failed to sweep booking",
				zap.String("sweep", name), zap.String("booking_id", id.String()), zap.Error(err))
			continue
		}
		done++
	}
	return done
}

func (w *Worker) listIDs(ctx context.Context, query string, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := w.db.Query(ctx, query, cutoff, w.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (w *Worker) expireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := w.db.Exec(ctx, `
		UPDATE user_subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE status IN ('active', 'trial') AND end_date <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// completeTrips closes trips that arrived before cutoff and have no open bookings left.
func (w *Worker) completeTrips(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := w.db.Exec(ctx, `
		UPDATE scheduled_trips t
		SET status = 'completed', updated_at = NOW()
		WHERE t.status IN ('scheduled', 'active', 'full', 'delayed')
		  AND t.estimated_arrival_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.scheduled_trip_id = t.id
			  AND b.status IN ('pending_payment', 'confirmed', 'ongoing')
		  )
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
