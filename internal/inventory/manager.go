// Package inventory owns seat accounting for scheduled trips. All mutation of a
// trip's inventory happens under that trip's lock and inside a store transaction.
package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/seatmap"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/richxcame/ride-booking/pkg/redis"
	"go.uber.org/zap"
)

// DefaultLockWait bounds how long a caller waits for a trip lock.
const DefaultLockWait = 2 * time.Second

// Manager serializes inventory changes per trip.
type Manager struct {
	locker   Locker
	lockWait time.Duration
}

// NewManager creates a Manager. A non-positive lockWait uses DefaultLockWait.
func NewManager(locker Locker, lockWait time.Duration) *Manager {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Manager{locker: locker, lockWait: lockWait}
}

// LockKey is the arena key of a trip.
func LockKey(tripID uuid.UUID) string {
	return "trip:" + tripID.String()
}

// SortTripIDs orders ids ascending and drops duplicates. Every multi-trip
// operation acquires locks in this order.
func SortTripIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})

	uniq := out[:0]
	for i, id := range out {
		if i > 0 && id == out[i-1] {
			continue
		}
		uniq = append(uniq, id)
	}
	return uniq
}

// Acquire locks every trip in ascending id order within one bounded wait.
// On timeout it fails with ErrCapacityBusy and holds nothing. The returned
// release may be called more than once.
func (m *Manager) Acquire(ctx context.Context, tripIDs ...uuid.UUID) (func(), error) {
	ordered := SortTripIDs(tripIDs)

	waitCtx, cancel := context.WithTimeout(ctx, m.lockWait)
	defer cancel()

	start := time.Now()
	releases := make([]func(), 0, len(ordered))
	var once sync.Once
	releaseAll := func() {
		once.Do(func() {
			for i := len(releases) - 1; i >= 0; i-- {
				releases[i]()
			}
		})
	}

	for _, id := range ordered {
		release, err := m.locker.Lock(waitCtx, LockKey(id))
		if err != nil {
			releaseAll()
			return nil, m.lockError(ctx, id, err)
		}
		releases = append(releases, release)
	}
	lockWaitSeconds.Observe(time.Since(start).Seconds())

	return releaseAll, nil
}

func (m *Manager) lockError(ctx context.Context, tripID uuid.UUID, err error) error {
	if ctx.Err() != nil {
		// The caller gave up; not contention.
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.ErrLockNotAcquired) {
		lockBusyTotal.Inc()
		seatReservationsTotal.WithLabelValues("busy").Inc()
		logger.WithContext(ctx).Warn("trip lock wait exceeded",
			zap.String("trip_id", tripID.String()),
			zap.Duration("lock_wait", m.lockWait))
		return domain.ErrCapacityBusy.WithCause(err)
	}
	return err
}

// WithTrips runs fn while holding the locks of every trip.
func (m *Manager) WithTrips(ctx context.Context, tripIDs []uuid.UUID, fn func() error) error {
	release, err := m.Acquire(ctx, tripIDs...)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// ReserveSeats holds count seats on the trip. When requested is non-empty those
// exact seats are taken, otherwise the lowest free seats of the vehicle's seat map.
// The caller must hold the trip lock and run inside the store's transaction.
func (m *Manager) ReserveSeats(ctx context.Context, store TripStore, tripID uuid.UUID, count int, requested []string) (*Reservation, error) {
	if count <= 0 {
		return nil, domain.ErrInvalidSeatRequest.WithMessage("seat count must be positive")
	}
	if len(requested) > 0 && len(requested) != count {
		return nil, domain.ErrInvalidSeatRequest.WithMessage("requested %d seat ids for %d seats", len(requested), count)
	}

	trip, err := store.GetTripForUpdate(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.Status.AcceptsBookings() {
		return nil, domain.ErrTripNotBookable.WithMessage("trip is %s", trip.Status)
	}
	if count > trip.CurrentAvailableSeats {
		seatReservationsTotal.WithLabelValues("insufficient").Inc()
		return nil, domain.ErrInsufficientCapacity.WithMessage("requested %d seats, %d available", count, trip.CurrentAvailableSeats)
	}

	seats, err := store.GetSeatMap(ctx, trip.VehicleID)
	if err != nil {
		return nil, err
	}
	heldIDs, err := store.HeldSeats(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	held := seatmap.HeldSet(heldIDs)

	assigned, err := pickSeats(seats, held, count, requested)
	if err != nil {
		return nil, err
	}

	trip.CurrentAvailableSeats -= count
	if trip.CurrentAvailableSeats == 0 && !trip.Status.Terminal() && trip.Status != TripFull {
		prior := trip.Status
		trip.StatusBeforeFull = &prior
		trip.Status = TripFull
	}

	if err := store.UpdateTripInventory(ctx, trip); err != nil {
		return nil, err
	}

	seatReservationsTotal.WithLabelValues("reserved").Inc()
	return &Reservation{Trip: trip, Seats: assigned}, nil
}

func pickSeats(seats seatmap.SeatMap, held map[string]struct{}, count int, requested []string) ([]string, error) {
	if len(requested) == 0 {
		free, ok := seats.LowestFree(held, count)
		if !ok {
			// Counter and seat map disagree; never hand out a held seat.
			seatReservationsTotal.WithLabelValues("insufficient").Inc()
			return nil, domain.ErrInsufficientCapacity.WithMessage("only %d unassigned seats remain", len(seats.Free(held)))
		}
		return free, nil
	}

	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		if !seats.Contains(id) {
			return nil, domain.ErrInvalidSeatRequest.WithMessage("seat %s does not exist on this vehicle", id)
		}
		if _, dup := seen[id]; dup {
			return nil, domain.ErrInvalidSeatRequest.WithMessage("seat %s requested twice", id)
		}
		seen[id] = struct{}{}
		if _, taken := held[id]; taken {
			seatReservationsTotal.WithLabelValues("conflict").Inc()
			return nil, domain.ErrSeatConflict.WithMessage("seat %s is already taken", id)
		}
	}

	out := make([]string, len(requested))
	copy(out, requested)
	seats.Sort(out)
	return out, nil
}

// ReleaseSeats returns seats to the trip. A full trip reverts to the status it had
// before filling up; completed and cancelled trips keep their status. Releasing
// more seats than the trip ever had is an accounting error and changes nothing.
// The caller must hold the trip lock and run inside the store's transaction.
func (m *Manager) ReleaseSeats(ctx context.Context, store TripStore, tripID uuid.UUID, seats []string) (*ScheduledTrip, error) {
	trip, err := store.GetTripForUpdate(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return trip, nil
	}

	if trip.CurrentAvailableSeats+len(seats) > trip.InitialAvailableSeats {
		logger.WithContext(ctx).Error("seat release overflows trip capacity",
			zap.String("trip_id", trip.ID.String()),
			zap.Int("current", trip.CurrentAvailableSeats),
			zap.Int("released", len(seats)),
			zap.Int("initial", trip.InitialAvailableSeats))
		return nil, common.NewInternalError("seat accounting mismatch",
			fmt.Errorf("trip %s: releasing %d seats onto %d of %d available",
				trip.ID, len(seats), trip.CurrentAvailableSeats, trip.InitialAvailableSeats))
	}

	trip.CurrentAvailableSeats += len(seats)
	reopen(trip)

	if err := store.UpdateTripInventory(ctx, trip); err != nil {
		return nil, err
	}

	seatsReleasedTotal.Add(float64(len(seats)))
	return trip, nil
}

// reopen moves a full trip with free seats back to the status it had before
// filling up.
func reopen(trip *ScheduledTrip) {
	if trip.Status != TripFull || trip.CurrentAvailableSeats <= 0 {
		return
	}
	trip.Status = TripScheduled
	if trip.StatusBeforeFull != nil && !trip.StatusBeforeFull.Terminal() && *trip.StatusBeforeFull != TripFull {
		trip.Status = *trip.StatusBeforeFull
	}
	trip.StatusBeforeFull = nil
}

// Availability reports the trip's counts and unassigned seats as of now. Holds
// that lapsed before now but have not been reclaimed yet count as free; the
// stored counter catches up on the trip's next reservation or sweep.
func (m *Manager) Availability(ctx context.Context, reader TripReader, tripID uuid.UUID, now time.Time) (*Availability, error) {
	trip, err := reader.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	seats, err := reader.GetSeatMap(ctx, trip.VehicleID)
	if err != nil {
		return nil, err
	}
	held, err := reader.HeldSeats(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	lapsed, err := reader.LapsedHoldSeats(ctx, trip.ID, now)
	if err != nil {
		return nil, err
	}

	heldSet := seatmap.HeldSet(held)
	for _, id := range lapsed {
		delete(heldSet, id)
	}
	if !trip.Status.Terminal() && len(lapsed) > 0 {
		trip.CurrentAvailableSeats += len(lapsed)
		if trip.CurrentAvailableSeats > trip.InitialAvailableSeats {
			trip.CurrentAvailableSeats = trip.InitialAvailableSeats
		}
		reopen(trip)
	}

	free := seats.Free(heldSet)
	if trip.Status.Terminal() {
		free = []string{}
	}

	return &Availability{
		TripID:                trip.ID,
		Status:                trip.Status,
		InitialAvailableSeats: trip.InitialAvailableSeats,
		CurrentAvailableSeats: trip.CurrentAvailableSeats,
		FreeSeatIDs:           free,
		PricePerSeatCents:     trip.PricePerSeatCents,
		Currency:              trip.Currency,
		DepartureAt:           trip.DepartureAt,
	}, nil
}
