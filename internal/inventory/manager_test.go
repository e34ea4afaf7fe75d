package inventory

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/seatmap"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ManagerSuite struct {
	suite.Suite
	store   *memStore
	manager *Manager
	ctx     context.Context
}

func (s *ManagerSuite) SetupTest() {
	s.store = newMemStore()
	s.manager = NewManager(NewLocalLocker(), 200*time.Millisecond)
	s.ctx = context.Background()
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

// reserve runs a reservation the way the booking service does: under the trip lock,
// recording the assigned seats as held.
func (s *ManagerSuite) reserve(tripID uuid.UUID, count int, requested ...string) (*Reservation, error) {
	var res *Reservation
	err := s.manager.WithTrips(s.ctx, []uuid.UUID{tripID}, func() error {
		r, err := s.manager.ReserveSeats(s.ctx, s.store, tripID, count, requested)
		if err != nil {
			return err
		}
		s.store.hold(tripID, r.Seats)
		res = r
		return nil
	})
	return res, err
}

func (s *ManagerSuite) release(tripID uuid.UUID, seats []string) *ScheduledTrip {
	var trip *ScheduledTrip
	err := s.manager.WithTrips(s.ctx, []uuid.UUID{tripID}, func() error {
		t, err := s.manager.ReleaseSeats(s.ctx, s.store, tripID, seats)
		if err != nil {
			return err
		}
		s.store.unhold(tripID, seats)
		trip = t
		return nil
	})
	s.Require().NoError(err)
	return trip
}

func (s *ManagerSuite) TestFullTripRejectsFurtherBookings() {
	trip := s.store.addTrip(2, seatmap.Numbered(2))

	res, err := s.reserve(trip.ID, 2)
	s.Require().NoError(err)
	s.Equal([]string{"1", "2"}, res.Seats)
	s.Equal(TripFull, s.store.trip(trip.ID).Status)
	s.Equal(0, s.store.trip(trip.ID).CurrentAvailableSeats)

	_, err = s.reserve(trip.ID, 1)
	s.ErrorIs(err, domain.ErrInsufficientCapacity)
}

func (s *ManagerSuite) TestReleaseRevertsFullToScheduled() {
	trip := s.store.addTrip(2, seatmap.Numbered(2))
	res, err := s.reserve(trip.ID, 2)
	s.Require().NoError(err)

	after := s.release(trip.ID, res.Seats)

	s.Equal(TripScheduled, after.Status)
	s.Equal(2, after.CurrentAvailableSeats)
	s.Nil(after.StatusBeforeFull)
}

func (s *ManagerSuite) TestReleaseRestoresDelayedStatus() {
	trip := s.store.addTrip(1, seatmap.Numbered(1))
	t := s.store.trip(trip.ID)
	t.Status = TripDelayed
	s.Require().NoError(s.store.UpdateTripInventory(s.ctx, &t))

	res, err := s.reserve(trip.ID, 1)
	s.Require().NoError(err)
	s.Equal(TripFull, s.store.trip(trip.ID).Status)

	s.Equal(TripDelayed, s.release(trip.ID, res.Seats).Status)
}

func (s *ManagerSuite) TestReleaseNeverReactivatesTerminalTrip() {
	trip := s.store.addTrip(2, seatmap.Numbered(2))
	res, err := s.reserve(trip.ID, 1)
	s.Require().NoError(err)

	t := s.store.trip(trip.ID)
	t.Status = TripCancelled
	s.Require().NoError(s.store.UpdateTripInventory(s.ctx, &t))

	after := s.release(trip.ID, res.Seats)
	s.Equal(TripCancelled, after.Status)
	s.Equal(2, after.CurrentAvailableSeats)
}

func (s *ManagerSuite) TestReleaseBeyondCapacityIsRejected() {
	trip := s.store.addTrip(2, seatmap.Numbered(2))
	res, err := s.reserve(trip.ID, 1)
	s.Require().NoError(err)
	updates := s.store.updates

	err = s.manager.WithTrips(s.ctx, []uuid.UUID{trip.ID}, func() error {
		_, err := s.manager.ReleaseSeats(s.ctx, s.store, trip.ID, append(res.Seats, "2"))
		return err
	})

	var appErr *common.AppError
	s.Require().True(errors.As(err, &appErr))
	s.Equal(http.StatusInternalServerError, appErr.Code)
	s.Equal(updates, s.store.updates)
	s.Equal(1, s.store.trip(trip.ID).CurrentAvailableSeats)
}

func (s *ManagerSuite) TestRequestedSeats() {
	trip := s.store.addTrip(4, seatmap.New([]string{"1A", "1B", "2A", "2B"}))

	res, err := s.reserve(trip.ID, 2, "2B", "1B")
	s.Require().NoError(err)
	s.Equal([]string{"1B", "2B"}, res.Seats, "returned in seat map order")

	_, err = s.reserve(trip.ID, 1, "2B")
	s.ErrorIs(err, domain.ErrSeatConflict)

	_, err = s.reserve(trip.ID, 1, "9Z")
	s.ErrorIs(err, domain.ErrInvalidSeatRequest)

	_, err = s.reserve(trip.ID, 2, "1A", "1A")
	s.ErrorIs(err, domain.ErrInvalidSeatRequest)

	_, err = s.reserve(trip.ID, 2, "1A")
	s.ErrorIs(err, domain.ErrInvalidSeatRequest)

	res, err = s.reserve(trip.ID, 1)
	s.Require().NoError(err)
	s.Equal([]string{"1A"}, res.Seats, "lowest free seat")
	s.Equal(1, s.store.trip(trip.ID).CurrentAvailableSeats)
}

func (s *ManagerSuite) TestFailedReservationChangesNothing() {
	trip := s.store.addTrip(2, seatmap.Numbered(2))
	_, err := s.reserve(trip.ID, 1, "1")
	s.Require().NoError(err)
	updates := s.store.updates

	_, err = s.reserve(trip.ID, 1, "1")
	s.ErrorIs(err, domain.ErrSeatConflict)
	s.Equal(updates, s.store.updates)
	s.Equal(1, s.store.trip(trip.ID).CurrentAvailableSeats)
}

func (s *ManagerSuite) TestNonBookableTrip() {
	trip := s.store.addTrip(2, seatmap.Numbered(2))
	t := s.store.trip(trip.ID)
	t.Status = TripCompleted
	s.Require().NoError(s.store.UpdateTripInventory(s.ctx, &t))

	_, err := s.reserve(trip.ID, 1)
	s.ErrorIs(err, domain.ErrTripNotBookable)
}

func (s *ManagerSuite) TestInvalidCount() {
	trip := s.store.addTrip(2, seatmap.Numbered(2))
	_, err := s.reserve(trip.ID, 0)
	s.ErrorIs(err, domain.ErrInvalidSeatRequest)
}

func (s *ManagerSuite) TestSeatMapSmallerThanCounter() {
	trip := s.store.addTrip(3, seatmap.Numbered(2))
	_, err := s.reserve(trip.ID, 3)
	s.ErrorIs(err, domain.ErrInsufficientCapacity)
}

func (s *ManagerSuite) TestAvailability() {
	trip := s.store.addTrip(3, seatmap.Numbered(3))
	_, err := s.reserve(trip.ID, 1, "2")
	s.Require().NoError(err)

	av, err := s.manager.Availability(s.ctx, s.store, trip.ID, time.Now())
	s.Require().NoError(err)
	s.Equal(2, av.CurrentAvailableSeats)
	s.Equal([]string{"1", "3"}, av.FreeSeatIDs)
	s.Equal(TripScheduled, av.Status)
}

func (s *ManagerSuite) TestAvailabilityFreesLapsedHolds() {
	trip := s.store.addTrip(2, seatmap.Numbered(2))
	res, err := s.reserve(trip.ID, 2)
	s.Require().NoError(err)
	s.Equal(TripFull, s.store.trip(trip.ID).Status)

	s.store.lapse(trip.ID, res.Seats[:1])

	av, err := s.manager.Availability(s.ctx, s.store, trip.ID, time.Now())
	s.Require().NoError(err)
	s.Equal(1, av.CurrentAvailableSeats)
	s.Equal([]string{"1"}, av.FreeSeatIDs)
	s.Equal(TripScheduled, av.Status)

	stored := s.store.trip(trip.ID)
	s.Equal(0, stored.CurrentAvailableSeats, "the read does not write")
	s.Equal(TripFull, stored.Status)
}

func (s *ManagerSuite) TestConcurrentReservationsNeverOversell() {
	const capacity = 5
	trip := s.store.addTrip(capacity, seatmap.Numbered(capacity))
	s.manager = NewManager(NewLocalLocker(), 5*time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var assigned []string
	failures := 0

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.reserve(trip.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.ErrorIs(err, domain.ErrInsufficientCapacity)
				failures++
				return
			}
			assigned = append(assigned, res.Seats...)
		}()
	}
	wg.Wait()

	s.Len(assigned, capacity)
	s.Len(seatmap.HeldSet(assigned), capacity, "seats are pairwise disjoint")
	s.Equal(35, failures)

	final := s.store.trip(trip.ID)
	s.Equal(0, final.CurrentAvailableSeats)
	s.Equal(TripFull, final.Status)
	s.Equal(final.InitialAvailableSeats, final.CurrentAvailableSeats+len(assigned))
}

func TestAcquire_BoundedWait(t *testing.T) {
	m := NewManager(NewLocalLocker(), 30*time.Millisecond)
	tripID := uuid.New()

	release, err := m.Acquire(context.Background(), tripID)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = m.Acquire(context.Background(), tripID)
	assert.ErrorIs(t, err, domain.ErrCapacityBusy)
	assert.True(t, domain.IsRetryable(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestAcquire_RepeatedReleaseKeepsNextHolder(t *testing.T) {
	m := NewManager(NewLocalLocker(), 30*time.Millisecond)
	tripID := uuid.New()

	first, err := m.Acquire(context.Background(), tripID)
	require.NoError(t, err)
	first()

	second, err := m.Acquire(context.Background(), tripID)
	require.NoError(t, err)
	defer second()

	first()
	_, err = m.Acquire(context.Background(), tripID)
	assert.ErrorIs(t, err, domain.ErrCapacityBusy)
}

func TestAcquire_CallerCancellationIsNotBusy(t *testing.T) {
	m := NewManager(NewLocalLocker(), time.Second)
	tripID := uuid.New()
	release, err := m.Acquire(context.Background(), tripID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = m.Acquire(ctx, tripID)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, domain.ErrCapacityBusy))
}

func TestAcquire_PartialFailureReleasesHeldLocks(t *testing.T) {
	locker := NewLocalLocker()
	m := NewManager(locker, 30*time.Millisecond)
	ids := SortTripIDs([]uuid.UUID{uuid.New(), uuid.New()})

	// Hold the higher id so the first lock succeeds and the second times out.
	release, err := m.Acquire(context.Background(), ids[1])
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), ids[0], ids[1])
	require.ErrorIs(t, err, domain.ErrCapacityBusy)
	release()

	assert.Equal(t, 0, locker.size())
}

func TestAcquire_OppositeOrderDoesNotDeadlock(t *testing.T) {
	m := NewManager(NewLocalLocker(), 5*time.Second)
	a, b := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), a, b)
			if assert.NoError(t, err) {
				release()
			}
		}()
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), b, a)
			if assert.NoError(t, err) {
				release()
			}
		}()
	}
	wg.Wait()
}

func TestSortTripIDs(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	assert.Equal(t, []uuid.UUID{a, b}, SortTripIDs([]uuid.UUID{b, a, b}))
}
