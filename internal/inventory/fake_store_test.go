package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/seatmap"
)

// memStore is a single-trip-set TripStore; seat holds are tracked per reservation.
type memStore struct {
	mu      sync.Mutex
	trips   map[uuid.UUID]*ScheduledTrip
	maps    map[uuid.UUID]seatmap.SeatMap
	held    map[uuid.UUID][]string
	lapsed  map[uuid.UUID][]string
	updates int
}

func newMemStore() *memStore {
	return &memStore{
		trips: make(map[uuid.UUID]*ScheduledTrip),
		maps:  make(map[uuid.UUID]seatmap.SeatMap),
		held:   make(map[uuid.UUID][]string),
		lapsed: make(map[uuid.UUID][]string),
	}
}

func (s *memStore) addTrip(capacity int, seats seatmap.SeatMap) *ScheduledTrip {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip := &ScheduledTrip{
		ID:                    uuid.New(),
		VehicleID:             uuid.New(),
		Status:                TripScheduled,
		InitialAvailableSeats: capacity,
		CurrentAvailableSeats: capacity,
		PricePerSeatCents:     1500,
		Currency:              "USD",
	}
	s.trips[trip.ID] = trip
	s.maps[trip.VehicleID] = seats
	return trip
}

func (s *memStore) hold(tripID uuid.UUID, seats []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[tripID] = append(s.held[tripID], seats...)
}

func (s *memStore) unhold(tripID uuid.UUID, seats []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := seatmap.HeldSet(seats)
	kept := s.held[tripID][:0]
	for _, id := range s.held[tripID] {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	s.held[tripID] = kept
}

func (s *memStore) trip(id uuid.UUID) ScheduledTrip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.trips[id]
}

func (s *memStore) GetTrip(ctx context.Context, tripID uuid.UUID) (*ScheduledTrip, error) {
	return s.GetTripForUpdate(ctx, tripID)
}

func (s *memStore) GetTripForUpdate(_ context.Context, tripID uuid.UUID) (*ScheduledTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return nil, domain.ErrTripNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) GetSeatMap(_ context.Context, vehicleID uuid.UUID) (seatmap.SeatMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maps[vehicleID], nil
}

func (s *memStore) HeldSeats(_ context.Context, tripID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.held[tripID]))
	copy(out, s.held[tripID])
	return out, nil
}

// lapse marks held seats as belonging to a hold that has run out.
func (s *memStore) lapse(tripID uuid.UUID, seats []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lapsed[tripID] = append(s.lapsed[tripID], seats...)
}

func (s *memStore) LapsedHoldSeats(_ context.Context, tripID uuid.UUID, _ time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lapsed[tripID]))
	copy(out, s.lapsed[tripID])
	return out, nil
}

func (s *memStore) UpdateTripInventory(_ context.Context, trip *ScheduledTrip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *trip
	s.trips[trip.ID] = &cp
	s.updates++
	return nil
}
