package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/seatmap"
	"github.com/richxcame/ride-booking/pkg/database"
)

// TripRepository reads and writes trip inventory. Built over a pool it serves
// reads; built over a pgx.Tx it is a TripStore.
type TripRepository struct {
	db database.DBTX
}

// NewTripRepository creates a repository over a pool or transaction.
func NewTripRepository(db database.DBTX) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `
	id, route_id, vehicle_id, departure_at, estimated_arrival_at,
	status, status_before_full,
	initial_available_seats, current_available_seats,
	price_per_seat_cents, currency, created_at, updated_at`

func scanTrip(row pgx.Row) (*ScheduledTrip, error) {
	var trip ScheduledTrip
	var status string
	var before *string
	err := row.Scan(
		&trip.ID, &trip.RouteID, &trip.VehicleID, &trip.DepartureAt, &trip.EstimatedArrivalAt,
		&status, &before,
		&trip.InitialAvailableSeats, &trip.CurrentAvailableSeats,
		&trip.PricePerSeatCents, &trip.Currency, &trip.CreatedAt, &trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	trip.Status = TripStatus(status)
	if before != nil {
		s := TripStatus(*before)
		trip.StatusBeforeFull = &s
	}
	return &trip, nil
}

func mapTripErr(tripID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrTripNotFound.WithMessage("scheduled trip %s not found", tripID)
	case database.IsLockNotAvailable(err):
		return domain.ErrCapacityBusy.WithCause(err)
	}
	return fmt.Errorf("failed to load trip %s: %w", tripID, err)
}

// GetTrip loads a trip without locking it.
func (r *TripRepository) GetTrip(ctx context.Context, tripID uuid.UUID) (*ScheduledTrip, error) {
	trip, err := scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM scheduled_trips WHERE id = $1`, tripID))
	if err != nil {
		return nil, mapTripErr(tripID, err)
	}
	return trip, nil
}

// GetTripForUpdate loads and row-locks a trip. A lock wait beyond the
// transaction's lock_timeout surfaces as ErrCapacityBusy.
func (r *TripRepository) GetTripForUpdate(ctx context.Context, tripID uuid.UUID) (*ScheduledTrip, error) {
	trip, err := scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM scheduled_trips WHERE id = $1 FOR UPDATE`, tripID))
	if err != nil {
		return nil, mapTripErr(tripID, err)
	}
	return trip, nil
}

// GetSeatMap resolves the seat layout of a vehicle. Vehicles that are not
// active have no bookable seats.
func (r *TripRepository) GetSeatMap(ctx context.Context, vehicleID uuid.UUID) (seatmap.SeatMap, error) {
	query := `
		SELECT vt.id, vt.name, vt.passenger_capacity, vt.simple_seat_identifiers,
			v.id, v.vehicle_type_id, v.registration_number, v.actual_passenger_capacity, v.status
		FROM vehicles v
		JOIN vehicle_types vt ON vt.id = v.vehicle_type_id
		WHERE v.id = $1
	`

	var vt seatmap.VehicleType
	var v seatmap.Vehicle
	var status string
	err := r.db.QueryRow(ctx, query, vehicleID).Scan(
		&vt.ID, &vt.Name, &vt.PassengerCapacity, &vt.SimpleSeatIdentifiers,
		&v.ID, &v.VehicleTypeID, &v.RegistrationNumber, &v.ActualPassengerCapacity, &status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return seatmap.SeatMap{}, fmt.Errorf("vehicle %s not found", vehicleID)
		}
		return seatmap.SeatMap{}, fmt.Errorf("failed to load seat map: %w", err)
	}
	v.Status = seatmap.VehicleStatus(status)
	if v.Status != seatmap.VehicleActive {
		return seatmap.SeatMap{}, domain.ErrTripNotBookable.WithMessage("vehicle %s is %s", v.RegistrationNumber, v.Status)
	}

	return seatmap.ForVehicle(vt, v), nil
}

// HeldSeats lists seats assigned to the trip's pending, confirmed and ongoing bookings.
func (r *TripRepository) HeldSeats(ctx context.Context, tripID uuid.UUID) ([]string, error) {
	query := `
		SELECT unnest(booked_seat_ids)
		FROM bookings
		WHERE scheduled_trip_id = $1
			AND status IN ('pending_payment', 'confirmed', 'ongoing')
	`

	rows, err := r.db.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list held seats: %w", err)
	}
	defer rows.Close()

	var seats []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seats = append(seats, id)
	}
	return seats, rows.Err()
}

// LapsedHoldSeats lists seats of the trip's pending bookings whose hold is over.
func (r *TripRepository) LapsedHoldSeats(ctx context.Context, tripID uuid.UUID, now time.Time) ([]string, error) {
	query := `
		SELECT unnest(booked_seat_ids)
		FROM bookings
		WHERE scheduled_trip_id = $1
			AND status = 'pending_payment'
			AND hold_expires_at <= $2
	`

	rows, err := r.db.Query(ctx, query, tripID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list lapsed holds: %w", err)
	}
	seats, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan lapsed holds: %w", err)
	}
	return seats, nil
}

// UpdateTripInventory writes the seat count and status.
func (r *TripRepository) UpdateTripInventory(ctx context.Context, trip *ScheduledTrip) error {
	var before *string
	if trip.StatusBeforeFull != nil {
		s := string(*trip.StatusBeforeFull)
		before = &s
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE scheduled_trips
		SET current_available_seats = $2, status = $3, status_before_full = $4, updated_at = NOW()
		WHERE id = $1
	`, trip.ID, trip.CurrentAvailableSeats, string(trip.Status), before)
	if err != nil {
		return fmt.Errorf("failed to update trip inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTripNotFound.WithMessage("scheduled trip %s not found", trip.ID)
	}
	return nil
}
