package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/internal/routes"
	"github.com/richxcame/ride-booking/internal/subscriptions"
	"github.com/richxcame/ride-booking/pkg/database"
)

// BookingRepository handles booking rows over a pool or a transaction.
type BookingRepository struct {
	db database.DBTX
}

// NewBookingRepository creates a booking repository
func NewBookingRepository(db database.DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, crn, user_id, scheduled_trip_id, pickup_stop_id, drop_off_stop_id,
	number_of_seats_booked, booked_seat_ids, round_trip_id, subscription_id, entitlement_consumed,
	base_fare_cents, discount_amount_cents, tax_amount_cents, tip_amount_cents, total_fare_paid_cents,
	currency, status, boarding_otp_hash, boarding_otp_expires_at, trip_departure_at, hold_expires_at,
	contact_phone, payment_details, cancellation_reason, cancelled_at, boarded_at, completed_at,
	created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status string
	var otpHash, phone, reason *string
	var payment []byte
	err := row.Scan(
		&b.ID, &b.CRN, &b.UserID, &b.ScheduledTripID, &b.PickupStopID, &b.DropOffStopID,
		&b.NumberOfSeatsBooked, &b.BookedSeatIDs, &b.RoundTripID, &b.SubscriptionID, &b.EntitlementConsumed,
		&b.BaseFareCents, &b.DiscountAmountCents, &b.TaxAmountCents, &b.TipAmountCents, &b.TotalFarePaidCents,
		&b.Currency, &status, &otpHash, &b.BoardingOTPExpiresAt, &b.TripDepartureAt, &b.HoldExpiresAt,
		&phone, &payment, &reason, &b.CancelledAt, &b.BoardedAt, &b.CompletedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = Status(status)
	if otpHash != nil {
		b.BoardingOTPHash = *otpHash
	}
	if phone != nil {
		b.ContactPhone = *phone
	}
	if reason != nil {
		b.CancellationReason = *reason
	}
	if len(payment) > 0 {
		var p PaymentDetails
		if err := json.Unmarshal(payment, &p); err != nil {
			return nil, fmt.Errorf("failed to decode payment details of %s: %w", b.ID, err)
		}
		b.Payment = &p
	}
	return &b, nil
}

func mapBookingErr(id uuid.UUID, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrBookingNotFound.WithMessage("booking %s not found", id)
	case database.IsLockNotAvailable(err):
		return domain.ErrCapacityBusy.WithCause(err)
	}
	return fmt.Errorf("failed to load booking %s: %w", id, err)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func encodePayment(p *PaymentDetails) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// GetBooking loads a booking without locking it
func (r *BookingRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, mapBookingErr(id, err)
	}
	return b, nil
}

// GetBookingForUpdate loads and row-locks a booking
func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapBookingErr(id, err)
	}
	return b, nil
}

// ListBookingsForUser returns a page of the user's bookings, newest first, and the total count
func (r *BookingRepository) ListBookingsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Booking, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
	}
	return bookings, total, rows.Err()
}

// InsertBooking stores a new booking
func (r *BookingRepository) InsertBooking(ctx context.Context, b *Booking) error {
	payment, err := encodePayment(b.Payment)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
	`,
		b.ID, b.CRN, b.UserID, b.ScheduledTripID, b.PickupStopID, b.DropOffStopID,
		b.NumberOfSeatsBooked, b.BookedSeatIDs, b.RoundTripID, b.SubscriptionID, b.EntitlementConsumed,
		b.BaseFareCents, b.DiscountAmountCents, b.TaxAmountCents, b.TipAmountCents, b.TotalFarePaidCents,
		b.Currency, string(b.Status), nullString(b.BoardingOTPHash), b.BoardingOTPExpiresAt, b.TripDepartureAt, b.HoldExpiresAt,
		nullString(b.ContactPhone), payment, nullString(b.CancellationReason), b.CancelledAt, b.BoardedAt, b.CompletedAt,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "bookings_crn_key" {
			return fmt.Errorf("booking reference %s collided: %w", b.CRN, err)
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// UpdateBooking writes the mutable fields of a booking
func (r *BookingRepository) UpdateBooking(ctx context.Context, b *Booking) error {
	payment, err := encodePayment(b.Payment)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET
			status = $2,
			entitlement_consumed = $3,
			tip_amount_cents = $4,
			total_fare_paid_cents = $5,
			boarding_otp_hash = $6,
			boarding_otp_expires_at = $7,
			hold_expires_at = $8,
			payment_details = $9,
			cancellation_reason = $10,
			cancelled_at = $11,
			boarded_at = $12,
			completed_at = $13,
			updated_at = $14
		WHERE id = $1
	`,
		b.ID, string(b.Status), b.EntitlementConsumed, b.TipAmountCents, b.TotalFarePaidCents,
		nullString(b.BoardingOTPHash), b.BoardingOTPExpiresAt, b.HoldExpiresAt, payment,
		nullString(b.CancellationReason), b.CancelledAt, b.BoardedAt, b.CompletedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound.WithMessage("booking %s not found", b.ID)
	}
	return nil
}

// ListExpiredHoldsForUpdate locks the trip's pending bookings whose hold ended
func (r *BookingRepository) ListExpiredHoldsForUpdate(ctx context.Context, tripID uuid.UUID, now time.Time) ([]*Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE scheduled_trip_id = $1
			AND status = 'pending_payment'
			AND hold_expires_at <= $2
		ORDER BY created_at
		FOR UPDATE
	`, tripID, now)
	if err != nil {
		if database.IsLockNotAvailable(err) {
			return nil, domain.ErrCapacityBusy.WithCause(err)
		}
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		if database.IsLockNotAvailable(err) {
			return nil, domain.ErrCapacityBusy.WithCause(err)
		}
		return nil, err
	}
	return out, nil
}

// SeatsBoarded reports whether another ongoing booking of the trip sits in any of seats
func (r *BookingRepository) SeatsBoarded(ctx context.Context, tripID uuid.UUID, seats []string, exclude uuid.UUID) (bool, error) {
	if len(seats) == 0 {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE scheduled_trip_id = $1
				AND status = 'ongoing'
				AND id <> $3
				AND booked_seat_ids && $2
		)
	`, tripID, seats, exclude).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check boarded seats: %w", err)
	}
	return exists, nil
}

// PgStore is the Postgres-backed Store.
type PgStore struct {
	*BookingRepository
	*inventory.TripRepository

	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPgStore creates a store. Row lock waits inside transactions are bounded
// by lockTimeout; zero leaves the server default.
func NewPgStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PgStore {
	return &PgStore{
		BookingRepository: NewBookingRepository(pool),
		TripRepository:    inventory.NewTripRepository(pool),
		pool:              pool,
		lockTimeout:       lockTimeout,
	}
}

type pgTx struct {
	*BookingRepository
	*inventory.TripRepository
	*subscriptions.Repository
	*routes.StopRepository
}

// InTx runs fn in one transaction, committing when it returns nil.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := database.SetLockTimeout(ctx, tx, s.lockTimeout.Milliseconds()); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
		return fn(&pgTx{
			BookingRepository: NewBookingRepository(tx),
			TripRepository:    inventory.NewTripRepository(tx),
			Repository:        subscriptions.NewRepository(tx),
			StopRepository:    routes.NewStopRepository(tx),
		})
	})
}
