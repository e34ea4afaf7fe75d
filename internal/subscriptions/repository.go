package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/pkg/database"
)

// Repository handles subscription data access. Over a pgx.Tx it is a LedgerStore.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new subscription repository
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// ========================================
// PLANS
// ========================================

const planColumns = `id, name, duration_value, duration_unit, rides_included, trial_days, price_cents, currency, created_at`

func scanPlan(row pgx.Row) (*SubscriptionPlan, error) {
	var p SubscriptionPlan
	var unit string
	if err := row.Scan(&p.ID, &p.Name, &p.DurationValue, &unit, &p.RidesIncluded, &p.TrialDays, &p.PriceCents, &p.Currency, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.DurationUnit = DurationUnit(unit)
	return &p, nil
}

// GetPlan retrieves a plan by ID
func (r *Repository) GetPlan(ctx context.Context, id uuid.UUID) (*SubscriptionPlan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound.WithMessage("plan %s not found", id)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// ListPlans lists all plans, cheapest first
func (r *Repository) ListPlans(ctx context.Context) ([]*SubscriptionPlan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY price_cents, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// ========================================
// SUBSCRIPTIONS
// ========================================

const subscriptionColumns = `
	id, user_id, plan_id, start_date, end_date, status, remaining_rides,
	valid_for_pickup_stop_id, valid_for_drop_off_stop_id, commute_type,
	cancelled_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*UserSubscription, error) {
	var s UserSubscription
	var status string
	var commute *string
	err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.StartDate, &s.EndDate, &status, &s.RemainingRides,
		&s.ValidForPickupStopID, &s.ValidForDropOffStopID, &commute,
		&s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = SubscriptionStatus(status)
	if commute != nil {
		ct := CommuteType(*commute)
		s.CommuteType = &ct
	}
	return &s, nil
}

func mapSubscriptionErr(id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSubscriptionNotFound.WithMessage("subscription %s not found", id)
	}
	return fmt.Errorf("failed to load subscription %s: %w", id, err)
}

// CreateSubscription inserts a new subscription
func (r *Repository) CreateSubscription(ctx context.Context, sub *UserSubscription) error {
	var commute *string
	if sub.CommuteType != nil {
		c := string(*sub.CommuteType)
		commute = &c
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO user_subscriptions (
			id, user_id, plan_id, start_date, end_date, status, remaining_rides,
			valid_for_pickup_stop_id, valid_for_drop_off_stop_id, commute_type,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		sub.ID, sub.UserID, sub.PlanID, sub.StartDate, sub.EndDate, string(sub.Status), sub.RemainingRides,
		sub.ValidForPickupStopID, sub.ValidForDropOffStopID, commute,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetSubscription loads a subscription without locking
func (r *Repository) GetSubscription(ctx context.Context, id uuid.UUID) (*UserSubscription, error) {
	s, err := scanSubscription(r.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE id = $1`, id))
	if err != nil {
		return nil, mapSubscriptionErr(id, err)
	}
	return s, nil
}

// GetSubscriptionForUpdate loads and row-locks a subscription
func (r *Repository) GetSubscriptionForUpdate(ctx context.Context, id uuid.UUID) (*UserSubscription, error) {
	s, err := scanSubscription(r.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapSubscriptionErr(id, err)
	}
	return s, nil
}

// TransitionSubscription writes the lifecycle fields if the row is still in from.
func (r *Repository) TransitionSubscription(ctx context.Context, sub *UserSubscription, from SubscriptionStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_subscriptions
		SET status = $3, start_date = $4, end_date = $5, remaining_rides = $6,
			cancelled_at = $7, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, sub.ID, string(from), string(sub.Status), sub.StartDate, sub.EndDate, sub.RemainingRides, sub.CancelledAt)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition.WithMessage("subscription %s is no longer %s", sub.ID, from)
	}
	return nil
}

// UpdateRemainingRides sets the ride counter
func (r *Repository) UpdateRemainingRides(ctx context.Context, subscriptionID uuid.UUID, remaining *int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_subscriptions SET remaining_rides = $2, updated_at = NOW() WHERE id = $1
	`, subscriptionID, remaining)
	if err != nil {
		return fmt.Errorf("failed to update remaining rides: %w", err)
	}
	return nil
}

// ========================================
// CONSUMPTION LEDGER
// ========================================

// GetConsumption returns the credit a booking drew, or nil
func (r *Repository) GetConsumption(ctx context.Context, bookingID uuid.UUID) (*RideConsumption, error) {
	var c RideConsumption
	err := r.db.QueryRow(ctx, `
		SELECT booking_id, subscription_id, consumed_at, restored_at
		FROM subscription_ride_consumptions
		WHERE booking_id = $1
		FOR UPDATE
	`, bookingID).Scan(&c.BookingID, &c.SubscriptionID, &c.ConsumedAt, &c.RestoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load consumption: %w", err)
	}
	return &c, nil
}

// InsertConsumption records a drawn credit
func (r *Repository) InsertConsumption(ctx context.Context, c *RideConsumption) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO subscription_ride_consumptions (booking_id, subscription_id, consumed_at)
		VALUES ($1, $2, $3)
	`, c.BookingID, c.SubscriptionID, c.ConsumedAt)
	if err != nil {
		return fmt.Errorf("failed to record consumption: %w", err)
	}
	return nil
}

// MarkConsumptionRestored stamps the credit as returned
func (r *Repository) MarkConsumptionRestored(ctx context.Context, bookingID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE subscription_ride_consumptions SET restored_at = $2
		WHERE booking_id = $1 AND restored_at IS NULL
	`, bookingID, at)
	if err != nil {
		return fmt.Errorf("failed to mark consumption restored: %w", err)
	}
	return nil
}

// CountConsumptions counts credits drawn and not returned
func (r *Repository) CountConsumptions(ctx context.Context, subscriptionID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM subscription_ride_consumptions
		WHERE subscription_id = $1 AND restored_at IS NULL
	`, subscriptionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count consumptions: %w", err)
	}
	return n, nil
}
