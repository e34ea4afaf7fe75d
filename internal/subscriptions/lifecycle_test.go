package subscriptions

import (
	"testing"
	"time"

	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, start.AddDate(0, 0, 7), PeriodEnd(&SubscriptionPlan{DurationValue: 7, DurationUnit: DurationDay}, start))
	assert.Equal(t, start.AddDate(0, 1, 0), PeriodEnd(&SubscriptionPlan{DurationValue: 1, DurationUnit: DurationMonth}, start))
	assert.Equal(t, start.AddDate(1, 0, 0), PeriodEnd(&SubscriptionPlan{DurationValue: 1, DurationUnit: DurationYear}, start))
}

func TestActivate(t *testing.T) {
	paidAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("straight to active", func(t *testing.T) {
		sub := &UserSubscription{Status: StatusPendingPayment}
		plan := &SubscriptionPlan{DurationValue: 1, DurationUnit: DurationMonth, RidesIncluded: intPtr(20)}

		require.NoError(t, Activate(sub, plan, paidAt))
		assert.Equal(t, StatusActive, sub.Status)
		assert.Equal(t, 20, *sub.RemainingRides)
		assert.Equal(t, paidAt.AddDate(0, 1, 0), sub.EndDate)
	})

	t.Run("trial first", func(t *testing.T) {
		sub := &UserSubscription{Status: StatusPendingPayment}
		plan := &SubscriptionPlan{DurationValue: 30, DurationUnit: DurationDay, TrialDays: 7}

		require.NoError(t, Activate(sub, plan, paidAt))
		assert.Equal(t, StatusTrial, sub.Status)
		assert.Nil(t, sub.RemainingRides)
		assert.Equal(t, paidAt.AddDate(0, 0, 37), sub.EndDate)
	})

	t.Run("only from pending payment", func(t *testing.T) {
		sub := &UserSubscription{Status: StatusActive}
		assert.ErrorIs(t, Activate(sub, &SubscriptionPlan{}, paidAt), domain.ErrInvalidTransition)
	})
}

func TestCancelAndExpire(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	sub := &UserSubscription{Status: StatusTrial, EndDate: now.Add(time.Hour)}
	assert.False(t, Expired(sub, now))
	assert.True(t, Expired(sub, now.Add(time.Hour)))

	require.NoError(t, Cancel(sub, now))
	assert.Equal(t, StatusCancelled, sub.Status)
	assert.False(t, Expired(sub, now.Add(time.Hour)))
	assert.ErrorIs(t, Cancel(sub, now), domain.ErrInvalidTransition)
}
