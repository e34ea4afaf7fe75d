package booking

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingPayment, StatusConfirmed, true},
		{StatusPendingPayment, StatusCancelledByUser, true},
		{StatusPendingPayment, StatusCancelledByAdmin, true},
		{StatusPendingPayment, StatusOngoing, false},
		{StatusConfirmed, StatusOngoing, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusCancelledByAdmin, true},
		{StatusConfirmed, StatusCompleted, false},
		{StatusOngoing, StatusCompleted, true},
		{StatusOngoing, StatusCancelledByUser, false},
		{StatusCompleted, StatusOngoing, false},
		{StatusCancelledByUser, StatusConfirmed, false},
		{StatusNoShow, StatusOngoing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelledByUser, StatusCancelledByAdmin, StatusNoShow} {
		assert.True(t, s.Terminal(), s)
		assert.False(t, s.HoldsSeats(), s)
	}
	for _, s := range []Status{StatusPendingPayment, StatusConfirmed, StatusOngoing} {
		assert.False(t, s.Terminal(), s)
		assert.True(t, s.HoldsSeats(), s)
	}
	assert.False(t, Status("boarding").Valid())
	assert.Equal(t, StatusCancelledByAdmin, ActorAdmin.CancelledStatus())
	assert.Equal(t, StatusCancelledByUser, ActorUser.CancelledStatus())
}

func TestComputeFare(t *testing.T) {
	tests := []struct {
		name      string
		price     int64
		seats     int
		covered   bool
		taxBps    int
		want      Fare
		wantTotal int64
	}{
		{"no tax", 1500, 2, false, 0, Fare{BaseCents: 3000}, 3000},
		{"tax rounds half up", 1005, 1, false, 1000, Fare{BaseCents: 1005, TaxCents: 101}, 1106},
		{"subscription covers one seat", 1500, 3, true, 1000, Fare{BaseCents: 4500, DiscountCents: 1500, TaxCents: 300}, 3300},
		{"fully covered single seat", 1500, 1, true, 1000, Fare{BaseCents: 1500, DiscountCents: 1500}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFare(tt.price, tt.seats, tt.covered, tt.taxBps)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantTotal, got.TotalCents())
		})
	}
}

func TestDueFareCents(t *testing.T) {
	b := &Booking{BaseFareCents: 3000, DiscountAmountCents: 1500, TaxAmountCents: 150, TipAmountCents: 200}
	assert.Equal(t, int64(1650), b.DueFareCents())
}

func TestNewCRN(t *testing.T) {
	pattern := regexp.MustCompile(`^RB-[0-9ABCDEFGHJKMNPQRSTVWXYZ]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		crn, err := NewCRN()
		require.NoError(t, err)
		assert.Regexp(t, pattern, crn)
		seen[crn] = true
	}
	assert.Greater(t, len(seen), 195)
}
