package boarding

import (
	"strings"
	"testing"
	"time"

	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestVerifier() *Verifier {
	v := NewVerifier(15 * time.Minute)
	v.cost = bcrypt.MinCost
	return v
}

func TestIssue(t *testing.T) {
	v := newTestVerifier()
	now := time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)

	code, err := v.Issue(now, now.Add(2*time.Hour))
	require.NoError(t, err)

	assert.Len(t, code.Plain, CodeLength)
	assert.Equal(t, "", strings.Trim(code.Plain, "0123456789"))
	assert.NotEqual(t, code.Plain, code.Hash)
	assert.True(t, strings.HasPrefix(code.Hash, "$2"))
	assert.Equal(t, now.Add(15*time.Minute), code.ExpiresAt)
}

func TestIssue_CappedByDeparture(t *testing.T) {
	v := newTestVerifier()
	now := time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)

	code, err := v.Issue(now, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), code.ExpiresAt)
}

func TestIssue_CodesDiffer(t *testing.T) {
	v := newTestVerifier()
	now := time.Now()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := v.Issue(now, time.Time{})
		require.NoError(t, err)
		seen[code.Plain] = true
	}
	// Random secrets make a full collision run practically impossible.
	assert.Greater(t, len(seen), 1)
}

func TestCheck(t *testing.T) {
	v := newTestVerifier()
	issuedAt := time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)
	code, err := v.Issue(issuedAt, issuedAt.Add(time.Hour))
	require.NoError(t, err)

	wrong := "000000"
	if code.Plain == wrong {
		wrong = "111111"
	}

	tests := []struct {
		name string
		code string
		at   time.Time
		want error
	}{
		{"valid", code.Plain, issuedAt.Add(time.Minute), nil},
		{"mismatch", wrong, issuedAt.Add(time.Minute), domain.ErrOtpMismatch},
		{"short", "123", issuedAt.Add(time.Minute), domain.ErrOtpMismatch},
		{"expired", code.Plain, issuedAt.Add(15 * time.Minute), domain.ErrOtpExpired},
		// expiry wins over a wrong code
		{"expired and wrong", wrong, issuedAt.Add(20 * time.Minute), domain.ErrOtpExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(code.Hash, &code.ExpiresAt, tt.code, tt.at)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheck_NoCodeIssued(t *testing.T) {
	err := newTestVerifier().Check("", nil, "123456", time.Now())
	assert.ErrorIs(t, err, domain.ErrOtpMismatch)
}
