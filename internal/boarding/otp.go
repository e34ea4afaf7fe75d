// Package boarding issues and checks the one-time codes riders show the driver at boarding.
package boarding

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/richxcame/ride-booking/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the number of digits in a boarding code.
	CodeLength = 6
	// DefaultTTL is how long a boarding code stays valid when not capped by departure.
	DefaultTTL = 15 * time.Minute

	secretSize = 20
)

// Code is a freshly issued boarding code. Plain is handed to the rider once and
// never stored; Hash is what the booking keeps.
type Code struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// Verifier issues and checks boarding codes.
type Verifier struct {
	ttl  time.Duration
	cost int
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHashCost sets the bcrypt cost of stored codes.
func WithHashCost(cost int) Option {
	return func(v *Verifier) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			v.cost = cost
		}
	}
}

// NewVerifier creates a Verifier whose codes live for ttl.
func NewVerifier(ttl time.Duration, opts ...Option) *Verifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	v := &Verifier{ttl: ttl, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// TTL returns the configured code lifetime.
func (v *Verifier) TTL() time.Duration {
	return v.ttl
}

// ExpiryFor is min(now + ttl, departure).
func (v *Verifier) ExpiryFor(now, departure time.Time) time.Time {
	expires := now.Add(v.ttl)
	if !departure.IsZero() && departure.Before(expires) {
		return departure
	}
	return expires
}

// Issue generates a new code from a random HOTP secret.
func (v *Verifier) Issue(now, departure time.Time) (*Code, error) {
	plain, err := generateCode(now)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), v.cost)
	if err != nil {
		return nil, fmt.Errorf("hash boarding code: %w", err)
	}

	return &Code{
		Plain:     plain,
		Hash:      string(hash),
		ExpiresAt: v.ExpiryFor(now, departure).UTC(),
	}, nil
}

// Check validates code against a stored hash. Expiry is checked before the code itself.
func (v *Verifier) Check(hash string, expiresAt *time.Time, code string, now time.Time) error {
	if hash == "" || expiresAt == nil {
		return domain.ErrOtpMismatch.WithMessage("no boarding code has been issued")
	}
	if !now.Before(*expiresAt) {
		return domain.ErrOtpExpired
	}
	if len(code) != CodeLength {
		return domain.ErrOtpMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return domain.ErrOtpMismatch
	}
	return nil
}

func generateCode(now time.Time) (string, error) {
	raw := make([]byte, secretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate boarding secret: %w", err)
	}
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)

	code, err := hotp.GenerateCodeCustom(secret, uint64(now.Unix()), hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate boarding code: %w", err)
	}
	return code, nil
}
