package booking

import (
	"crypto/rand"
	"fmt"
)

// CRNPrefix starts every customer reference number.
const CRNPrefix = "RB-"

// Crockford base32 leaves out I, L, O and U so references survive being read aloud.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const crnLength = 8

// NewCRN returns a random customer reference number such as RB-7K2M9QXD.
func NewCRN() (string, error) {
	raw := make([]byte, crnLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate crn: %w", err)
	}

	out := make([]byte, len(CRNPrefix)+crnLength)
	copy(out, CRNPrefix)
	for i, b := range raw {
		out[len(CRNPrefix)+i] = crockford[b&0x1f]
	}
	return string(out), nil
}
