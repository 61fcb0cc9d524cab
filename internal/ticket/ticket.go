// Package ticket mints and renders the single-use codes gating physical
// access to a booked facility.
package ticket

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength  = 5
	codePrefix  = "TK"
)

// NewCode generates a ticket code of the form TK-20260310-A1B2C. The
// random suffix comes from crypto/rand: the code gates physical access,
// so it must not be guessable from prior codes.
func NewCode(now time.Time) (string, error) {
	suffix := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random ticket char: %w", err)
		}
		suffix[i] = codeCharset[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", codePrefix, now.Format("20060102"), string(suffix)), nil
}
