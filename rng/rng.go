// Package rng collects the two distinct randomness needs named in spec.md
// §6's external-collaborator list: cryptographically strong randomness for
// approval tokens, and ordinary randomness for retry jitter. Keeping them
// as separate types stops the cheap jitter source from ever being reached
// for where security actually matters.
package rng

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	mrand "math/rand"
)

// SecureToken returns a hex-encoded token with at least nBytes of
// crypto/rand entropy, suitable for approval tokens (spec.md §4.4, "Token
// generation": cryptographically strong, >=128 bits).
func SecureToken(nBytes int) (string, error) {
	if nBytes < 16 {
		nBytes = 16
	}
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("rng: generate secure token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SecureFloat64 returns a uniform float64 in [0,1) drawn from crypto/rand,
// for callers that need unpredictability rather than mere jitter (e.g.
// sampling decisions with security consequences).
func SecureFloat64() (float64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0, fmt.Errorf("rng: generate secure float: %w", err)
	}
	return float64(n.Int64()) / (1 << 53), nil
}

// Jitter is an ordinary (non-cryptographic) randomness source for backoff
// jitter, where unpredictability against an adversary is not a concern --
// only avoiding thundering-herd synchronization across callers.
type Jitter struct {
	r *mrand.Rand
}

// NewJitter constructs a Jitter seeded from a crypto/rand-derived seed, so
// distinct processes don't share math/rand's default sequence.
func NewJitter() *Jitter {
	seed, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	s := int64(1)
	if err == nil {
		s = seed.Int64()
	}
	return &Jitter{r: mrand.New(mrand.NewSource(s))} //nolint:gosec // jitter only, not security-sensitive
}

// Float64 returns a pseudo-random float64 in [0,1).
func (j *Jitter) Float64() float64 {
	return j.r.Float64() //nolint:gosec // jitter only, not security-sensitive
}

// Signed returns a pseudo-random float64 in [-1,1), used to jitter backoff
// durations symmetrically around their base value.
func (j *Jitter) Signed() float64 {
	return j.Float64()*2 - 1
}
