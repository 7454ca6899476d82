// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-veil.
//
// go-veil is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package secretsharing

import (
	"fmt"
	"io"

	"github.com/jeremyhahn/go-veil/pkg/crypto/gf256"
	"github.com/jeremyhahn/go-veil/pkg/crypto/rand"
)

// MaxShares is the largest number of shares a split can produce. Indexes are
// nonzero field elements.
const MaxShares = 255

// ShareConfig configures secret sharing parameters.
type ShareConfig struct {
	Threshold   int // T - minimum shares needed to reconstruct
	TotalShares int // N - total shares to create
}

// Validate checks 2 <= Threshold <= TotalShares <= 255.
func (c *ShareConfig) Validate() error {
	if c.Threshold < 2 {
		return fmt.Errorf("%w, got %d", ErrThresholdTooLow, c.Threshold)
	}
	if c.Threshold > c.TotalShares {
		return fmt.Errorf("%w: threshold %d, total shares %d", ErrThresholdExceedsShares, c.Threshold, c.TotalShares)
	}
	if c.TotalShares > MaxShares {
		return fmt.Errorf("%w, got %d", ErrTooManyShares, c.TotalShares)
	}
	return nil
}

// Share is one guardian's portion of a split secret. Payload holds one
// field evaluation per secret byte.
type Share struct {
	Index       byte   `json:"index"`
	Threshold   int    `json:"threshold"`
	TotalShares int    `json:"totalShares"`
	Payload     []byte `json:"payload"`
}

// Option configures a Shamir instance.
type Option func(*Shamir)

// WithRandom sets the coefficient entropy source.
func WithRandom(r io.Reader) Option {
	return func(s *Shamir) {
		if r != nil {
			s.random = r
		}
	}
}

// Shamir splits and combines secrets for one (T, N) configuration. It holds
// no secret material between calls and is safe for concurrent use if its
// random source is.
type Shamir struct {
	config ShareConfig
	random io.Reader
}

// NewShamir creates a new Shamir instance with the given configuration.
func NewShamir(config *ShareConfig, opts ...Option) (*Shamir, error) {
	if config == nil {
		return nil, fmt.Errorf("secretsharing: config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Shamir{
		config: *config,
		random: rand.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns a copy of the instance configuration.
func (s *Shamir) Config() ShareConfig {
	return s.config
}

// Split divides a secret into TotalShares shares with indexes 1..N.
func (s *Shamir) Split(secret []byte) ([]Share, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	n, t := s.config.TotalShares, s.config.Threshold
	shares := make([]Share, n)
	for i := range shares {
		shares[i] = Share{
			Index:       byte(i + 1),
			Threshold:   t,
			TotalShares: n,
			Payload:     make([]byte, len(secret)),
		}
	}

	poly := make(polynomial, t)
	defer poly.wipe()

	for b, secretByte := range secret {
		if err := newPolynomial(poly, secretByte, s.random); err != nil {
			return nil, err
		}
		for i := range shares {
			shares[i].Payload[b] = poly.evaluate(shares[i].Index)
		}
	}

	return shares, nil
}

// Combine reconstructs the secret using this instance's threshold as the
// declared threshold, ignoring the one carried by the shares.
func (s *Shamir) Combine(shares []Share) ([]byte, error) {
	return combine(shares, s.config.Threshold)
}

// Split is a convenience wrapper around NewShamir and Shamir.Split using the
// default random source.
func Split(secret []byte, totalShares, threshold int) ([]Share, error) {
	s, err := NewShamir(&ShareConfig{Threshold: threshold, TotalShares: totalShares})
	if err != nil {
		return nil, err
	}
	return s.Split(secret)
}

// Combine reconstructs a secret from shares, taking the declared threshold
// from the first share. The result is not checked for integrity.
func Combine(shares []Share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares supplied", ErrMalformedShares)
	}
	return combine(shares, shares[0].Threshold)
}

func combine(shares []Share, threshold int) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares supplied", ErrMalformedShares)
	}
	if threshold < 2 || threshold > MaxShares {
		return nil, fmt.Errorf("%w: declared threshold %d", ErrMalformedShares, threshold)
	}
	if len(shares) < threshold {
		return nil, &InsufficientSharesError{Threshold: threshold, Have: len(shares)}
	}
	if err := validateShares(shares); err != nil {
		return nil, err
	}

	basis, err := lagrangeBasisAtZero(shares)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, len(shares[0].Payload))
	for b := range secret {
		var acc byte
		for i := range shares {
			acc = gf256.Add(acc, gf256.Mul(shares[i].Payload[b], basis[i]))
		}
		secret[b] = acc
	}
	return secret, nil
}

// validateShares rejects index 0, empty or mismatched payloads, and
// duplicate indexes before any field arithmetic runs.
func validateShares(shares []Share) error {
	size := len(shares[0].Payload)
	if size == 0 {
		return fmt.Errorf("%w: share %d has an empty payload", ErrMalformedShares, shares[0].Index)
	}

	var seen [256]bool
	for i, share := range shares {
		if share.Index == 0 {
			return fmt.Errorf("%w: share %d has reserved index 0", ErrMalformedShares, i)
		}
		if len(share.Payload) != size {
			return fmt.Errorf("%w: share %d payload is %d bytes, expected %d",
				ErrMalformedShares, share.Index, len(share.Payload), size)
		}
		if seen[share.Index] {
			return fmt.Errorf("%w: %d", ErrDuplicateShareIndex, share.Index)
		}
		seen[share.Index] = true
	}
	return nil
}

// lagrangeBasisAtZero returns L_i(0) = prod_{j != i} x_j / (x_j - x_i) for
// each share. The basis depends only on the indexes, so it is computed once
// and reused for every byte position. Numerator and denominator are
// accumulated separately so each basis value needs a single inversion.
func lagrangeBasisAtZero(shares []Share) ([]byte, error) {
	basis := make([]byte, len(shares))
	for i := range shares {
		xi := shares[i].Index
		var num, den byte = 1, 1
		for j := range shares {
			if i == j {
				continue
			}
			xj := shares[j].Index
			num = gf256.Mul(num, xj)
			den = gf256.Mul(den, gf256.Sub(xj, xi))
		}
		inv, err := gf256.Inverse(den)
		if err != nil {
			return nil, fmt.Errorf("secretsharing: interpolation failed: %w", err)
		}
		basis[i] = gf256.Mul(num, inv)
	}
	return basis, nil
}
