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
	"errors"
	"fmt"
)

var (
	// ErrThresholdTooLow is returned when the threshold is below 2.
	ErrThresholdTooLow = errors.New("secretsharing: threshold must be at least 2")

	// ErrThresholdExceedsShares is returned when the threshold is larger
	// than the number of shares.
	ErrThresholdExceedsShares = errors.New("secretsharing: threshold exceeds total shares")

	// ErrTooManyShares is returned when more than 255 shares are requested.
	ErrTooManyShares = errors.New("secretsharing: total shares must be at most 255")

	// ErrEmptySecret is returned when splitting a zero-length secret.
	ErrEmptySecret = errors.New("secretsharing: secret cannot be empty")

	// ErrInsufficientShares matches *InsufficientSharesError via errors.Is.
	ErrInsufficientShares = errors.New("secretsharing: insufficient shares")

	// ErrDuplicateShareIndex is returned when two shares carry the same index.
	ErrDuplicateShareIndex = errors.New("secretsharing: duplicate share index")

	// ErrMalformedShares is returned for index 0, empty or mismatched payloads,
	// or shares that declare an impossible threshold.
	ErrMalformedShares = errors.New("secretsharing: malformed shares")
)

// InsufficientSharesError reports how many more shares a reconstruction needs.
type InsufficientSharesError struct {
	Threshold int
	Have      int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("secretsharing: insufficient shares: need %d more (have %d, threshold %d)",
		e.Missing(), e.Have, e.Threshold)
}

// Missing returns the number of additional shares required.
func (e *InsufficientSharesError) Missing() int {
	return e.Threshold - e.Have
}

// Is lets errors.Is(err, ErrInsufficientShares) match.
func (e *InsufficientSharesError) Is(target error) bool {
	return target == ErrInsufficientShares
}
