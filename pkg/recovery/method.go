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

package recovery

import (
	"fmt"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
)

const (
	// MinTimelockDays is the shortest waiting period the ledger accepts.
	MinTimelockDays = 1

	// MaxTimelockDays is the longest waiting period the ledger accepts.
	MaxTimelockDays = 90
)

// MethodKind names a recovery method on the wire.
type MethodKind string

const (
	MethodTimeLock MethodKind = "timelock"
	MethodShamir   MethodKind = "shamir"
)

// Prefix returns the display prefix for keys of this kind.
func (k MethodKind) Prefix() string {
	switch k {
	case MethodTimeLock:
		return PrefixTimeLock
	case MethodShamir:
		return PrefixShamir
	default:
		return ""
	}
}

// ParseMethodKind parses "timelock" or "shamir".
func ParseMethodKind(s string) (MethodKind, error) {
	switch MethodKind(s) {
	case MethodTimeLock, MethodShamir:
		return MethodKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Method is the recovery method attached to a RecoveryKey. It is
// implemented only by TimeLock and Shamir.
type Method interface {
	// Kind returns the method's wire name.
	Kind() MethodKind

	// MethodName returns the wire name as a string.
	MethodName() string

	// Validate checks the method parameters.
	Validate() error

	sealed()
}

// TimeLock recovers with the key itself after a ledger waiting period.
type TimeLock struct {
	Days int
}

func (TimeLock) Kind() MethodKind {
	return MethodTimeLock
}

func (TimeLock) MethodName() string {
	return string(MethodTimeLock)
}

func (TimeLock) sealed() {}

func (t TimeLock) String() string {
	return fmt.Sprintf("timelock(%dd)", t.Days)
}

// Validate checks MinTimelockDays <= Days <= MaxTimelockDays.
func (t TimeLock) Validate() error {
	if t.Days < MinTimelockDays || t.Days > MaxTimelockDays {
		return fmt.Errorf("%w, got %d", ErrInvalidTimelockPeriod, t.Days)
	}
	return nil
}

// Shamir recovers by combining Threshold of TotalShares guardian shares.
type Shamir struct {
	TotalShares int
	Threshold   int
}

func (Shamir) Kind() MethodKind {
	return MethodShamir
}

func (Shamir) MethodName() string {
	return string(MethodShamir)
}

func (Shamir) sealed() {}

func (s Shamir) String() string {
	return fmt.Sprintf("shamir(%d-of-%d)", s.Threshold, s.TotalShares)
}

// Validate checks 2 <= Threshold <= TotalShares <= 255.
func (s Shamir) Validate() error {
	cfg := s.ShareConfig()
	return cfg.Validate()
}

// ShareConfig returns the splitter configuration for this method.
func (s Shamir) ShareConfig() secretsharing.ShareConfig {
	return secretsharing.ShareConfig{
		Threshold:   s.Threshold,
		TotalShares: s.TotalShares,
	}
}

// LockDuration returns the ledger waiting period for m. Shamir recoveries
// are not time-locked.
func LockDuration(m Method) int {
	if tl, ok := m.(TimeLock); ok {
		return tl.Days
	}
	return 0
}
