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

import "errors"

var (
	// ErrInvalidTimelockPeriod is returned when a time-lock is outside 1..90 days.
	ErrInvalidTimelockPeriod = errors.New("recovery: timelock period must be between 1 and 90 days")

	// ErrInvalidKeySize is returned when a recovery key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("recovery: invalid key size")

	// ErrUnknownKeyPrefix is returned when a display string has no known method prefix.
	ErrUnknownKeyPrefix = errors.New("recovery: unknown key prefix")

	// ErrInvalidKeyEncoding is returned when a display string body is not valid base64.
	ErrInvalidKeyEncoding = errors.New("recovery: invalid key encoding")

	// ErrInvalidCommitment is returned when a commitment string cannot be decoded.
	ErrInvalidCommitment = errors.New("recovery: invalid commitment")

	// ErrUnknownMethod is returned for a method name other than timelock or shamir.
	ErrUnknownMethod = errors.New("recovery: unknown recovery method")

	// ErrCorruptRecoveryKey is returned when a decoded recovery key does not
	// hash to its own commitment.
	ErrCorruptRecoveryKey = errors.New("recovery: key does not match its commitment")

	// ErrInvalidState is returned when a Session operation is called in the wrong state.
	ErrInvalidState = errors.New("recovery: invalid session state")

	// ErrMethodMismatch is returned when shares are presented to a time-lock session.
	ErrMethodMismatch = errors.New("recovery: operation does not match recovery method")
)
