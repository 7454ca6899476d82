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

// Package ledger records recovery commitments and enforces the time-locked
// recovery lifecycle around them.
//
// A ledger entry holds an owner's commitment, the recovery method name and
// the waiting period. It never holds a recovery key or a share payload.
// Recovery follows:
//
//	RecordCommitment -> InitiateRecovery -> ExecuteRecovery
//	                                     \-> CancelRecovery
//
// InitiateRecovery starts the clock; ExecuteRecovery succeeds once the
// unlock time has passed and the presented key hashes to the recorded
// commitment. Shamir entries unlock immediately since the guardian quorum
// is the delay.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jeremyhahn/go-veil/pkg/recovery"
)

var (
	// ErrNotFound is returned when an owner has no recorded commitment.
	ErrNotFound = errors.New("ledger: no commitment recorded")

	// ErrRecoveryAlreadyActive is returned when initiating while a recovery is pending.
	ErrRecoveryAlreadyActive = errors.New("ledger: recovery already active")

	// ErrNoActiveRecovery is returned when executing or cancelling with nothing pending.
	ErrNoActiveRecovery = errors.New("ledger: no active recovery")

	// ErrTimelockNotExpired is returned when executing before the unlock time.
	ErrTimelockNotExpired = errors.New("ledger: timelock has not expired")

	// ErrCommitmentMismatch is returned when the presented key does not match
	// the recorded commitment.
	ErrCommitmentMismatch = errors.New("ledger: recovery key does not match commitment")

	// ErrInvalidProof is returned when no key is presented.
	ErrInvalidProof = errors.New("ledger: invalid recovery proof")

	// ErrInvalidCommitment is returned when recording a zero commitment.
	ErrInvalidCommitment = errors.New("ledger: invalid commitment")

	// ErrTooManyAttempts is returned when an owner exceeds the allowed rate
	// of recovery proofs.
	ErrTooManyAttempts = errors.New("ledger: too many recovery attempts")
)

// Entry is the ledger record for one owner.
type Entry struct {
	Owner          string              `json:"owner"`
	RequestID      string              `json:"requestId,omitempty"`
	Commitment     recovery.Commitment `json:"commitment"`
	Method         recovery.MethodKind `json:"method"`
	TimelockDays   int                 `json:"timelockDays"`
	RecordedAt     time.Time           `json:"recordedAt"`
	RecoveryActive bool                `json:"recoveryActive"`
	InitiatedAt    *time.Time          `json:"initiatedAt,omitempty"`
	UnlockAt       *time.Time          `json:"unlockAt,omitempty"`
	ExecutedAt     *time.Time          `json:"executedAt,omitempty"`
	CancelledAt    *time.Time          `json:"cancelledAt,omitempty"`
}

// Unlocked reports whether an active recovery may be executed at now.
func (e *Entry) Unlocked(now time.Time) bool {
	return e.RecoveryActive && e.UnlockAt != nil && !now.Before(*e.UnlockAt)
}

// Ledger stores commitments and runs the recovery lifecycle.
type Ledger interface {
	// RecordCommitment records commitment for owner, superseding any
	// previous entry and any pending recovery.
	RecordCommitment(ctx context.Context, owner string, commitment recovery.Commitment, method recovery.Method) (*Entry, error)

	// Get returns owner's entry or ErrNotFound.
	Get(ctx context.Context, owner string) (*Entry, error)

	// List returns the owners with a recorded commitment.
	List(ctx context.Context) ([]string, error)

	// InitiateRecovery starts a recovery and sets its unlock time.
	InitiateRecovery(ctx context.Context, owner string) (*Entry, error)

	// ExecuteRecovery completes a pending recovery with the recovery key.
	ExecuteRecovery(ctx context.Context, owner string, candidateKey []byte) (*Entry, error)

	// CancelRecovery aborts a pending recovery.
	CancelRecovery(ctx context.Context, owner string) (*Entry, error)
}
