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

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-veil/pkg/correlation"
	"github.com/jeremyhahn/go-veil/pkg/logging"
	"github.com/jeremyhahn/go-veil/pkg/metrics"
	"github.com/jeremyhahn/go-veil/pkg/ratelimit"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
	"github.com/jeremyhahn/go-veil/pkg/storage"
)

const day = 24 * time.Hour

// Option configures a StoreLedger.
type Option func(*StoreLedger)

// WithClock sets the time source used for timestamps and unlock checks.
func WithClock(clock func() time.Time) Option {
	return func(l *StoreLedger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *StoreLedger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithAttemptLimiter throttles recovery proofs per owner. Attempts beyond
// the limit fail with ErrTooManyAttempts before the key is checked.
func WithAttemptLimiter(limiter *ratelimit.Limiter) Option {
	return func(l *StoreLedger) {
		l.attempts = limiter
	}
}

// StoreLedger is a Ledger persisted as JSON entries under ledger/{owner}.json
// in a storage.Backend. Read-modify-write cycles are serialized by a mutex.
type StoreLedger struct {
	mu       sync.Mutex
	backend  storage.Backend
	clock    func() time.Time
	logger   *logging.Logger
	attempts *ratelimit.Limiter
}

// NewStoreLedger creates a ledger over backend.
func NewStoreLedger(backend storage.Backend, opts ...Option) *StoreLedger {
	l := &StoreLedger{
		backend: backend,
		clock:   time.Now,
		logger:  logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordCommitment records commitment for owner. An existing entry is
// replaced and a pending recovery on it is dropped.
func (l *StoreLedger) RecordCommitment(ctx context.Context, owner string, commitment recovery.Commitment, method recovery.Method) (entry *Entry, err error) {
	start := time.Now()
	methodName := metrics.MethodNone
	if method != nil {
		methodName = method.MethodName()
	}
	defer func() { record(metrics.OpLedgerRecord, methodName, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateID(owner); err != nil {
		return nil, err
	}
	if commitment.IsZero() {
		return nil, ErrInvalidCommitment
	}
	if method == nil {
		return nil, recovery.ErrUnknownMethod
	}
	if err := method.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	previous, err := l.load(owner)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	entry = &Entry{
		Owner:        owner,
		Commitment:   commitment,
		Method:       method.Kind(),
		TimelockDays: recovery.LockDuration(method),
		RecordedAt:   l.now(),
	}
	if err := l.save(entry); err != nil {
		return nil, err
	}

	if previous != nil && previous.RecoveryActive {
		metrics.DecActiveRecoveries()
		l.log(ctx).Warn("pending recovery superseded by new commitment",
			"owner", owner,
			"request_id", previous.RequestID)
	}
	l.log(ctx).Info("recorded recovery commitment",
		"owner", owner,
		"method", entry.Method,
		"timelock_days", entry.TimelockDays,
		"commitment", commitment.String())
	return entry, nil
}

// Get returns owner's entry.
func (l *StoreLedger) Get(ctx context.Context, owner string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateID(owner); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(owner)
}

// List returns the owners with a recorded commitment, sorted.
func (l *StoreLedger) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return storage.ListOwners(l.backend, storage.LedgerPrefix)
}

// InitiateRecovery starts a recovery for owner. The unlock time is the
// initiation time plus the entry's waiting period.
func (l *StoreLedger) InitiateRecovery(ctx context.Context, owner string) (*Entry, error) {
	return l.transition(ctx, metrics.OpLedgerInitiate, owner, func(e *Entry, now time.Time) (func(), error) {
		if e.RecoveryActive {
			return nil, fmt.Errorf("%w: request %s", ErrRecoveryAlreadyActive, e.RequestID)
		}

		unlock := now.Add(time.Duration(e.TimelockDays) * day)
		e.RequestID = uuid.NewString()
		e.RecoveryActive = true
		e.InitiatedAt = &now
		e.UnlockAt = &unlock
		e.ExecutedAt = nil
		e.CancelledAt = nil

		return func() {
			metrics.IncActiveRecoveries()
			l.log(ctx).Info("recovery initiated",
				"owner", owner,
				"request_id", e.RequestID,
				"unlock_at", unlock)
		}, nil
	})
}

// ExecuteRecovery completes owner's pending recovery once it has unlocked
// and candidateKey matches the recorded commitment.
func (l *StoreLedger) ExecuteRecovery(ctx context.Context, owner string, candidateKey []byte) (*Entry, error) {
	return l.transition(ctx, metrics.OpLedgerExecute, owner, func(e *Entry, now time.Time) (func(), error) {
		if !e.RecoveryActive {
			return nil, ErrNoActiveRecovery
		}
		if !e.Unlocked(now) {
			return nil, fmt.Errorf("%w: unlocks at %s", ErrTimelockNotExpired, e.UnlockAt.Format(time.RFC3339))
		}
		if len(candidateKey) == 0 {
			return nil, ErrInvalidProof
		}
		// A rejected attempt consumes a token whether or not anything is saved.
		if !l.attempts.Allow(owner) {
			l.log(ctx).Warn("recovery attempt rate limited",
				"owner", owner,
				"request_id", e.RequestID)
			return nil, fmt.Errorf("%w: %s", ErrTooManyAttempts, owner)
		}
		if !recovery.VerifyRecoveryKey(candidateKey, e.Commitment) {
			metrics.RecordVerification(false)
			return nil, ErrCommitmentMismatch
		}

		e.RecoveryActive = false
		e.ExecutedAt = &now

		return func() {
			metrics.RecordVerification(true)
			l.attempts.Reset(owner)
			metrics.DecActiveRecoveries()
			l.log(ctx).Info("recovery executed",
				"owner", owner,
				"request_id", e.RequestID)
		}, nil
	})
}

// CancelRecovery aborts owner's pending recovery.
func (l *StoreLedger) CancelRecovery(ctx context.Context, owner string) (*Entry, error) {
	return l.transition(ctx, metrics.OpLedgerCancel, owner, func(e *Entry, now time.Time) (func(), error) {
		if !e.RecoveryActive {
			return nil, ErrNoActiveRecovery
		}

		e.RecoveryActive = false
		e.CancelledAt = &now

		return func() {
			metrics.DecActiveRecoveries()
			l.log(ctx).Info("recovery cancelled",
				"owner", owner,
				"request_id", e.RequestID)
		}, nil
	})
}

// transition loads owner's entry, applies fn and saves the result. fn only
// mutates the entry; the callback it returns runs once the entry is saved.
// Nothing is saved or reported if fn fails.
func (l *StoreLedger) transition(ctx context.Context, op, owner string, fn func(*Entry, time.Time) (func(), error)) (entry *Entry, err error) {
	start := time.Now()
	methodName := metrics.MethodNone
	defer func() { record(op, methodName, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateID(owner); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err = l.load(owner)
	if err != nil {
		return nil, err
	}
	methodName = string(entry.Method)

	committed, err := fn(entry, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.save(entry); err != nil {
		return nil, err
	}
	if committed != nil {
		committed()
	}
	return entry, nil
}

func (l *StoreLedger) load(owner string) (*Entry, error) {
	data, err := l.backend.Get(storage.LedgerPath(owner))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, owner)
		}
		return nil, fmt.Errorf("ledger: failed to read entry for %s: %w", owner, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: ledger entry for %s: %w", storage.ErrInvalidData, owner, err)
	}
	return &entry, nil
}

func (l *StoreLedger) save(entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: failed to encode entry for %s: %w", entry.Owner, err)
	}
	if err := l.backend.Put(storage.LedgerPath(entry.Owner), data, nil); err != nil {
		return fmt.Errorf("ledger: failed to write entry for %s: %w", entry.Owner, err)
	}
	return nil
}

func (l *StoreLedger) log(ctx context.Context) *logging.Logger {
	if id := correlation.FromContext(ctx); id != "" {
		return l.logger.With(correlation.LogKey, id)
	}
	return l.logger
}

func (l *StoreLedger) now() time.Time {
	return l.clock().UTC()
}

func record(op, method string, start time.Time, err error) {
	metrics.RecordOperation(op, method, metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		metrics.RecordError(op, errorType(err))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRecoveryAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrNoActiveRecovery):
		return "no_active_recovery"
	case errors.Is(err, ErrTimelockNotExpired):
		return "timelock_not_expired"
	case errors.Is(err, ErrCommitmentMismatch):
		return "commitment_mismatch"
	case errors.Is(err, ErrInvalidProof):
		return "invalid_proof"
	case errors.Is(err, ErrTooManyAttempts):
		return "rate_limited"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return recovery.ErrorType(err)
	}
}

var _ Ledger = (*StoreLedger)(nil)
