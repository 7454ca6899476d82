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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-veil/pkg/crypto/rand"
	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-veil/pkg/logging"
	"github.com/jeremyhahn/go-veil/pkg/metrics"
)

// Config configures a Manager. The zero value is usable.
type Config struct {
	// Random supplies key bytes and polynomial coefficients. Defaults to the
	// software resolver (crypto/rand). Any rand.Resolver satisfies it.
	Random io.Reader

	// Clock stamps CreatedAt. Defaults to time.Now.
	Clock func() time.Time

	// Logger receives debug records. Key material is never logged.
	Logger *logging.Logger
}

// Manager generates recovery keys and verifies candidates against
// commitments. It keeps no key material between calls and is safe for
// concurrent use if its random source is.
type Manager struct {
	random io.Reader
	clock  func() time.Time
	logger *logging.Logger
}

// NewManager creates a Manager. A nil config uses the defaults.
func NewManager(config *Config) *Manager {
	m := &Manager{
		random: rand.Default(),
		clock:  time.Now,
		logger: logging.DefaultLogger(),
	}
	if config == nil {
		return m
	}
	if config.Random != nil {
		m.random = config.Random
	}
	if config.Clock != nil {
		m.clock = config.Clock
	}
	if config.Logger != nil {
		m.logger = config.Logger
	}
	return m
}

// GenerateRecoveryKey returns KeySize bytes from the configured source.
func (m *Manager) GenerateRecoveryKey() ([]byte, error) {
	start := time.Now()
	key, err := m.generateKey()
	m.record(metrics.OpGenerateKey, metrics.MethodNone, start, err)
	return key, err
}

func (m *Manager) generateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(m.random, key); err != nil {
		return nil, fmt.Errorf("recovery: failed to read key entropy: %w", err)
	}
	return key, nil
}

// GenerateTimeLockRecovery creates a recovery key usable after a ledger
// waiting period of days. Only the commitment and days are meant for the
// ledger.
func (m *Manager) GenerateTimeLockRecovery(days int) (*RecoveryKey, error) {
	start := time.Now()
	method := TimeLock{Days: days}

	rk, err := m.newRecoveryKey(method)
	m.record(metrics.OpGenerateKey, method.MethodName(), start, err)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("generated time-lock recovery key",
		"commitment", rk.Commitment.String(),
		"timelock_days", days)
	return rk, nil
}

// GenerateShamirRecovery creates a recovery key and splits it into
// totalShares guardian shares, any threshold of which reconstruct it.
func (m *Manager) GenerateShamirRecovery(totalShares, threshold int) (*RecoveryKey, []secretsharing.Share, error) {
	start := time.Now()
	method := Shamir{TotalShares: totalShares, Threshold: threshold}

	rk, err := m.newRecoveryKey(method)
	m.record(metrics.OpGenerateKey, method.MethodName(), start, err)
	if err != nil {
		return nil, nil, err
	}

	start = time.Now()
	cfg := method.ShareConfig()
	shares, err := m.split(&cfg, rk.Key)
	m.record(metrics.OpSplit, method.MethodName(), start, err)
	if err != nil {
		rk.Wipe()
		return nil, nil, err
	}
	metrics.AddSharesIssued(len(shares))

	m.logger.Debug("generated shamir recovery key",
		"commitment", rk.Commitment.String(),
		"total_shares", totalShares,
		"threshold", threshold)
	return rk, shares, nil
}

func (m *Manager) split(cfg *secretsharing.ShareConfig, key []byte) ([]secretsharing.Share, error) {
	shamir, err := secretsharing.NewShamir(cfg, secretsharing.WithRandom(m.random))
	if err != nil {
		return nil, err
	}
	return shamir.Split(key)
}

func (m *Manager) newRecoveryKey(method Method) (*RecoveryKey, error) {
	if err := method.Validate(); err != nil {
		return nil, err
	}

	key, err := m.generateKey()
	if err != nil {
		return nil, err
	}
	return &RecoveryKey{
		Key:        key,
		Commitment: CreateRecoveryCommitment(key),
		Method:     method,
		CreatedAt:  m.clock().UTC(),
	}, nil
}

// VerifyRecoveryKey reports whether candidate matches commitment. A
// mismatch is a normal outcome, not an error.
func (m *Manager) VerifyRecoveryKey(candidate []byte, commitment Commitment) bool {
	start := time.Now()
	ok := VerifyRecoveryKey(candidate, commitment)
	m.record(metrics.OpVerify, metrics.MethodNone, start, nil)
	metrics.RecordVerification(ok)

	m.logger.Debug("verified recovery key",
		"commitment", commitment.String(),
		"match", ok)
	return ok
}

// VerifyShares reconstructs a key from guardian shares and checks it
// against commitment. The reconstructed bytes are returned even on a
// mismatch so callers can inspect them; err is set only when the shares
// cannot be combined at all.
func (m *Manager) VerifyShares(shares []secretsharing.Share, commitment Commitment) ([]byte, bool, error) {
	start := time.Now()
	key, err := secretsharing.Combine(shares)
	m.record(metrics.OpCombine, string(MethodShamir), start, err)
	if err != nil {
		return nil, false, err
	}
	return key, m.VerifyRecoveryKey(key, commitment), nil
}

func (m *Manager) record(op, method string, start time.Time, err error) {
	metrics.RecordOperation(op, method, metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		metrics.RecordError(op, ErrorType(err))
		m.logger.Debug("recovery operation failed", "operation", op, "method", method, "error", err)
	}
}

// ErrorType maps an error onto a short metrics label.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, secretsharing.ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, secretsharing.ErrDuplicateShareIndex):
		return "duplicate_index"
	case errors.Is(err, secretsharing.ErrMalformedShares):
		return "malformed_shares"
	case errors.Is(err, secretsharing.ErrThresholdTooLow),
		errors.Is(err, secretsharing.ErrThresholdExceedsShares),
		errors.Is(err, secretsharing.ErrTooManyShares):
		return "invalid_threshold"
	case errors.Is(err, ErrInvalidTimelockPeriod):
		return "invalid_timelock"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "entropy"
	default:
		return "other"
	}
}
