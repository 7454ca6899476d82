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
	"sync"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
)

// State is a recovery session state.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateVerified
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateVerified:
		return "verified"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session tracks a single recovery configuration from setup to a verify
// decision:
//
//	Uninitialized -> Configured -> Verified | Rejected
//
// A configured session holds the commitment and method only, never the
// key. Configuring again before a decision supersedes the previous
// commitment. Verified and Rejected are terminal. Session is safe for
// concurrent use.
type Session struct {
	mu         sync.Mutex
	manager    *Manager
	state      State
	commitment Commitment
	method     Method
}

// NewSession returns an uninitialized session. A nil manager uses
// NewManager(nil).
func NewSession(manager *Manager) *Session {
	if manager == nil {
		manager = NewManager(nil)
	}
	return &Session{manager: manager}
}

// Configure records rk's commitment and method. The key itself is not
// retained.
func (s *Session) Configure(rk *RecoveryKey) error {
	if rk == nil {
		return fmt.Errorf("recovery: recovery key cannot be nil")
	}
	if err := rk.Validate(); err != nil {
		return err
	}
	return s.ConfigureCommitment(rk.Commitment, rk.Method)
}

// ConfigureCommitment configures the session from a published commitment,
// for example one read back from the ledger.
func (s *Session) ConfigureCommitment(commitment Commitment, method Method) error {
	if method == nil {
		return fmt.Errorf("%w: missing", ErrUnknownMethod)
	}
	if err := method.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized && s.state != StateConfigured {
		return fmt.Errorf("%w: cannot configure a %s session", ErrInvalidState, s.state)
	}
	s.commitment = commitment
	s.method = method
	s.state = StateConfigured
	return nil
}

// Verify checks candidate against the configured commitment and moves the
// session to Verified or Rejected.
func (s *Session) Verify(candidate []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigured {
		return false, fmt.Errorf("%w: cannot verify a %s session", ErrInvalidState, s.state)
	}

	ok := s.manager.VerifyRecoveryKey(candidate, s.commitment)
	s.decide(ok)
	return ok, nil
}

// VerifyShares combines guardian shares and checks the result against the
// configured commitment. If the shares cannot be combined the session stays
// Configured so more shares can be supplied.
func (s *Session) VerifyShares(shares []secretsharing.Share) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigured {
		return nil, false, fmt.Errorf("%w: cannot verify a %s session", ErrInvalidState, s.state)
	}
	if s.method.Kind() != MethodShamir {
		return nil, false, fmt.Errorf("%w: shares presented to a %s session", ErrMethodMismatch, s.method.Kind())
	}

	key, ok, err := s.manager.VerifyShares(shares, s.commitment)
	if err != nil {
		return nil, false, err
	}
	s.decide(ok)
	return key, ok, nil
}

func (s *Session) decide(ok bool) {
	if ok {
		s.state = StateVerified
	} else {
		s.state = StateRejected
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Commitment returns the configured commitment and whether one is set.
func (s *Session) Commitment() (Commitment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitment, s.state != StateUninitialized
}

// Method returns the configured method, or nil before configuration.
func (s *Session) Method() Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}
