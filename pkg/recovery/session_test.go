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
	"bytes"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_TimeLockVerified(t *testing.T) {
	mgr := newTestManager(t, "session-timelock")
	rk, err := mgr.GenerateTimeLockRecovery(30)
	require.NoError(t, err)

	s := NewSession(mgr)
	assert.Equal(t, StateUninitialized, s.State())
	assert.Nil(t, s.Method())
	_, ok := s.Commitment()
	assert.False(t, ok)

	require.NoError(t, s.Configure(rk))
	assert.Equal(t, StateConfigured, s.State())
	assert.Equal(t, TimeLock{Days: 30}, s.Method())
	c, ok := s.Commitment()
	assert.True(t, ok)
	assert.Equal(t, rk.Commitment, c)

	verified, err := s.Verify(rk.Key)
	require.NoError(t, err)
	assert.True(t, verified)
	assert.Equal(t, StateVerified, s.State())
}

func TestSession_Rejected(t *testing.T) {
	mgr := newTestManager(t, "session-rejected")
	rk, err := mgr.GenerateTimeLockRecovery(3)
	require.NoError(t, err)

	s := NewSession(mgr)
	require.NoError(t, s.Configure(rk))

	wrong := bytes.Clone(rk.Key)
	wrong[5] ^= 0x10
	verified, err := s.Verify(wrong)
	require.NoError(t, err)
	assert.False(t, verified)
	assert.Equal(t, StateRejected, s.State())
}

func TestSession_TerminalStates(t *testing.T) {
	mgr := newTestManager(t, "session-terminal")
	rk, err := mgr.GenerateTimeLockRecovery(3)
	require.NoError(t, err)

	s := NewSession(mgr)
	require.NoError(t, s.Configure(rk))
	_, err = s.Verify(rk.Key)
	require.NoError(t, err)

	_, err = s.Verify(rk.Key)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, s.Configure(rk), ErrInvalidState)
	assert.Equal(t, StateVerified, s.State())
}

func TestSession_VerifyBeforeConfigure(t *testing.T) {
	s := NewSession(nil)

	_, err := s.Verify(make([]byte, KeySize))
	assert.ErrorIs(t, err, ErrInvalidState)

	_, _, err = s.VerifyShares(nil)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateUninitialized, s.State())
}

func TestSession_ReconfigureSupersedes(t *testing.T) {
	mgr := newTestManager(t, "session-supersede")
	old, err := mgr.GenerateTimeLockRecovery(7)
	require.NoError(t, err)
	current, err := mgr.GenerateTimeLockRecovery(7)
	require.NoError(t, err)

	s := NewSession(mgr)
	require.NoError(t, s.Configure(old))
	require.NoError(t, s.Configure(current))

	verified, err := s.Verify(old.Key)
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestSession_ShamirShares(t *testing.T) {
	mgr := newTestManager(t, "session-shamir")
	rk, shares, err := mgr.GenerateShamirRecovery(5, 3)
	require.NoError(t, err)

	s := NewSession(mgr)
	require.NoError(t, s.Configure(rk))

	// Too few shares leaves the session open for another attempt.
	_, _, err = s.VerifyShares(shares[:2])
	assert.ErrorIs(t, err, secretsharing.ErrInsufficientShares)
	assert.Equal(t, StateConfigured, s.State())

	key, verified, err := s.VerifyShares([]secretsharing.Share{shares[4], shares[0], shares[2]})
	require.NoError(t, err)
	assert.True(t, verified)
	assert.Equal(t, rk.Key, key)
	assert.Equal(t, StateVerified, s.State())
}

func TestSession_ShamirSharesRejected(t *testing.T) {
	mgr := newTestManager(t, "session-shamir-rejected")
	rk, shares, err := mgr.GenerateShamirRecovery(3, 2)
	require.NoError(t, err)
	_, foreign, err := mgr.GenerateShamirRecovery(3, 2)
	require.NoError(t, err)

	s := NewSession(mgr)
	require.NoError(t, s.Configure(rk))

	_, verified, err := s.VerifyShares([]secretsharing.Share{shares[0], foreign[1]})
	require.NoError(t, err)
	assert.False(t, verified)
	assert.Equal(t, StateRejected, s.State())
}

func TestSession_SharesOnTimeLock(t *testing.T) {
	mgr := newTestManager(t, "session-mismatch")
	rk, err := mgr.GenerateTimeLockRecovery(3)
	require.NoError(t, err)
	_, shares, err := mgr.GenerateShamirRecovery(3, 2)
	require.NoError(t, err)

	s := NewSession(mgr)
	require.NoError(t, s.Configure(rk))

	_, _, err = s.VerifyShares(shares)
	assert.ErrorIs(t, err, ErrMethodMismatch)
	assert.Equal(t, StateConfigured, s.State())
}

func TestSession_ConfigureRejectsInvalid(t *testing.T) {
	s := NewSession(nil)

	assert.Error(t, s.Configure(nil))
	assert.ErrorIs(t, s.Configure(&RecoveryKey{Key: testKey, Method: TimeLock{Days: 3}}), ErrCorruptRecoveryKey)
	assert.ErrorIs(t, s.ConfigureCommitment(CreateRecoveryCommitment(testKey), nil), ErrUnknownMethod)
	assert.ErrorIs(t, s.ConfigureCommitment(CreateRecoveryCommitment(testKey), TimeLock{Days: 0}), ErrInvalidTimelockPeriod)
	assert.Equal(t, StateUninitialized, s.State())

	require.NoError(t, s.ConfigureCommitment(CreateRecoveryCommitment(testKey), TimeLock{Days: 3}))
	verified, err := s.Verify(testKey)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestSession_ConcurrentVerify(t *testing.T) {
	mgr := newTestManager(t, "session-concurrent")
	rk, err := mgr.GenerateTimeLockRecovery(3)
	require.NoError(t, err)

	s := NewSession(mgr)
	require.NoError(t, s.Configure(rk))

	var wg sync.WaitGroup
	var mu sync.Mutex
	decided := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Verify(rk.Key); err == nil {
				mu.Lock()
				decided++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, decided)
	assert.Equal(t, StateVerified, s.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "configured", StateConfigured.String())
	assert.Equal(t, "verified", StateVerified.String())
	assert.Equal(t, "rejected", StateRejected.String())
	assert.Equal(t, "state(9)", State(9).String())
}
