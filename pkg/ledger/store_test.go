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
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-veil/internal/testutil"
	"github.com/jeremyhahn/go-veil/pkg/correlation"
	"github.com/jeremyhahn/go-veil/pkg/logging"
	"github.com/jeremyhahn/go-veil/pkg/metrics"
	"github.com/jeremyhahn/go-veil/pkg/ratelimit"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
	"github.com/jeremyhahn/go-veil/pkg/storage"
	"github.com/jeremyhahn/go-veil/pkg/storage/file"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ledger  *StoreLedger
	backend storage.Backend
	clock   *fakeClock
	manager *recovery.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	backend := storage.NewMemory()
	t.Cleanup(func() { _ = backend.Close() })

	return &fixture{
		ledger:  NewStoreLedger(backend, WithClock(clock.Now), WithLogger(logging.Discard())),
		backend: backend,
		clock:   clock,
		manager: recovery.NewManager(&recovery.Config{
			Random: testutil.NewDeterministicReader(t.Name()),
			Clock:  clock.Now,
			Logger: logging.Discard(),
		}),
	}
}

func (f *fixture) timelock(t *testing.T, owner string, days int) *recovery.RecoveryKey {
	t.Helper()
	rk, err := f.manager.GenerateTimeLockRecovery(days)
	require.NoError(t, err)
	_, err = f.ledger.RecordCommitment(context.Background(), owner, rk.Commitment, rk.Method)
	require.NoError(t, err)
	return rk
}

func TestRecordCommitment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rk, err := f.manager.GenerateTimeLockRecovery(7)
	require.NoError(t, err)

	entry, err := f.ledger.RecordCommitment(ctx, "alice", rk.Commitment, rk.Method)
	require.NoError(t, err)
	assert.Equal(t, "alice", entry.Owner)
	assert.Equal(t, rk.Commitment, entry.Commitment)
	assert.Equal(t, recovery.MethodTimeLock, entry.Method)
	assert.Equal(t, 7, entry.TimelockDays)
	assert.False(t, entry.RecoveryActive)
	assert.Empty(t, entry.RequestID)

	got, err := f.ledger.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entry.Commitment, got.Commitment)
	assert.True(t, entry.RecordedAt.Equal(got.RecordedAt))
}

func TestRecordCommitment_NeverStoresKey(t *testing.T) {
	f := newFixture(t)
	rk := f.timelock(t, "alice", 3)

	raw, err := f.backend.Get(storage.LedgerPath("alice"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), rk.Commitment.String())
	assert.NotContains(t, string(raw), `"key"`)
}

func TestRecordCommitment_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := recovery.CreateRecoveryCommitment([]byte("k"))

	_, err := f.ledger.RecordCommitment(ctx, "", c, recovery.TimeLock{Days: 1})
	assert.ErrorIs(t, err, storage.ErrInvalidID)

	_, err = f.ledger.RecordCommitment(ctx, "alice", recovery.Commitment{}, recovery.TimeLock{Days: 1})
	assert.ErrorIs(t, err, ErrInvalidCommitment)

	_, err = f.ledger.RecordCommitment(ctx, "alice", c, nil)
	assert.ErrorIs(t, err, recovery.ErrUnknownMethod)

	_, err = f.ledger.RecordCommitment(ctx, "alice", c, recovery.TimeLock{Days: 91})
	assert.ErrorIs(t, err, recovery.ErrInvalidTimelockPeriod)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.ledger.RecordCommitment(cancelled, "alice", c, recovery.TimeLock{Days: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimeLockedRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rk := f.timelock(t, "alice", 7)

	entry, err := f.ledger.InitiateRecovery(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, entry.RecoveryActive)
	_, err = uuid.Parse(entry.RequestID)
	assert.NoError(t, err)
	require.NotNil(t, entry.UnlockAt)
	assert.Equal(t, 7*24*time.Hour, entry.UnlockAt.Sub(*entry.InitiatedAt))

	_, err = f.ledger.InitiateRecovery(ctx, "alice")
	assert.ErrorIs(t, err, ErrRecoveryAlreadyActive)

	f.clock.Advance(7*24*time.Hour - time.Second)
	_, err = f.ledger.ExecuteRecovery(ctx, "alice", rk.Key)
	assert.ErrorIs(t, err, ErrTimelockNotExpired)

	f.clock.Advance(time.Second)
	executed, err := f.ledger.ExecuteRecovery(ctx, "alice", rk.Key)
	require.NoError(t, err)
	assert.False(t, executed.RecoveryActive)
	require.NotNil(t, executed.ExecutedAt)
	assert.Equal(t, entry.RequestID, executed.RequestID)

	_, err = f.ledger.ExecuteRecovery(ctx, "alice", rk.Key)
	assert.ErrorIs(t, err, ErrNoActiveRecovery)
}

func TestExecuteRecovery_Mismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.timelock(t, "alice", 1)

	_, err := f.ledger.InitiateRecovery(ctx, "alice")
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)

	_, err = f.ledger.ExecuteRecovery(ctx, "alice", nil)
	assert.ErrorIs(t, err, ErrInvalidProof)

	wrong, err := f.manager.GenerateRecoveryKey()
	require.NoError(t, err)
	_, err = f.ledger.ExecuteRecovery(ctx, "alice", wrong)
	assert.ErrorIs(t, err, ErrCommitmentMismatch)

	entry, err := f.ledger.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, entry.RecoveryActive, "failed execution must leave the recovery pending")
}

func TestExecuteRecovery_RateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           true,
		AttemptsPerMinute: 1,
		Burst:             2,
		Clock:             f.clock.Now,
	})
	t.Cleanup(limiter.Stop)
	f.ledger = NewStoreLedger(f.backend,
		WithClock(f.clock.Now),
		WithLogger(logging.Discard()),
		WithAttemptLimiter(limiter))

	rk := f.timelock(t, "alice", 1)
	_, err := f.ledger.InitiateRecovery(ctx, "alice")
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)

	wrong := make([]byte, recovery.KeySize)
	for i := 0; i < 2; i++ {
		_, err = f.ledger.ExecuteRecovery(ctx, "alice", wrong)
		assert.ErrorIs(t, err, ErrCommitmentMismatch)
	}

	_, err = f.ledger.ExecuteRecovery(ctx, "alice", rk.Key)
	assert.ErrorIs(t, err, ErrTooManyAttempts, "correct key is refused while throttled")

	f.clock.Advance(time.Minute)
	entry, err := f.ledger.ExecuteRecovery(ctx, "alice", rk.Key)
	require.NoError(t, err)
	assert.False(t, entry.RecoveryActive)
}

func TestCorrelationIDLogged(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.ledger = NewStoreLedger(f.backend, WithClock(f.clock.Now), WithLogger(logging.New(&buf, "info", "json")))

	ctx := correlation.WithID(context.Background(), "req-42")
	commitment := recovery.CreateRecoveryCommitment(make([]byte, recovery.KeySize))
	_, err := f.ledger.RecordCommitment(ctx, "alice", commitment, recovery.TimeLock{Days: 2})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"correlation_id":"req-42"`)
	assert.Contains(t, buf.String(), `"owner":"alice"`)
}

func TestCancelRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rk := f.timelock(t, "alice", 30)

	_, err := f.ledger.CancelRecovery(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoActiveRecovery)

	initiated, err := f.ledger.InitiateRecovery(ctx, "alice")
	require.NoError(t, err)

	cancelled, err := f.ledger.CancelRecovery(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, cancelled.RecoveryActive)
	require.NotNil(t, cancelled.CancelledAt)

	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.ledger.ExecuteRecovery(ctx, "alice", rk.Key)
	assert.ErrorIs(t, err, ErrNoActiveRecovery)

	again, err := f.ledger.InitiateRecovery(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, initiated.RequestID, again.RequestID)
	assert.Nil(t, again.CancelledAt)
}

func TestShamirEntryUnlocksImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rk, shares, err := f.manager.GenerateShamirRecovery(5, 3)
	require.NoError(t, err)
	_, err = f.ledger.RecordCommitment(ctx, "bob", rk.Commitment, rk.Method)
	require.NoError(t, err)

	entry, err := f.ledger.InitiateRecovery(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, entry.TimelockDays)
	assert.True(t, entry.Unlocked(f.clock.Now()))

	key, ok, err := f.manager.VerifyShares(shares[1:4], entry.Commitment)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.ledger.ExecuteRecovery(ctx, "bob", key)
	assert.NoError(t, err)
}

func TestRecordCommitment_Supersedes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.timelock(t, "alice", 1)

	_, err := f.ledger.InitiateRecovery(ctx, "alice")
	require.NoError(t, err)

	active := promtestutil.ToFloat64(metrics.ActiveRecoveries)
	current := f.timelock(t, "alice", 1)
	assert.Equal(t, active-1, promtestutil.ToFloat64(metrics.ActiveRecoveries))

	entry, err := f.ledger.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, current.Commitment, entry.Commitment)
	assert.False(t, entry.RecoveryActive)

	_, err = f.ledger.InitiateRecovery(ctx, "alice")
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)

	_, err = f.ledger.ExecuteRecovery(ctx, "alice", old.Key)
	assert.ErrorIs(t, err, ErrCommitmentMismatch)
	_, err = f.ledger.ExecuteRecovery(ctx, "alice", current.Key)
	assert.NoError(t, err)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Get(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.InitiateRecovery(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.CancelRecovery(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.ExecuteRecovery(ctx, "nobody", []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	f.timelock(t, "carol", 2)
	f.timelock(t, "alice", 2)

	owners, err := f.ledger.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, owners)
}

func TestFileBackedLedger(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	ctx := context.Background()

	backend, err := file.New(dir)
	require.NoError(t, err)
	l := NewStoreLedger(backend, WithClock(clock.Now), WithLogger(logging.Discard()))

	rk, err := recovery.NewManager(&recovery.Config{Logger: logging.Discard()}).GenerateTimeLockRecovery(2)
	require.NoError(t, err)
	_, err = l.RecordCommitment(ctx, "alice", rk.Commitment, rk.Method)
	require.NoError(t, err)
	_, err = l.InitiateRecovery(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	reopened, err := file.New(dir)
	require.NoError(t, err)
	l = NewStoreLedger(reopened, WithClock(clock.Now), WithLogger(logging.Discard()))

	clock.Advance(48 * time.Hour)
	entry, err := l.ExecuteRecovery(ctx, "alice", rk.Key)
	require.NoError(t, err)
	assert.NotNil(t, entry.ExecutedAt)
}

func TestConcurrentInitiate(t *testing.T) {
	f := newFixture(t)
	f.timelock(t, "alice", 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.InitiateRecovery(context.Background(), "alice"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

// diskFullBackend fails every Put once full is set.
type diskFullBackend struct {
	storage.Backend
	full bool
}

func (b *diskFullBackend) Put(key string, value []byte, opts *storage.Options) error {
	if b.full {
		return errors.New("disk full")
	}
	return b.Backend.Put(key, value, opts)
}

func TestTransition_FailedSaveReportsNothing(t *testing.T) {
	clock := newFakeClock()
	backend := &diskFullBackend{Backend: storage.NewMemory()}
	var logs bytes.Buffer
	l := NewStoreLedger(backend, WithClock(clock.Now), WithLogger(logging.New(&logs, "info", "json")))
	ctx := context.Background()

	key := bytes.Repeat([]byte{0x42}, recovery.KeySize)
	_, err := l.RecordCommitment(ctx, "dave", recovery.CreateRecoveryCommitment(key), recovery.TimeLock{Days: 1})
	require.NoError(t, err)

	backend.full = true
	active := promtestutil.ToFloat64(metrics.ActiveRecoveries)

	_, err = l.InitiateRecovery(ctx, "dave")
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, active, promtestutil.ToFloat64(metrics.ActiveRecoveries))
	assert.NotContains(t, logs.String(), "recovery initiated")

	entry, err := l.Get(ctx, "dave")
	require.NoError(t, err)
	assert.False(t, entry.RecoveryActive)

	backend.full = false
	_, err = l.InitiateRecovery(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, active+1, promtestutil.ToFloat64(metrics.ActiveRecoveries))
	clock.Advance(24 * time.Hour)

	backend.full = true
	_, err = l.ExecuteRecovery(ctx, "dave", key)
	require.ErrorContains(t, err, "disk full")
	_, err = l.CancelRecovery(ctx, "dave")
	require.ErrorContains(t, err, "disk full")
	_, err = l.RecordCommitment(ctx, "dave", recovery.CreateRecoveryCommitment(key), recovery.TimeLock{Days: 2})
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, active+1, promtestutil.ToFloat64(metrics.ActiveRecoveries))
	assert.NotContains(t, logs.String(), "recovery executed")
	assert.NotContains(t, logs.String(), "recovery cancelled")
	assert.NotContains(t, logs.String(), "superseded")

	backend.full = false
	_, err = l.CancelRecovery(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, active, promtestutil.ToFloat64(metrics.ActiveRecoveries))
	assert.Contains(t, logs.String(), "recovery cancelled")
}
