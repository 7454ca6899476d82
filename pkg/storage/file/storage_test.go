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

package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeremyhahn/go-veil/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (storage.Backend, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend, dir
}

func TestNew_EmptyRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestFileStorage_PutGetDelete(t *testing.T) {
	backend, dir := newTestStorage(t)

	key := storage.RecoveryKeyPath("alice")
	require.NoError(t, backend.Put(key, []byte(`{"a":1}`), nil))

	got, err := backend.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	_, err = os.Stat(filepath.Join(dir, "recovery", "alice.json"))
	require.NoError(t, err)

	require.NoError(t, backend.Put(key, []byte(`{"a":2}`), nil))
	got, err = backend.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got)

	exists, err := backend.Exists(key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, backend.Delete(key))
	_, err = backend.Get(key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, backend.Delete(key), storage.ErrNotFound)

	exists, err = backend.Exists(key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileStorage_Permissions(t *testing.T) {
	backend, dir := newTestStorage(t)

	require.NoError(t, backend.Put(storage.LedgerPath("alice"), []byte("{}"), nil))
	require.NoError(t, backend.Put(storage.SharesPath("alice"), []byte("{}"), nil))
	require.NoError(t, backend.Put("custom/alice.json", []byte("{}"), &storage.Options{Permissions: 0640}))

	tests := []struct {
		path string
		mode os.FileMode
	}{
		{filepath.Join(dir, "ledger", "alice.json"), 0644},
		{filepath.Join(dir, "shares", "alice.json"), 0600},
		{filepath.Join(dir, "custom", "alice.json"), 0640},
	}
	for _, tt := range tests {
		info, err := os.Stat(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.mode, info.Mode().Perm(), tt.path)
	}
}

func TestFileStorage_List(t *testing.T) {
	backend, _ := newTestStorage(t)

	for _, k := range []string{
		storage.SharesPath("carol"),
		storage.RecoveryKeyPath("bob"),
		storage.SharesPath("alice"),
	} {
		require.NoError(t, backend.Put(k, []byte("{}"), nil))
	}

	all, err := backend.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"recovery/bob.json", "shares/alice.json", "shares/carol.json"}, all)

	owners, err := storage.ListOwners(backend, storage.SharesPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, owners)
}

func TestFileStorage_InvalidKeys(t *testing.T) {
	backend, _ := newTestStorage(t)

	for _, key := range []string{"", "../escape", "a/../../b", "/etc/passwd", "nul\x00"} {
		t.Run(key, func(t *testing.T) {
			assert.ErrorIs(t, backend.Put(key, []byte("x"), nil), storage.ErrInvalidID)
			_, err := backend.Get(key)
			assert.ErrorIs(t, err, storage.ErrInvalidID)
		})
	}
}

func TestFileStorage_Closed(t *testing.T) {
	backend, _ := newTestStorage(t)
	require.NoError(t, backend.Close())

	_, err := backend.Get("k")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, backend.Put("k", nil, nil), storage.ErrClosed)
	assert.ErrorIs(t, backend.Delete("k"), storage.ErrClosed)
	_, err = backend.List("")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestFileStorage_Reopen(t *testing.T) {
	dir := t.TempDir()

	first, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, first.Put(storage.LedgerPath("alice"), []byte("persisted"), nil))
	require.NoError(t, first.Close())

	second, err := New(dir)
	require.NoError(t, err)
	got, err := second.Get(storage.LedgerPath("alice"))
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}
