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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-veil/pkg/metrics"
	"github.com/jeremyhahn/go-veil/pkg/storage"
)

// Store persists recovery keys and share set descriptions per owner as JSON
// documents in a storage.Backend:
//
//	recovery/{owner}.json
//	shares/{owner}.json
//
// Recovery keys are secret material; use the store only for the owner's
// local keystore, never for the ledger. Share payloads are never stored
// here: they go to their guardians and nowhere else.
type Store struct {
	backend storage.Backend
}

// NewStore creates a Store over backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// PutRecoveryKey stores rk for owner, replacing any previous key.
func (s *Store) PutRecoveryKey(owner string, rk *RecoveryKey) error {
	if rk == nil {
		return fmt.Errorf("recovery: recovery key cannot be nil")
	}
	return s.put(storage.RecoveryKeyPath, owner, rk)
}

// GetRecoveryKey loads owner's recovery key. Returns storage.ErrNotFound
// if none is stored.
func (s *Store) GetRecoveryKey(owner string) (*RecoveryKey, error) {
	var rk RecoveryKey
	if err := s.get(storage.RecoveryKeyPath, owner, &rk); err != nil {
		return nil, err
	}
	return &rk, nil
}

// ShareSet describes the shares issued for an owner without any payload
// bytes. It lets a later verification check the presented shares against
// the parameters chosen at setup.
type ShareSet struct {
	Threshold   int       `json:"threshold"`
	TotalShares int       `json:"totalShares"`
	Indices     []byte    `json:"indices"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DescribeShares returns the ShareSet for shares issued at createdAt.
func DescribeShares(shares []secretsharing.Share, createdAt time.Time) (ShareSet, error) {
	if len(shares) == 0 {
		return ShareSet{}, fmt.Errorf("%w: no shares", secretsharing.ErrMalformedShares)
	}
	set := ShareSet{
		Threshold:   shares[0].Threshold,
		TotalShares: shares[0].TotalShares,
		Indices:     make([]byte, len(shares)),
		CreatedAt:   createdAt.UTC(),
	}
	for i, share := range shares {
		set.Indices[i] = share.Index
	}
	return set, nil
}

// Method returns the Shamir method the set was issued under.
func (s ShareSet) Method() Shamir {
	return Shamir{TotalShares: s.TotalShares, Threshold: s.Threshold}
}

// PutShareSet stores the share set description for owner, replacing any
// previous one.
func (s *Store) PutShareSet(owner string, set ShareSet) error {
	if err := set.Method().Validate(); err != nil {
		return err
	}
	return s.put(storage.SharesPath, owner, set)
}

// GetShareSet loads owner's share set description. Returns
// storage.ErrNotFound if none is stored.
func (s *Store) GetShareSet(owner string) (*ShareSet, error) {
	var set ShareSet
	if err := s.get(storage.SharesPath, owner, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// DeleteRecovery removes owner's recovery key and share set description. Missing
// entries are ignored.
func (s *Store) DeleteRecovery(owner string) error {
	if err := storage.ValidateID(owner); err != nil {
		return err
	}
	for _, path := range []string{storage.RecoveryKeyPath(owner), storage.SharesPath(owner)} {
		if err := s.backend.Delete(path); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("recovery: failed to delete %s: %w", path, err)
		}
	}
	return nil
}

// Owners lists the owners that have a stored recovery key.
func (s *Store) Owners() ([]string, error) {
	return storage.ListOwners(s.backend, storage.RecoveryPrefix)
}

func (s *Store) put(pathFn func(string) string, owner string, v any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpStorePut, metrics.MethodNone, metrics.Status(err), time.Since(start).Seconds())
	}()

	if err := storage.ValidateID(owner); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("recovery: failed to encode %s: %w", pathFn(owner), err)
	}
	return s.backend.Put(pathFn(owner), data, nil)
}

func (s *Store) get(pathFn func(string) string, owner string, v any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpStoreGet, metrics.MethodNone, metrics.Status(err), time.Since(start).Seconds())
	}()

	if err := storage.ValidateID(owner); err != nil {
		return err
	}
	data, err := s.backend.Get(pathFn(owner))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", storage.ErrInvalidData, pathFn(owner), err)
	}
	return nil
}
