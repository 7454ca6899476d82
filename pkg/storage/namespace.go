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

package storage

import (
	"fmt"
	"strings"
)

const (
	// RecoveryPrefix holds serialized recovery keys.
	RecoveryPrefix = "recovery/"

	// SharesPrefix holds serialized guardian share sets.
	SharesPrefix = "shares/"

	// LedgerPrefix holds ledger entries (commitments only).
	LedgerPrefix = "ledger/"

	recordSuffix = ".json"
)

// ValidateID checks that an owner ID can be embedded in a storage key
// without escaping its namespace.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, "/\\\x00") || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// RecoveryKeyPath returns the storage path for an owner's recovery key.
// The path follows the convention: recovery/{id}.json
func RecoveryKeyPath(id string) string {
	return RecoveryPrefix + id + recordSuffix
}

// SharesPath returns the storage path for an owner's share set.
// The path follows the convention: shares/{id}.json
func SharesPath(id string) string {
	return SharesPrefix + id + recordSuffix
}

// LedgerPath returns the storage path for an owner's ledger entry.
// The path follows the convention: ledger/{id}.json
func LedgerPath(id string) string {
	return LedgerPrefix + id + recordSuffix
}

// ListOwners returns the owner IDs stored under prefix, stripping the
// prefix and the .json suffix.
func ListOwners(backend Backend, prefix string) ([]string, error) {
	keys, err := backend.List(prefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, prefix)
		id = strings.TrimSuffix(id, recordSuffix)
		if id != "" && !strings.Contains(id, "/") {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
