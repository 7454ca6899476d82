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

package cli

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
)

// ErrVerificationFailed is returned by commands whose key or shares do not
// match the commitment, so the process exits non-zero.
var ErrVerificationFailed = errors.New("verification failed: key does not match commitment")

// ErrShareDirRequired is returned by a shamir setup without a directory to
// hand the guardian shares to.
var ErrShareDirRequired = errors.New("shamir setup requires --share-dir")

// parseKeyInput accepts a display string (veil_rec_tl_..., veil_rec_sh_...)
// or a 64-character hex key.
func parseKeyInput(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "veil_rec_") {
		_, key, err := recovery.ParseRecoveryKey(s)
		return key, err
	}

	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key must be a veil_rec_* string or hex: %w", err)
	}
	if len(key) != recovery.KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", recovery.ErrInvalidKeySize, recovery.KeySize, len(key))
	}
	return key, nil
}

// readShares loads shares from JSON files. Each file holds either a single
// share object or an array of shares.
func readShares(paths []string) ([]secretsharing.Share, error) {
	var shares []secretsharing.Share
	for _, path := range paths {
		// #nosec G304 - share file paths are provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read share file: %w", err)
		}

		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			var set []secretsharing.Share
			if err := json.Unmarshal(data, &set); err != nil {
				return nil, fmt.Errorf("failed to parse share file %s: %w", path, err)
			}
			shares = append(shares, set...)
			continue
		}

		var share secretsharing.Share
		if err := json.Unmarshal(data, &share); err != nil {
			return nil, fmt.Errorf("failed to parse share file %s: %w", path, err)
		}
		shares = append(shares, share)
	}
	return shares, nil
}

// writeShareFiles writes one JSON file per share into dir.
func writeShareFiles(dir, owner string, shares []secretsharing.Share) ([]string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create share directory: %w", err)
	}

	paths := make([]string, 0, len(shares))
	for _, share := range shares {
		data, err := json.MarshalIndent(share, "", "  ")
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-share-%03d.json", owner, share.Index))
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write share file: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// parseMethod builds a recovery method from command flags.
func parseMethod(name string, days, totalShares, threshold int) (recovery.Method, error) {
	kind, err := recovery.ParseMethodKind(name)
	if err != nil {
		return nil, err
	}

	var method recovery.Method
	switch kind {
	case recovery.MethodTimeLock:
		method = recovery.TimeLock{Days: days}
	case recovery.MethodShamir:
		method = recovery.Shamir{TotalShares: totalShares, Threshold: threshold}
	}
	if err := method.Validate(); err != nil {
		return nil, err
	}
	return method, nil
}
