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
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// PrefixTimeLock tags display strings of time-lock recovery keys.
	PrefixTimeLock = "veil_rec_tl"

	// PrefixShamir tags display strings of Shamir-derived recovery keys.
	PrefixShamir = "veil_rec_sh"
)

// FormatRecoveryKey renders rk for display as "<prefix>_<b64url>".
func FormatRecoveryKey(rk *RecoveryKey) (string, error) {
	if rk == nil || rk.Method == nil {
		return "", fmt.Errorf("%w: missing", ErrUnknownMethod)
	}
	return EncodeKey(rk.Method.Kind(), rk.Key)
}

// EncodeKey renders a raw key for display under the given method.
func EncodeKey(kind MethodKind, key []byte) (string, error) {
	prefix := kind.Prefix()
	if prefix == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, kind)
	}
	if len(key) != KeySize {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, KeySize, len(key))
	}
	return prefix + "_" + base64.RawURLEncoding.EncodeToString(key), nil
}

// ParseRecoveryKey decodes a display string produced by FormatRecoveryKey.
// Trailing '=' padding is tolerated.
func ParseRecoveryKey(s string) (MethodKind, []byte, error) {
	s = strings.TrimSpace(s)

	var kind MethodKind
	var body string
	if rest, ok := strings.CutPrefix(s, PrefixTimeLock+"_"); ok {
		kind, body = MethodTimeLock, rest
	} else if rest, ok := strings.CutPrefix(s, PrefixShamir+"_"); ok {
		kind, body = MethodShamir, rest
	} else {
		return "", nil, ErrUnknownKeyPrefix
	}

	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(body, "="))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}
	if len(key) != KeySize {
		return "", nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, KeySize, len(key))
	}
	return kind, key, nil
}
