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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// KeySize is the length in bytes of a recovery key.
const KeySize = 32

// Commitment is the SHA-256 digest of a recovery key. It is safe to
// publish and is the only value the ledger stores.
type Commitment [sha256.Size]byte

// CreateRecoveryCommitment returns the commitment for key. The same key
// always yields the same commitment.
func CreateRecoveryCommitment(key []byte) Commitment {
	return Commitment(sha256.Sum256(key))
}

// String returns the lowercase hex form of the commitment.
func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero reports whether c is the zero value.
func (c Commitment) IsZero() bool {
	return c == Commitment{}
}

// Equal compares two commitments in constant time.
func (c Commitment) Equal(other Commitment) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// MarshalText encodes the commitment as hex.
func (c Commitment) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts the hex or standard base64 form.
func (c *Commitment) UnmarshalText(text []byte) error {
	parsed, err := ParseCommitment(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCommitment decodes a 32-byte commitment from hex or standard base64.
func ParseCommitment(s string) (Commitment, error) {
	var c Commitment

	var raw []byte
	var err error
	if len(s) == hex.EncodedLen(len(c)) {
		raw, err = hex.DecodeString(s)
	} else {
		raw, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	if len(raw) != len(c) {
		return c, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidCommitment, len(c), len(raw))
	}
	copy(c[:], raw)
	return c, nil
}

// VerifyRecoveryKey reports whether candidate hashes to commitment. The
// comparison runs in constant time.
func VerifyRecoveryKey(candidate []byte, commitment Commitment) bool {
	computed := CreateRecoveryCommitment(candidate)
	return computed.Equal(commitment)
}

// RecoveryKey is a generated recovery secret with its commitment and the
// method it was configured for. Key is secret material.
type RecoveryKey struct {
	Key        []byte
	Commitment Commitment
	Method     Method
	CreatedAt  time.Time
}

// Wipe zeroes the key bytes.
func (rk *RecoveryKey) Wipe() {
	for i := range rk.Key {
		rk.Key[i] = 0
	}
}

// Validate checks the key size, the method parameters and that the key
// matches its commitment.
func (rk *RecoveryKey) Validate() error {
	if len(rk.Key) != KeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, KeySize, len(rk.Key))
	}
	if rk.Method == nil {
		return fmt.Errorf("%w: missing", ErrUnknownMethod)
	}
	if err := rk.Method.Validate(); err != nil {
		return err
	}
	if !VerifyRecoveryKey(rk.Key, rk.Commitment) {
		return ErrCorruptRecoveryKey
	}
	return nil
}

type recoveryKeyJSON struct {
	Key        []byte         `json:"key"`
	Commitment Commitment     `json:"commitment"`
	Method     MethodKind     `json:"method"`
	CreatedAt  int64          `json:"createdAt"`
	Metadata   methodMetadata `json:"metadata"`
}

type methodMetadata struct {
	TimelockDays int `json:"timelockDays,omitempty"`
	TotalShares  int `json:"totalShares,omitempty"`
	Threshold    int `json:"threshold,omitempty"`
}

// MarshalJSON encodes the key as base64, the commitment as hex and
// createdAt as unix milliseconds. Metadata carries only the fields of the
// key's method.
func (rk RecoveryKey) MarshalJSON() ([]byte, error) {
	if rk.Method == nil {
		return nil, fmt.Errorf("%w: missing", ErrUnknownMethod)
	}

	out := recoveryKeyJSON{
		Key:        rk.Key,
		Commitment: rk.Commitment,
		Method:     rk.Method.Kind(),
		CreatedAt:  rk.CreatedAt.UnixMilli(),
	}
	switch m := rk.Method.(type) {
	case TimeLock:
		out.Metadata.TimelockDays = m.Days
	case Shamir:
		out.Metadata.TotalShares = m.TotalShares
		out.Metadata.Threshold = m.Threshold
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a serialized recovery key.
func (rk *RecoveryKey) UnmarshalJSON(data []byte) error {
	var in recoveryKeyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	kind, err := ParseMethodKind(string(in.Method))
	if err != nil {
		return err
	}

	decoded := RecoveryKey{
		Key:        in.Key,
		Commitment: in.Commitment,
		CreatedAt:  time.UnixMilli(in.CreatedAt).UTC(),
	}
	switch kind {
	case MethodTimeLock:
		decoded.Method = TimeLock{Days: in.Metadata.TimelockDays}
	case MethodShamir:
		decoded.Method = Shamir{
			TotalShares: in.Metadata.TotalShares,
			Threshold:   in.Metadata.Threshold,
		}
	}

	if err := decoded.Validate(); err != nil {
		return err
	}
	*rk = decoded
	return nil
}
