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

// Package recovery manages wallet recovery keys and the commitments that
// stand in for them outside the process.
//
// A recovery key is 32 random bytes. Its SHA-256 commitment is the only
// artifact meant to leave the trust boundary: the ledger records it, and a
// presented key (or a set of reconstructed guardian shares) is accepted only
// if it hashes to the recorded value.
//
// Two recovery methods are supported:
//
//   - TimeLock: the key is kept by the owner and can be used once a waiting
//     period of 1 to 90 days has elapsed on the ledger.
//   - Shamir: the key is split into guardian shares with a threshold; any
//     threshold-sized subset reconstructs it.
//
// # Usage
//
//	mgr := recovery.NewManager(nil)
//	rk, shares, err := mgr.GenerateShamirRecovery(5, 3)
//	if err != nil {
//	    return err
//	}
//	// distribute shares[i] to guardian i, publish rk.Commitment
//
//	key, ok, err := mgr.VerifyShares(shares[:3], rk.Commitment)
//
// Reconstruction and verification are kept separate: secretsharing.Combine
// returns whatever the shares interpolate to, and VerifyRecoveryKey decides
// whether that value is the key.
//
// # Display Format
//
// FormatRecoveryKey renders a key as "veil_rec_tl_<b64>" or
// "veil_rec_sh_<b64>" using unpadded URL-safe base64. ParseRecoveryKey
// reverses it.
package recovery
