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

// Package secretsharing implements Shamir's Secret Sharing over GF(256).
//
// A secret of any length is split byte by byte. For each byte position a
// fresh polynomial of degree T-1 is drawn whose constant term is the secret
// byte and whose other coefficients come from a cryptographically secure
// random source. Share x receives f(x) for x in 1..N. Any T shares recover
// each byte by Lagrange interpolation at x=0; T-1 shares reveal nothing.
//
// # Usage
//
//	shamir, err := secretsharing.NewShamir(&secretsharing.ShareConfig{
//	    Threshold:   3,
//	    TotalShares: 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	shares, err := shamir.Split(secret)
//	...
//	recovered, err := secretsharing.Combine(shares[:3])
//
// # Integrity
//
// Combine performs structural validation only (count, indexes, lengths). Shares
// from two different splits, or a threshold lower than the one used at split
// time, produce a well-formed but wrong secret without an error. Callers must
// compare the result against a commitment, which is what the recovery
// package does.
//
// # Constraints
//
//   - 2 <= Threshold <= TotalShares <= 255
//   - Share indexes are 1..255; index 0 is the secret itself
//   - Every share from one split has a payload as long as the secret
//
// # Randomness
//
// Coefficients are read from the io.Reader given with WithRandom, or from the
// software resolver in pkg/crypto/rand by default. Tests inject a
// deterministic reader; production code should never pass a math/rand source.
package secretsharing
