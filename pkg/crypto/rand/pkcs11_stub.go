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

//go:build !pkcs11

package rand

import "fmt"

// Binaries built without the pkcs11 tag can only draw share coefficients
// from software or a test reader.

func newPKCS11Resolver(_ *PKCS11Config) (Resolver, error) {
	return nil, fmt.Errorf("%w: PKCS#11 (rebuild with -tags pkcs11)", ErrUnsupported)
}

func pkcs11Available() bool { return false }
