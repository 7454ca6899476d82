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

//go:build !tpm2

package rand

import "fmt"

// Binaries built without the tpm2 tag can only draw share coefficients
// from software or a test reader.

func newTPM2Resolver(_ *TPM2Config) (Resolver, error) {
	return nil, fmt.Errorf("%w: TPM2 (rebuild with -tags tpm2)", ErrUnsupported)
}

func tpm2Available() bool { return false }
