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

package secretsharing

import (
	"fmt"
	"io"

	"github.com/jeremyhahn/go-veil/pkg/crypto/gf256"
)

// polynomial holds coefficients a0..a(T-1); a0 is the secret byte.
type polynomial []byte

// newPolynomial fills p with a fresh random polynomial whose constant term
// is intercept. p is reused across byte positions to avoid an allocation
// per byte; its length fixes the degree.
func newPolynomial(p polynomial, intercept byte, random io.Reader) error {
	p[0] = intercept
	if len(p) == 1 {
		return nil
	}
	if _, err := io.ReadFull(random, p[1:]); err != nil {
		return fmt.Errorf("secretsharing: failed to generate random coefficients: %w", err)
	}
	return nil
}

// evaluate returns p(x) using Horner's method:
// p(x) = a0 + x(a1 + x(a2 + ... + x*an)).
func (p polynomial) evaluate(x byte) byte {
	if len(p) == 0 {
		return 0
	}
	result := p[len(p)-1]
	for i := len(p) - 2; i >= 0; i-- {
		result = gf256.Add(gf256.Mul(result, x), p[i])
	}
	return result
}

func (p polynomial) wipe() {
	for i := range p {
		p[i] = 0
	}
}
