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

// Package gf256 implements arithmetic in the finite field GF(2^8) using the
// AES reducing polynomial x^8 + x^4 + x^3 + x + 1 (0x11B).
//
// Elements are bytes. Addition and subtraction are both bitwise XOR, so
// there is no carry and every element is its own additive inverse. This is
// the usual stumbling block for readers used to integer arithmetic modulo a
// prime: a - b and a + b are the same operation here.
//
// Multiplication and division use exponential and logarithm tables that are
// computed once in init() and never written again, so all functions in this
// package are safe for concurrent use without locking.
package gf256

import "errors"

// Polynomial is the AES reducing polynomial without the implicit x^8 term.
const Polynomial = 0x1B

// Generator is the primitive element used to build the tables. The element
// 0x02 is not primitive under 0x11B (its order is 51), so the walk uses 0x03.
const Generator = 0x03

// ErrDivisionByZero is returned when a zero divisor reaches the field. Callers
// that validate share indexes up front should never see it.
var ErrDivisionByZero = errors.New("gf256: division by zero")

var (
	expTable [256]byte
	logTable [256]byte
)

func init() {
	var x byte = 1
	for i := 0; i < 255; i++ {
		expTable[i] = x
		logTable[x] = byte(i)
		x = xtime(x) ^ x
	}
	expTable[255] = expTable[0]
}

// xtime multiplies by x (0x02) with carry reduction.
func xtime(x byte) byte {
	if x&0x80 != 0 {
		return (x << 1) ^ Polynomial
	}
	return x << 1
}

// Add returns a + b, which is a XOR b.
func Add(a, b byte) byte {
	return a ^ b
}

// Sub returns a - b. In characteristic 2 this is identical to Add.
func Sub(a, b byte) byte {
	return a ^ b
}

// Mul returns a * b.
func Mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return exp(int(logTable[a]) + int(logTable[b]))
}

// Div returns a / b, or ErrDivisionByZero when b is zero.
func Div(a, b byte) (byte, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	if a == 0 {
		return 0, nil
	}
	return exp(int(logTable[a]) - int(logTable[b])), nil
}

// Inverse returns the multiplicative inverse of a.
func Inverse(a byte) (byte, error) {
	return Div(1, a)
}

// exp returns Generator raised to the power i mod 255.
func exp(i int) byte {
	i %= 255
	if i < 0 {
		i += 255
	}
	return expTable[i]
}
