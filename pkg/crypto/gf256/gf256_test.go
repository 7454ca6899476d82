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

package gf256

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowMul is the shift-and-add reference multiplication.
func slowMul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}
		a = xtime(a)
		b >>= 1
	}
	return p
}

func TestTablesCoverMultiplicativeGroup(t *testing.T) {
	seen := make(map[byte]bool, 255)
	for i := 0; i < 255; i++ {
		seen[expTable[i]] = true
	}
	assert.Len(t, seen, 255, "generator must reach every nonzero element")
	assert.False(t, seen[0])
	assert.Equal(t, expTable[0], expTable[255])

	for x := 1; x < 256; x++ {
		assert.Equal(t, byte(x), expTable[logTable[x]], "exp(log(%d))", x)
	}
}

func TestMulMatchesReference(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			require.Equal(t, slowMul(byte(a), byte(b)), Mul(byte(a), byte(b)), "%d*%d", a, b)
		}
	}
}

func TestMulKnownValues(t *testing.T) {
	// FIPS-197 section 4.2 example
	assert.Equal(t, byte(0xC1), Mul(0x57, 0x83))
	assert.Equal(t, byte(0xFE), Mul(0x57, 0x13))
	assert.Equal(t, byte(0), Mul(0, 0x57))
	assert.Equal(t, byte(0), Mul(0x57, 0))
	assert.Equal(t, byte(0x57), Mul(0x57, 1))
}

func TestDiv(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 1; b < 256; b++ {
			q, err := Div(byte(a), byte(b))
			require.NoError(t, err)
			require.Equal(t, byte(a), Mul(q, byte(b)), "(%d/%d)*%d", a, b, b)
		}
	}
}

func TestDivByZero(t *testing.T) {
	_, err := Div(5, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Inverse(0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	q, err := Div(0, 7)
	require.NoError(t, err)
	assert.Equal(t, byte(0), q)
}

func TestInverse(t *testing.T) {
	for a := 1; a < 256; a++ {
		inv, err := Inverse(byte(a))
		require.NoError(t, err)
		assert.Equal(t, byte(1), Mul(byte(a), inv))
	}
}

func TestAddSubAreXOR(t *testing.T) {
	assert.Equal(t, byte(0x57^0x83), Add(0x57, 0x83))
	assert.Equal(t, Add(0x57, 0x83), Sub(0x57, 0x83))
	for a := 0; a < 256; a++ {
		assert.Equal(t, byte(0), Sub(byte(a), byte(a)))
	}
}

func TestExp(t *testing.T) {
	assert.Equal(t, byte(1), exp(0))
	assert.Equal(t, byte(Generator), exp(1))
	assert.Equal(t, exp(254), exp(-1))
	assert.Equal(t, exp(3), exp(258))
	assert.Equal(t, byte(1), exp(-255))
}

func TestConcurrentReads(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed byte) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				a := seed + byte(i)
				if a == 0 {
					continue
				}
				q, err := Div(Mul(a, 0x53), 0x53)
				if err != nil || q != a {
					t.Errorf("round trip failed for %d", a)
					return
				}
			}
		}(byte(g))
	}
	wg.Wait()
}
