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

// Package testutil provides entropy sources for reproducible tests.
package testutil

import (
	"crypto/sha256"
	"errors"
	"sync"

	"golang.org/x/crypto/chacha20"
)

// ErrEntropyExhausted is returned by FailingReader once its budget is spent.
var ErrEntropyExhausted = errors.New("testutil: entropy exhausted")

// DeterministicReader is a ChaCha20 keystream keyed from a seed string. Two
// readers built from the same seed produce identical byte streams, which
// lets tests pin share payloads without touching production code paths.
type DeterministicReader struct {
	mu     sync.Mutex
	cipher *chacha20.Cipher
}

// NewDeterministicReader returns a reader keyed by SHA-256(seed).
func NewDeterministicReader(seed string) *DeterministicReader {
	key := sha256.Sum256([]byte(seed))
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		// key and nonce sizes are fixed above
		panic(err)
	}
	return &DeterministicReader{cipher: c}
}

func (r *DeterministicReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Rand returns n bytes of keystream. It lets the reader stand in for a
// rand.Resolver-shaped dependency.
func (r *DeterministicReader) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := r.Read(buf)
	return buf, err
}

// FailingReader serves Budget bytes of zeros and then fails.
type FailingReader struct {
	Budget int
}

func (r *FailingReader) Read(p []byte) (int, error) {
	if r.Budget <= 0 {
		return 0, ErrEntropyExhausted
	}
	n := len(p)
	if n > r.Budget {
		n = r.Budget
	}
	for i := 0; i < n; i++ {
		p[i] = 0
	}
	r.Budget -= n
	return n, nil
}
