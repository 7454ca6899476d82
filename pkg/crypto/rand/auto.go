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

package rand

import (
	"errors"
	"sync"
)

// autoResolver draws from the first hardware device that reports itself available
// and otherwise from crypto/rand. A configured fallback takes over for
// individual requests the primary fails.
type autoResolver struct {
	mu       sync.RWMutex
	resolver Resolver
	fallback Resolver
}

var _ Resolver = (*autoResolver)(nil)

// hardwareCandidates lists the device constructors in preference order.
// A candidate whose support is not compiled in is skipped.
func hardwareCandidates(cfg *Config) []func() (Resolver, error) {
	var candidates []func() (Resolver, error)
	if pkcs11Available() && cfg.PKCS11Config != nil {
		candidates = append(candidates, func() (Resolver, error) {
			return newPKCS11Resolver(cfg.PKCS11Config)
		})
	}
	if tpm2Available() {
		candidates = append(candidates, func() (Resolver, error) {
			return newTPM2Resolver(cfg.TPM2Config)
		})
	}
	return candidates
}

// firstAvailable returns the first candidate that constructs and reports itself
// available, closing the ones that do not.
func firstAvailable(candidates []func() (Resolver, error)) Resolver {
	for _, open := range candidates {
		r, err := open()
		if err != nil {
			continue
		}
		if r.Available() {
			return r
		}
		_ = r.Close()
	}
	return nil
}

func newAutoResolver(cfg *Config) (Resolver, error) {
	a := &autoResolver{resolver: firstAvailable(hardwareCandidates(cfg))}
	if a.resolver == nil {
		a.resolver = &SoftwareResolver{}
	}

	if cfg.FallbackMode != "" && cfg.FallbackMode != ModeAuto {
		// An unusable fallback leaves the primary on its own.
		if fb, err := newResolver(&Config{Mode: cfg.FallbackMode}); err == nil {
			a.fallback = fb
		}
	}
	return a, nil
}

func (a *autoResolver) sources() (Resolver, Resolver) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resolver, a.fallback
}

func (a *autoResolver) Rand(n int) ([]byte, error) {
	primary, fallback := a.sources()

	out, err := primary.Rand(n)
	if err == nil || fallback == nil {
		return out, err
	}
	return fallback.Rand(n)
}

func (a *autoResolver) Read(p []byte) (int, error) {
	return readFrom(a.Rand, p)
}

func (a *autoResolver) Source() Source {
	primary, _ := a.sources()
	return primary.Source()
}

func (a *autoResolver) Available() bool {
	primary, fallback := a.sources()
	if primary.Available() {
		return true
	}
	return fallback != nil && fallback.Available()
}

// Close closes both resolvers and reports their errors together.
func (a *autoResolver) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, r := range []Resolver{a.resolver, a.fallback} {
		if r != nil {
			errs = append(errs, r.Close())
		}
	}
	return errors.Join(errs...)
}
