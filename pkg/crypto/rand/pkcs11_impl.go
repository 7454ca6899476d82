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

//go:build pkcs11

package rand

import (
	"errors"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// maxTokenRequest bounds a single C_GenerateRandom call. Several tokens
// reject larger requests even though a recovery key only needs 32 bytes.
const maxTokenRequest = 256

var errTokenClosed = errors.New("rand: pkcs11: resolver closed")

// pkcs11Resolver draws recovery key and coefficient bytes from an HSM
// session via C_GenerateRandom.
type pkcs11Resolver struct {
	mu       sync.RWMutex
	ctx      *pkcs11.Ctx
	session  pkcs11.SessionHandle
	loggedIn bool
}

var _ Resolver = (*pkcs11Resolver)(nil)

func pkcs11Available() bool { return true }

func newPKCS11Resolver(config *PKCS11Config) (Resolver, error) {
	if config == nil || config.Module == "" {
		return nil, errors.New("rand: pkcs11: module path is required")
	}

	ctx := pkcs11.New(config.Module)
	if ctx == nil {
		return nil, fmt.Errorf("rand: pkcs11: cannot load module %s", config.Module)
	}

	// undo runs in reverse on any failure below.
	var undo []func()
	fail := func(step string, err error) (Resolver, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return nil, fmt.Errorf("rand: pkcs11: %s: %w", step, err)
	}
	undo = append(undo, ctx.Destroy)

	if err := ctx.Initialize(); err != nil {
		return fail("initialize", err)
	}
	undo = append(undo, func() { _ = ctx.Finalize() })

	// Some tokens only expose their slots after C_GetSlotList.
	if _, err := ctx.GetSlotList(true); err != nil {
		return fail("list slots", err)
	}

	session, err := ctx.OpenSession(config.SlotID, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		return fail("open session", err)
	}
	undo = append(undo, func() { _ = ctx.CloseSession(session) })

	r := &pkcs11Resolver{ctx: ctx, session: session}
	if config.PINRequired && config.PIN != "" {
		if err := ctx.Login(session, pkcs11.CKU_USER, config.PIN); err != nil {
			return fail("login", err)
		}
		r.loggedIn = true
	}
	return r, nil
}

func (p *pkcs11Resolver) Rand(n int) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ctx == nil {
		return nil, errTokenClosed
	}

	out := make([]byte, 0, n)
	for len(out) < n {
		want := min(n-len(out), maxTokenRequest)
		chunk, err := p.ctx.GenerateRandom(p.session, want)
		if err != nil {
			return nil, fmt.Errorf("rand: pkcs11: generate random: %w", err)
		}
		out = append(out, chunk...)
	}
	return out[:n], nil
}

func (p *pkcs11Resolver) Read(b []byte) (int, error) {
	return readFrom(p.Rand, b)
}

func (p *pkcs11Resolver) Source() Source { return p }

func (p *pkcs11Resolver) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ctx != nil
}

// Close logs out, closes the session and unloads the module. It is safe to
// call more than once.
func (p *pkcs11Resolver) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return nil
	}

	if p.loggedIn {
		_ = p.ctx.Logout(p.session)
	}
	_ = p.ctx.CloseSession(p.session)
	_ = p.ctx.Finalize()
	p.ctx.Destroy()
	p.ctx = nil
	return nil
}
