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

// Package correlation tags one CLI invocation with an ID that every ledger
// log line written on its behalf repeats, so a setup or recovery attempt can
// be traced across the audit log.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// LogKey is the log attribute the ID is written under.
const LogKey = "correlation_id"

type ctxKey struct{}

// WithID returns a copy of ctx carrying id. A nil ctx is treated as
// context.Background.
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the ID carried by ctx, or "" if there is none.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewID returns a fresh random ID.
func NewID() string {
	return uuid.NewString()
}

// Ensure returns ctx unchanged when it already carries an ID, and otherwise
// a child context with a new one. The ID in effect is returned alongside.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}
