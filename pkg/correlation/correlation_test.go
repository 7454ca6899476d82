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

package correlation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{name: "background context", ctx: context.Background(), id: "setup-alice"},
		{name: "nil context", ctx: nil, id: "recover-bob"},
		{name: "overrides parent", ctx: WithID(context.Background(), "parent"), id: "child"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithID(tt.ctx, tt.id) //nolint:staticcheck // nil context is accepted
			assert.Equal(t, tt.id, FromContext(ctx))
		})
	}
}

func TestFromContext_Missing(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
	assert.Empty(t, FromContext(nil)) //nolint:staticcheck // nil context is accepted

	ctx := context.WithValue(context.Background(), ctxKey{}, 42)
	assert.Empty(t, FromContext(ctx))
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestEnsure(t *testing.T) {
	parent := WithID(context.Background(), "existing")
	ctx, id := Ensure(parent)
	assert.Equal(t, "existing", id)
	assert.Equal(t, parent, ctx)

	ctx, id = Ensure(context.Background())
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, FromContext(ctx))
}
