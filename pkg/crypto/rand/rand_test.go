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
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingResolver struct {
	closed bool
}

func (f *failingResolver) Rand(int) ([]byte, error) {
	return nil, errors.New("device gone")
}

func (f *failingResolver) Read([]byte) (int, error) {
	return 0, errors.New("device gone")
}

func (f *failingResolver) Source() Source {
	return nil
}

func (f *failingResolver) Available() bool {
	return false
}

func (f *failingResolver) Close() error {
	f.closed = true
	return nil
}

func TestNewResolver(t *testing.T) {
	tests := []struct {
		name    string
		config  interface{}
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "software mode", config: ModeSoftware},
		{name: "auto mode", config: ModeAuto},
		{name: "config struct", config: &Config{Mode: ModeSoftware}},
		{name: "empty config struct", config: &Config{}},
		{name: "nil config struct", config: (*Config)(nil)},
		{name: "unsupported type", config: 42},
		{name: "invalid mode", config: &Config{Mode: "bogus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = r.Close() }()
			assert.True(t, r.Available())
		})
	}
}

func TestHardwareModesWithoutBuildTags(t *testing.T) {
	if tpm2Available() || pkcs11Available() {
		t.Skip("hardware support compiled in")
	}
	_, err := NewResolver(ModeTPM2)
	assert.Error(t, err)
	_, err = NewResolver(ModePKCS11)
	assert.Error(t, err)
}

func TestSoftwareResolver(t *testing.T) {
	r := Default()
	defer func() { _ = r.Close() }()

	a, err := r.Rand(32)
	require.NoError(t, err)
	require.Len(t, a, 32)

	b := make([]byte, 32)
	n, err := r.Read(b)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	assert.False(t, bytes.Equal(a, b))

	empty, err := r.Rand(0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	src := r.Source()
	require.NotNil(t, src)
	assert.True(t, src.Available())
	out, err := src.Rand(16)
	require.NoError(t, err)
	assert.Len(t, out, 16)
	assert.NoError(t, src.Close())
}

func TestResolverIsReader(t *testing.T) {
	var reader io.Reader = Default()
	buf := make([]byte, 1024)
	_, err := io.ReadFull(reader, buf)
	require.NoError(t, err)
	assert.NotEqual(t, make([]byte, 1024), buf)
}

func TestAutoResolverFallback(t *testing.T) {
	primary := &failingResolver{}
	fallback := Default()
	a := &autoResolver{resolver: primary, fallback: fallback}

	out, err := a.Rand(16)
	require.NoError(t, err)
	assert.Len(t, out, 16)

	buf := make([]byte, 8)
	n, err := a.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.True(t, a.Available())

	require.NoError(t, a.Close())
	assert.True(t, primary.closed)
}

func TestAutoResolverWithoutFallback(t *testing.T) {
	a := &autoResolver{resolver: &failingResolver{}}
	_, err := a.Rand(16)
	assert.Error(t, err)
	assert.False(t, a.Available())
}

func TestAutoResolverConfiguredFallback(t *testing.T) {
	r, err := NewResolver(&Config{Mode: ModeAuto, FallbackMode: ModeSoftware})
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	auto, ok := r.(*autoResolver)
	require.True(t, ok)
	assert.NotNil(t, auto.fallback)
	assert.NotNil(t, auto.Source())
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"auto", "software", "tpm2", "pkcs11"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}

	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	_, err = ParseMode("lavalamp")
	assert.Error(t, err)
}

func TestReadFromShortSource(t *testing.T) {
	short := func(n int) ([]byte, error) { return make([]byte, n/2), nil }
	_, err := readFrom(short, make([]byte, 8))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConcurrentRand(t *testing.T) {
	r, err := NewResolver(ModeAuto)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Rand(32); err != nil {
				t.Errorf("Rand: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestFirstAvailable(t *testing.T) {
	unavailable := &failingResolver{}
	software := Default()

	got := firstAvailable([]func() (Resolver, error){
		func() (Resolver, error) { return nil, ErrUnsupported },
		func() (Resolver, error) { return unavailable, nil },
		func() (Resolver, error) { return software, nil },
	})
	assert.Same(t, software, got)
	assert.True(t, unavailable.closed)

	assert.Nil(t, firstAvailable(nil))
}

func TestAutoResolverCloseJoinsErrors(t *testing.T) {
	a := &autoResolver{resolver: Default(), fallback: &failingResolver{}}
	assert.NoError(t, a.Close())
}
