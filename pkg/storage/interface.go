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

// Package storage is the keyed byte store behind recovery keys, guardian
// shares and ledger entries. Keys are slash-separated paths such as
// "recovery/alice.json"; see namespace.go for the layout.
package storage

import (
	"errors"
	"io/fs"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("storage: closed")

	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidID is returned for empty keys and owner IDs that could
	// escape their namespace.
	ErrInvalidID = errors.New("storage: invalid ID")

	// ErrInvalidData is returned when a stored value cannot be decoded.
	ErrInvalidData = errors.New("storage: invalid data")
)

// Backend stores opaque values by key. Implementations are safe for
// concurrent use and return copies, never their internal buffers.
type Backend interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put stores value at key, replacing any previous value. opts may be nil.
	Put(key string, value []byte, opts *Options) error

	// Delete removes key, or returns ErrNotFound.
	Delete(key string) error

	// List returns the keys beginning with prefix in lexical order. An empty
	// prefix lists everything.
	List(prefix string) ([]string, error)

	// Exists reports whether key is present.
	Exists(key string) (bool, error)

	// Close releases the backend. Later calls fail with ErrClosed.
	Close() error
}

// Options tunes a single Put.
type Options struct {
	// Permissions overrides the file mode chosen by file-based backends.
	// Zero keeps the backend's default for the key.
	Permissions fs.FileMode
}
