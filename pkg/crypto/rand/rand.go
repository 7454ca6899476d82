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

// Package rand provides the cryptographically secure randomness used for
// recovery key generation and Shamir polynomial coefficients.
//
// Every consumer in go-veil takes an io.Reader for entropy so the source can
// be swapped: software (crypto/rand) by default, a TPM2 or PKCS#11 device when
// the binary is built with the tpm2 or pkcs11 tags, or a deterministic reader
// in tests. Non-cryptographic generators must never be used for share
// coefficients; bias in the coefficients leaks into the shares.
//
//	rng, _ := rand.NewResolver(rand.ModeAuto)
//	defer rng.Close()
//	key, _ := rng.Rand(32)
//
// All Resolver implementations are safe for concurrent use.
package rand

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupported is returned when a hardware mode is requested from a
// binary built without support for it.
var ErrUnsupported = errors.New("rand: source not compiled in")

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto selects the best available source.
	// Preference order: PKCS#11 > TPM2 > Software
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand
	ModeSoftware Mode = "software"

	// ModeTPM2 uses a TPM 2.0 GetRandom command
	ModeTPM2 Mode = "tpm2"

	// ModePKCS11 uses C_GenerateRandom on a PKCS#11 token
	ModePKCS11 Mode = "pkcs11"
)

// Config contains RNG configuration.
type Config struct {
	// Mode specifies the primary RNG source. Defaults to ModeAuto.
	Mode Mode

	// FallbackMode is used when the primary source fails. When empty,
	// failures are returned to the caller.
	FallbackMode Mode

	// TPM2Config is used when Mode is ModeTPM2 or auto-detection picks TPM2.
	TPM2Config *TPM2Config

	// PKCS11Config is used when Mode is ModePKCS11 or auto-detection picks PKCS#11.
	PKCS11Config *PKCS11Config
}

// TPM2Config contains configuration for TPM2 RNG.
type TPM2Config struct {
	// Device path to the TPM device (default: "/dev/tpm0")
	Device string

	// MaxRequestSize limits bytes per GetRandom call (default: 32)
	MaxRequestSize int

	// UseSimulator connects to a TCP simulator instead of Device
	UseSimulator  bool
	SimulatorHost string
	SimulatorPort int
}

// PKCS11Config contains configuration for PKCS#11 RNG.
type PKCS11Config struct {
	Module      string
	SlotID      uint
	PINRequired bool
	PIN         string
}

// Source represents a random number generator.
type Source interface {
	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Available returns true if this source is ready.
	Available() bool

	// Close releases any resources.
	Close() error
}

// Resolver is the entropy provider handed to the splitter and the recovery
// manager. It implements io.Reader so it can stand in for crypto/rand.Reader.
type Resolver interface {
	// Rand returns n random bytes from the configured source, trying the
	// fallback source if the primary fails.
	Rand(n int) ([]byte, error)

	// Read fills p completely or returns an error.
	Read(p []byte) (n int, err error)

	// Source returns the underlying Source.
	Source() Source

	// Available returns true if at least one source is available.
	Available() bool

	// Close releases any resources.
	Close() error
}

// NewResolver creates a new RNG resolver. The config may be nil, a Mode or
// a *Config. Nil or empty configurations use auto mode.
func NewResolver(config interface{}) (Resolver, error) {
	cfg := normalizeConfig(config)
	return newResolver(cfg)
}

// Default returns the software resolver, which cannot fail to construct.
func Default() Resolver {
	return &SoftwareResolver{}
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeSoftware, ModeTPM2, ModePKCS11:
		return m, nil
	default:
		return "", fmt.Errorf("unknown RNG mode: %s", s)
	}
}

func normalizeConfig(config interface{}) *Config {
	if config == nil {
		return &Config{Mode: ModeAuto}
	}

	switch v := config.(type) {
	case Mode:
		return &Config{Mode: v}
	case *Config:
		if v == nil {
			return &Config{Mode: ModeAuto}
		}
		if v.Mode == "" {
			v.Mode = ModeAuto
		}
		return v
	default:
		return &Config{Mode: ModeAuto}
	}
}

func newResolver(cfg *Config) (Resolver, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModeAuto:
		return newAutoResolver(cfg)
	case ModeSoftware:
		return newSoftwareResolver()
	case ModeTPM2:
		return newTPM2Resolver(cfg.TPM2Config)
	case ModePKCS11:
		return newPKCS11Resolver(cfg.PKCS11Config)
	default:
		return nil, fmt.Errorf("unknown RNG mode: %s", mode)
	}
}

// readFrom fills p using rand, the helper shared by resolvers whose native
// API returns fresh slices.
func readFrom(rand func(int) ([]byte, error), p []byte) (int, error) {
	data, err := rand(len(p))
	if err != nil {
		return 0, err
	}
	if len(data) != len(p) {
		return 0, io.ErrUnexpectedEOF
	}
	return copy(p, data), nil
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

func newSoftwareResolver() (Resolver, error) {
	return &SoftwareResolver{}, nil
}

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *SoftwareResolver) Read(p []byte) (n int, err error) {
	return io.ReadFull(rand.Reader, p)
}

func (s *SoftwareResolver) Source() Source {
	return &softwareSource{}
}

func (s *SoftwareResolver) Available() bool {
	return true
}

func (s *SoftwareResolver) Close() error {
	return nil
}

type softwareSource struct{}

func (s *softwareSource) Rand(n int) ([]byte, error) {
	return (&SoftwareResolver{}).Rand(n)
}

func (s *softwareSource) Available() bool {
	return true
}

func (s *softwareSource) Close() error {
	return nil
}
