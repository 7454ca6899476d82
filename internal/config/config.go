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

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-veil/pkg/crypto/rand"
	"github.com/jeremyhahn/go-veil/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-veil/pkg/ratelimit"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
)

// Config represents the complete veil configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	RNG      RNGConfig      `yaml:"rng"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig selects the backend for recovery keys, shares and the ledger
type StorageConfig struct {
	Backend string `yaml:"backend"` // file, memory
	Path    string `yaml:"path"`
}

// RNGConfig selects the entropy source for keys and polynomial coefficients
type RNGConfig struct {
	Mode         string `yaml:"mode"`     // auto, software, tpm2, pkcs11
	Fallback     string `yaml:"fallback"` // used when mode is unavailable
	TPM2Device   string `yaml:"tpm2_device,omitempty"`
	PKCS11Module string `yaml:"pkcs11_module,omitempty"`
	PKCS11Slot   uint   `yaml:"pkcs11_slot,omitempty"`
	PKCS11PIN    string `yaml:"pkcs11_pin,omitempty"`
}

// RecoveryConfig holds defaults for new recovery configurations.
// AttemptsPerMinute throttles recovery proofs per owner; 0 disables it.
type RecoveryConfig struct {
	Threshold         int `yaml:"threshold"`
	TotalShares       int `yaml:"total_shares"`
	TimelockDays      int `yaml:"timelock_days"`
	AttemptsPerMinute int `yaml:"attempts_per_minute"`
}

// MetricsConfig controls metrics collection. When Textfile is set the CLI
// writes the collected metrics there in Prometheus text format on exit.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// Storage backends
const (
	StorageFile   = "file"
	StorageMemory = "memory"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Backend: StorageFile,
			Path:    defaultDataDir(),
		},
		RNG: RNGConfig{
			Mode:     string(rand.ModeAuto),
			Fallback: string(rand.ModeSoftware),
		},
		Recovery: RecoveryConfig{
			Threshold:         3,
			TotalShares:       5,
			TimelockDays:      7,
			AttemptsPerMinute: 5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".veil"
	}
	return filepath.Join(home, ".veil")
}

// Load reads configuration from a YAML file on top of the defaults and
// applies environment variable overrides. An empty path loads the
// defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("VEIL_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("VEIL_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if backend := os.Getenv("VEIL_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dataDir := os.Getenv("VEIL_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
	}
	if mode := os.Getenv("VEIL_RNG_MODE"); mode != "" {
		cfg.RNG.Mode = mode
	}
	if enabled := os.Getenv("VEIL_METRICS_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid VEIL_METRICS_ENABLED value %q, using %t: %v",
				enabled, cfg.Metrics.Enabled, err)
		} else {
			cfg.Metrics.Enabled = v
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	// Validate storage
	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path must be specified for the file backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid storage backend: %q (must be file or memory)", c.Storage.Backend)
	}

	// Validate RNG
	if _, err := rand.ParseMode(c.RNG.Mode); err != nil {
		return fmt.Errorf("invalid rng mode: %w", err)
	}
	if c.RNG.Fallback != "" {
		if _, err := rand.ParseMode(c.RNG.Fallback); err != nil {
			return fmt.Errorf("invalid rng fallback: %w", err)
		}
	}

	// Validate recovery defaults
	shareCfg := secretsharing.ShareConfig{
		Threshold:   c.Recovery.Threshold,
		TotalShares: c.Recovery.TotalShares,
	}
	if err := shareCfg.Validate(); err != nil {
		return fmt.Errorf("invalid recovery defaults: %w", err)
	}
	if err := (recovery.TimeLock{Days: c.Recovery.TimelockDays}).Validate(); err != nil {
		return fmt.Errorf("invalid recovery defaults: %w", err)
	}
	if c.Recovery.AttemptsPerMinute < 0 {
		return fmt.Errorf("recovery attempts per minute cannot be negative")
	}

	return nil
}

// AttemptLimiter builds the recovery proof limiter from the recovery
// section. The caller must Stop it.
func (c *Config) AttemptLimiter() *ratelimit.Limiter {
	return ratelimit.New(&ratelimit.Config{
		Enabled:           c.Recovery.AttemptsPerMinute > 0,
		AttemptsPerMinute: c.Recovery.AttemptsPerMinute,
	})
}

// RandConfig converts the rng section into a rand.Config.
func (c *Config) RandConfig() *rand.Config {
	mode, _ := rand.ParseMode(c.RNG.Mode)
	cfg := &rand.Config{Mode: mode}

	if c.RNG.Fallback != "" {
		cfg.FallbackMode, _ = rand.ParseMode(c.RNG.Fallback)
	}
	if c.RNG.TPM2Device != "" {
		cfg.TPM2Config = &rand.TPM2Config{Device: c.RNG.TPM2Device}
	}
	if c.RNG.PKCS11Module != "" {
		cfg.PKCS11Config = &rand.PKCS11Config{
			Module:      c.RNG.PKCS11Module,
			SlotID:      c.RNG.PKCS11Slot,
			PINRequired: c.RNG.PKCS11PIN != "",
			PIN:         c.RNG.PKCS11PIN,
		}
	}
	return cfg
}
