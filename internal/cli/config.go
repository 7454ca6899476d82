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

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeremyhahn/go-veil/internal/config"
	"github.com/jeremyhahn/go-veil/pkg/crypto/rand"
	"github.com/jeremyhahn/go-veil/pkg/ledger"
	"github.com/jeremyhahn/go-veil/pkg/logging"
	"github.com/jeremyhahn/go-veil/pkg/metrics"
	"github.com/jeremyhahn/go-veil/pkg/ratelimit"
	"github.com/jeremyhahn/go-veil/pkg/recovery"
	"github.com/jeremyhahn/go-veil/pkg/storage"
	"github.com/jeremyhahn/go-veil/pkg/storage/file"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the YAML configuration file
	ConfigFile string

	// DataDir overrides storage.path from the configuration file
	DataDir string

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables verbose output and debug logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
		Verbose:      false,
	}
}

// Settings loads the configuration file (if any), applies environment
// overrides and then the command-line overrides.
func (c *Config) Settings() (*config.Config, error) {
	settings, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	if c.DataDir != "" {
		settings.Storage.Path = c.DataDir
		settings.Storage.Backend = config.StorageFile
	}
	if c.Verbose {
		settings.Logging.Level = "debug"
	}
	return settings, nil
}

// environment holds the services a command runs against
type environment struct {
	settings *config.Config
	logger   *logging.Logger
	random   rand.Resolver
	backend  storage.Backend
	manager  *recovery.Manager
	store    *recovery.Store
	ledger   ledger.Ledger
	attempts *ratelimit.Limiter
}

// open builds the environment described by the configuration. Log records
// go to logOut.
func (c *Config) open(logOut io.Writer) (*environment, error) {
	settings, err := c.Settings()
	if err != nil {
		return nil, err
	}

	if settings.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	logger := logging.New(logOut, settings.Logging.Level, settings.Logging.Format)

	random, err := rand.NewResolver(settings.RandConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create RNG: %w", err)
	}

	backend, err := createBackend(settings.Storage)
	if err != nil {
		_ = random.Close()
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	attempts := settings.AttemptLimiter()

	logger.Debug("environment ready",
		"storage", settings.Storage.Backend,
		"path", settings.Storage.Path,
		"rng", settings.RNG.Mode)

	return &environment{
		settings: settings,
		logger:   logger,
		random:   random,
		backend:  backend,
		manager: recovery.NewManager(&recovery.Config{
			Random: random,
			Logger: logger,
		}),
		store:    recovery.NewStore(backend),
		ledger:   ledger.NewStoreLedger(backend, ledger.WithLogger(logger), ledger.WithAttemptLimiter(attempts)),
		attempts: attempts,
	}, nil
}

func createBackend(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.StorageFile:
		return file.New(cfg.Path)
	case config.StorageMemory:
		return storage.NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// Close releases the environment and writes the metrics textfile when one
// is configured.
func (e *environment) Close() error {
	var errs []error
	e.attempts.Stop()
	if path := e.settings.Metrics.Textfile; path != "" && e.settings.Metrics.Enabled {
		if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if err := e.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.random.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
