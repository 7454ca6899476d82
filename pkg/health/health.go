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
// Package health runs self-checks against the components a veil
// installation depends on: the storage backend, the entropy source, the
// ledger and its attempt limiter.
package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-veil/pkg/ledger"
	"github.com/jeremyhahn/go-veil/pkg/ratelimit"
	"github.com/jeremyhahn/go-veil/pkg/storage"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is operating normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is not functioning.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the component is functioning but with reduced capacity.
	StatusDegraded Status = "degraded"
)

// sentinelKey is written and removed by the storage check.
const sentinelKey = ".health/sentinel"

// CheckResult is the outcome of a single check.
type CheckResult struct {
	// Name is the identifier for this health check.
	Name string `json:"name"`
	// Status is the health status of the component.
	Status Status `json:"status"`
	// Message provides additional context about the status.
	Message string `json:"message,omitempty"`
	// Latency is how long the check took to execute.
	Latency time.Duration `json:"latency"`
	// Error contains error details if the check failed.
	Error string `json:"error,omitempty"`
}

// CheckFunc performs a health check.
type CheckFunc func(ctx context.Context) CheckResult

// Checker holds a set of named checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
	}
}

// RegisterCheck adds or replaces a check. Nil checks are ignored.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes a check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// GetAllChecks returns the registered check names in sorted order.
func (c *Checker) GetAllChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check and returns the results sorted by name.
func (c *Checker) Run(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make([]CheckResult, 0, len(checks))
	for name, check := range checks {
		start := time.Now()
		result := check(ctx)
		result.Latency = time.Since(start)
		if result.Name == "" {
			result.Name = name
		}
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return results
}

// IsHealthy reports whether every check passes.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	return AggregateStatus(c.Run(ctx)) == StatusHealthy
}

// AggregateStatus returns the worst status in results.
func AggregateStatus(results []CheckResult) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

func unhealthy(name, message string, err error) CheckResult {
	return CheckResult{
		Name:    name,
		Status:  StatusUnhealthy,
		Message: message,
		Error:   err.Error(),
	}
}

// StorageCheck writes, reads back and deletes a sentinel value.
func StorageCheck(backend storage.Backend) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "storage"
		if err := ctx.Err(); err != nil {
			return unhealthy(name, "check cancelled", err)
		}

		want := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		if err := backend.Put(sentinelKey, want, nil); err != nil {
			return unhealthy(name, "write failed", err)
		}
		defer func() { _ = backend.Delete(sentinelKey) }()

		got, err := backend.Get(sentinelKey)
		if err != nil {
			return unhealthy(name, "read failed", err)
		}
		if !bytes.Equal(got, want) {
			return unhealthy(name, "read back mismatch", errors.New("sentinel value changed"))
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: "read/write ok"}
	}
}

// EntropyCheck draws two samples from random and fails if either read
// fails or the samples repeat.
func EntropyCheck(random io.Reader) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "entropy"
		if err := ctx.Err(); err != nil {
			return unhealthy(name, "check cancelled", err)
		}

		a := make([]byte, 32)
		b := make([]byte, 32)
		if _, err := io.ReadFull(random, a); err != nil {
			return unhealthy(name, "read failed", err)
		}
		if _, err := io.ReadFull(random, b); err != nil {
			return unhealthy(name, "read failed", err)
		}
		if bytes.Equal(a, b) {
			return unhealthy(name, "repeated output", errors.New("entropy source returned identical samples"))
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: "64 bytes read"}
	}
}

// LedgerCheck loads every ledger entry. Unreadable entries degrade the
// ledger rather than fail it.
func LedgerCheck(l ledger.Ledger) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "ledger"
		owners, err := l.List(ctx)
		if err != nil {
			return unhealthy(name, "list failed", err)
		}

		var bad []string
		active := 0
		for _, owner := range owners {
			entry, err := l.Get(ctx, owner)
			if err != nil {
				bad = append(bad, owner)
				continue
			}
			if entry.RecoveryActive {
				active++
			}
		}

		message := fmt.Sprintf("%d entries, %d active recoveries", len(owners), active)
		if len(bad) > 0 {
			return CheckResult{
				Name:    name,
				Status:  StatusDegraded,
				Message: message,
				Error:   fmt.Sprintf("unreadable entries: %v", bad),
			}
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: message}
	}
}

// AttemptLimiterCheck reports the recovery attempt limiter's settings and
// how many owners it is tracking. A disabled limiter degrades the check:
// recovery proofs can then be guessed at full speed.
func AttemptLimiterCheck(l *ratelimit.Limiter) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "attempts"
		if err := ctx.Err(); err != nil {
			return unhealthy(name, "check cancelled", err)
		}

		stats := l.Stats()
		if enabled, _ := stats["enabled"].(bool); !enabled {
			return CheckResult{
				Name:    name,
				Status:  StatusDegraded,
				Message: "attempt limiting disabled",
			}
		}
		perMinute, _ := stats["rate_per_second"].(float64)
		return CheckResult{
			Name:   name,
			Status: StatusHealthy,
			Message: fmt.Sprintf("%.0f/min, burst %v, %v owners tracked",
				perMinute*60, stats["burst"], stats["tracked_owners"]),
		}
	}
}
