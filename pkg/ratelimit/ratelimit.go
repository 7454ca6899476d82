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
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket limiter keyed by owner. It throttles recovery
// proof attempts so a key cannot be brute forced against the ledger.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	enabled  bool
	clock    func() time.Time

	cleanupInterval time.Duration
	maxIdle         time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// Config configures a Limiter.
type Config struct {
	// Enabled controls whether limiting is active.
	Enabled bool

	// AttemptsPerMinute sets the sustained attempt rate per owner.
	AttemptsPerMinute int

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to AttemptsPerMinute.
	Burst int

	// CleanupInterval controls how often idle owners are dropped.
	// Defaults to 10 minutes.
	CleanupInterval time.Duration

	// MaxIdle is how long an owner can be idle before cleanup.
	// Defaults to 30 minutes.
	MaxIdle time.Duration

	// Clock overrides time.Now.
	Clock func() time.Time
}

// New creates a Limiter. A nil config yields a disabled limiter.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: false}
	}

	burst := config.Burst
	if burst == 0 {
		burst = config.AttemptsPerMinute
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	maxIdle := config.MaxIdle
	if maxIdle == 0 {
		maxIdle = 30 * time.Minute
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	l := &Limiter{
		limiters:        make(map[string]*rate.Limiter),
		lastSeen:        make(map[string]time.Time),
		rate:            rate.Limit(float64(config.AttemptsPerMinute) / 60.0),
		burst:           burst,
		enabled:         config.Enabled && config.AttemptsPerMinute > 0,
		clock:           clock,
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
		stopCleanup:     make(chan struct{}),
	}

	if l.enabled {
		go l.cleanupWorker()
	}

	return l
}

func (l *Limiter) getLimiter(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}

	l.lastSeen[key] = now
	return limiter
}

// Allow reports whether an attempt for key may proceed now, consuming a
// token if so.
func (l *Limiter) Allow(key string) bool {
	if l == nil || !l.enabled {
		return true
	}

	now := l.clock()
	return l.getLimiter(key, now).AllowN(now, 1)
}

// Reset forgets key's history.
func (l *Limiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
	delete(l.lastSeen, key)
}

// Enabled reports whether the limiter is active.
func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *Limiter) cleanupWorker() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	for key, lastSeen := range l.lastSeen {
		if now.Sub(lastSeen) > l.maxIdle {
			delete(l.limiters, key)
			delete(l.lastSeen, key)
		}
	}
}

// Stop stops the cleanup worker. It is safe to call more than once.
func (l *Limiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// Stats returns limiter statistics. A nil limiter reports itself disabled.
func (l *Limiter) Stats() map[string]interface{} {
	if l == nil {
		return map[string]interface{}{"enabled": false, "tracked_owners": 0}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"enabled":         l.enabled,
		"tracked_owners":  len(l.limiters),
		"rate_per_second": float64(l.rate),
		"burst":           l.burst,
	}
}
