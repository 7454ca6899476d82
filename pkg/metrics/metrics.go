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

// Package metrics provides Prometheus instrumentation for secret sharing,
// recovery key and ledger operations.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all go-veil metrics
	Namespace = "veil"

	// Label names
	LabelOperation = "operation"
	LabelMethod    = "method"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelResult    = "result"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Verification results
	ResultMatch    = "match"
	ResultMismatch = "mismatch"

	// MethodNone labels operations that are not tied to a recovery method
	MethodNone = "none"

	// Operation names
	OpGenerateKey    = "generate_key"
	OpSplit          = "split"
	OpCombine        = "combine"
	OpVerify         = "verify"
	OpStorePut       = "store_put"
	OpStoreGet       = "store_get"
	OpLedgerRecord   = "ledger_record"
	OpLedgerInitiate = "ledger_initiate"
	OpLedgerExecute  = "ledger_execute"
	OpLedgerCancel   = "ledger_cancel"
)

var (
	// OperationsTotal counts operations by name, recovery method and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of recovery operations by type, method, and status",
		},
		[]string{LabelOperation, LabelMethod, LabelStatus},
	)

	// OperationDuration tracks operation latency in seconds. Split and
	// combine are CPU-bound and scale with secret length times share count.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of recovery operations in seconds",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{LabelOperation, LabelMethod},
	)

	// ErrorsTotal counts failures by operation and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// VerificationsTotal counts commitment checks by outcome.
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "verifications_total",
			Help:      "Total number of recovery key verifications by result",
		},
		[]string{LabelResult},
	)

	// SharesIssued counts shares handed out by Shamir recoveries.
	SharesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "shares_issued_total",
			Help:      "Total number of guardian shares produced",
		},
	)

	// ActiveRecoveries tracks ledger entries with a pending time-locked recovery.
	ActiveRecoveries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_recoveries",
			Help:      "Number of initiated recoveries that have not been executed or cancelled",
		},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records an operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	shares, err := shamir.Split(key)
//	metrics.RecordOperation(metrics.OpSplit, "shamir", metrics.Status(err), time.Since(start).Seconds())
func RecordOperation(operation, method, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, method, status).Inc()
	OperationDuration.WithLabelValues(operation, method).Observe(duration)
}

// RecordError records an error with a specific type such as
// "insufficient_shares" or "duplicate_index".
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordVerification records the outcome of a commitment comparison.
func RecordVerification(match bool) {
	if !enabled.Load() {
		return
	}
	result := ResultMismatch
	if match {
		result = ResultMatch
	}
	VerificationsTotal.WithLabelValues(result).Inc()
}

// AddSharesIssued increments the issued share counter by n.
func AddSharesIssued(n int) {
	if !enabled.Load() || n <= 0 {
		return
	}
	SharesIssued.Add(float64(n))
}

// IncActiveRecoveries increments the pending recovery gauge.
func IncActiveRecoveries() {
	if !enabled.Load() {
		return
	}
	ActiveRecoveries.Inc()
}

// DecActiveRecoveries decrements the pending recovery gauge.
func DecActiveRecoveries() {
	if !enabled.Load() {
		return
	}
	ActiveRecoveries.Dec()
}

// Status maps an error onto StatusSuccess or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
