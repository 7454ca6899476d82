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

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsEnabled(t *testing.T) {
	assert.True(t, IsEnabled())

	Disable()
	assert.False(t, IsEnabled())

	Enable()
	assert.True(t, IsEnabled())
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpSplit, "shamir", StatusSuccess, 0.0001)
	RecordOperation(OpSplit, "shamir", StatusSuccess, 0.0002)
	RecordOperation(OpCombine, MethodNone, StatusError, 0.0001)

	assert.Equal(t, 2, testutil.CollectAndCount(OperationsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(OperationsTotal.WithLabelValues(OpSplit, "shamir", StatusSuccess)))
	assert.Equal(t, 2, testutil.CollectAndCount(OperationDuration))
}

func TestRecordOperationDisabled(t *testing.T) {
	OperationsTotal.Reset()
	Disable()
	defer Enable()

	RecordOperation(OpVerify, MethodNone, StatusSuccess, 0.1)
	RecordError(OpVerify, "bad")
	RecordVerification(true)
	AddSharesIssued(3)
	IncActiveRecoveries()

	assert.Equal(t, 0, testutil.CollectAndCount(OperationsTotal))
}

func TestRecordError(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()

	RecordError(OpCombine, "duplicate_index")
	assert.Equal(t, float64(1), testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpCombine, "duplicate_index")))
}

func TestRecordVerification(t *testing.T) {
	Enable()
	VerificationsTotal.Reset()

	RecordVerification(true)
	RecordVerification(false)
	RecordVerification(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(VerificationsTotal.WithLabelValues(ResultMatch)))
	assert.Equal(t, float64(2), testutil.ToFloat64(VerificationsTotal.WithLabelValues(ResultMismatch)))
}

func TestSharesAndActiveRecoveries(t *testing.T) {
	Enable()
	before := testutil.ToFloat64(SharesIssued)
	AddSharesIssued(5)
	AddSharesIssued(0)
	assert.Equal(t, before+5, testutil.ToFloat64(SharesIssued))

	ActiveRecoveries.Set(0)
	IncActiveRecoveries()
	IncActiveRecoveries()
	DecActiveRecoveries()
	assert.Equal(t, float64(1), testutil.ToFloat64(ActiveRecoveries))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusError, Status(errors.New("x")))
}
