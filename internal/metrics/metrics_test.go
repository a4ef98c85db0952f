package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	expected := errors.New("insufficient funds")

	assert.Equal(t, ResultOk, classify(nil, nil))
	assert.Equal(t, ResultRejected, classify(fmt.Errorf("wrapped: %w", expected), []error{expected}))
	assert.Equal(t, ResultError, classify(errors.New("boom"), []error{expected}))
}

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(LedgerOperationsTotal.WithLabelValues("test_op", ResultOk))
	RecordOperation("test_op", nil)
	after := testutil.ToFloat64(LedgerOperationsTotal.WithLabelValues("test_op", ResultOk))
	assert.Equal(t, before+1, after)
}
