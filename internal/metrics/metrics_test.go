package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(StageCommands.WithLabelValues("approve", "ok"))
	StageCommands.WithLabelValues("approve", Result(nil)).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(StageCommands.WithLabelValues("approve", "ok")))
}

func TestServeDisabled(t *testing.T) {
	require.NoError(t, Serve(context.Background(), ""))
}
