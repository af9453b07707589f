package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveFlowCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(flowCalls.WithLabelValues("qa", "ark", "false"))
	ObserveFlow("QA", " Ark ", 20*time.Millisecond, false)
	after := testutil.ToFloat64(flowCalls.WithLabelValues("qa", "ark", "false"))
	assert.Equal(t, before+1, after)
}

func TestLabelsNormalizeEmpty(t *testing.T) {
	before := testutil.ToFloat64(persistenceFailures.WithLabelValues("unknown"))
	PersistenceFailure("")
	assert.Equal(t, before+1, testutil.ToFloat64(persistenceFailures.WithLabelValues("unknown")))
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
