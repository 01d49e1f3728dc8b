package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegistered(t *testing.T) {
	Calls.WithLabelValues("stoch", "LONG").Inc()
	Decisions.WithLabelValues("LONG").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["sbifx_calls_total"])
	assert.True(t, names["sbifx_decisions_total"])
}

func TestCounterIncrements(t *testing.T) {
	c := ArbiterCycles.WithLabelValues("MISMATCH")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestHandlerServesMetrics(t *testing.T) {
	SamplesRead.WithLabelValues("macd").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sbifx_samples_read_total")
}
