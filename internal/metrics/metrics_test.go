package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.ObserveProvider("openai", "ok", 150*time.Millisecond)
	m.ObserveProvider("openai", "unavailable", time.Second)
	m.ObserveStage("style-designer", "fallback")
	m.RunStarted()
	m.RunFinished("completed", 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("openai", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageOutcomes.WithLabelValues("style-designer", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProvider("x", "ok", time.Second)
		m.ObserveStage("x", "primary")
		m.RunStarted()
		m.RunFinished("completed", time.Second)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveStage("seo-generator", "primary")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sitegen_stage_outcomes_total{path="primary",stage="seo-generator"} 1`)
}
