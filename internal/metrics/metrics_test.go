package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAnalysisMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAnalysisMetrics(reg)
	m.ObserveAnalysis("success", 1.5)
	m.ObserveExtraction("basic")
	m.ObserveExtraction("basic")
	m.ObserveCollaborator("asr", nil, 0.2)
	m.ObserveCollaborator("llm", errors.New("x"), 0.3)
	m.ObserveEnhancementFailure("clinical_summary")
	m.ObserveIndex("indexed")
	m.ObserveTokenRenewal("cdp", "renewed")
	m.ObserveEvent("calls", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.extractionTotal.WithLabelValues("basic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexTotal.WithLabelValues("indexed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("calls", "ok")))
}

func TestAnalysisMetricsNilSafe(t *testing.T) {
	var m *AnalysisMetrics
	m.ObserveAnalysis("failed", 0.1)
	m.ObserveExtraction("ai")
	m.ObserveCollaborator("asr", nil, 0.1)
	m.ObserveEnhancementFailure("takeaways")
	m.ObserveIndex("failed")
	m.ObserveTokenRenewal("cdp", "failed")
	m.ObserveEvent("calls", nil)
}
