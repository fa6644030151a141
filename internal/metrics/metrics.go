package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnalysisMetrics exposes counters/histograms for the analysis pipeline and
// its collaborators.
type AnalysisMetrics struct {
	analysesTotal       *prometheus.CounterVec
	analysisLatency     prometheus.Histogram
	extractionTotal     *prometheus.CounterVec
	collaboratorLatency *prometheus.HistogramVec
	enhancementFailures *prometheus.CounterVec
	indexTotal          *prometheus.CounterVec
	tokenRenewals       *prometheus.CounterVec
	eventsTotal         *prometheus.CounterVec
}

func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	m := &AnalysisMetrics{
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callinsights",
			Subsystem: "analysis",
			Name:      "total",
			Help:      "Total analysis runs by outcome",
		}, []string{"outcome"}),
		analysisLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "callinsights",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End to end analysis duration",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		extractionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callinsights",
			Subsystem: "analysis",
			Name:      "extraction_total",
			Help:      "Insight records by extraction method",
		}, []string{"method"}),
		collaboratorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callinsights",
			Subsystem: "collaborator",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to external services",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "outcome"}),
		enhancementFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callinsights",
			Subsystem: "enhancement",
			Name:      "failures_total",
			Help:      "Enhancement sub-calls that fell back to a placeholder",
		}, []string{"part"}),
		indexTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callinsights",
			Subsystem: "search",
			Name:      "index_total",
			Help:      "Search index pushes by status",
		}, []string{"status"}),
		tokenRenewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callinsights",
			Subsystem: "token",
			Name:      "renewals_total",
			Help:      "Token renewal attempts by service and status",
		}, []string{"service", "status"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callinsights",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Analysis events by topic and outcome",
		}, []string{"topic", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.analysesTotal, m.analysisLatency, m.extractionTotal, m.collaboratorLatency,
		m.enhancementFailures, m.indexTotal, m.tokenRenewals, m.eventsTotal)
	return m
}

func (m *AnalysisMetrics) ObserveAnalysis(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisLatency.Observe(seconds)
}

func (m *AnalysisMetrics) ObserveExtraction(method string) {
	if m == nil {
		return
	}
	m.extractionTotal.WithLabelValues(method).Inc()
}

func (m *AnalysisMetrics) ObserveCollaborator(service string, err error, seconds float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.collaboratorLatency.WithLabelValues(service, outcome).Observe(seconds)
}

func (m *AnalysisMetrics) ObserveEnhancementFailure(part string) {
	if m == nil {
		return
	}
	m.enhancementFailures.WithLabelValues(part).Inc()
}

func (m *AnalysisMetrics) ObserveIndex(status string) {
	if m == nil {
		return
	}
	m.indexTotal.WithLabelValues(status).Inc()
}

func (m *AnalysisMetrics) ObserveTokenRenewal(service, status string) {
	if m == nil {
		return
	}
	m.tokenRenewals.WithLabelValues(service, status).Inc()
}

func (m *AnalysisMetrics) ObserveEvent(topic string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.eventsTotal.WithLabelValues(topic, outcome).Inc()
}
