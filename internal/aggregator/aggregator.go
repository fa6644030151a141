package aggregator

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/types"
)

// Enhancer adds the narrative summary layer. It must not fail; failures are
// represented inside the returned summary.
type Enhancer interface {
	Enhance(ctx context.Context, transcript string, rec types.InsightRecord) types.EnhancedSummary
}

type Aggregator struct {
	extractor Extractor
	fallback  Extractor
	enhancer  Enhancer
	log       *logger.Logger
	metrics   *metrics.AnalysisMetrics
	now       func() time.Time
}

// New builds an aggregator around the given extractor. enhancer may be nil.
func New(ex Extractor, enhancer Enhancer, log *logger.Logger, m *metrics.AnalysisMetrics) *Aggregator {
	if ex == nil {
		ex = Heuristic{}
	}
	return &Aggregator{
		extractor: ex,
		fallback:  Heuristic{},
		enhancer:  enhancer,
		log:       logger.OrDiscard(log).Component("aggregator"),
		metrics:   m,
		now:       time.Now,
	}
}

// Analyze produces the insight record for a transcript. It never fails: an
// extractor error falls back to the heuristic path and the method that
// actually produced the record is stored in the metadata.
func (a *Aggregator) Analyze(ctx context.Context, text string) types.InsightRecord {
	rec, err := a.extractor.Extract(ctx, text)
	method := a.extractor.Method()
	if err != nil {
		a.log.WithError(err).WithField("method", method).Warn("extraction failed, using heuristic path")
		rec, _ = a.fallback.Extract(ctx, text)
		method = a.fallback.Method()
	}

	rec.AnalysisMetadata = types.AnalysisMetadata{
		AnalyzedAt:          a.now().UTC(),
		TranscriptionLength: utf8.RuneCountInString(text),
		WordCount:           len(strings.Fields(text)),
		ExtractionMethod:    method,
	}
	a.metrics.ObserveExtraction(method)

	if a.enhancer != nil {
		es := a.enhancer.Enhance(ctx, text, rec)
		rec.EnhancedSummary = &es
	}
	return rec
}
