// Package processor runs the end-to-end analysis of one audio file:
// health gate, transcription, insight extraction, persistence, indexing and
// event publication.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"healthcare-call-insights/internal/events"
	"healthcare-call-insights/internal/health"
	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/search"
	"healthcare-call-insights/internal/types"
)

// ErrUnavailable is returned when the speech service is not online.
var ErrUnavailable = errors.New("service unavailable")

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (types.Transcript, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) types.InsightRecord
}

type HealthGate interface {
	CheckAll(ctx context.Context) health.Report
}

type Indexer interface {
	Enabled() bool
	Index(ctx context.Context, snap *types.Snapshot) (*search.IndexResult, error)
}

type Saver interface {
	Save(ctx context.Context, snap *types.Snapshot) (int, error)
}

type Resolver interface {
	FullPath(rel string) (string, error)
}

type Publisher interface {
	PublishAnalysis(ctx context.Context, key string, event events.AnalysisEvent) error
}

// Deps is the collaborator set built from one settings snapshot. It is
// replaced as a whole when settings change; in-flight analyses keep the set
// they started with.
type Deps struct {
	Health      HealthGate
	Transcriber Transcriber
	Analyzer    Analyzer
	Search      Indexer
	AutoIndex   bool
}

type Processor struct {
	deps    atomic.Pointer[Deps]
	store   Saver
	files   Resolver
	events  Publisher
	log     *logger.Logger
	metrics *metrics.AnalysisMetrics
	now     func() time.Time
}

func New(d *Deps, store Saver, files Resolver, pub Publisher, log *logger.Logger, m *metrics.AnalysisMetrics) *Processor {
	p := &Processor{
		store:   store,
		files:   files,
		events:  pub,
		log:     logger.OrDiscard(log).Component("processor"),
		metrics: m,
		now:     time.Now,
	}
	p.deps.Store(d)
	return p
}

// Deps returns the current collaborator set.
func (p *Processor) Deps() *Deps { return p.deps.Load() }

// Swap installs a new collaborator set and returns the previous one.
func (p *Processor) Swap(d *Deps) *Deps {
	old := p.deps.Swap(d)
	p.log.Info("collaborators rebuilt from settings")
	return old
}

// Analyze processes one library-relative audio file and returns the saved
// snapshot. Transcription and persistence failures are returned; indexing
// and event failures are logged.
func (p *Processor) Analyze(ctx context.Context, rel string) (*types.Snapshot, error) {
	start := p.now()
	d := p.deps.Load()
	log := p.log.WithField("file_path", rel)

	snap, err := p.analyze(ctx, d, rel, start)
	elapsed := p.now().Sub(start).Seconds()
	if err != nil {
		p.metrics.ObserveAnalysis("failed", elapsed)
		log.WithError(err).Error("analysis failed")
		return nil, err
	}
	p.metrics.ObserveAnalysis("success", elapsed)
	log.WithField("version", snap.Version).WithField("processing_time", snap.ProcessingTime).Info("analysis completed")
	return snap, nil
}

func (p *Processor) analyze(ctx context.Context, d *Deps, rel string, start time.Time) (*types.Snapshot, error) {
	log := p.log.WithField("file_path", rel)

	if d.Health != nil {
		rep := d.Health.CheckAll(ctx)
		asr, ok := rep.Services[health.ASRService]
		if ok && asr.Status != health.StatusOnline {
			msg := asr.Error
			if msg == "" {
				msg = "Service is offline"
			}
			return nil, fmt.Errorf("%w: speech recognition is %s: %s", ErrUnavailable, asr.Status, msg)
		}
		if llmRes, ok := rep.Services[health.LLMService]; ok &&
			llmRes.Status != health.StatusOnline && llmRes.Status != health.StatusDisabled {
			log.WithField("status", llmRes.Status).Warn("language model unavailable, AI summaries will fall back")
		}
	}

	full, err := p.files.FullPath(rel)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", types.ErrNotFound, rel)
		}
		return nil, err
	}

	log.Info("starting analysis")
	tr, err := d.Transcriber.Transcribe(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	rec := d.Analyzer.Analyze(ctx, tr.Text)

	format := tr.Format
	if format == "" {
		format = "unknown"
	}
	snap := &types.Snapshot{
		FilePath:      rel,
		Transcription: tr.Text,
		CallMetadata: types.CallMetadata{
			DurationSeconds: tr.Duration,
			AudioFormat:     format,
			SampleRate:      tr.SampleRate,
			ConfidenceScore: tr.Confidence,
			Language:        tr.Language,
		},
		HealthcareInsights: rec,
		Timestamp:          p.now(),
	}
	snap.ProcessingTime = snap.Timestamp.Sub(start).Seconds()

	if _, err := p.store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	indexed := false
	if d.AutoIndex && d.Search != nil && d.Search.Enabled() {
		if _, err := d.Search.Index(ctx, snap); err != nil {
			log.WithError(err).Warn("auto-index failed")
		} else {
			indexed = true
		}
	}

	if p.events != nil {
		ev := events.AnalysisEvent{
			FilePath:         rel,
			Version:          snap.Version,
			CallType:         rec.CallType,
			UrgencyLevel:     rec.UrgencyLevel.Level,
			Sentiment:        rec.SentimentAnalysis.OverallSentiment,
			ExtractionMethod: rec.AnalysisMetadata.ExtractionMethod,
			ProcessingTime:   snap.ProcessingTime,
			Indexed:          indexed,
			Timestamp:        snap.Timestamp,
		}
		if err := p.events.PublishAnalysis(ctx, rel, ev); err != nil {
			log.WithError(err).Warn("publish analysis event failed")
		}
	}
	return snap, nil
}
