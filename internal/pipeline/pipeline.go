// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/types"
)

const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// DefaultTimeout bounds one call when the batch request does not set one.
const DefaultTimeout = 5 * time.Minute

// Analyzer runs the full analysis of one library-relative audio file.
type Analyzer interface {
	Analyze(ctx context.Context, rel string) (*types.Snapshot, error)
}

// Outcome is the result of one manifest entry.
type Outcome struct {
	CallID   string  `json:"call_id"`
	FilePath string  `json:"file_path"`
	Status   string  `json:"status"`
	Version  int     `json:"version,omitempty"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

// Report summarizes a batch run.
type Report struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

// ProcessWithContext runs one call with an overall timeout.
func ProcessWithContext(ctx context.Context, a Analyzer, e types.ManifestEntry, timeout time.Duration) (*types.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		snap *types.Snapshot
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := a.Analyze(ctx, e.AudioPath)
		ch <- result{s, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("pipeline timeout for %s: %w", e.AudioPath, ctx.Err())
	case r := <-ch:
		return r.snap, r.err
	}
}

// RunBatch analyses entries one after another. A failed or timed out entry
// is recorded and the batch moves on; only cancellation of ctx stops it
// early, leaving the remaining entries marked as errors.
func RunBatch(ctx context.Context, a Analyzer, entries []types.ManifestEntry, timeout time.Duration, log *logger.Logger) Report {
	log = logger.OrDiscard(log).Component("pipeline")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rep := Report{Total: len(entries), Outcomes: make([]Outcome, 0, len(entries))}

	for _, e := range entries {
		out := Outcome{CallID: e.CallID, FilePath: e.AudioPath}
		if err := ctx.Err(); err != nil {
			out.Status, out.Error = StatusError, "batch cancelled"
			rep.Failed++
			rep.Outcomes = append(rep.Outcomes, out)
			continue
		}

		start := time.Now()
		snap, err := ProcessWithContext(ctx, a, e, timeout)
		out.Duration = time.Since(start).Seconds()
		switch {
		case err == nil:
			out.Status, out.Version = StatusOK, snap.Version
			rep.Succeeded++
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			out.Status, out.Error = StatusTimeout, err.Error()
			rep.Failed++
		default:
			out.Status, out.Error = StatusError, err.Error()
			rep.Failed++
		}
		log.WithField("call_id", e.CallID).WithField("status", out.Status).Info("batch item processed")
		rep.Outcomes = append(rep.Outcomes, out)
	}

	log.WithField("total", rep.Total).WithField("failed", rep.Failed).Info("batch finished")
	return rep
}
