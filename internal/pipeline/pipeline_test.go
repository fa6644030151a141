package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-call-insights/internal/types"
)

type stubAnalyzer map[string]func(ctx context.Context) (*types.Snapshot, error)

func (s stubAnalyzer) Analyze(ctx context.Context, rel string) (*types.Snapshot, error) {
	return s[rel](ctx)
}

func TestRunBatchCollectsOutcomes(t *testing.T) {
	a := stubAnalyzer{
		"a.wav": func(context.Context) (*types.Snapshot, error) { return &types.Snapshot{Version: 3}, nil },
		"b.wav": func(context.Context) (*types.Snapshot, error) { return nil, errors.New("transcribe: boom") },
		"c.wav": func(ctx context.Context) (*types.Snapshot, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		"d.wav": func(context.Context) (*types.Snapshot, error) { return &types.Snapshot{Version: 1}, nil },
	}
	entries := []types.ManifestEntry{
		{CallID: "1", AudioPath: "a.wav"},
		{CallID: "2", AudioPath: "b.wav"},
		{CallID: "3", AudioPath: "c.wav"},
		{CallID: "4", AudioPath: "d.wav"},
	}

	rep := RunBatch(context.Background(), a, entries, 50*time.Millisecond, nil)
	require.Len(t, rep.Outcomes, 4)
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Equal(t, 2, rep.Failed)

	assert.Equal(t, StatusOK, rep.Outcomes[0].Status)
	assert.Equal(t, 3, rep.Outcomes[0].Version)
	assert.Equal(t, StatusError, rep.Outcomes[1].Status)
	assert.Equal(t, "transcribe: boom", rep.Outcomes[1].Error)
	assert.Equal(t, StatusTimeout, rep.Outcomes[2].Status)
	assert.Equal(t, StatusOK, rep.Outcomes[3].Status)
	assert.Equal(t, "4", rep.Outcomes[3].CallID)
}

func TestRunBatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := stubAnalyzer{
		"a.wav": func(context.Context) (*types.Snapshot, error) {
			t.Fatal("should not run after cancel")
			return nil, nil
		},
	}
	rep := RunBatch(ctx, a, []types.ManifestEntry{{AudioPath: "a.wav"}, {AudioPath: "b.wav"}}, time.Second, nil)
	assert.Equal(t, 0, rep.Succeeded)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, StatusError, rep.Outcomes[1].Status)
	assert.Equal(t, "batch cancelled", rep.Outcomes[1].Error)
}
