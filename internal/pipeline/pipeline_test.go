package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/near-miss-analytics/internal/domain"
	"github.com/couchcryptid/near-miss-analytics/internal/observability"
	"github.com/couchcryptid/near-miss-analytics/internal/pipeline"
	"github.com/couchcryptid/near-miss-analytics/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawMessage
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawMessage, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate an idle topic
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.Incident
	failures int
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, incidents []domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("sink unavailable")
	}
	m.loaded = append(m.loaded, incidents...)
	return nil
}

func (m *mockLoader) snapshot() []domain.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Incident(nil), m.loaded...)
}

type failingTransformer struct{}

func (failingTransformer) Transform(context.Context, domain.RawMessage) (domain.Incident, error) {
	return domain.Incident{}, errors.New("bad data")
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawMessage{{
		rawMessage(`{"id":"NM-1","severity_level":3,"region":"North"}`),
		rawMessage(`{"incident_number":"IN-2"}`),
	}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, pipeline.NewTransformer(), ldr, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	loaded := ldr.snapshot()
	require.Len(t, loaded, 2)
	assert.Equal(t, "NM-1", loaded[0].ID)
	assert.Equal(t, "High", loaded[0].SeverityLabel)
	assert.Equal(t, "IN-2", loaded[1].ID)
	assert.Equal(t, domain.Unknown, loaded[1].Region)
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, pipeline.NewTransformer(), ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int64
	raw := rawMessage(`{"id":"NM-9"}`)
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(ext, failingTransformer{}, ldr, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
	assert.Equal(t, int64(1), commits.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors.WithLabelValues("malformed")), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_NonObjectMessagesSkipped(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawMessage{{
		rawMessage(`[1,2,3]`),
		rawMessage(`not json`),
		rawMessage(`{"id":"ok"}`),
	}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(ext, pipeline.NewTransformer(), ldr, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	loaded := ldr.snapshot()
	require.Len(t, loaded, 1)
	assert.Equal(t, "ok", loaded[0].ID)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors.WithLabelValues("not_object")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors.WithLabelValues("malformed")), 0)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commitCalled atomic.Bool
	ldr := &mockLoader{}

	raw := rawMessage(`{"id":"NM-5"}`)
	raw.Topic = "raw-near-miss-incidents"
	raw.Commit = func(context.Context) error {
		if len(ldr.snapshot()) == 0 {
			return errors.New("committed before load")
		}
		commitCalled.Store(true)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	p := pipeline.New(ext, pipeline.NewTransformer(), ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, commitCalled.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	var commits atomic.Int64
	raw := rawMessage(`{"id":"NM-6"}`)
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	ldr := &mockLoader{failures: 1}
	p := pipeline.New(ext, pipeline.NewTransformer(), ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
	assert.Equal(t, int64(0), commits.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_SinkFailureLeavesStoreUntouched(t *testing.T) {
	var commits atomic.Int64
	raw := rawMessage(`{"id":"NM-7"}`)
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}

	sink := &mockLoader{failures: 1}
	st := store.New(nil)
	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}, {raw}}}
	p := pipeline.New(ext, pipeline.NewTransformer(), pipeline.FanOutLoader{sink, st},
		slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	// First delivery fails at the sink and never reaches the store; the
	// redelivered batch lands in both exactly once.
	assert.Equal(t, 2, sink.calls)
	require.Len(t, sink.snapshot(), 1)
	snap := st.Current()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "NM-7", snap.Records[0].ID)
	assert.Equal(t, int64(1), commits.Load())
}

func TestIncidentTransformer_Transform(t *testing.T) {
	tfm := pipeline.NewTransformer()

	out, err := tfm.Transform(context.Background(), rawMessage(`{"id":7,"severity_level":"9","year":2023,"month":4}`))
	require.NoError(t, err)
	assert.Equal(t, "7", out.ID)
	assert.Equal(t, 4, out.SeverityLevel)
	assert.Equal(t, "Critical", out.SeverityLabel)
	assert.Equal(t, 2023, out.Year)

	_, err = tfm.Transform(context.Background(), rawMessage(`"text"`))
	require.ErrorIs(t, err, domain.ErrNotObject)
}

func TestFanOutLoader(t *testing.T) {
	first := &mockLoader{}
	second := &mockLoader{}
	batch := []domain.Incident{{ID: "a"}, {ID: "b"}}

	require.NoError(t, pipeline.FanOutLoader{first, second}.LoadBatch(context.Background(), batch))
	assert.Len(t, first.snapshot(), 2)
	assert.Len(t, second.snapshot(), 2)

	broken := &mockLoader{failures: 1}
	third := &mockLoader{}
	err := pipeline.FanOutLoader{broken, third}.LoadBatch(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loader 0")
	assert.Equal(t, 0, third.calls)
}

// --- helpers ---

func rawMessage(value string) domain.RawMessage {
	return domain.RawMessage{Value: []byte(value)}
}
