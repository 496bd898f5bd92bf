package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/pipeline"
)

// --- mocks ---

type mockRunner struct {
	failures int64 // number of initial calls that fail
	err      error // returned by failing calls; defaults to a transient error
	calls    atomic.Int64
}

func (m *mockRunner) Reconcile(_ context.Context) (domain.Snapshot, error) {
	n := m.calls.Add(1)
	if n <= m.failures {
		if m.err != nil {
			return domain.Snapshot{}, m.err
		}
		return domain.Snapshot{}, errors.New("source unavailable")
	}
	return domain.Snapshot{RunID: "run"}, nil
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	runner := &mockRunner{}
	p := pipeline.New(runner, time.Hour, testLogger(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), runner.calls.Load())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RepeatsOnInterval(t *testing.T) {
	runner := &mockRunner{}
	p := pipeline.New(runner, 20*time.Millisecond, testLogger(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.GreaterOrEqual(t, runner.calls.Load(), int64(3))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	runner := &mockRunner{}
	p := pipeline.New(runner, time.Hour, testLogger(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), runner.calls.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RetriesFailedRun(t *testing.T) {
	runner := &mockRunner{failures: 1}
	p := pipeline.New(runner, time.Hour, testLogger(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int64(2), runner.calls.Load())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_NotReadyWhileFailing(t *testing.T) {
	runner := &mockRunner{failures: 1 << 30}
	p := pipeline.New(runner, time.Hour, testLogger(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.GreaterOrEqual(t, runner.calls.Load(), int64(2))
	err := p.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reconciliation run has succeeded")
}

func TestPipeline_Run_EmptyInputNotRetried(t *testing.T) {
	runner := &mockRunner{failures: 1 << 30, err: fmt.Errorf("reconcile: %w", pipeline.ErrEmptyInput)}
	p := pipeline.New(runner, time.Hour, testLogger(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int64(1), runner.calls.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}
