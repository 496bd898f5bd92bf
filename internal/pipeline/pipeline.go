package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
	"github.com/couchcryptid/forest-data-etl/internal/retry"
)

// Runner performs one reconciliation.
type Runner interface {
	Reconcile(ctx context.Context) (domain.Snapshot, error)
}

// maxRunRetries bounds how many times a failed run is retried before the
// scheduler waits for the next interval.
const maxRunRetries = 5

// Pipeline schedules reconciliation runs.
type Pipeline struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Pipeline that reconciles every interval.
func New(runner Runner, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		runner:   runner,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has succeeded, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no reconciliation run has succeeded yet")
	}
	return nil
}

// Run reconciles immediately, then on every interval, until the context is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		if !p.runWithRetry(ctx) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		if !retry.Sleep(ctx, p.interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// runWithRetry runs once and retries failures with exponential backoff:
// start at 200ms, double each retry, cap at 5s. ErrEmptyInput is not retried
// since the same scrape fails the same way. Returns false if the pipeline
// should stop.
func (p *Pipeline) runWithRetry(ctx context.Context) bool {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		_, err := p.runner.Reconcile(ctx)
		if err == nil {
			p.ready.Store(true)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if errors.Is(err, ErrEmptyInput) {
			p.logger.Error("run aborted, waiting for next interval", "error", err)
			return true
		}
		if attempt >= maxRunRetries {
			p.logger.Error("run failed, waiting for next interval", "error", err, "attempts", attempt+1)
			return true
		}
		p.logger.Warn("run failed, retrying", "error", err, "backoff", backoff)
		if !retry.Sleep(ctx, backoff) {
			return false
		}
		backoff = retry.Next(backoff, maxBackoff)
	}
}
