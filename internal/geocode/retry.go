package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/retry"
)

// lookup calls p with a per-call timeout, retrying retryable failures with
// exponential backoff. The returned error is always a *domain.LookupError.
func (r *Resolver) lookup(ctx context.Context, p domain.GeocodeProvider, query string) (domain.ProviderMatch, error) {
	backoff := r.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		m, err := r.callOnce(ctx, p, query)
		if err == nil {
			return m, nil
		}

		var le *domain.LookupError
		if !errors.As(err, &le) {
			le = &domain.LookupError{Outcome: domain.OutcomeRequestFailed, Err: err}
		}
		if !le.Retryable() || attempt >= r.opts.MaxRetries || ctx.Err() != nil {
			return m, le
		}

		r.logger.Debug("geocode lookup retry",
			"provider", p.Name(), "query", query, "attempt", attempt+1, "backoff", backoff, "error", le)
		if !retry.Sleep(ctx, backoff) {
			return m, le
		}
		backoff = retry.Next(backoff, r.opts.MaxRetryBackoff)
	}
}

// callOnce bounds one provider call by the configured timeout. The context is
// cancelled when the call returns so a hung request is torn down.
func (r *Resolver) callOnce(ctx context.Context, p domain.GeocodeProvider, query string) (domain.ProviderMatch, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	m, err := p.Lookup(callCtx, query)
	r.metrics.GeocodeAPIDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return m, err
	}
	if err := domain.CheckCoordinates(m); err != nil {
		return m, err
	}
	return m, nil
}
