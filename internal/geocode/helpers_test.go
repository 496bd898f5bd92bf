package geocode

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
)

// --- fakes ---

type fakeProvider struct {
	name     string
	precise  bool
	readyErr error
	respond  func(ctx context.Context, query string) (domain.ProviderMatch, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Precise() bool { return f.precise }
func (f *fakeProvider) Ready() error  { return f.readyErr }

func (f *fakeProvider) Lookup(ctx context.Context, query string) (domain.ProviderMatch, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.mu.Unlock()
	return f.respond(ctx, query)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func found(lat, lon float64) func(context.Context, string) (domain.ProviderMatch, error) {
	return func(context.Context, string) (domain.ProviderMatch, error) {
		return domain.ProviderMatch{Latitude: lat, Longitude: lon, DisplayName: "found", Confidence: 0.9, ResultCount: 1, HTTPStatus: 200}, nil
	}
}

func empty() func(context.Context, string) (domain.ProviderMatch, error) {
	return func(context.Context, string) (domain.ProviderMatch, error) {
		return domain.ProviderMatch{}, domain.NewEmptyResult(200)
	}
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Timeout = time.Second
	opts.RetryBackoff = time.Millisecond
	opts.MaxRetryBackoff = 5 * time.Millisecond
	opts.RegionSuffix = "New South Wales, Australia"
	return opts
}

func newTestResolver(store Store, providers []domain.GeocodeProvider, upgrader domain.GeocodeProvider) *Resolver {
	metrics := observability.NewMetricsForTesting()
	cache := NewCache(store, testLogger(), metrics)
	return NewResolver(cache, providers, upgrader, testOptions(), testLogger(), metrics)
}

func outcomes(attempts []domain.GeocodeAttempt) []domain.GeocodeOutcome {
	out := make([]domain.GeocodeOutcome, len(attempts))
	for i, a := range attempts {
		out[i] = a.Outcome
	}
	return out
}
