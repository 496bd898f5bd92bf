package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/geocode"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
	"github.com/couchcryptid/forest-data-etl/internal/pipeline"
)

// --- fakes ---

type staticSource struct {
	data domain.SourceData
	err  error
}

func (s *staticSource) Load(context.Context) (domain.SourceData, error) {
	return s.data, s.err
}

type memorySnapshots struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
	err   error
}

func (m *memorySnapshots) Write(_ context.Context, snap domain.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

type memorySink struct {
	runIDs  []string
	records [][]domain.CanonicalForestRecord
}

func (m *memorySink) LoadBatch(_ context.Context, runID string, records []domain.CanonicalForestRecord) error {
	m.runIDs = append(m.runIDs, runID)
	m.records = append(m.records, records)
	return nil
}

// placeProvider answers queries starting with a known place name.
type placeProvider struct {
	places    map[string][2]float64
	name      string // defaults to "stub"
	imprecise bool

	mu    sync.Mutex
	calls int
}

func (p *placeProvider) Name() string {
	if p.name == "" {
		return "stub"
	}
	return p.name
}

func (p *placeProvider) Precise() bool { return !p.imprecise }
func (p *placeProvider) Ready() error  { return nil }

func (p *placeProvider) Lookup(_ context.Context, query string) (domain.ProviderMatch, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	for name, ll := range p.places {
		if strings.HasPrefix(query, name) {
			return domain.ProviderMatch{Latitude: ll[0], Longitude: ll[1], DisplayName: name, Confidence: 0.9, ResultCount: 1, HTTPStatus: 200}, nil
		}
	}
	return domain.ProviderMatch{}, domain.NewEmptyResult(200)
}

func (p *placeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func newTestResolver(providers ...domain.GeocodeProvider) *geocode.Resolver {
	return newUpgradingResolver(nil, providers...)
}

// newUpgradingResolver is newTestResolver with a background upgrade provider.
func newUpgradingResolver(upgrader domain.GeocodeProvider, providers ...domain.GeocodeProvider) *geocode.Resolver {
	metrics := newTestMetrics()
	opts := geocode.DefaultOptions()
	opts.Timeout = time.Second
	opts.RetryBackoff = time.Millisecond
	opts.MaxRetryBackoff = 5 * time.Millisecond
	opts.RegionSuffix = "New South Wales, Australia"
	cache := geocode.NewCache(geocode.NewMemoryStore(), testLogger(), metrics)
	return geocode.NewResolver(cache, providers, upgrader, opts, testLogger(), metrics)
}

func testOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.UpgradeDrain = time.Second
	return opts
}

func ptrTime(t time.Time) *time.Time { return &t }

// sampleSource is a small scrape: three forests across two areas, two
// facility entries, and one active plus one expired closure notice.
func sampleSource(now time.Time) domain.SourceData {
	return domain.SourceData{
		FireBanAreas: []domain.FireBanArea{
			{AreaName: "Southern Highlands", Status: "Total Fire Ban", ForestNames: []string{"Belanglo State Forest", "Wingello State Forest"}},
			{AreaName: "Hunter", Status: "No ban", ForestNames: []string{"Olney State Forest"}},
		},
		Facilities: []domain.FacilityEntry{
			{ForestName: "Belanglo State Forest", Facilities: map[string]bool{"camping": true, "toilets": false}},
			{ForestName: "Olney State Forest", Facilities: map[string]bool{"camping": false}},
		},
		Closures: []domain.ClosureNotice{
			{
				ID: "c-1", Title: "Olney State Forest: road closed", ForestNameHint: "Olney State Forest",
				Status: domain.ClosureClosed, ListedAt: ptrTime(now.Add(-48 * time.Hour)),
			},
			{
				ID: "c-2", Title: "Wingello State Forest: trail works", ForestNameHint: "Wingello State Forest",
				Status: domain.ClosurePartial, UntilAt: ptrTime(now.Add(-24 * time.Hour)),
			},
		},
	}
}

func samplePlaces() *placeProvider {
	return &placeProvider{places: map[string][2]float64{
		"Belanglo State Forest": {-34.52, 150.25},
		"Southern Highlands":    {-34.50, 150.30},
	}}
}
