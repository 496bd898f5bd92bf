package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang/geo/s2"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
)

const earthRadiusKm = 6371.0

// Options tunes provider calls and result checks.
type Options struct {
	// Timeout bounds each individual provider call.
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	// RegionSuffix is appended to provider queries that do not already
	// contain it. It is not part of cache keys.
	RegionSuffix     string
	UpgradeQueueSize int
	// MaxCentroidDistanceKm triggers a warning when a forest resolves
	// further than this from its area centroid. Zero disables the check.
	MaxCentroidDistanceKm float64
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:               8 * time.Second,
		MaxRetries:            2,
		RetryBackoff:          500 * time.Millisecond,
		MaxRetryBackoff:       5 * time.Second,
		UpgradeQueueSize:      256,
		MaxCentroidDistanceKm: 150,
	}
}

// Resolver turns forest and area names into coordinates: cache first, then
// providers in priority order, then the area centroid.
type Resolver struct {
	cache     *Cache
	providers []domain.GeocodeProvider
	upgrader  domain.GeocodeProvider
	byName    map[string]domain.GeocodeProvider
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewResolver creates a resolver over an ordered provider cascade. upgrader
// is the precise provider used for background cache upgrades and may be nil.
func NewResolver(cache *Cache, providers []domain.GeocodeProvider, upgrader domain.GeocodeProvider, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	byName := make(map[string]domain.GeocodeProvider, len(providers)+1)
	for _, p := range providers {
		byName[p.Name()] = p
	}
	if upgrader != nil {
		byName[upgrader.Name()] = upgrader
	}
	return &Resolver{
		cache:     cache,
		providers: providers,
		upgrader:  upgrader,
		byName:    byName,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// ForestRequest identifies one forest to geocode.
type ForestRequest struct {
	Name string
	// Area is the fire-ban area listing the forest. It is appended to one
	// query variant and scopes the alias key.
	Area string
	// DirectoryName is the facilities directory's name for the forest, used
	// as an extra query when it differs from Name.
	DirectoryName string
	// AreaCentroid is the already resolved area, used for fallback and
	// distance warnings. May be nil.
	AreaCentroid *domain.GeocodeResult
}

// GeocodeArea resolves an area name. Areas have no fallback.
func (r *Resolver) GeocodeArea(ctx context.Context, run *Run, area string) domain.GeocodeResult {
	area = domain.NormalizeLabel(area)
	if area == "" {
		return domain.GeocodeResult{Attempts: []domain.GeocodeAttempt{}}
	}
	return r.resolve(ctx, run, []string{area}, domain.AreaAliasKey(area))
}

// GeocodeForest resolves one forest. It never fails: an unresolved result
// carries the attempt trail explaining why.
func (r *Resolver) GeocodeForest(ctx context.Context, run *Run, req ForestRequest) domain.GeocodeResult {
	name := domain.NormalizeLabel(req.Name)
	if name == "" {
		return domain.GeocodeResult{Attempts: []domain.GeocodeAttempt{}}
	}

	res := r.resolve(ctx, run, forestQueries(req), domain.ForestAliasKey(req.Area, name))
	centroid := req.AreaCentroid
	hasCentroid := centroid != nil && centroid.Resolved

	if res.Resolved {
		if hasCentroid {
			r.checkDistance(&res, req.Area, *centroid)
		}
		return res
	}

	if hasCentroid && onlyNoData(res.Attempts) {
		r.logger.Debug("using area centroid", "forest", name, "area", req.Area)
		res.Resolved = true
		res.Latitude = centroid.Latitude
		res.Longitude = centroid.Longitude
		res.DisplayName = centroid.DisplayName
		res.Confidence = centroid.Confidence
		res.Provider = centroid.Provider
		res.Approximate = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("approximate location: %s area centroid", domain.NormalizeLabel(req.Area)))
		return res
	}

	r.logger.Debug("forest not geocoded", "forest", name, "reason", domain.FailureReason(res.Attempts))
	return res
}

// forestQueries lists the query variants in priority order, without
// duplicates.
func forestQueries(req ForestRequest) []string {
	name := domain.NormalizeLabel(req.Name)
	area := domain.NormalizeLabel(req.Area)
	dir := domain.NormalizeLabel(req.DirectoryName)

	variants := []string{name}
	if area != "" {
		variants = append(variants, name+", "+area)
	}
	if dir != "" && domain.NormalizeName(dir) != domain.NormalizeName(name) {
		variants = append(variants, dir)
		if area != "" {
			variants = append(variants, dir+", "+area)
		}
	}

	seen := make(map[string]struct{}, len(variants))
	out := variants[:0]
	for _, v := range variants {
		k := domain.QueryCacheKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (r *Resolver) resolve(ctx context.Context, run *Run, queries []string, alias string) domain.GeocodeResult {
	res := domain.GeocodeResult{Attempts: []domain.GeocodeAttempt{}}
	for _, text := range queries {
		if ctx.Err() != nil {
			break
		}
		q := domain.GeocodeQuery{Text: text, AliasKey: alias}

		if entry, key, ok := r.cache.Lookup(ctx, q); ok {
			r.record(&res, domain.GeocodeAttempt{Provider: domain.CacheProvider, Query: text, Outcome: domain.OutcomeCacheHit})
			r.maybeUpgrade(run, entry, key, q)
			return fromEntry(entry, res.Attempts)
		}
		r.record(&res, domain.GeocodeAttempt{Provider: domain.CacheProvider, Query: text, Outcome: domain.OutcomeCacheMiss})

		for _, p := range r.providers {
			m, attempt := r.tryProvider(ctx, run, p, text)
			r.record(&res, attempt)
			if attempt.Outcome != domain.OutcomeLookupSuccess {
				continue
			}
			entry := domain.GeocodeCacheEntry{
				Latitude:    m.Latitude,
				Longitude:   m.Longitude,
				DisplayName: m.DisplayName,
				Confidence:  m.Confidence,
				Provider:    p.Name(),
				UpdatedAt:   domain.Now(),
			}
			r.cache.Save(ctx, q, entry)
			return fromEntry(entry, res.Attempts)
		}
	}
	return res
}

func (r *Resolver) tryProvider(ctx context.Context, run *Run, p domain.GeocodeProvider, text string) (domain.ProviderMatch, domain.GeocodeAttempt) {
	attempt := domain.GeocodeAttempt{Provider: p.Name(), Query: text}

	if err := p.Ready(); err != nil {
		attempt.Outcome = domain.OutcomeProviderNotConfigured
		attempt.ErrorMessage = err.Error()
		return domain.ProviderMatch{}, attempt
	}
	if !run.budget.TryConsume() {
		attempt.Outcome = domain.OutcomeLimitReached
		return domain.ProviderMatch{}, attempt
	}
	r.metrics.GeocodeBudgetUsed.Set(float64(run.budget.Used()))

	m, err := r.lookup(ctx, p, r.providerQuery(text))
	if err != nil {
		var le *domain.LookupError
		if errors.As(err, &le) {
			attempt.Outcome = le.Outcome
			attempt.HTTPStatus = le.HTTPStatus
			attempt.ResultCount = le.ResultCount
		} else {
			attempt.Outcome = domain.OutcomeRequestFailed
		}
		attempt.ErrorMessage = err.Error()
		return m, attempt
	}

	n := m.ResultCount
	attempt.Outcome = domain.OutcomeLookupSuccess
	attempt.HTTPStatus = m.HTTPStatus
	attempt.ResultCount = &n
	return m, attempt
}

// maybeUpgrade queues a background re-resolution when the cached entry came
// from an imprecise provider.
func (r *Resolver) maybeUpgrade(run *Run, entry domain.GeocodeCacheEntry, hitKey string, q domain.GeocodeQuery) {
	if r.upgrader == nil || entry.Provider == r.upgrader.Name() {
		return
	}
	p, known := r.byName[entry.Provider]
	if !known || p.Precise() {
		return
	}
	accepted, duplicate := run.upgrade.enqueue(upgradeJob{CacheKey: hitKey, AliasKey: q.AliasKey, Text: q.Text})
	if !accepted && !duplicate {
		r.metrics.GeocodeUpgrades.WithLabelValues("dropped").Inc()
	}
}

func (r *Resolver) runUpgrade(ctx context.Context, run *Run, job upgradeJob) {
	p := r.upgrader
	if p.Ready() != nil || !run.budget.TryConsume() {
		r.metrics.GeocodeUpgrades.WithLabelValues("skipped").Inc()
		return
	}
	r.metrics.GeocodeBudgetUsed.Set(float64(run.budget.Used()))

	m, err := r.lookup(ctx, p, r.providerQuery(job.Text))
	if err != nil {
		var le *domain.LookupError
		outcome := domain.OutcomeRequestFailed
		if errors.As(err, &le) {
			outcome = le.Outcome
		}
		r.metrics.GeocodeAttempts.WithLabelValues(p.Name(), string(outcome)).Inc()
		r.metrics.GeocodeUpgrades.WithLabelValues("failed").Inc()
		r.logger.Debug("geocode upgrade failed", "provider", p.Name(), "query", job.Text, "error", err)
		return
	}
	r.metrics.GeocodeAttempts.WithLabelValues(p.Name(), string(domain.OutcomeLookupSuccess)).Inc()

	entry := domain.GeocodeCacheEntry{
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		DisplayName: m.DisplayName,
		Confidence:  m.Confidence,
		Provider:    p.Name(),
		UpdatedAt:   domain.Now(),
	}
	r.cache.Save(ctx, domain.GeocodeQuery{Text: job.Text, AliasKey: job.AliasKey}, entry)
	r.metrics.GeocodeUpgrades.WithLabelValues("success").Inc()
	r.logger.Debug("geocode cache upgraded", "provider", p.Name(), "key", job.CacheKey)
}

func (r *Resolver) providerQuery(text string) string {
	suffix := strings.TrimSpace(r.opts.RegionSuffix)
	if suffix == "" || strings.Contains(strings.ToLower(text), strings.ToLower(suffix)) {
		return text
	}
	return text + ", " + suffix
}

func (r *Resolver) checkDistance(res *domain.GeocodeResult, area string, centroid domain.GeocodeResult) {
	if r.opts.MaxCentroidDistanceKm <= 0 {
		return
	}
	km := DistanceKm(res.Latitude, res.Longitude, centroid.Latitude, centroid.Longitude)
	if km > r.opts.MaxCentroidDistanceKm {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("result is %.0f km from the %s area centroid", km, domain.NormalizeLabel(area)))
	}
}

func (r *Resolver) record(res *domain.GeocodeResult, a domain.GeocodeAttempt) {
	res.Attempts = append(res.Attempts, a)
	r.metrics.GeocodeAttempts.WithLabelValues(a.Provider, string(a.Outcome)).Inc()
}

// DistanceKm is the great-circle distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * earthRadiusKm
}

// onlyNoData reports whether at least one provider answered and every
// provider attempt was a "nothing found" outcome.
func onlyNoData(attempts []domain.GeocodeAttempt) bool {
	n := 0
	for _, a := range attempts {
		if a.Provider == domain.CacheProvider {
			continue
		}
		if !a.Outcome.NoData() {
			return false
		}
		n++
	}
	return n > 0
}

func fromEntry(e domain.GeocodeCacheEntry, attempts []domain.GeocodeAttempt) domain.GeocodeResult {
	return domain.GeocodeResult{
		Resolved:    true,
		Latitude:    e.Latitude,
		Longitude:   e.Longitude,
		DisplayName: e.DisplayName,
		Confidence:  e.Confidence,
		Provider:    e.Provider,
		Attempts:    attempts,
	}
}
