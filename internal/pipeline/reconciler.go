package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/geocode"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
)

// ErrEmptyInput aborts a run whose fire-ban source names no forests. Every
// other failure inside a run is absorbed into diagnostics.
var ErrEmptyInput = errors.New("fire-ban source lists no forests")

// SourceLoader reads one scrape of the upstream sources.
type SourceLoader interface {
	Load(ctx context.Context) (domain.SourceData, error)
}

// SnapshotWriter persists the result of a run.
type SnapshotWriter interface {
	Write(ctx context.Context, snap domain.Snapshot) error
}

// RecordSink publishes canonical records downstream.
type RecordSink interface {
	LoadBatch(ctx context.Context, runID string, records []domain.CanonicalForestRecord) error
}

// Options tunes a reconciliation run.
type Options struct {
	FacilityThreshold float64
	ClosureThreshold  float64
	MaxNewLookups     int
	Concurrency       int
	// UpgradeDrain bounds how long a run waits for queued precision upgrades
	// before abandoning them.
	UpgradeDrain time.Duration
}

// DefaultOptions returns the production thresholds and limits.
func DefaultOptions() Options {
	return Options{
		FacilityThreshold: 0.62,
		ClosureThreshold:  0.68,
		MaxNewLookups:     100,
		Concurrency:       4,
		UpgradeDrain:      30 * time.Second,
	}
}

// Reconciler performs one full reconciliation: load, match, geocode, merge,
// then hand off.
type Reconciler struct {
	source    SourceLoader
	geocoder  *geocode.Resolver
	snapshots SnapshotWriter
	sink      RecordSink
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu   sync.RWMutex
	last *domain.RunStatus
}

// NewReconciler wires a Reconciler. sink may be nil.
func NewReconciler(source SourceLoader, geocoder *geocode.Resolver, snapshots SnapshotWriter, sink RecordSink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Reconciler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Reconciler{
		source:    source,
		geocoder:  geocoder,
		snapshots: snapshots,
		sink:      sink,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// LastRun returns the status of the most recent run, if any.
func (r *Reconciler) LastRun() (domain.RunStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return domain.RunStatus{}, false
	}
	return *r.last, true
}

// Reconcile executes one run and records its status and metrics.
func (r *Reconciler) Reconcile(ctx context.Context) (domain.Snapshot, error) {
	runID := uuid.NewString()
	startedAt := domain.Now()
	started := time.Now()
	logger := r.logger.With("run_id", runID)
	logger.Info("reconciliation started")

	snap, err := r.reconcile(ctx, runID, logger)

	status := domain.RunStatus{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: domain.Now(),
		Success:    err == nil,
	}
	r.metrics.RunDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		status.Error = err.Error()
		r.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("reconciliation failed", "error", err)
	} else {
		summary := snap.Summary
		status.Summary = &summary
		r.metrics.RunsTotal.WithLabelValues("success").Inc()
		r.metrics.LastRunSuccess.SetToCurrentTime()
		logger.Info("reconciliation finished",
			"forests", summary.Forests,
			"geocoded", summary.Geocoded,
			"approximate", summary.GeocodeApproximate,
			"unresolved", summary.GeocodeUnresolved,
			"lookups", summary.GeocodeLookups,
			"facility_unmatched", summary.FacilityUnmatched,
			"closure_unmatched", summary.ClosureUnmatched,
			"duration", time.Since(started),
		)
	}

	r.mu.Lock()
	r.last = &status
	r.mu.Unlock()
	return snap, err
}

func (r *Reconciler) reconcile(ctx context.Context, runID string, logger *slog.Logger) (domain.Snapshot, error) {
	data, err := r.source.Load(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load source: %w", err)
	}
	if data.Empty() {
		return domain.Snapshot{}, ErrEmptyInput
	}

	now := domain.Now()
	forests := domain.CanonicalForests(data.FireBanAreas)
	names := domain.ForestNames(forests)

	facilityNames := make([]string, 0, len(data.Facilities))
	for _, f := range data.Facilities {
		facilityNames = append(facilityNames, f.ForestName)
	}
	facilityMatches := domain.Resolve(names, facilityNames, r.opts.FacilityThreshold)
	r.recordMatches("facility", facilityMatches)

	active := make([]domain.ClosureNotice, 0, len(data.Closures))
	closureNames := make([]string, 0, len(data.Closures))
	for _, n := range data.Closures {
		if n.ActiveAt(now) {
			active = append(active, n)
			closureNames = append(closureNames, n.MatchName())
		}
	}
	closureMatches := domain.Resolve(names, closureNames, r.opts.ClosureThreshold)
	r.recordMatches("closure", closureMatches)
	logger.Debug("entity resolution complete",
		"forests", len(forests),
		"facility_fuzzy", len(facilityMatches.Diagnostics.FuzzyMatches),
		"closure_fuzzy", len(closureMatches.Diagnostics.FuzzyMatches),
		"active_closures", len(active),
	)

	geocodes, lookups, err := r.geocodeAll(ctx, forests, facilityMatches, logger)
	if err != nil {
		return domain.Snapshot{}, err
	}

	records := domain.Merge(domain.MergeInput{
		Areas:           data.FireBanAreas,
		Facilities:      data.Facilities,
		FacilityMatches: facilityMatches,
		Notices:         active,
		ClosureMatches:  closureMatches,
		Geocodes:        geocodes,
	})

	summary := domain.Summarize(records, facilityMatches.Diagnostics, closureMatches.Diagnostics, len(active))
	summary.GeocodeLookups = lookups
	snap := domain.Snapshot{
		RunID:               runID,
		GeneratedAt:         now,
		Forests:             records,
		FacilityDiagnostics: facilityMatches.Diagnostics,
		ClosureDiagnostics:  closureMatches.Diagnostics,
		GeocodeFailures:     geocodeFailures(records),
		Summary:             summary,
	}
	r.metrics.ForestsTotal.Set(float64(summary.Forests))
	r.metrics.GeocodeUnresolved.Set(float64(summary.GeocodeUnresolved))

	if err := r.snapshots.Write(ctx, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	if r.sink != nil {
		if err := r.sink.LoadBatch(ctx, runID, records); err != nil {
			return domain.Snapshot{}, fmt.Errorf("publish records: %w", err)
		}
		r.metrics.RecordsPublished.Add(float64(len(records)))
	}
	return snap, nil
}

// geocodeAll resolves area centroids sequentially, then forests with bounded
// parallelism. It returns the results keyed by forest name and the number of
// provider lookups the run spent, upgrades included.
func (r *Reconciler) geocodeAll(ctx context.Context, forests []domain.ForestRef, facilities domain.Resolution, logger *slog.Logger) (map[string]domain.GeocodeResult, int, error) {
	run := r.geocoder.StartRun(ctx, r.opts.MaxNewLookups)

	centroids := make(map[string]*domain.GeocodeResult)
	for _, f := range forests {
		area := f.PrimaryArea()
		if area == "" {
			continue
		}
		if _, done := centroids[area]; done {
			continue
		}
		res := r.geocoder.GeocodeArea(ctx, run, area)
		centroids[area] = &res
	}

	results := make([]domain.GeocodeResult, len(forests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, f := range forests {
		req := geocode.ForestRequest{
			Name:          f.Name,
			Area:          f.PrimaryArea(),
			DirectoryName: directoryName(facilities, f.Name),
			AreaCentroid:  centroids[f.PrimaryArea()],
		}
		g.Go(func() error {
			results[i] = r.geocoder.GeocodeForest(gctx, run, req)
			return nil
		})
	}
	_ = g.Wait()
	r.finishRun(ctx, run, logger)
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("geocoding interrupted: %w", err)
	}

	out := make(map[string]domain.GeocodeResult, len(forests))
	for i, f := range forests {
		out[f.Name] = results[i]
	}
	return out, run.Budget().Used(), nil
}

// finishRun waits up to UpgradeDrain for queued upgrades, even when ctx is
// already cancelled.
func (r *Reconciler) finishRun(ctx context.Context, run *geocode.Run, logger *slog.Logger) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.UpgradeDrain)
	defer cancel()
	if err := run.Finish(drainCtx); err != nil {
		logger.Warn("geocode upgrades abandoned", "error", err)
	}
}

// directoryName is the facilities directory's spelling of a forest when it
// differs from the fire-ban spelling.
func directoryName(facilities domain.Resolution, forest string) string {
	m, ok := facilities.Assignments[forest]
	if !ok || m.MatchType == domain.MatchUnmatched || m.MatchedName == forest {
		return ""
	}
	return m.MatchedName
}

func (r *Reconciler) recordMatches(source string, res domain.Resolution) {
	for _, m := range res.Assignments {
		r.metrics.MatchOutcomes.WithLabelValues(source, string(m.MatchType)).Inc()
	}
}

func geocodeFailures(records []domain.CanonicalForestRecord) []domain.GeocodeFailure {
	out := make([]domain.GeocodeFailure, 0)
	for i := range records {
		rec := &records[i]
		if rec.Latitude != nil {
			continue
		}
		f := domain.GeocodeFailure{Forest: rec.Name, Attempts: []domain.GeocodeAttempt{}}
		if len(rec.Areas) > 0 {
			f.Area = rec.Areas[0]
		}
		if d := rec.GeocodeDiagnostics; d != nil {
			f.Reason = d.Reason
			f.Attempts = d.Attempts
		}
		out = append(out, f)
	}
	return out
}
