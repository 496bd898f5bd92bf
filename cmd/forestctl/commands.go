package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/forest-data-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/source"
	"github.com/couchcryptid/forest-data-etl/internal/app"
	"github.com/couchcryptid/forest-data-etl/internal/config"
	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/geocode"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
)

// errInvalidSnapshot makes validate exit non-zero after printing its report.
var errInvalidSnapshot = errors.New("snapshot failed validation")

type cli struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "forestctl",
		Short:         "Operate the NSW forest reconciliation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg
			c.logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
			c.metrics = observability.NewUnregisteredMetrics()
			return nil
		},
	}

	root.AddCommand(c.runCmd())
	root.AddCommand(c.matchCmd())
	root.AddCommand(c.geocodeCmd())
	root.AddCommand(c.cacheCmd())
	root.AddCommand(c.validateCmd())
	return root
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, cache, err := c.resolver(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			snap, err := app.NewReconciler(c.cfg, resolver, nil, c.logger, c.metrics).Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"runId":    snap.RunID,
				"snapshot": c.cfg.SnapshotPath,
				"summary":  snap.Summary,
			})
		},
	}
}

func (c *cli) matchCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Print entity resolution diagnostics without geocoding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = c.cfg.SourcePath
			}
			data, err := source.NewFileLoader(path, c.logger).Load(cmd.Context())
			if err != nil {
				return err
			}
			names := domain.ForestNames(domain.CanonicalForests(data.FireBanAreas))

			facilityNames := make([]string, 0, len(data.Facilities))
			for _, f := range data.Facilities {
				facilityNames = append(facilityNames, f.ForestName)
			}
			now := domain.Now()
			closureNames := make([]string, 0, len(data.Closures))
			for _, n := range data.Closures {
				if n.ActiveAt(now) {
					closureNames = append(closureNames, n.MatchName())
				}
			}

			facilities := domain.Resolve(names, facilityNames, c.cfg.FacilityMatchThreshold)
			closures := domain.Resolve(names, closureNames, c.cfg.ClosureMatchThreshold)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"forests":             len(names),
				"facilityDiagnostics": facilities.Diagnostics,
				"facilityUnmatched":   facilities.Unmatched(),
				"closureDiagnostics":  closures.Diagnostics,
				"closureUnmatched":    closures.Unmatched(),
			})
		},
	}
	cmd.Flags().StringVar(&path, "source", "", "scrape file to read (defaults to SOURCE_PATH)")
	return cmd
}

func (c *cli) geocodeCmd() *cobra.Command {
	var area string
	cmd := &cobra.Command{
		Use:   "geocode <forest>",
		Short: "Geocode one forest and print the attempt trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver, cache, err := c.resolver(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			run := resolver.StartRun(ctx, c.cfg.GeocodeMaxNewLookups)
			req := geocode.ForestRequest{Name: args[0], Area: area}
			if area != "" {
				centroid := resolver.GeocodeArea(ctx, run, area)
				req.AreaCentroid = &centroid
			}
			res := resolver.GeocodeForest(ctx, run, req)
			if err := run.Finish(ctx); err != nil {
				c.logger.Warn("geocode upgrades abandoned", "error", err)
			}

			out := map[string]any{"forest": args[0], "result": res}
			if !res.Resolved {
				out["reason"] = domain.FailureReason(res.Attempts)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&area, "area", "", "fire-ban area listing the forest")
	return cmd
}

func (c *cli) cacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the geocode cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one cache entry, e.g. query:belanglo state forest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cache, err := c.resolver(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			entry, ok := cache.Get(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("no cache entry for %q", args[0])
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	})
	return cacheCmd
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [snapshot]",
		Short: "Check a snapshot file for internal consistency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.SnapshotPath
			if len(args) == 1 {
				path = args[0]
			}
			snap, err := snapshot.Read(path)
			if err != nil {
				return err
			}
			issues := snapshot.Validate(snap)
			out := cmd.OutOrStdout()
			for _, issue := range issues {
				fmt.Fprintln(out, "FAIL:", issue)
			}
			if len(issues) > 0 {
				return fmt.Errorf("%w: %d issues", errInvalidSnapshot, len(issues))
			}
			fmt.Fprintf(out, "OK: %d forests, run %s\n", len(snap.Forests), snap.RunID)
			return nil
		},
	}
}

func (c *cli) resolver(cmd *cobra.Command) (*geocode.Resolver, *geocode.Cache, error) {
	store, err := app.OpenStore(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open geocode cache: %w", err)
	}
	resolver, cache, err := app.NewResolver(c.cfg, store, c.logger, c.metrics)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return resolver, cache, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
