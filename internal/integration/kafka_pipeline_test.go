//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/forest-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/source"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/forest-data-etl/internal/config"
	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/geocode"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
	"github.com/couchcryptid/forest-data-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "test-forest-records"

const scrape = `{
  "fireBanAreas": [
    {"areaName": "Southern Highlands", "status": "Total Fire Ban", "forestNames": ["Belanglo State Forest", "Wingello State Forest"]},
    {"areaName": "Hunter", "status": "No ban", "forestNames": ["Olney State Forest"]}
  ],
  "facilities": [
    {"forestName": "Belanglo State Forest", "facilities": {"camping": true}},
    {"forestName": "Olney State Forest", "facilities": {"camping": false}}
  ],
  "closures": [
    {"id": "c-1", "title": "Olney State Forest: road closed", "forestNameHint": "Olney State Forest", "status": "Closed"}
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("forest-etl-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// nominatimStub answers Belanglo and the Southern Highlands area; every other
// query is an empty result.
func nominatimStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.HasPrefix(q, "Belanglo State Forest"):
			_, _ = w.Write([]byte(`[{"lat":"-34.52","lon":"150.25","display_name":"Belanglo State Forest","importance":0.6}]`))
		case strings.HasPrefix(q, "Southern Highlands"):
			_, _ = w.Write([]byte(`[{"lat":"-34.50","lon":"150.30","display_name":"Southern Highlands","importance":0.5}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestReconcileEndToEnd runs one reconciliation with a file source, a real
// Nominatim adapter against a stub server, the SQLite cache, the snapshot
// writer, and Kafka publishing.
func TestReconcileEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "scrape.json")
	snapshotPath := filepath.Join(dir, "forests.json")
	require.NoError(t, os.WriteFile(sourcePath, []byte(scrape), 0o600))

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	store, err := sqlite.Open(ctx, filepath.Join(dir, "cache.db"), logger)
	require.NoError(t, err)
	cache := geocode.NewCache(store, logger, metrics)
	t.Cleanup(func() { _ = cache.Close() })

	provider := nominatim.NewClient(nominatim.Options{BaseURL: nominatimStub(t).URL, UserAgent: "forest-data-etl-test"}, logger)
	opts := geocode.DefaultOptions()
	opts.RegionSuffix = "New South Wales, Australia"
	resolver := geocode.NewResolver(cache, []domain.GeocodeProvider{provider}, nil, opts, logger, metrics)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, logger)
	t.Cleanup(func() { _ = writer.Close() })

	reconciler := pipeline.NewReconciler(
		source.NewFileLoader(sourcePath, logger),
		resolver,
		snapshot.NewFileWriter(snapshotPath, logger),
		writer,
		pipeline.DefaultOptions(),
		logger,
		metrics,
	)

	snap, err := reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Summary.Forests)
	assert.Equal(t, 2, snap.Summary.Geocoded)
	assert.Equal(t, 1, snap.Summary.GeocodeUnresolved)

	written, err := snapshot.Read(snapshotPath)
	require.NoError(t, err)
	assert.Equal(t, snap.RunID, written.RunID)
	assert.Empty(t, snapshot.Validate(written))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := make(map[string]domain.CanonicalForestRecord)
	for len(got) < 3 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from sink topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, snap.RunID, headers["run_id"])

		var rec domain.CanonicalForestRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		assert.Equal(t, string(msg.Key), rec.Name)
		got[rec.Name] = rec
	}

	assert.Equal(t, domain.BanBanned, got["Belanglo State Forest"].BanStatus)
	assert.Equal(t, domain.ClosureClosed, got["Olney State Forest"].ClosureStatus)
	assert.True(t, got["Wingello State Forest"].GeocodeApproximate)

	// A second run serves resolved names from the SQLite cache.
	second, err := reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Less(t, second.Summary.GeocodeLookups, snap.Summary.GeocodeLookups)
}
