package redisstore

import (
	"io"
	"log/slog"

	"github.com/couchcryptid/forest-data-etl/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}
