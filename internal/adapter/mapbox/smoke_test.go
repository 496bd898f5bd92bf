//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, "au", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_Lookup(t *testing.T) {
	c := smokeClient(t)

	m, err := c.Lookup(context.Background(), "Belanglo State Forest, New South Wales, Australia")
	require.NoError(t, err)

	assert.InDelta(t, -34.5, m.Latitude, 0.5, "lat should be near Belanglo")
	assert.InDelta(t, 150.2, m.Longitude, 0.5, "lon should be near Belanglo")
	assert.Greater(t, m.Confidence, 0.3)
}
