package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		country:    "au",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func lookupError(t *testing.T, err error) *domain.LookupError {
	t.Helper()
	var le *domain.LookupError
	require.True(t, errors.As(err, &le), "expected *domain.LookupError, got %T", err)
	return le
}

func TestClient_Lookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "Belanglo State Forest")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "au", r.URL.Query().Get("country"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{150.25, -34.52},
					PlaceName: "Belanglo State Forest, New South Wales, Australia",
					Text:      "Belanglo State Forest",
					Relevance: 0.95,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	m, err := c.Lookup(context.Background(), "Belanglo State Forest")
	require.NoError(t, err)

	assert.Equal(t, -34.52, m.Latitude)
	assert.Equal(t, 150.25, m.Longitude)
	assert.Equal(t, "Belanglo State Forest, New South Wales, Australia", m.DisplayName)
	assert.Equal(t, 0.95, m.Confidence)
	assert.Equal(t, 1, m.ResultCount)
	assert.Equal(t, http.StatusOK, m.HTTPStatus)
}

func TestClient_Lookup_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Lookup(context.Background(), "Nowhere")
	le := lookupError(t, err)
	assert.Equal(t, domain.OutcomeEmptyResult, le.Outcome)
	require.NotNil(t, le.ResultCount)
	assert.Equal(t, 0, *le.ResultCount)
}

func TestClient_Lookup_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Lookup(context.Background(), "Bago")
	le := lookupError(t, err)
	assert.Equal(t, domain.OutcomeHTTPError, le.Outcome)
	assert.Equal(t, http.StatusUnauthorized, le.HTTPStatus)
	assert.False(t, le.Retryable())
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Lookup_RateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Lookup(context.Background(), "Bago")
	assert.True(t, lookupError(t, err).Retryable())
}

func TestClient_Lookup_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features": [`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Lookup(context.Background(), "Bago")
	assert.Equal(t, domain.OutcomeInvalidResponse, lookupError(t, err).Outcome)
}

func TestClient_Lookup_ShortCenter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[{"place_name":"Bago","center":[148.1],"relevance":0.9}]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Lookup(context.Background(), "Bago")
	le := lookupError(t, err)
	assert.Equal(t, domain.OutcomeInvalidCoordinates, le.Outcome)
	require.NotNil(t, le.ResultCount)
	assert.Equal(t, 1, *le.ResultCount)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinates)
}

func TestClient_Lookup_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL).Lookup(ctx, "Bago")
	le := lookupError(t, err)
	assert.Equal(t, domain.OutcomeRequestFailed, le.Outcome)
	assert.True(t, le.Retryable())
}

func TestClient_Ready(t *testing.T) {
	assert.NoError(t, testClient("http://unused").Ready())
	assert.ErrorIs(t, NewClient("", "au", slog.Default()).Ready(), domain.ErrProviderNotConfigured)
}
