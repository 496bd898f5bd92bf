package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
)

// Name is the provider name used in configuration, attempts, and cache entries.
const Name = "mapbox"

var _ domain.GeocodeProvider = (*Client)(nil)

// Client implements domain.GeocodeProvider using the Mapbox Geocoding API.
type Client struct {
	token      string
	country    string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client. Per-call deadlines come from
// the caller's context; the client timeout is only a backstop.
func NewClient(token, country string, logger *slog.Logger) *Client {
	return &Client{
		token:   token,
		country: country,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		logger:  logger,
	}
}

func (c *Client) Name() string  { return Name }
func (c *Client) Precise() bool { return true }

// Ready reports whether a token is configured.
func (c *Client) Ready() error {
	if c.token == "" {
		return fmt.Errorf("%w: MAPBOX_TOKEN is not set", domain.ErrProviderNotConfigured)
	}
	return nil
}

// Lookup forward-geocodes a place name.
func (c *Client) Lookup(ctx context.Context, query string) (domain.ProviderMatch, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"poi,locality,place,region"},
	}
	if c.country != "" {
		params.Set("country", c.country)
	}

	return c.doRequest(ctx, u+"?"+params.Encode())
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.ProviderMatch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.ProviderMatch{}, domain.NewRequestFailed(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ProviderMatch{}, domain.NewRequestFailed(fmt.Errorf("mapbox request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Debug("mapbox API error", "status", resp.StatusCode)
		return domain.ProviderMatch{}, domain.NewHTTPError(resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.ProviderMatch{}, domain.NewInvalidResponse(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	if len(mapboxResp.Features) == 0 {
		return domain.ProviderMatch{}, domain.NewEmptyResult(resp.StatusCode)
	}

	f := mapboxResp.Features[0]
	if len(f.Center) != 2 {
		return domain.ProviderMatch{}, domain.NewInvalidCoordinates(resp.StatusCode, len(mapboxResp.Features),
			fmt.Errorf("feature center has %d values", len(f.Center)))
	}
	return domain.ProviderMatch{
		Longitude:   f.Center[0],
		Latitude:    f.Center[1],
		DisplayName: f.PlaceName,
		Confidence:  f.Relevance,
		ResultCount: len(mapboxResp.Features),
		HTTPStatus:  resp.StatusCode,
	}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
