// Package google implements a geocode provider backed by the Google Maps
// Geocoding API.
package google

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
const Name = "google"

var _ domain.GeocodeProvider = (*Client)(nil)

// Client wraps the Google Maps Geocoding API.
type Client struct {
	apiKey     string
	region     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Google geocoding client. An empty key leaves the
// provider registered but not ready, so attempts record NOT_CONFIGURED.
func NewClient(apiKey, region string, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		region: region,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://maps.googleapis.com/maps/api/geocode/json",
		logger:  logger,
	}
}

func (c *Client) Name() string  { return Name }
func (c *Client) Precise() bool { return true }

func (c *Client) Ready() error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: GOOGLE_MAPS_API_KEY is not set", domain.ErrProviderNotConfigured)
	}
	return nil
}

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
}

type geocodeResult struct {
	FormattedAddress string   `json:"formatted_address"`
	Geometry         geometry `json:"geometry"`
	PartialMatch     bool     `json:"partial_match"`
}

type geometry struct {
	Location     latLng `json:"location"`
	LocationType string `json:"location_type"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Lookup converts a free-form place name into coordinates.
func (c *Client) Lookup(ctx context.Context, query string) (domain.ProviderMatch, error) {
	params := url.Values{
		"address": {query},
		"key":     {c.apiKey},
	}
	if c.region != "" {
		params.Set("region", c.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.ProviderMatch{}, domain.NewRequestFailed(fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ProviderMatch{}, domain.NewRequestFailed(fmt.Errorf("geocoding request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.ProviderMatch{}, domain.NewHTTPError(resp.StatusCode, body)
	}

	var geoResp geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return domain.ProviderMatch{}, domain.NewInvalidResponse(resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}

	switch geoResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return domain.ProviderMatch{}, domain.NewEmptyResult(resp.StatusCode)
	default:
		c.logger.Debug("google geocoding status", "status", geoResp.Status, "message", geoResp.ErrorMessage)
		return domain.ProviderMatch{}, statusError(geoResp.Status, geoResp.ErrorMessage)
	}
	if len(geoResp.Results) == 0 {
		return domain.ProviderMatch{}, domain.NewEmptyResult(resp.StatusCode)
	}

	result := geoResp.Results[0]
	confidence := locationConfidence(result.Geometry.LocationType)
	if result.PartialMatch {
		confidence *= 0.8
	}
	return domain.ProviderMatch{
		Latitude:    result.Geometry.Location.Lat,
		Longitude:   result.Geometry.Location.Lng,
		DisplayName: result.FormattedAddress,
		Confidence:  confidence,
		ResultCount: len(geoResp.Results),
		HTTPStatus:  resp.StatusCode,
	}, nil
}

// statusError maps a non-OK API status onto the HTTP status it behaves like,
// so retry classification treats quota errors as transient.
func statusError(status, message string) *domain.LookupError {
	code := http.StatusBadGateway
	switch status {
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		code = http.StatusTooManyRequests
	case "REQUEST_DENIED":
		code = http.StatusForbidden
	case "INVALID_REQUEST":
		code = http.StatusBadRequest
	case "UNKNOWN_ERROR":
		code = http.StatusServiceUnavailable
	}
	return &domain.LookupError{
		Outcome:    domain.OutcomeHTTPError,
		HTTPStatus: code,
		Err:        fmt.Errorf("geocoding failed: status=%s %s", status, message),
	}
}

func locationConfidence(locationType string) float64 {
	switch locationType {
	case "ROOFTOP":
		return 1
	case "RANGE_INTERPOLATED":
		return 0.9
	case "GEOMETRIC_CENTER":
		return 0.8
	default:
		return 0.6
	}
}
