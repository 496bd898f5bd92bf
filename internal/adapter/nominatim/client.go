// Package nominatim implements a geocode provider backed by an OpenStreetMap
// Nominatim search endpoint. Results are treated as approximate; the resolver
// queues precise upgrades for entries cached from this provider.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
)

// Name is the provider name used in configuration, attempts, and cache entries.
const Name = "nominatim"

// DefaultBaseURL is the public OSM instance. Its usage policy allows one
// request per second and requires an identifying User-Agent.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

var _ domain.GeocodeProvider = (*Client)(nil)

// Client queries the Nominatim /search endpoint.
type Client struct {
	baseURL     string
	userAgent   string
	countryCode string
	limiter     *rate.Limiter
	httpClient  *http.Client
	logger      *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	UserAgent   string
	CountryCode string
	// RequestsPerSecond <= 0 disables client-side throttling.
	RequestsPerSecond float64
}

// NewClient creates a Nominatim client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:     base,
		userAgent:   opts.UserAgent,
		countryCode: opts.CountryCode,
		limiter:     lim,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

func (c *Client) Name() string  { return Name }
func (c *Client) Precise() bool { return false }

func (c *Client) Ready() error {
	if c.userAgent == "" {
		return fmt.Errorf("%w: NOMINATIM_USER_AGENT is not set", domain.ErrProviderNotConfigured)
	}
	return nil
}

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// Lookup searches for a place name and returns the top hit.
func (c *Client) Lookup(ctx context.Context, query string) (domain.ProviderMatch, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ProviderMatch{}, domain.NewRequestFailed(fmt.Errorf("rate limiter: %w", err))
	}

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if c.countryCode != "" {
		params.Set("countrycodes", c.countryCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.ProviderMatch{}, domain.NewRequestFailed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ProviderMatch{}, domain.NewRequestFailed(fmt.Errorf("nominatim request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Debug("nominatim API error", "status", resp.StatusCode)
		return domain.ProviderMatch{}, domain.NewHTTPError(resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.ProviderMatch{}, domain.NewInvalidResponse(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(places) == 0 {
		return domain.ProviderMatch{}, domain.NewEmptyResult(resp.StatusCode)
	}

	p := places[0]
	lat, latErr := strconv.ParseFloat(p.Lat, 64)
	lon, lonErr := strconv.ParseFloat(p.Lon, 64)
	if latErr != nil || lonErr != nil {
		return domain.ProviderMatch{}, domain.NewInvalidCoordinates(resp.StatusCode, len(places),
			fmt.Errorf("parse %q,%q", p.Lat, p.Lon))
	}

	return domain.ProviderMatch{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: p.DisplayName,
		Confidence:  p.Importance,
		ResultCount: len(places),
		HTTPStatus:  resp.StatusCode,
	}, nil
}
