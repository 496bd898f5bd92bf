package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
)

// Sentinel causes wrapped by LookupError.
var (
	ErrEmptyResult           = errors.New("no results")
	ErrInvalidCoordinates    = errors.New("invalid coordinates")
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// ProviderMatch is the best result a provider returned for one query.
type ProviderMatch struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Confidence  float64 // 0.0–1.0
	ResultCount int
	HTTPStatus  int
}

// GeocodeProvider is one external geocoding service in the cascade.
type GeocodeProvider interface {
	// Name identifies the provider in attempts, cache entries, and config.
	Name() string

	// Precise reports whether results are trusted as final. Cache hits from
	// imprecise providers are queued for a background upgrade.
	Precise() bool

	// Ready returns ErrProviderNotConfigured when credentials are missing.
	Ready() error

	// Lookup forward-geocodes query. Failures are returned as *LookupError.
	Lookup(ctx context.Context, query string) (ProviderMatch, error)
}

// LookupError is a classified provider failure.
type LookupError struct {
	Outcome     GeocodeOutcome
	HTTPStatus  int
	ResultCount *int
	Err         error
}

func (e *LookupError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (HTTP %d): %v", e.Outcome, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Outcome, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call could succeed: network
// failures, timeouts, HTTP 408, 429, and 5xx.
func (e *LookupError) Retryable() bool {
	switch e.Outcome {
	case OutcomeRequestFailed:
		return true
	case OutcomeHTTPError:
		return e.HTTPStatus == http.StatusRequestTimeout ||
			e.HTTPStatus == http.StatusTooManyRequests ||
			e.HTTPStatus >= 500
	default:
		return false
	}
}

// NewHTTPError classifies a non-2xx provider response.
func NewHTTPError(status int, body []byte) *LookupError {
	return &LookupError{
		Outcome:    OutcomeHTTPError,
		HTTPStatus: status,
		Err:        fmt.Errorf("status %d: %s", status, truncate(body, 200)),
	}
}

// NewRequestFailed wraps a transport failure or timeout.
func NewRequestFailed(err error) *LookupError {
	return &LookupError{Outcome: OutcomeRequestFailed, Err: err}
}

// NewInvalidResponse reports a body that could not be decoded.
func NewInvalidResponse(status int, err error) *LookupError {
	return &LookupError{Outcome: OutcomeInvalidResponse, HTTPStatus: status, Err: err}
}

// NewEmptyResult reports that the provider answered with no candidates.
func NewEmptyResult(status int) *LookupError {
	zero := 0
	return &LookupError{Outcome: OutcomeEmptyResult, HTTPStatus: status, ResultCount: &zero, Err: ErrEmptyResult}
}

// NewInvalidCoordinates reports a result whose coordinates are missing,
// unparseable, or out of range. It counts as "no data", not as a failure.
func NewInvalidCoordinates(status, resultCount int, err error) *LookupError {
	return &LookupError{
		Outcome:     OutcomeInvalidCoordinates,
		HTTPStatus:  status,
		ResultCount: &resultCount,
		Err:         fmt.Errorf("%w: %w", ErrInvalidCoordinates, err),
	}
}

// ValidCoordinates rejects non-finite, out-of-range, and null-island points.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return lat != 0 || lon != 0
}

// CheckCoordinates wraps ValidCoordinates as a LookupError.
func CheckCoordinates(m ProviderMatch) error {
	if ValidCoordinates(m.Latitude, m.Longitude) {
		return nil
	}
	return NewInvalidCoordinates(m.HTTPStatus, m.ResultCount, fmt.Errorf("%v,%v", m.Latitude, m.Longitude))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
