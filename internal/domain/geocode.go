package domain

import (
	"fmt"
	"strings"
	"time"
)

// GeocodeOutcome classifies one cache check or provider call.
type GeocodeOutcome string

const (
	OutcomeCacheHit              GeocodeOutcome = "CACHE_HIT"
	OutcomeCacheMiss             GeocodeOutcome = "CACHE_MISS"
	OutcomeLookupSuccess         GeocodeOutcome = "LOOKUP_SUCCESS"
	OutcomeEmptyResult           GeocodeOutcome = "EMPTY_RESULT"
	OutcomeInvalidCoordinates    GeocodeOutcome = "INVALID_COORDINATES"
	OutcomeInvalidResponse       GeocodeOutcome = "INVALID_RESPONSE"
	OutcomeHTTPError             GeocodeOutcome = "HTTP_ERROR"
	OutcomeRequestFailed         GeocodeOutcome = "REQUEST_FAILED"
	OutcomeLimitReached          GeocodeOutcome = "LIMIT_REACHED"
	OutcomeProviderNotConfigured GeocodeOutcome = "PROVIDER_NOT_CONFIGURED"
)

// NoData reports whether the outcome means the provider answered but had
// nothing usable, as opposed to a transient, quota or configuration failure.
func (o GeocodeOutcome) NoData() bool {
	return o == OutcomeEmptyResult || o == OutcomeInvalidCoordinates
}

// CacheProvider is the provider name recorded on cache attempts.
const CacheProvider = "cache"

// GeocodeAttempt is an immutable audit record of one cache check or provider call.
type GeocodeAttempt struct {
	Provider     string         `json:"provider"`
	Query        string         `json:"query"`
	Outcome      GeocodeOutcome `json:"outcome"`
	HTTPStatus   int            `json:"httpStatus,omitempty"`
	ResultCount  *int           `json:"resultCount,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// GeocodeQuery is free text to geocode plus an optional alias key under which
// the resolved coordinate is also cached.
type GeocodeQuery struct {
	Text     string
	AliasKey string
}

// CacheKey is the literal-query cache key.
func (q GeocodeQuery) CacheKey() string {
	return QueryCacheKey(q.Text)
}

// QueryCacheKey normalizes free query text into a cache key.
func QueryCacheKey(text string) string {
	return "query:" + NormalizeName(text)
}

// ForestAliasKey identifies a forest within its area regardless of how it was queried.
func ForestAliasKey(area, forest string) string {
	return "forest:" + NormalizeName(area) + ":" + NormalizeName(forest)
}

// AreaAliasKey identifies a fire-ban area centroid.
func AreaAliasKey(area string) string {
	return "area:" + NormalizeName(area)
}

// GeocodeCacheEntry is one persisted coordinate. Entries never expire.
type GeocodeCacheEntry struct {
	Key         string    `json:"key"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	DisplayName string    `json:"displayName"`
	Confidence  float64   `json:"confidence"`
	Provider    string    `json:"provider"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GeocodeResult is the outcome of resolving one forest or area. An
// unresolved result is valid and carries its attempt trail.
type GeocodeResult struct {
	Resolved    bool             `json:"resolved"`
	Latitude    float64          `json:"latitude"`
	Longitude   float64          `json:"longitude"`
	DisplayName string           `json:"displayName,omitempty"`
	Confidence  float64          `json:"confidence,omitempty"`
	Provider    string           `json:"provider,omitempty"`
	Approximate bool             `json:"approximate,omitempty"`
	Attempts    []GeocodeAttempt `json:"attempts"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// FailureReason summarizes an attempt trail as a sentence for operators.
// Quota and transport problems take precedence over "not found" because they
// mean the lookup never really happened.
func FailureReason(attempts []GeocodeAttempt) string {
	if len(attempts) == 0 {
		return "no geocode attempts were made"
	}

	var limit, failed, noData, invalid int
	var notConfigured []string
	var lastFailure GeocodeAttempt
	for _, a := range attempts {
		switch a.Outcome {
		case OutcomeLimitReached:
			limit++
		case OutcomeHTTPError, OutcomeRequestFailed:
			failed++
			lastFailure = a
		case OutcomeInvalidResponse:
			invalid++
		case OutcomeEmptyResult, OutcomeInvalidCoordinates:
			noData++
		case OutcomeProviderNotConfigured:
			if !containsString(notConfigured, a.Provider) {
				notConfigured = append(notConfigured, a.Provider)
			}
		}
	}

	switch {
	case limit > 0 && noData == 0:
		return "lookup budget exhausted (LIMIT_REACHED)"
	case failed > 0 && noData == 0:
		if lastFailure.HTTPStatus != 0 {
			return fmt.Sprintf("provider %s request failed (%s, HTTP %d)", lastFailure.Provider, lastFailure.Outcome, lastFailure.HTTPStatus)
		}
		return fmt.Sprintf("provider %s request failed (%s)", lastFailure.Provider, lastFailure.Outcome)
	case len(notConfigured) > 0 && noData == 0 && invalid == 0:
		return fmt.Sprintf("provider %s not configured", strings.Join(notConfigured, ", "))
	case noData > 0 && limit > 0:
		return "no provider returned a result before the lookup budget ran out"
	case noData > 0:
		return "no provider returned a result"
	case invalid > 0:
		return "provider returned a malformed response"
	default:
		return "no cached or provider result"
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
