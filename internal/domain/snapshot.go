package domain

import "time"

// SourceData is one scrape of the three upstream sources.
type SourceData struct {
	FireBanAreas []FireBanArea
	Facilities   []FacilityEntry
	Closures     []ClosureNotice
}

// Empty reports whether the fire-ban source named no forests at all, which
// is the one structural failure that aborts a run.
func (d SourceData) Empty() bool {
	for _, a := range d.FireBanAreas {
		for _, f := range a.ForestNames {
			if NormalizeLabel(f) != "" {
				return false
			}
		}
	}
	return true
}

// GeocodeFailure is a forest left without coordinates, with its full
// attempt trail.
type GeocodeFailure struct {
	Forest   string           `json:"forest"`
	Area     string           `json:"area,omitempty"`
	Reason   string           `json:"reason"`
	Attempts []GeocodeAttempt `json:"attempts"`
}

// RunSummary counts what a run produced.
type RunSummary struct {
	Forests            int `json:"forests"`
	Geocoded           int `json:"geocoded"`
	GeocodeApproximate int `json:"geocodeApproximate"`
	GeocodeUnresolved  int `json:"geocodeUnresolved"`
	GeocodeLookups     int `json:"geocodeLookups"`
	FacilityMatched    int `json:"facilityMatched"`
	FacilityUnmatched  int `json:"facilityUnmatched"`
	ActiveClosures     int `json:"activeClosures"`
	ClosureMatched     int `json:"closureMatched"`
	ClosureUnmatched   int `json:"closureUnmatched"`
}

// Snapshot is the hand-off to the API layer.
type Snapshot struct {
	RunID               string                  `json:"runId"`
	GeneratedAt         time.Time               `json:"generatedAt"`
	Forests             []CanonicalForestRecord `json:"forests"`
	FacilityDiagnostics MatchDiagnostics        `json:"facilityDiagnostics"`
	ClosureDiagnostics  MatchDiagnostics        `json:"closureDiagnostics"`
	GeocodeFailures     []GeocodeFailure        `json:"geocodeFailures"`
	Summary             RunSummary              `json:"summary"`
}

// Summarize fills the record-derived counters of a RunSummary. Match counts
// are per forest; unmatched counts are per source candidate.
func Summarize(records []CanonicalForestRecord, facility, closure MatchDiagnostics, activeClosures int) RunSummary {
	s := RunSummary{
		Forests:           len(records),
		FacilityUnmatched: len(facility.UnmatchedCandidates),
		ClosureUnmatched:  len(closure.UnmatchedCandidates),
		ActiveClosures:    activeClosures,
	}
	for i := range records {
		r := &records[i]
		switch {
		case r.Latitude == nil:
			s.GeocodeUnresolved++
		case r.GeocodeApproximate:
			s.GeocodeApproximate++
			s.Geocoded++
		default:
			s.Geocoded++
		}
		if r.FacilityMatch.MatchType != MatchUnmatched {
			s.FacilityMatched++
		}
		if r.ClosureMatch.MatchType != MatchUnmatched {
			s.ClosureMatched++
		}
	}
	return s
}

// RunStatus describes the most recent reconciliation attempt.
type RunStatus struct {
	RunID      string      `json:"runId"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	Summary    *RunSummary `json:"summary,omitempty"`
}
