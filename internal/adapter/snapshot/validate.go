package snapshot

import (
	"fmt"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
)

// Validate checks a snapshot's internal consistency and returns one message
// per problem found. An empty result means the snapshot is consistent.
func Validate(snap domain.Snapshot) []string {
	var issues []string
	report := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if snap.RunID == "" {
		report("runId is empty")
	}
	if snap.Summary.Forests != len(snap.Forests) {
		report("summary.forests=%d but %d forest records", snap.Summary.Forests, len(snap.Forests))
	}

	unresolved := make(map[string]bool)
	for i, f := range snap.Forests {
		if i > 0 && snap.Forests[i-1].Name >= f.Name {
			report("forest %q is out of order or duplicated", f.Name)
		}
		if len(f.Areas) == 0 {
			report("forest %q has no fire-ban area", f.Name)
		}

		switch {
		case (f.Latitude == nil) != (f.Longitude == nil):
			report("forest %q has only one coordinate", f.Name)
		case f.Latitude == nil:
			unresolved[f.Name] = true
			if f.Geohash != "" {
				report("forest %q has a geohash but no coordinates", f.Name)
			}
			if f.GeocodeDiagnostics == nil || f.GeocodeDiagnostics.Reason == "" {
				report("forest %q is unresolved without a reason", f.Name)
			}
		default:
			if !domain.ValidCoordinates(*f.Latitude, *f.Longitude) {
				report("forest %q has invalid coordinates %f,%f", f.Name, *f.Latitude, *f.Longitude)
			}
			if f.Geohash == "" {
				report("forest %q has coordinates but no geohash", f.Name)
			}
		}

		if f.FacilityMatch.MatchType == domain.MatchUnmatched {
			for k, v := range f.Facilities {
				if v != domain.FacilityUnknown {
					report("forest %q is unmatched but facility %q is %s", f.Name, k, v)
				}
			}
		}

		if (f.ClosureStatus == domain.ClosureNone) != (len(f.ClosureNoticeIDs) == 0) {
			report("forest %q has closure status %s with %d notices", f.Name, f.ClosureStatus, len(f.ClosureNoticeIDs))
		}
	}

	if len(snap.GeocodeFailures) != len(unresolved) {
		report("%d geocode failures listed but %d forests unresolved", len(snap.GeocodeFailures), len(unresolved))
	}
	for _, gf := range snap.GeocodeFailures {
		if !unresolved[gf.Forest] {
			report("geocode failure listed for %q, which has coordinates or does not exist", gf.Forest)
		}
	}
	return issues
}
