package domain

import (
	"cmp"
	"slices"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

const geohashPrecision = 7

// MergeInput is everything the merger needs for one run. Notices must already
// be filtered to those active at the run time.
type MergeInput struct {
	Areas           []FireBanArea
	Facilities      []FacilityEntry
	FacilityMatches Resolution
	Notices         []ClosureNotice
	ClosureMatches  Resolution
	Geocodes        map[string]GeocodeResult
}

// Merge builds one CanonicalForestRecord per forest in the fire-ban source.
// It does not modify its input and returns records sorted by name, so equal
// inputs always serialize to identical bytes.
func Merge(in MergeInput) []CanonicalForestRecord {
	areaStatus := make(map[string]string, len(in.Areas))
	for _, a := range in.Areas {
		name := NormalizeLabel(a.AreaName)
		if _, seen := areaStatus[name]; !seen {
			areaStatus[name] = NormalizeLabel(a.Status)
		}
	}

	facilityKeys := make(map[string]struct{})
	facilitiesByName := make(map[string][]FacilityEntry, len(in.Facilities))
	for _, f := range in.Facilities {
		label := NormalizeLabel(f.ForestName)
		facilitiesByName[label] = append(facilitiesByName[label], f)
		for k := range f.Facilities {
			facilityKeys[k] = struct{}{}
		}
	}

	noticesByName := make(map[string][]ClosureNotice, len(in.Notices))
	for _, n := range in.Notices {
		noticesByName[n.MatchName()] = append(noticesByName[n.MatchName()], n)
	}

	forests := CanonicalForests(in.Areas)
	records := make([]CanonicalForestRecord, 0, len(forests))
	for _, f := range forests {
		rec := CanonicalForestRecord{Name: f.Name, Areas: f.Areas}
		rec.BanStatus, rec.BanStatusText = mergeBan(f.Areas, areaStatus)

		rec.FacilityMatch = assignment(in.FacilityMatches, f.Name)
		var entries []FacilityEntry
		for _, n := range rec.FacilityMatch.Names() {
			entries = append(entries, facilitiesByName[n]...)
		}
		rec.Facilities = mergeFacilities(facilityKeys, entries, rec.FacilityMatch.MatchType != MatchUnmatched)

		rec.ClosureMatch = assignment(in.ClosureMatches, f.Name)
		var notices []ClosureNotice
		for _, n := range rec.ClosureMatch.Names() {
			notices = append(notices, noticesByName[n]...)
		}
		rec.ClosureStatus, rec.ClosureImpact, rec.ClosureNoticeIDs = mergeClosures(notices)

		applyGeocode(&rec, in.Geocodes[f.Name])
		records = append(records, rec)
	}
	return records
}

func assignment(r Resolution, name string) MatchResult {
	if m, ok := r.Assignments[name]; ok {
		return m
	}
	return MatchResult{MatchType: MatchUnmatched}
}

// mergeBan picks the most restrictive status across areas. The text of the
// first area (by name) holding that status is kept verbatim.
func mergeBan(areas []string, status map[string]string) (BanStatus, string) {
	best, text := BanUnknown, ""
	for _, a := range areas {
		raw := status[a]
		s := ParseBanStatus(raw)
		if s.rank() > best.rank() || text == "" && s == best {
			best, text = s, raw
		}
	}
	return best, text
}

func mergeFacilities(keys map[string]struct{}, entries []FacilityEntry, matched bool) map[string]FacilityValue {
	out := make(map[string]FacilityValue, len(keys))
	for k := range keys {
		out[k] = FacilityUnknown
		if !matched {
			continue
		}
		for _, e := range entries {
			v, ok := e.Facilities[k]
			switch {
			case !ok:
			case v:
				out[k] = FacilityPresent
			case out[k] == FacilityUnknown:
				out[k] = FacilityAbsent
			}
		}
	}
	return out
}

func mergeClosures(notices []ClosureNotice) (ClosureStatus, ClosureImpact, []string) {
	ids := []string{}
	if len(notices) == 0 {
		return ClosureNone, NoImpact, ids
	}

	sorted := slices.Clone(notices)
	slices.SortFunc(sorted, func(a, b ClosureNotice) int { return cmp.Compare(a.ID, b.ID) })

	status := ClosureNone
	var camping, twoWD, fourWD []ImpactLevel
	for _, n := range sorted {
		if n.ID != "" && !slices.Contains(ids, n.ID) {
			ids = append(ids, n.ID)
		}
		s := n.Status
		if s == "" {
			s = ClosureStatusNotice
		}
		if s.rank() > status.rank() {
			status = s
		}
		impact := n.Impact()
		camping = append(camping, impact.Camping)
		twoWD = append(twoWD, impact.Access2WD)
		fourWD = append(fourWD, impact.Access4WD)
	}
	return status, ClosureImpact{
		Camping:   worstImpact(camping),
		Access2WD: worstImpact(twoWD),
		Access4WD: worstImpact(fourWD),
	}, ids
}

// worstImpact returns the most severe concrete level, UNKNOWN when notices
// exist but none is concrete, and NONE when there are no notices.
func worstImpact(levels []ImpactLevel) ImpactLevel {
	if len(levels) == 0 {
		return ImpactNone
	}
	worst := ImpactUnknown
	for _, l := range levels {
		if l.rank() > worst.rank() {
			worst = l
		}
	}
	return worst
}

func applyGeocode(rec *CanonicalForestRecord, g GeocodeResult) {
	if g.Resolved {
		lat, lon, conf := g.Latitude, g.Longitude, g.Confidence
		rec.Latitude, rec.Longitude = &lat, &lon
		rec.Geohash = geohash.EncodeWithPrecision(lat, lon, geohashPrecision)
		rec.GeocodeProvider = g.Provider
		rec.GeocodeConfidence = &conf
		rec.GeocodeApproximate = g.Approximate
	}
	if g.Resolved && len(g.Warnings) == 0 {
		return
	}
	diag := &GeocodeDiagnostics{
		Attempts: slices.Clone(g.Attempts),
		Warnings: slices.Clone(g.Warnings),
	}
	if diag.Attempts == nil {
		diag.Attempts = []GeocodeAttempt{}
	}
	if !g.Resolved {
		diag.Reason = FailureReason(g.Attempts)
	}
	rec.GeocodeDiagnostics = diag
}

func sortForestRefs(refs []ForestRef) {
	slices.SortFunc(refs, func(a, b ForestRef) int { return cmp.Compare(a.Name, b.Name) })
}
