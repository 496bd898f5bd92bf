package domain

// CanonicalForestRecord is the reconciled view of one forest. Records are
// rebuilt wholesale on every run.
type CanonicalForestRecord struct {
	Name               string                   `json:"name"`
	Areas              []string                 `json:"areas"`
	BanStatus          BanStatus                `json:"banStatus"`
	BanStatusText      string                   `json:"banStatusText"`
	Facilities         map[string]FacilityValue `json:"facilities"`
	FacilityMatch      MatchResult              `json:"facilityMatch"`
	Latitude           *float64                 `json:"latitude"`
	Longitude          *float64                 `json:"longitude"`
	Geohash            string                   `json:"geohash,omitempty"`
	GeocodeProvider    string                   `json:"geocodeProvider,omitempty"`
	GeocodeConfidence  *float64                 `json:"geocodeConfidence,omitempty"`
	GeocodeApproximate bool                     `json:"geocodeApproximate,omitempty"`
	GeocodeDiagnostics *GeocodeDiagnostics      `json:"geocodeDiagnostics,omitempty"`
	ClosureStatus      ClosureStatus            `json:"closureStatus"`
	ClosureImpact      ClosureImpact            `json:"closureImpact"`
	ClosureMatch       MatchResult              `json:"closureMatch"`
	ClosureNoticeIDs   []string                 `json:"closureNoticeIds"`
}

// GeocodeDiagnostics explains a missing or approximate coordinate.
type GeocodeDiagnostics struct {
	Reason   string           `json:"reason,omitempty"`
	Attempts []GeocodeAttempt `json:"attempts"`
	Warnings []string         `json:"warnings,omitempty"`
}

// ForestRef is a canonical forest name and the fire-ban areas that list it.
type ForestRef struct {
	Name  string
	Areas []string
}

// PrimaryArea is the area used as a geocoding hint.
func (f ForestRef) PrimaryArea() string {
	if len(f.Areas) == 0 {
		return ""
	}
	return f.Areas[0]
}

// CanonicalForests lists every forest named by the fire-ban source, sorted by
// name, with its areas sorted.
func CanonicalForests(areas []FireBanArea) []ForestRef {
	byName := make(map[string]map[string]struct{})
	for _, a := range areas {
		area := NormalizeLabel(a.AreaName)
		for _, raw := range a.ForestNames {
			name := NormalizeLabel(raw)
			if name == "" {
				continue
			}
			set, ok := byName[name]
			if !ok {
				set = make(map[string]struct{})
				byName[name] = set
			}
			if area != "" {
				set[area] = struct{}{}
			}
		}
	}

	out := make([]ForestRef, 0, len(byName))
	for name, set := range byName {
		ref := ForestRef{Name: name, Areas: make([]string, 0, len(set))}
		for a := range set {
			ref.Areas = append(ref.Areas, a)
		}
		sortStrings(ref.Areas)
		out = append(out, ref)
	}
	sortForestRefs(out)
	return out
}

// ForestNames returns the canonical names from refs.
func ForestNames(refs []ForestRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}
