package domain

import "encoding/json"

// MatchType classifies how a reference name was paired with a candidate.
type MatchType string

const (
	MatchExact     MatchType = "EXACT"
	MatchFuzzy     MatchType = "FUZZY"
	MatchUnmatched MatchType = "UNMATCHED"
)

// MatchCandidate is a name taken from a secondary source.
type MatchCandidate struct {
	Name string `json:"name"`
}

// MatchResult is the outcome for one reference name. EXACT always carries a
// score of 1; UNMATCHED carries neither a name nor a score.
type MatchResult struct {
	MatchType   MatchType `json:"matchType"`
	MatchedName string    `json:"matchedName"`
	Score       float64   `json:"score"`
	// MergedNames lists every candidate label folded into an exact match when
	// several variants share the same comparison key. Empty otherwise.
	MergedNames []string `json:"mergedNames,omitempty"`
}

// Names returns every candidate label this result claimed.
func (m MatchResult) Names() []string {
	switch {
	case m.MatchType == MatchUnmatched:
		return nil
	case len(m.MergedNames) > 0:
		return m.MergedNames
	default:
		return []string{m.MatchedName}
	}
}

// MarshalJSON renders unmatched results with null name and score.
func (m MatchResult) MarshalJSON() ([]byte, error) {
	out := struct {
		MatchType   MatchType `json:"matchType"`
		MatchedName *string   `json:"matchedName"`
		Score       *float64  `json:"score"`
		MergedNames []string  `json:"mergedNames,omitempty"`
	}{MatchType: m.MatchType, MergedNames: m.MergedNames}
	if m.MatchType != MatchUnmatched {
		out.MatchedName = &m.MatchedName
		out.Score = &m.Score
	}
	return json.Marshal(out)
}

// FuzzyMatch records one accepted non-exact pairing.
type FuzzyMatch struct {
	Reference string  `json:"reference"`
	Candidate string  `json:"candidate"`
	Score     float64 `json:"score"`
}

// MatchDiagnostics is produced by every resolution, successful or not.
type MatchDiagnostics struct {
	UnmatchedCandidates []MatchCandidate `json:"unmatchedCandidates"`
	FuzzyMatches        []FuzzyMatch     `json:"fuzzyMatches"`
}

// Resolution is the full output of Resolve.
type Resolution struct {
	Assignments map[string]MatchResult `json:"assignments"`
	Diagnostics MatchDiagnostics       `json:"diagnostics"`
}

// Unmatched returns the reference names left without a candidate, sorted.
func (r Resolution) Unmatched() []string {
	var out []string
	for ref, m := range r.Assignments {
		if m.MatchType == MatchUnmatched {
			out = append(out, ref)
		}
	}
	sortStrings(out)
	return out
}
