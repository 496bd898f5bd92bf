package domain

import (
	"cmp"
	"slices"
)

// Resolve pairs each reference name with at most one candidate name.
//
// Exact matches on the comparison key are taken first. A reference whose key
// matches several candidate variants claims all of them when no other
// reference shares its key; otherwise it is ambiguous and falls through to
// fuzzy matching. Fuzzy pairs are drawn only from candidates still in the
// pool, must score at least threshold, and must not carry opposing compass
// qualifiers. The highest-scoring pair across all pending references is
// claimed first, so the outcome does not depend on input order. A candidate
// is never assigned to two references.
func Resolve(references, candidates []string, threshold float64) Resolution {
	refs := uniqueLabels(references)
	cands := uniqueLabels(candidates)

	byKey := make(map[string][]string, len(cands))
	for _, c := range cands {
		k := NormalizeName(c)
		byKey[k] = append(byKey[k], c)
	}
	refsPerKey := make(map[string]int, len(refs))
	for _, r := range refs {
		refsPerKey[NormalizeName(r)]++
	}

	claimed := make(map[string]bool, len(cands))
	assignments := make(map[string]MatchResult, len(refs))
	pending := make([]string, 0, len(refs))

	for _, ref := range refs {
		key := NormalizeName(ref)
		free := unclaimed(byKey[key], claimed)
		switch {
		case key == "" || len(free) == 0:
			pending = append(pending, ref)
		case len(free) == 1:
			claimed[free[0]] = true
			assignments[ref] = MatchResult{MatchType: MatchExact, MatchedName: free[0], Score: 1}
		case refsPerKey[key] == 1:
			for _, c := range free {
				claimed[c] = true
			}
			assignments[ref] = MatchResult{MatchType: MatchExact, MatchedName: free[0], Score: 1, MergedNames: free}
		default:
			pending = append(pending, ref)
		}
	}

	fuzzy := assignFuzzy(pending, cands, claimed, threshold)
	for _, f := range fuzzy {
		assignments[f.Reference] = MatchResult{MatchType: MatchFuzzy, MatchedName: f.Candidate, Score: f.Score}
	}
	for _, ref := range pending {
		if _, ok := assignments[ref]; !ok {
			assignments[ref] = MatchResult{MatchType: MatchUnmatched}
		}
	}

	diag := MatchDiagnostics{
		UnmatchedCandidates: []MatchCandidate{},
		FuzzyMatches:        fuzzy,
	}
	for _, c := range cands {
		if !claimed[c] {
			diag.UnmatchedCandidates = append(diag.UnmatchedCandidates, MatchCandidate{Name: c})
		}
	}
	return Resolution{Assignments: assignments, Diagnostics: diag}
}

func assignFuzzy(pending, cands []string, claimed map[string]bool, threshold float64) []FuzzyMatch {
	var pairs []FuzzyMatch
	for _, ref := range pending {
		for _, c := range cands {
			if claimed[c] || DirectionalConflict(ref, c) {
				continue
			}
			if s := Score(ref, c); s >= threshold {
				pairs = append(pairs, FuzzyMatch{Reference: ref, Candidate: c, Score: s})
			}
		}
	}
	slices.SortFunc(pairs, func(a, b FuzzyMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Reference, b.Reference); c != 0 {
			return c
		}
		return cmp.Compare(a.Candidate, b.Candidate)
	})

	taken := make(map[string]bool, len(pending))
	accepted := []FuzzyMatch{}
	for _, p := range pairs {
		if taken[p.Reference] || claimed[p.Candidate] {
			continue
		}
		taken[p.Reference] = true
		claimed[p.Candidate] = true
		accepted = append(accepted, p)
	}
	slices.SortFunc(accepted, func(a, b FuzzyMatch) int { return cmp.Compare(a.Reference, b.Reference) })
	return accepted
}

func unclaimed(names []string, claimed map[string]bool) []string {
	var out []string
	for _, n := range names {
		if !claimed[n] {
			out = append(out, n)
		}
	}
	return out
}

// uniqueLabels normalizes display labels, drops blanks and duplicates, and
// returns them sorted.
func uniqueLabels(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		l := NormalizeLabel(raw)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	slices.Sort(s)
}
