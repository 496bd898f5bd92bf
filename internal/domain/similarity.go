package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Weights and bonuses for the combined name similarity score.
const (
	diceWeight        = 0.45
	jaccardWeight     = 0.20
	editWeight        = 0.35
	containmentBonus  = 0.07
	singleTokenBonus  = 0.18
	singleTokenMinSim = 0.8

	// coreMatchScore is returned when two names share identical core tokens.
	// It stays below 1 so exact and fuzzy matches remain distinguishable.
	coreMatchScore = 0.98
	maxFuzzyScore  = 0.99
)

var parentheticalRe = regexp.MustCompile(`\([^)]*\)`)

// stopWords are generic tokens that carry no identity in forest names.
var stopWords = map[string]struct{}{
	"state": {}, "forest": {}, "forests": {}, "nsw": {}, "new": {}, "south": {},
	"wales": {}, "region": {}, "area": {}, "native": {}, "around": {},
}

// Score returns a confidence in [0, 1] that a and b name the same forest.
// Identical comparison keys score 1; everything else is capped at 0.99.
// The compass-direction guard is not applied here; see DirectionalConflict.
func Score(a, b string) float64 {
	ka, kb := comparisonKey(a), comparisonKey(b)
	if ka == "" || kb == "" {
		if NormalizeName(a) != "" && NormalizeName(a) == NormalizeName(b) {
			return 1
		}
		return 0
	}
	if ka == kb {
		return 1
	}

	ta, tb := strings.Fields(ka), strings.Fields(kb)
	ca, cb := coreTokens(ta), coreTokens(tb)
	coreA, coreB := strings.Join(ca, " "), strings.Join(cb, " ")
	if coreA != "" && coreA == coreB {
		return coreMatchScore
	}

	// Names made only of stop words fall back to the full key.
	left, right := coreA, coreB
	leftTokens, rightTokens := ca, cb
	if left == "" || right == "" {
		left, right = ka, kb
		leftTokens, rightTokens = ta, tb
	}

	score := diceWeight*diceCoefficient(left, right) +
		jaccardWeight*jaccard(leftTokens, rightTokens) +
		editWeight*editSimilarity(left, right)

	if coreA != "" && coreB != "" && (strings.Contains(coreA, coreB) || strings.Contains(coreB, coreA)) {
		score += containmentBonus
	}
	if len(ca) == 1 && len(cb) == 1 && editSimilarity(ca[0], cb[0]) >= singleTokenMinSim {
		score += singleTokenBonus
	}

	if score > maxFuzzyScore {
		return maxFuzzyScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// DirectionalConflict reports whether one name carries a compass qualifier
// whose opposite appears in the other ("Smith East" vs "Smith West"). Such
// names denote distinct forests and must never be matched.
func DirectionalConflict(a, b string) bool {
	da, db := compassTokens(a), compassTokens(b)
	opposite := map[string]string{"east": "west", "west": "east", "north": "south", "south": "north"}
	for dir := range da {
		if _, ok := db[opposite[dir]]; ok {
			return true
		}
	}
	return false
}

func compassTokens(name string) map[string]struct{} {
	key := " " + NormalizeName(name) + " "
	// "New South Wales" is a state, not a compass qualifier.
	key = strings.ReplaceAll(key, " new south wales ", " ")
	out := make(map[string]struct{}, 2)
	for _, tok := range strings.Fields(key) {
		switch tok {
		case "east", "west", "north", "south":
			out[tok] = struct{}{}
		}
	}
	return out
}

func comparisonKey(raw string) string {
	return NormalizeName(parentheticalRe.ReplaceAllString(raw, " "))
}

func coreTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopWords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

// diceCoefficient compares character bigram multisets, ignoring spaces.
func diceCoefficient(a, b string) float64 {
	ba, bb := bigrams(strings.ReplaceAll(a, " ", "")), bigrams(strings.ReplaceAll(b, " ", ""))
	total := 0
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	if total == 0 {
		return 0
	}
	shared := 0
	for g, n := range ba {
		shared += min(n, bb[g])
	}
	return 2 * float64(shared) / float64(total)
}

func bigrams(s string) map[string]int {
	r := []rune(s)
	out := make(map[string]int, len(r))
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])]++
	}
	return out
}

func jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	both := 0
	for _, mask := range set {
		if mask == 3 {
			both++
		}
	}
	return float64(both) / float64(len(set))
}

func editSimilarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
