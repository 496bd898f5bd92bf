// Package domain reconciles NSW state forest data from three independently
// published sources into one canonical record per forest.
//
// # Sources
//
// Fire-ban areas are the system of record. Each area lists the forests it
// covers and one ban status ("Total Fire Ban", "No ban", ...). A forest's
// identity is its name exactly as the fire-ban source prints it, after
// whitespace collapse (see [NormalizeLabel]). It is never fuzzy-rewritten.
//
// The facilities directory and the closure-notice feed name forests
// independently. Their names are matched against the fire-ban names with
// [Resolve]: exact on the comparison key first, then fuzzy above a threshold.
// Facilities use 0.62 and closure notices 0.68.
//
// # Comparison keys
//
// [NormalizeName] folds diacritics, lower-cases, drops apostrophes and turns
// other punctuation into spaces:
//
//	"St. Mary’s  State Forest"  →  "st marys state forest"
//
// [Score] additionally strips parenthetical asides and ignores generic words
// (state, forest, nsw, region, ...) when comparing the remaining core tokens.
// Compass qualifiers are significant: "Smith East" and "Smith West" are
// different forests, see [DirectionalConflict]. The "South" in "New South
// Wales" is not treated as a compass word.
//
// # Merge precedence
//
//	Ban status:     BANNED > NOT_BANNED > UNKNOWN
//	Closure status: CLOSED > PARTIAL > NOTICE > NONE
//	Impact level:   CLOSED > RESTRICTED > ADVISORY > NONE, UNKNOWN never wins
//
// Facilities for a forest that matched no directory entry are unknown (JSON
// null), never false.
//
// # Geocode cache keys
//
//	query:<normalized query text>
//	forest:<normalized area>:<normalized forest>
//	area:<normalized area>
package domain
