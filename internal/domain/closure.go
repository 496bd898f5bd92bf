package domain

import (
	"strings"
	"time"
)

// ClosureStatus is ordered NONE < NOTICE < PARTIAL < CLOSED.
type ClosureStatus string

const (
	ClosureNone         ClosureStatus = "NONE"
	ClosureStatusNotice ClosureStatus = "NOTICE"
	ClosurePartial      ClosureStatus = "PARTIAL"
	ClosureClosed       ClosureStatus = "CLOSED"
)

func (s ClosureStatus) rank() int {
	switch s {
	case ClosureClosed:
		return 3
	case ClosurePartial:
		return 2
	case ClosureStatusNotice:
		return 1
	default:
		return 0
	}
}

// ParseClosureStatus maps the closure feed's status text onto a ClosureStatus.
// Every notice is at least a NOTICE.
func ParseClosureStatus(raw string) ClosureStatus {
	s := NormalizeName(raw)
	switch {
	case strings.Contains(s, "partial"):
		return ClosurePartial
	case strings.Contains(s, "closed") || strings.Contains(s, "closure"):
		return ClosureClosed
	default:
		return ClosureStatusNotice
	}
}

// ImpactLevel is ordered NONE < ADVISORY < RESTRICTED < CLOSED. UNKNOWN sits
// outside the order and never overrides a concrete level.
type ImpactLevel string

const (
	ImpactNone       ImpactLevel = "NONE"
	ImpactAdvisory   ImpactLevel = "ADVISORY"
	ImpactRestricted ImpactLevel = "RESTRICTED"
	ImpactClosed     ImpactLevel = "CLOSED"
	ImpactUnknown    ImpactLevel = "UNKNOWN"
)

// rank returns -1 for UNKNOWN and any unrecognised level.
func (l ImpactLevel) rank() int {
	switch l {
	case ImpactNone:
		return 0
	case ImpactAdvisory:
		return 1
	case ImpactRestricted:
		return 2
	case ImpactClosed:
		return 3
	default:
		return -1
	}
}

// ClosureImpact is the per-category effect of a closure notice.
type ClosureImpact struct {
	Camping   ImpactLevel `json:"camping" yaml:"camping"`
	Access2WD ImpactLevel `json:"access2wd" yaml:"access2wd"`
	Access4WD ImpactLevel `json:"access4wd" yaml:"access4wd"`
}

// NoImpact is the impact of a forest without active notices.
var NoImpact = ClosureImpact{Camping: ImpactNone, Access2WD: ImpactNone, Access4WD: ImpactNone}

// ClosureNotice is one entry from the closure feed. StructuredImpact is set
// when the enrichment collaborator classified the notice.
type ClosureNotice struct {
	ID               string         `json:"id" yaml:"id"`
	Title            string         `json:"title" yaml:"title"`
	ForestNameHint   string         `json:"forestNameHint" yaml:"forestNameHint"`
	Status           ClosureStatus  `json:"status" yaml:"status"`
	ListedAt         *time.Time     `json:"listedAt,omitempty" yaml:"listedAt"`
	UntilAt          *time.Time     `json:"untilAt,omitempty" yaml:"untilAt"`
	DetailText       string         `json:"detailText,omitempty" yaml:"detailText"`
	StructuredImpact *ClosureImpact `json:"structuredImpact,omitempty" yaml:"structuredImpact"`
}

// ActiveAt reports whether the notice applies at now. Notices listed in the
// future or already expired are inactive.
func (n ClosureNotice) ActiveAt(now time.Time) bool {
	if n.ListedAt != nil && n.ListedAt.After(now) {
		return false
	}
	if n.UntilAt != nil && n.UntilAt.Before(now) {
		return false
	}
	return true
}

// MatchName is the label used to match the notice against forest names.
func (n ClosureNotice) MatchName() string {
	if hint := NormalizeLabel(n.ForestNameHint); hint != "" {
		return hint
	}
	return NormalizeLabel(n.Title)
}

// Impact returns the structured impact when present, otherwise the
// rule-based classification.
func (n ClosureNotice) Impact() ClosureImpact {
	if n.StructuredImpact != nil {
		return *n.StructuredImpact
	}
	return ClassifyNotice(n)
}

var (
	campingWords = []string{"camp", "campground", "camping", "campsite"}
	twoWDWords   = []string{"2wd", "2 wd", "two wheel", "road", "roads", "vehicle access", "car park"}
	fourWDWords  = []string{"4wd", "4 wd", "4x4", "four wheel", "fire trail", "trail", "track", "tracks"}
)

// ClassifyNotice derives impact from status and keywords in the notice text.
// CLOSED closes everything. PARTIAL restricts the categories the text names
// and leaves the rest UNKNOWN. Any other notice is advisory for the
// categories it names.
func ClassifyNotice(n ClosureNotice) ClosureImpact {
	status := n.Status
	if status == "" || status == ClosureNone {
		status = ClosureStatusNotice
	}
	if status == ClosureClosed {
		return ClosureImpact{Camping: ImpactClosed, Access2WD: ImpactClosed, Access4WD: ImpactClosed}
	}

	text := " " + NormalizeName(n.Title+" "+n.DetailText) + " "
	hit := ImpactAdvisory
	if status == ClosurePartial {
		hit = ImpactRestricted
	}
	level := func(words []string) ImpactLevel {
		for _, w := range words {
			if strings.Contains(text, " "+w) {
				return hit
			}
		}
		return ImpactUnknown
	}
	return ClosureImpact{
		Camping:   level(campingWords),
		Access2WD: level(twoWDWords),
		Access4WD: level(fourWDWords),
	}
}
