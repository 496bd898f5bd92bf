package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestParseClosureStatus(t *testing.T) {
	assert.Equal(t, ClosureClosed, ParseClosureStatus("Closed"))
	assert.Equal(t, ClosureClosed, ParseClosureStatus("Forest closure"))
	assert.Equal(t, ClosurePartial, ParseClosureStatus("Partially closed"))
	assert.Equal(t, ClosurePartial, ParseClosureStatus("Partial closure"))
	assert.Equal(t, ClosureStatusNotice, ParseClosureStatus("Notice"))
	assert.Equal(t, ClosureStatusNotice, ParseClosureStatus(""))
}

func TestClosureNotice_ActiveAt(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	now := clk.Now()
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	tests := []struct {
		name   string
		notice ClosureNotice
		want   bool
	}{
		{"open ended", ClosureNotice{}, true},
		{"listed in past", ClosureNotice{ListedAt: &past}, true},
		{"listed in future", ClosureNotice{ListedAt: &future}, false},
		{"until future", ClosureNotice{ListedAt: &past, UntilAt: &future}, true},
		{"expired", ClosureNotice{ListedAt: &past, UntilAt: &past}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.notice.ActiveAt(now))
		})
	}
}

func TestClosureNotice_MatchName(t *testing.T) {
	assert.Equal(t, "Bago State Forest", ClosureNotice{ForestNameHint: " Bago  State Forest", Title: "x"}.MatchName())
	assert.Equal(t, "Bago closure", ClosureNotice{Title: "Bago closure"}.MatchName())
}

func TestClassifyNotice(t *testing.T) {
	closed := ClassifyNotice(ClosureNotice{Status: ClosureClosed})
	assert.Equal(t, ClosureImpact{Camping: ImpactClosed, Access2WD: ImpactClosed, Access4WD: ImpactClosed}, closed)

	partial := ClassifyNotice(ClosureNotice{
		Status:     ClosurePartial,
		Title:      "Campground closed",
		DetailText: "The Pines campground is closed for maintenance.",
	})
	assert.Equal(t, ImpactRestricted, partial.Camping)
	assert.Equal(t, ImpactUnknown, partial.Access2WD)
	assert.Equal(t, ImpactUnknown, partial.Access4WD)

	notice := ClassifyNotice(ClosureNotice{
		Status:     ClosureStatusNotice,
		DetailText: "Expect log trucks on roads. 4WD tracks may be slippery.",
	})
	assert.Equal(t, ImpactUnknown, notice.Camping)
	assert.Equal(t, ImpactAdvisory, notice.Access2WD)
	assert.Equal(t, ImpactAdvisory, notice.Access4WD)
}

func TestClosureNotice_ImpactPrefersStructured(t *testing.T) {
	structured := ClosureImpact{Camping: ImpactNone, Access2WD: ImpactRestricted, Access4WD: ImpactClosed}
	n := ClosureNotice{Status: ClosureClosed, StructuredImpact: &structured}
	assert.Equal(t, structured, n.Impact())
}
