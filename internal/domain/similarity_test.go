package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var sampleNames = []string{
	"Belanglo State Forest",
	"Belanglo State Forset",
	"Wingello State Forest",
	"Smith East State Forest",
	"Smith West State Forest",
	"Mount Boss State Forest",
	"Mt Boss",
	"Olney State Forest (Watagans)",
	"Watagans",
	"Bago",
	"Bago State Forest",
	"Native Dog",
}

func TestScore_Identity(t *testing.T) {
	for _, s := range sampleNames {
		assert.Equal(t, 1.0, Score(s, s), s)
	}
}

func TestScore_Symmetric(t *testing.T) {
	for _, a := range sampleNames {
		for _, b := range sampleNames {
			assert.Equal(t, Score(a, b), Score(b, a), "%q vs %q", a, b)
		}
	}
}

func TestScore_Range(t *testing.T) {
	for _, a := range sampleNames {
		for _, b := range sampleNames {
			s := Score(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			if NormalizeName(a) != NormalizeName(b) {
				assert.LessOrEqual(t, s, 0.99, "%q vs %q", a, b)
			}
		}
	}
}

func TestScore_EmptyInput(t *testing.T) {
	assert.Equal(t, 0.0, Score("", "Belanglo"))
	assert.Equal(t, 0.0, Score("Belanglo", "   "))
}

func TestScore_CoreTokensEqual(t *testing.T) {
	assert.Equal(t, 0.98, Score("Bago", "Bago State Forest"))
	assert.Equal(t, 0.98, Score("Belanglo State Forest", "Belanglo Forest NSW"))
}

func TestScore_ParentheticalIgnored(t *testing.T) {
	assert.Equal(t, 1.0, Score("Olney State Forest (Watagans)", "Olney State Forest"))
}

func TestScore_TypoScoresAboveUnrelated(t *testing.T) {
	typo := Score("Belanglo State Forest", "Belanglo State Forset")
	other := Score("Belanglo State Forest", "Wingello State Forest")
	assert.GreaterOrEqual(t, typo, 0.62)
	assert.Less(t, other, 0.62)
	assert.Greater(t, typo, other)
}

func TestDirectionalConflict(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Smith East State Forest", "Smith West State Forest", true},
		{"North Smith", "South Smith", true},
		{"Smith West", "Smith East", true},
		{"Smith East State Forest", "Smith East", false},
		{"Smith North", "Smith East", false},
		{"Smith State Forest", "Smith West", false},
		{"North Smith", "Smith, New South Wales", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, DirectionalConflict(tt.a, tt.b))
			assert.Equal(t, tt.want, DirectionalConflict(tt.b, tt.a))
		})
	}
}
