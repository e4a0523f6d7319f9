package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "SaaS", "saas"},
		{"trims", "  Fintech  ", "fintech"},
		{"folds accents consistently", "Santé", NormalizeKey("SANTÉ")},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}

	// composed and decomposed forms of the same accent fold to one key
	assert.Equal(t, NormalizeKey("Santé"), NormalizeKey("Santé"))
}

func TestClampWeight(t *testing.T) {
	assert.Equal(t, WeightMin, ClampWeight(-250))
	assert.Equal(t, WeightMax, ClampWeight(250))
	assert.Equal(t, 42, ClampWeight(42))
}

func TestPreferenceWeightsAdjust(t *testing.T) {
	w := NewPreferenceWeights()

	assert.Equal(t, -15, w.AdjustSector("Fintech", -15))
	assert.Equal(t, -30, w.AdjustSector("FINTECH", -15))
	assert.Equal(t, -30, w.SectorWeight("fintech"))

	// clamping at the floor
	w.Sectors["fintech"] = -95
	assert.Equal(t, WeightMin, w.AdjustSector("Fintech", -20))

	// separate families do not collide
	assert.Equal(t, 10, w.AdjustSize("50-100", 10))
	assert.Equal(t, 10, w.AdjustKeyword("hiring", 10))
	assert.Equal(t, 10, w.AdjustLocation("Paris", 10))
	assert.Equal(t, 0, w.SectorWeight("paris"))
}

func TestPreferenceWeightsNormalize(t *testing.T) {
	w := NewPreferenceWeights()
	w.Sectors = map[string]int{
		"Fintech":  40,
		"fintech":  30,
		" FINTECH": 50,
		"retail":   5,
	}

	w.Normalize()

	// colliding keys sum then clamp
	assert.Equal(t, 100, w.Sectors["fintech"])
	assert.Equal(t, 5, w.Sectors["retail"])
	assert.Len(t, w.Sectors, 2)
}

func TestFeedbackActionValid(t *testing.T) {
	assert.True(t, ActionExclude.Valid())
	assert.True(t, ActionValidate.Valid())
	assert.False(t, FeedbackAction("promote").Valid())
	assert.False(t, FeedbackAction("").Valid())
}

func TestCandidateStatusValid(t *testing.T) {
	for _, s := range []CandidateStatus{StatusPending, StatusValidated, StatusExcluded, StatusArchived, StatusBuffer} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, CandidateStatus("deleted").Valid())
}
