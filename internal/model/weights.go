package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Weight bounds. Every stored weight is clamped into this range.
const (
	WeightMin = -100
	WeightMax = 100
)

var keyFolder = cases.Fold()

// NormalizeKey canonicalizes a free-text weight key: trimmed, Unicode NFC,
// case-folded. Sector and keyword names arrive as arbitrary user/LLM text
// ("SaaS" vs "saas", composed vs decomposed accents) and near-duplicate keys
// would otherwise split one preference across several entries.
func NormalizeKey(s string) string {
	return keyFolder.String(norm.NFC.String(strings.TrimSpace(s)))
}

// ClampWeight bounds v into [WeightMin, WeightMax].
func ClampWeight(v int) int {
	if v < WeightMin {
		return WeightMin
	}
	if v > WeightMax {
		return WeightMax
	}
	return v
}

// PreferenceWeights is the per-project weight table learned from user
// feedback. Keys are normalized via NormalizeKey; attributes never seen are
// simply absent and count as 0.
type PreferenceWeights struct {
	Sectors     map[string]int `json:"sectors"`
	Sizes       map[string]int `json:"sizes"`
	Keywords    map[string]int `json:"keywords"`
	Locations   map[string]int `json:"locations"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// NewPreferenceWeights returns a zero-valued weight table with all maps
// allocated.
func NewPreferenceWeights() *PreferenceWeights {
	return &PreferenceWeights{
		Sectors:   map[string]int{},
		Sizes:     map[string]int{},
		Keywords:  map[string]int{},
		Locations: map[string]int{},
	}
}

// Normalize folds every map key through NormalizeKey, summing values whose
// keys collide and re-clamping. Applied on every store read so rows written
// before normalization existed cannot skew lookups.
func (w *PreferenceWeights) Normalize() {
	w.Sectors = normalizeMap(w.Sectors)
	w.Sizes = normalizeMap(w.Sizes)
	w.Keywords = normalizeMap(w.Keywords)
	w.Locations = normalizeMap(w.Locations)
}

func normalizeMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		nk := NormalizeKey(k)
		out[nk] = ClampWeight(out[nk] + v)
	}
	return out
}

// adjust applies delta to m[key] with clamping and returns the new value.
func adjust(m map[string]int, key string, delta int) int {
	nk := NormalizeKey(key)
	v := ClampWeight(m[nk] + delta)
	m[nk] = v
	return v
}

// AdjustSector applies delta to the sector weight and returns the new value.
func (w *PreferenceWeights) AdjustSector(key string, delta int) int {
	return adjust(w.Sectors, key, delta)
}

// AdjustSize applies delta to the size weight and returns the new value.
func (w *PreferenceWeights) AdjustSize(key string, delta int) int {
	return adjust(w.Sizes, key, delta)
}

// AdjustKeyword applies delta to the keyword weight and returns the new value.
func (w *PreferenceWeights) AdjustKeyword(key string, delta int) int {
	return adjust(w.Keywords, key, delta)
}

// AdjustLocation applies delta to the location weight and returns the new value.
func (w *PreferenceWeights) AdjustLocation(key string, delta int) int {
	return adjust(w.Locations, key, delta)
}

// SectorWeight returns the stored weight for a sector, 0 when unseen.
func (w *PreferenceWeights) SectorWeight(key string) int {
	return w.Sectors[NormalizeKey(key)]
}

// SizeWeight returns the stored weight for a size bucket, 0 when unseen.
func (w *PreferenceWeights) SizeWeight(key string) int {
	return w.Sizes[NormalizeKey(key)]
}

// KeywordWeight returns the stored weight for a keyword, 0 when unseen.
func (w *PreferenceWeights) KeywordWeight(key string) int {
	return w.Keywords[NormalizeKey(key)]
}

// LocationWeight returns the stored weight for a location, 0 when unseen.
func (w *PreferenceWeights) LocationWeight(key string) int {
	return w.Locations[NormalizeKey(key)]
}

// FeedbackAction is an explicit user decision on one candidate.
type FeedbackAction string

const (
	// ActionExclude rejects a candidate and penalizes its attributes.
	ActionExclude FeedbackAction = "exclude"
	// ActionValidate accepts a candidate and reinforces its attributes.
	ActionValidate FeedbackAction = "validate"
)

// Valid reports whether a is a known feedback action.
func (a FeedbackAction) Valid() bool {
	return a == ActionExclude || a == ActionValidate
}

// RippleResult summarizes the effects of one recalibration call.
type RippleResult struct {
	Action              FeedbackAction `json:"action"`
	AffectedAttributes  []string       `json:"affectedAttributes"`
	AdjustedWeights     map[string]int `json:"adjustedWeights"`
	CompaniesRemoved    int            `json:"companiesRemoved"`
	CompaniesAffected   []string       `json:"companiesAffected"`
	NewSearchSuggestion string         `json:"newSearchSuggestion,omitempty"`
}
