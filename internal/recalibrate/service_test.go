package recalibrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortex-hq/radar-cli/internal/model"
	"github.com/kortex-hq/radar-cli/internal/store"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	mu         sync.Mutex
	candidates map[string]*model.Candidate
	weights    *model.PreferenceWeights
	version    time.Time
	events     map[string]*model.RippleResult

	// conflictsLeft makes the next N SaveWeights calls fail with ErrConflict.
	conflictsLeft int
	saveCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		candidates: map[string]*model.Candidate{},
		events:     map[string]*model.RippleResult{},
	}
}

func (f *fakeStore) add(c model.Candidate) {
	f.candidates[c.ID] = &c
}

func (f *fakeStore) CreateCandidate(_ context.Context, c *model.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *c
	f.candidates[c.ID] = &clone
	return nil
}

func (f *fakeStore) GetCandidate(_ context.Context, id string) (*model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (f *fakeStore) ListCandidates(_ context.Context, filter store.CandidateFilter) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Candidate
	for _, c := range f.candidates {
		if c.ProjectID != filter.ProjectID || c.ID == filter.ExcludeID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				if c.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) UpdateCandidateScore(_ context.Context, id string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return store.ErrNotFound
	}
	c.MatchScore = score
	return nil
}

func (f *fakeStore) ArchiveCandidate(_ context.Context, id string, score int, explanation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return store.ErrNotFound
	}
	c.MatchScore = score
	c.MatchExplanation = explanation
	c.Status = model.StatusArchived
	return nil
}

func (f *fakeStore) SetCandidateStatus(_ context.Context, id string, status model.CandidateStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	return nil
}

func (f *fakeStore) BulkUpsertCandidates(_ context.Context, candidates []model.Candidate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range candidates {
		clone := candidates[i]
		f.candidates[clone.ID] = &clone
	}
	return int64(len(candidates)), nil
}

func (f *fakeStore) CountByStatus(_ context.Context, projectID string) (map[model.CandidateStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[model.CandidateStatus]int{}
	for _, c := range f.candidates {
		if c.ProjectID == projectID {
			out[c.Status]++
		}
	}
	return out, nil
}

func (f *fakeStore) GetWeights(_ context.Context, _ string) (*model.PreferenceWeights, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.weights == nil {
		return model.NewPreferenceWeights(), time.Time{}, nil
	}
	return f.weights, f.version, nil
}

func (f *fakeStore) SaveWeights(_ context.Context, _, _ string, w *model.PreferenceWeights, version time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return store.ErrConflict
	}
	if !version.Equal(f.version) {
		return store.ErrConflict
	}
	f.weights = w
	f.version = time.Now()
	return nil
}

func (f *fakeStore) GetAgencyVector(_ context.Context, _ string) (*model.AgencyVector, error) {
	return nil, nil
}

func (f *fakeStore) SetAgencyVector(_ context.Context, _, _ string, _ *model.AgencyVector) error {
	return nil
}

func (f *fakeStore) GetFeedbackResult(_ context.Context, eventID string) (*model.RippleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID], nil
}

func (f *fakeStore) RecordFeedback(_ context.Context, ev store.FeedbackEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[ev.ID] = ev.Result
	return nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func target(id string) model.Candidate {
	return model.Candidate{
		ID:          id,
		ProjectID:   "proj-1",
		CompanyName: "Target Co",
		Industry:    "Fintech",
		Headcount:   "50-100",
		Location:    "Paris",
		MatchScore:  80,
		Status:      model.StatusPending,
	}
}

func TestRecalibrateExclude(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))

	svc := NewService(st, Config{})

	result, err := svc.Recalibrate(ctx, Request{
		ProjectID:   "proj-1",
		CandidateID: "c1",
		UserID:      "u1",
		Action:      model.ActionExclude,
	})
	require.NoError(t, err)

	assert.Equal(t, model.ActionExclude, result.Action)
	assert.Equal(t, -15, st.weights.SectorWeight("Fintech"))
	assert.Equal(t, -15, st.weights.SizeWeight("50-100"))
	assert.Equal(t, -15, st.weights.LocationWeight("Paris"))
	assert.Contains(t, result.AffectedAttributes, "sector: Fintech")
	assert.Contains(t, result.AffectedAttributes, "size: 50-100")
	assert.Contains(t, result.AffectedAttributes, "location: Paris")
	assert.Equal(t, -15, result.AdjustedWeights[model.NormalizeKey("Fintech")])

	got, err := st.GetCandidate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExcluded, got.Status)
	// target keeps its score
	assert.Equal(t, 80, got.MatchScore)
}

func TestRecalibrateValidate(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))

	svc := NewService(st, Config{})

	result, err := svc.Recalibrate(ctx, Request{
		ProjectID:   "proj-1",
		CandidateID: "c1",
		Action:      model.ActionValidate,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, st.weights.SectorWeight("Fintech"))
	assert.Empty(t, result.NewSearchSuggestion)

	got, err := st.GetCandidate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusValidated, got.Status)
}

func TestRecalibrateWeightsClamp(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))
	st.weights = model.NewPreferenceWeights()
	st.weights.Sectors[model.NormalizeKey("Fintech")] = -90
	st.version = time.Now()

	svc := NewService(st, Config{})

	_, err := svc.Recalibrate(ctx, Request{
		ProjectID:   "proj-1",
		CandidateID: "c1",
		Action:      model.ActionExclude,
	})
	require.NoError(t, err)

	assert.Equal(t, model.WeightMin, st.weights.SectorWeight("Fintech"))
}

func TestRecalibrateResweep(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))

	// Same sector, crosses below the threshold after the penalty:
	// delta = -15*0.3 = -4.5, round(62-4.5) = 58.
	st.add(model.Candidate{
		ID: "c2", ProjectID: "proj-1", CompanyName: "Sinking Co",
		Industry: "Fintech", MatchScore: 62, Status: model.StatusPending,
		MatchExplanation: "Match 62% based on cross-analysis.",
	})
	// Same sector, stays above: round(80-4.5) = 76.
	st.add(model.Candidate{
		ID: "c3", ProjectID: "proj-1", CompanyName: "Floating Co",
		Industry: "Fintech", MatchScore: 80, Status: model.StatusPending,
	})
	// Unrelated sector: no weight entries touch it, score unchanged.
	st.add(model.Candidate{
		ID: "c4", ProjectID: "proj-1", CompanyName: "Bystander Co",
		Industry: "Logistics", MatchScore: 70, Status: model.StatusPending,
	})
	// Buffer candidates are rescored but never archived.
	st.add(model.Candidate{
		ID: "c5", ProjectID: "proj-1", CompanyName: "Buffered Co",
		Industry: "Fintech", MatchScore: 61, Status: model.StatusBuffer,
	})
	// Terminal statuses stay out of the sweep entirely.
	st.add(model.Candidate{
		ID: "c6", ProjectID: "proj-1", CompanyName: "Kept Co",
		Industry: "Fintech", MatchScore: 62, Status: model.StatusValidated,
	})

	svc := NewService(st, Config{})

	result, err := svc.Recalibrate(ctx, Request{
		ProjectID:   "proj-1",
		CandidateID: "c1",
		Action:      model.ActionExclude,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.CompaniesRemoved)
	assert.ElementsMatch(t, []string{"Floating Co", "Buffered Co"}, result.CompaniesAffected)

	sunk, _ := st.GetCandidate(ctx, "c2")
	assert.Equal(t, model.StatusArchived, sunk.Status)
	assert.Equal(t, 58, sunk.MatchScore)
	assert.Contains(t, sunk.MatchExplanation, "Auto-archived: score 58% (below 60% relevance threshold)")
	assert.Contains(t, sunk.MatchExplanation, "Match 62% based on cross-analysis.")

	floating, _ := st.GetCandidate(ctx, "c3")
	assert.Equal(t, model.StatusPending, floating.Status)
	assert.Equal(t, 76, floating.MatchScore)

	bystander, _ := st.GetCandidate(ctx, "c4")
	assert.Equal(t, 70, bystander.MatchScore)

	buffered, _ := st.GetCandidate(ctx, "c5")
	assert.Equal(t, model.StatusBuffer, buffered.Status)
	assert.Equal(t, 57, buffered.MatchScore)

	kept, _ := st.GetCandidate(ctx, "c6")
	assert.Equal(t, model.StatusValidated, kept.Status)
	assert.Equal(t, 62, kept.MatchScore)
}

func TestRecalibrateSuggestionOnExclude(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))
	st.weights = model.NewPreferenceWeights()
	st.weights.Sectors["saas"] = 30
	st.weights.Sectors["healthcare"] = 20
	st.weights.Sectors["retail"] = 10
	st.weights.Sectors["logistics"] = 5
	st.weights.Sectors["crypto"] = -40
	st.version = time.Now()

	svc := NewService(st, Config{})

	result, err := svc.Recalibrate(ctx, Request{
		ProjectID:   "proj-1",
		CandidateID: "c1",
		Action:      model.ActionExclude,
	})
	require.NoError(t, err)

	assert.Equal(t, "saas, healthcare, retail", result.NewSearchSuggestion)
}

func TestRecalibrateIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))

	stored := &model.RippleResult{Action: model.ActionExclude, CompaniesRemoved: 3}
	st.events["evt-1"] = stored

	svc := NewService(st, Config{})

	result, err := svc.Recalibrate(ctx, Request{
		ProjectID:      "proj-1",
		CandidateID:    "c1",
		Action:         model.ActionExclude,
		IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)

	assert.Equal(t, stored, result)
	// nothing was re-applied
	assert.Zero(t, st.saveCalls)
	got, _ := st.GetCandidate(ctx, "c1")
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestRecalibrateRecordsFeedback(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))

	svc := NewService(st, Config{})

	result, err := svc.Recalibrate(ctx, Request{
		ProjectID:      "proj-1",
		CandidateID:    "c1",
		Action:         model.ActionValidate,
		IdempotencyKey: "evt-2",
	})
	require.NoError(t, err)
	assert.Equal(t, result, st.events["evt-2"])

	// replaying the same key now returns the recorded result
	again, err := svc.Recalibrate(ctx, Request{
		ProjectID:      "proj-1",
		CandidateID:    "c1",
		Action:         model.ActionValidate,
		IdempotencyKey: "evt-2",
	})
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestRecalibrateConflictRetry(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))
	st.conflictsLeft = 2

	svc := NewService(st, Config{SaveRetries: 3})

	_, err := svc.Recalibrate(ctx, Request{
		ProjectID:   "proj-1",
		CandidateID: "c1",
		Action:      model.ActionValidate,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, st.saveCalls)
}

func TestRecalibrateConflictExhausted(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.add(target("c1"))
	st.conflictsLeft = 10

	svc := NewService(st, Config{SaveRetries: 3})

	_, err := svc.Recalibrate(ctx, Request{
		ProjectID:   "proj-1",
		CandidateID: "c1",
		Action:      model.ActionValidate,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConflict)

	// target status is untouched after a failed adjustment
	got, _ := st.GetCandidate(ctx, "c1")
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestRecalibrateUnknownCandidate(t *testing.T) {
	svc := NewService(newFakeStore(), Config{})

	_, err := svc.Recalibrate(context.Background(), Request{
		ProjectID:   "proj-1",
		CandidateID: "missing",
		Action:      model.ActionExclude,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecalibrateInvalidAction(t *testing.T) {
	svc := NewService(newFakeStore(), Config{})

	_, err := svc.Recalibrate(context.Background(), Request{
		ProjectID:   "proj-1",
		CandidateID: "c1",
		Action:      "promote",
	})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestRecalculateScore(t *testing.T) {
	w := model.NewPreferenceWeights()
	w.Sectors["fintech"] = -15
	w.Sizes["50-100"] = -15
	w.Locations["paris"] = -10
	w.Keywords["hiring"] = 20

	tests := []struct {
		name      string
		candidate model.Candidate
		want      int
	}{
		{
			name: "all attribute families",
			candidate: model.Candidate{
				Industry: "Fintech", Headcount: "50-100", Location: "Paris",
				BuyingSignals: []string{"hiring push"},
				MatchScore:    70,
			},
			// -15*0.3 - 15*0.2 - 10*0.1 + 20*0.05 = -7.5, round(62.5) = 63
			want: 63,
		},
		{
			name:      "unseen attributes contribute nothing",
			candidate: model.Candidate{Industry: "Agritech", MatchScore: 55},
			want:      55,
		},
		{
			name: "clamped at zero",
			candidate: model.Candidate{
				Industry: "Fintech", MatchScore: 2,
			},
			want: 0,
		},
		{
			name: "clamped at hundred",
			candidate: model.Candidate{
				BuyingSignals: []string{"hiring spree"},
				MatchScore:    100,
			},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecalculateScore(&tt.candidate, w))
		})
	}
}

