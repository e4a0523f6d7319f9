// Package recalibrate implements the preference feedback loop: a user
// decision on one candidate adjusts the project's preference weights, then a
// resweep re-scores the rest of the pool against the new weights and archives
// candidates that fall below the relevance threshold.
package recalibrate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kortex-hq/radar-cli/internal/model"
	"github.com/kortex-hq/radar-cli/internal/store"
)

// ErrInvalidAction is returned for an unknown feedback action.
var ErrInvalidAction = eris.New("recalibrate: invalid action")

// Resweep delta weights per attribute family.
const (
	sectorDeltaWeight   = 0.3
	sizeDeltaWeight     = 0.2
	locationDeltaWeight = 0.1
	keywordDeltaWeight  = 0.05
)

// unknownAttr marks an attribute the candidate record does not carry; it
// never gets a weight entry.
const unknownAttr = "unknown"

// Config tunes the feedback loop. Zero values fall back to the defaults the
// product shipped with.
type Config struct {
	// RelevanceThreshold is the score below which a pending candidate is
	// auto-archived during a resweep. Default 60.
	RelevanceThreshold int `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
	// ExcludeAdjustment is added to each attribute weight on exclude.
	// Default -15.
	ExcludeAdjustment int `yaml:"exclude_adjustment" mapstructure:"exclude_adjustment"`
	// ValidateAdjustment is added to each attribute weight on validate.
	// Default +10.
	ValidateAdjustment int `yaml:"validate_adjustment" mapstructure:"validate_adjustment"`
	// ResweepConcurrency bounds the candidate re-score fan-out. Default 8.
	ResweepConcurrency int `yaml:"resweep_concurrency" mapstructure:"resweep_concurrency"`
	// SaveRetries bounds how many times the weight read-adjust-save step is
	// retried after losing an optimistic-concurrency race. Default 3.
	SaveRetries int `yaml:"save_retries" mapstructure:"save_retries"`
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return Config{
		RelevanceThreshold: 60,
		ExcludeAdjustment:  -15,
		ValidateAdjustment: 10,
		ResweepConcurrency: 8,
		SaveRetries:        3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RelevanceThreshold == 0 {
		c.RelevanceThreshold = d.RelevanceThreshold
	}
	if c.ExcludeAdjustment == 0 {
		c.ExcludeAdjustment = d.ExcludeAdjustment
	}
	if c.ValidateAdjustment == 0 {
		c.ValidateAdjustment = d.ValidateAdjustment
	}
	if c.ResweepConcurrency <= 0 {
		c.ResweepConcurrency = d.ResweepConcurrency
	}
	if c.SaveRetries <= 0 {
		c.SaveRetries = d.SaveRetries
	}
	return c
}

// Request is one recalibration call.
type Request struct {
	ProjectID   string               `json:"projectId"`
	CandidateID string               `json:"companyId"`
	UserID      string               `json:"userId"`
	Action      model.FeedbackAction `json:"action"`
	// IdempotencyKey dedupes accidental double submissions (network retry,
	// double click). When set and already recorded, the stored result is
	// returned without re-applying the adjustment. Repeated explicit user
	// actions omit the key and accumulate.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Service orchestrates the feedback loop against a store.
type Service struct {
	store store.Store
	cfg   Config
}

// NewService creates a Service. Zero config fields take defaults.
func NewService(st store.Store, cfg Config) *Service {
	return &Service{store: st, cfg: cfg.withDefaults()}
}

// Recalibrate applies one feedback event: adjusts weights, resweeps the
// pool, sets the target's status, and returns the ripple summary. A store
// failure aborts the call; already-committed steps are not rolled back, so a
// failed call means "possibly partially applied" and re-running with the
// same idempotency key is safe.
func (s *Service) Recalibrate(ctx context.Context, req Request) (*model.RippleResult, error) {
	if !req.Action.Valid() {
		return nil, eris.Wrapf(ErrInvalidAction, "%q", req.Action)
	}

	if req.IdempotencyKey != "" {
		prior, err := s.store.GetFeedbackResult(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, eris.Wrap(err, "recalibrate: check idempotency key")
		}
		if prior != nil {
			zap.L().Info("recalibrate: replayed feedback event",
				zap.String("project_id", req.ProjectID),
				zap.String("idempotency_key", req.IdempotencyKey),
			)
			return prior, nil
		}
	}

	target, err := s.store.GetCandidate(ctx, req.CandidateID)
	if err != nil {
		return nil, err
	}

	adjustment := s.cfg.ValidateAdjustment
	if req.Action == model.ActionExclude {
		adjustment = s.cfg.ExcludeAdjustment
	}

	weights, affected, adjusted, err := s.adjustWeights(ctx, req, target, adjustment)
	if err != nil {
		return nil, err
	}

	zap.L().Info("recalibrate: weights adjusted",
		zap.String("project_id", req.ProjectID),
		zap.String("candidate_id", req.CandidateID),
		zap.String("action", string(req.Action)),
		zap.Int("adjustment", adjustment),
		zap.Strings("affected_attributes", affected),
	)

	removed, affectedNames, err := s.resweep(ctx, req.ProjectID, req.CandidateID, weights)
	if err != nil {
		return nil, err
	}

	targetStatus := model.StatusValidated
	if req.Action == model.ActionExclude {
		targetStatus = model.StatusExcluded
	}
	if err := s.store.SetCandidateStatus(ctx, req.CandidateID, targetStatus); err != nil {
		return nil, eris.Wrap(err, "recalibrate: set target status")
	}

	result := &model.RippleResult{
		Action:             req.Action,
		AffectedAttributes: affected,
		AdjustedWeights:    adjusted,
		CompaniesRemoved:   len(removed),
		CompaniesAffected:  affectedNames,
	}
	if req.Action == model.ActionExclude {
		result.NewSearchSuggestion = searchSuggestion(weights)
	}

	eventID := req.IdempotencyKey
	if eventID == "" {
		eventID = uuid.New().String()
	}
	err = s.store.RecordFeedback(ctx, store.FeedbackEvent{
		ID:          eventID,
		ProjectID:   req.ProjectID,
		CandidateID: req.CandidateID,
		Action:      req.Action,
		Result:      result,
	})
	if err != nil {
		return nil, eris.Wrap(err, "recalibrate: record feedback event")
	}

	zap.L().Info("recalibrate: ripple complete",
		zap.String("project_id", req.ProjectID),
		zap.Int("companies_removed", result.CompaniesRemoved),
		zap.Int("companies_affected", len(result.CompaniesAffected)),
	)
	return result, nil
}

// adjustWeights runs the read-adjust-save step under optimistic concurrency,
// retrying the whole step on a version conflict so concurrent feedback on
// the same project serializes instead of losing updates. The returned table
// is the durably saved one the resweep must use.
func (s *Service) adjustWeights(ctx context.Context, req Request, target *model.Candidate, adjustment int) (*model.PreferenceWeights, []string, map[string]int, error) {
	sector := orUnknown(target.Industry)
	size := orUnknown(target.Headcount)
	location := orUnknown(target.Location)
	keywords := ExtractKeywords(target)

	for attempt := 0; attempt < s.cfg.SaveRetries; attempt++ {
		weights, version, err := s.store.GetWeights(ctx, req.ProjectID)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "recalibrate: load weights")
		}

		var affected []string
		adjusted := map[string]int{}

		if sector != unknownAttr {
			adjusted[model.NormalizeKey(sector)] = weights.AdjustSector(sector, adjustment)
			affected = append(affected, "sector: "+sector)
		}
		if size != unknownAttr {
			adjusted[model.NormalizeKey(size)] = weights.AdjustSize(size, adjustment)
			affected = append(affected, "size: "+size)
		}
		if location != unknownAttr {
			adjusted[model.NormalizeKey(location)] = weights.AdjustLocation(location, adjustment)
			affected = append(affected, "location: "+location)
		}
		for _, kw := range keywords {
			adjusted[model.NormalizeKey(kw)] = weights.AdjustKeyword(kw, adjustment)
		}
		weights.LastUpdated = time.Now().UTC()

		err = s.store.SaveWeights(ctx, req.ProjectID, req.UserID, weights, version)
		if err == nil {
			return weights, affected, adjusted, nil
		}
		if !eris.Is(err, store.ErrConflict) {
			return nil, nil, nil, eris.Wrap(err, "recalibrate: save weights")
		}
		zap.L().Warn("recalibrate: weights version conflict, retrying",
			zap.String("project_id", req.ProjectID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, nil, nil, eris.Wrapf(store.ErrConflict, "recalibrate: weights contention on project %s", req.ProjectID)
}

// resweep re-scores every pending and buffer candidate in the project except
// the target. Pending candidates whose score crosses below the relevance
// threshold are archived. The weight table is read-only during the sweep, so
// candidates recompute independently under a bounded fan-out.
func (s *Service) resweep(ctx context.Context, projectID, targetID string, weights *model.PreferenceWeights) (removed, affected []string, err error) {
	candidates, err := s.store.ListCandidates(ctx, store.CandidateFilter{
		ProjectID: projectID,
		Statuses:  []model.CandidateStatus{model.StatusPending, model.StatusBuffer},
		ExcludeID: targetID,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "recalibrate: list pool")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ResweepConcurrency)

	for i := range candidates {
		c := candidates[i]
		g.Go(func() error {
			newScore := RecalculateScore(&c, weights)
			if newScore == c.MatchScore {
				return nil
			}

			if c.Status == model.StatusPending && newScore < s.cfg.RelevanceThreshold && c.MatchScore >= s.cfg.RelevanceThreshold {
				explanation := appendNote(c.MatchExplanation, fmt.Sprintf(
					"Auto-archived: score %d%% (below %d%% relevance threshold)", newScore, s.cfg.RelevanceThreshold))
				if err := s.store.ArchiveCandidate(gctx, c.ID, newScore, explanation); err != nil {
					return eris.Wrapf(err, "recalibrate: archive %s", c.CompanyName)
				}
				mu.Lock()
				removed = append(removed, c.CompanyName)
				mu.Unlock()
				return nil
			}

			if err := s.store.UpdateCandidateScore(gctx, c.ID, newScore); err != nil {
				return eris.Wrapf(err, "recalibrate: rescore %s", c.CompanyName)
			}
			mu.Lock()
			affected = append(affected, c.CompanyName)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Strings(removed)
	sort.Strings(affected)
	return removed, affected, nil
}

// RecalculateScore shifts a candidate's stored score by the weighted sum of
// its attribute weights: 0.3·sector + 0.2·size + 0.1·location +
// 0.05·Σkeywords, clamped to [0,100]. Unseen attributes contribute 0.
func RecalculateScore(c *model.Candidate, weights *model.PreferenceWeights) int {
	var delta float64

	if c.Industry != "" {
		delta += float64(weights.SectorWeight(c.Industry)) * sectorDeltaWeight
	}
	if c.Headcount != "" {
		delta += float64(weights.SizeWeight(c.Headcount)) * sizeDeltaWeight
	}
	if c.Location != "" {
		delta += float64(weights.LocationWeight(c.Location)) * locationDeltaWeight
	}
	for _, kw := range ExtractKeywords(c) {
		delta += float64(weights.KeywordWeight(kw)) * keywordDeltaWeight
	}

	score := int(math.Round(float64(c.MatchScore) + delta))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// searchSuggestion joins the top 3 positively weighted sectors as a search
// hint, empty when no sector has a positive weight yet.
func searchSuggestion(weights *model.PreferenceWeights) string {
	type entry struct {
		sector string
		weight int
	}
	var positive []entry
	for sector, w := range weights.Sectors {
		if w > 0 {
			positive = append(positive, entry{sector, w})
		}
	}
	if len(positive) == 0 {
		return ""
	}
	sort.Slice(positive, func(i, j int) bool {
		if positive[i].weight != positive[j].weight {
			return positive[i].weight > positive[j].weight
		}
		return positive[i].sector < positive[j].sector
	})
	if len(positive) > 3 {
		positive = positive[:3]
	}
	sectors := make([]string, len(positive))
	for i, e := range positive {
		sectors[i] = e.sector
	}
	return strings.Join(sectors, ", ")
}

func appendNote(explanation, note string) string {
	if explanation == "" {
		return note
	}
	return explanation + " • " + note
}

func orUnknown(s string) string {
	if s == "" {
		return unknownAttr
	}
	return s
}
