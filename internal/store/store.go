// Package store persists the candidate pool, per-project preference weights,
// cached agency vectors, and the feedback event log. Two backends implement
// the same interface: Postgres (pgx) for the hosted deployment and SQLite
// for local radar work.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kortex-hq/radar-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrConflict is returned when an optimistic-concurrency write lost the race:
// the row changed since it was read.
var ErrConflict = eris.New("store: version conflict")

// Data types stored in the project_data table.
const (
	DataTypeWeights      = "preference_weights"
	DataTypeAgencyVector = "agency_vector"
)

// CandidateFilter selects candidates within a project.
type CandidateFilter struct {
	ProjectID string                  `json:"project_id"`
	Statuses  []model.CandidateStatus `json:"statuses,omitempty"`
	ExcludeID string                  `json:"exclude_id,omitempty"`
	MinScore  int                     `json:"min_score,omitempty"`
	Limit     int                     `json:"limit,omitempty"`
}

// FeedbackEvent is one recorded recalibration, keyed by the client's
// idempotency token (or a generated id when none was supplied).
type FeedbackEvent struct {
	ID          string
	ProjectID   string
	CandidateID string
	Action      model.FeedbackAction
	Result      *model.RippleResult
	CreatedAt   time.Time
}

// Store is the persistence interface for the radar engine.
type Store interface {
	// Candidates.
	CreateCandidate(ctx context.Context, c *model.Candidate) error
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error)
	UpdateCandidateScore(ctx context.Context, id string, score int) error
	ArchiveCandidate(ctx context.Context, id string, score int, explanation string) error
	SetCandidateStatus(ctx context.Context, id string, status model.CandidateStatus) error
	BulkUpsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error)
	CountByStatus(ctx context.Context, projectID string) (map[model.CandidateStatus]int, error)

	// Preference weights. GetWeights returns a zero-valued table and a zero
	// version when none exists yet. SaveWeights is a compare-and-swap on the
	// version returned by GetWeights and fails with ErrConflict when the row
	// moved underneath the caller.
	GetWeights(ctx context.Context, projectID string) (*model.PreferenceWeights, time.Time, error)
	SaveWeights(ctx context.Context, projectID, userID string, w *model.PreferenceWeights, version time.Time) error

	// Agency vector cache. GetAgencyVector returns nil when absent.
	GetAgencyVector(ctx context.Context, projectID string) (*model.AgencyVector, error)
	SetAgencyVector(ctx context.Context, projectID, userID string, v *model.AgencyVector) error

	// Feedback events. GetFeedbackResult returns nil when the event id is
	// unknown.
	GetFeedbackResult(ctx context.Context, eventID string) (*model.RippleResult, error)
	RecordFeedback(ctx context.Context, ev FeedbackEvent) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
