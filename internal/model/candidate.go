package model

import "time"

// CandidateStatus is the lifecycle state of a pool candidate.
type CandidateStatus string

const (
	// StatusPending means the candidate awaits user review.
	StatusPending CandidateStatus = "pending"
	// StatusValidated means the user accepted the candidate.
	StatusValidated CandidateStatus = "validated"
	// StatusExcluded means the user rejected the candidate.
	StatusExcluded CandidateStatus = "excluded"
	// StatusArchived means a resweep dropped the candidate below the
	// relevance threshold.
	StatusArchived CandidateStatus = "archived"
	// StatusBuffer holds passively discovered candidates that have not yet
	// been promoted into the active pool.
	StatusBuffer CandidateStatus = "buffer"
)

// Valid reports whether s is a known lifecycle state.
func (s CandidateStatus) Valid() bool {
	switch s {
	case StatusPending, StatusValidated, StatusExcluded, StatusArchived, StatusBuffer:
		return true
	}
	return false
}

// Candidate is one scored company record in a project's pool.
type Candidate struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"projectId"`
	CompanyName      string          `json:"companyName"`
	Industry         string          `json:"industry"`
	Headcount        string          `json:"headcount"`
	Location         string          `json:"location"`
	Description      string          `json:"description"`
	BuyingSignals    []string        `json:"buyingSignals"`
	MatchScore       int             `json:"matchScore"`
	MatchExplanation string          `json:"matchExplanation"`
	Status           CandidateStatus `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
