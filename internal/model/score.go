package model

// SimilarClient points at the past client a lead most resembles.
type SimilarClient struct {
	Name            string `json:"name"`
	CaseStudySource string `json:"caseStudySource"`
	Similarity      string `json:"similarity"`
}

// MatchScoreBreakdown is the output of the score engine. All scores are
// integers in [0,100]; TotalScore is the weighted combination.
type MatchScoreBreakdown struct {
	StructuralFit    int `json:"structuralFit"`
	TechnologicalFit int `json:"technologicalFit"`
	SemanticFit      int `json:"semanticFit"`
	TotalScore       int `json:"totalScore"`

	StructuralExplanation    string `json:"structuralExplanation"`
	TechnologicalExplanation string `json:"technologicalExplanation"`
	SemanticExplanation      string `json:"semanticExplanation"`

	// MatchReason is the synthesized sentence shown to the user.
	MatchReason string `json:"matchReason"`

	SimilarClient *SimilarClient `json:"similarClient,omitempty"`
}
