package model

// AgencyVector is the structured profile of an agency, rebuilt from its DNA
// and analyzed documents. JSON field names match the SPA payloads so cached
// vectors in project_data stay readable by both sides.
type AgencyVector struct {
	Skills             []string           `json:"skills"`
	PainPointsResolved []string           `json:"painPointsResolved"`
	TargetIndustries   []string           `json:"targetIndustries"`
	ClientTypes        []string           `json:"clientTypes"`
	TechnologiesUsed   []string           `json:"technologiesUsed"`
	Methodologies      []string           `json:"methodologies"`
	CaseStudies        []CaseStudyInsight `json:"caseStudies"`
	HiddenSignals      []HiddenSignal     `json:"hiddenSignals"`
}

// NewAgencyVector returns an AgencyVector with all slices allocated so the
// JSON encoding never emits null arrays.
func NewAgencyVector() *AgencyVector {
	return &AgencyVector{
		Skills:             []string{},
		PainPointsResolved: []string{},
		TargetIndustries:   []string{},
		ClientTypes:        []string{},
		TechnologiesUsed:   []string{},
		Methodologies:      []string{},
		CaseStudies:        []CaseStudyInsight{},
		HiddenSignals:      []HiddenSignal{},
	}
}

// CaseStudyInsight is one past-client engagement extracted from agency DNA or
// an uploaded document.
type CaseStudyInsight struct {
	ClientName       string   `json:"clientName"`
	Industry         string   `json:"industry,omitempty"`
	Challenge        string   `json:"challenge"`
	Solution         string   `json:"solution"`
	Result           string   `json:"result"`
	TechnologiesUsed []string `json:"technologiesUsed"`
	ExtractedFrom    string   `json:"extractedFrom"`
}

// HiddenSignal is a pattern-matched phrase in agency documents implying a
// target customer profile.
type HiddenSignal struct {
	Signal               string `json:"signal"`
	Context              string `json:"context"`
	ExtractedFrom        string `json:"extractedFrom"`
	DeducedTargetProfile string `json:"deducedTargetProfile"`
}

// LeadVector is the per-candidate view fed to the score engine. It is derived
// from scan/enrichment output and recomputed on demand, never persisted.
type LeadVector struct {
	CompanyName          string   `json:"companyName"`
	Industry             string   `json:"industry"`
	Size                 string   `json:"size"`
	Location             string   `json:"location"`
	TechnologiesDetected []string `json:"technologiesDetected"`
	PainPointsDetected   []string `json:"painPointsDetected"`
	BuyingSignals        []string `json:"buyingSignals"`
	ScrapedContent       string   `json:"scrapedContent"`
}
