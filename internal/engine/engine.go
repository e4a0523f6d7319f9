// Package engine computes agency/lead match scores. Every function here is
// pure: no I/O, no clock, identical inputs always produce identical output.
//
// Scoring formula (0-100):
//   - structural fit (30%): industry, size, location
//   - technological fit (30%): tech stack overlap
//   - semantic fit (40%): pain points, case-study lookalikes, hidden signals
package engine

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kortex-hq/radar-cli/internal/model"
)

// Component weights for the total score.
const (
	structuralWeight    = 0.30
	technologicalWeight = 0.30
	semanticWeight      = 0.40
)

// minTokenLen is the exclusive length floor for token-overlap matching:
// only words longer than this count as shared evidence.
const minTokenLen = 4

// fitResult is one sub-score with its human-readable explanation.
type fitResult struct {
	score       int
	explanation string
}

// CalculateMatchScore scores a lead against an agency vector and returns the
// full breakdown. It never fails: degenerate or empty vectors produce the
// documented fallback scores instead of errors.
func CalculateMatchScore(agency *model.AgencyVector, lead *model.LeadVector) *model.MatchScoreBreakdown {
	structural := structuralFit(agency, lead)
	technological := technologicalFit(agency, lead)
	semantic, similar := semanticFit(agency, lead)

	total := int(math.Round(
		float64(structural.score)*structuralWeight +
			float64(technological.score)*technologicalWeight +
			float64(semantic.score)*semanticWeight,
	))

	var reasonParts []string
	if similar != nil {
		reasonParts = append(reasonParts, fmt.Sprintf(
			"This company resembles your client '%s' (%s)", similar.Name, similar.CaseStudySource))
	}
	if technological.score >= 60 {
		reasonParts = append(reasonParts, technological.explanation)
	}
	if structural.score >= 70 {
		reasonParts = append(reasonParts, structural.explanation)
	}

	matchReason := fmt.Sprintf("Match %d%% based on cross-analysis.", total)
	if len(reasonParts) > 0 {
		matchReason = strings.Join(reasonParts, " and ") + "."
	}

	return &model.MatchScoreBreakdown{
		StructuralFit:            structural.score,
		TechnologicalFit:         technological.score,
		SemanticFit:              semantic.score,
		TotalScore:               total,
		StructuralExplanation:    structural.explanation,
		TechnologicalExplanation: technological.explanation,
		SemanticExplanation:      semantic.explanation,
		MatchReason:              matchReason,
		SimilarClient:            similar,
	}
}

// structuralFit scores industry, size, and location presence.
// Industry contributes 40 when the lead's industry overlaps any target
// industry as a case-insensitive substring either direction; an agency with
// no target industries is treated as unrestricted and gets 20 flat. Size and
// location are presence-only checks worth 30 each (no semantic validation of
// the values, a known limitation).
func structuralFit(agency *model.AgencyVector, lead *model.LeadVector) fitResult {
	score := 0
	var reasons []string

	if len(agency.TargetIndustries) > 0 {
		leadIndustry := strings.ToLower(lead.Industry)
		for _, target := range agency.TargetIndustries {
			t := strings.ToLower(target)
			if strings.Contains(leadIndustry, t) || strings.Contains(t, leadIndustry) {
				score += 40
				reasons = append(reasons, fmt.Sprintf("industry '%s' matches agency targets", lead.Industry))
				break
			}
		}
	} else {
		score += 20
	}

	if lead.Size != "" {
		score += 30
		reasons = append(reasons, fmt.Sprintf("size %s validated", lead.Size))
	}
	if lead.Location != "" {
		score += 30
		reasons = append(reasons, "compatible location")
	}

	explanation := "partial structural data"
	if len(reasons) > 0 {
		explanation = strings.Join(reasons, " • ")
	}
	return fitResult{score: capScore(score), explanation: explanation}
}

// technologicalFit scores tech stack overlap. Missing data on either side is
// neutral (50). Otherwise the score is the matched fraction of the lead's
// detected technologies scaled to 100, floored at 30.
func technologicalFit(agency *model.AgencyVector, lead *model.LeadVector) fitResult {
	if len(lead.TechnologiesDetected) == 0 {
		return fitResult{score: 50, explanation: "tech stack not detected"}
	}
	if len(agency.TechnologiesUsed) == 0 {
		return fitResult{score: 50, explanation: "agency tech expertise not provided"}
	}

	agencyTechs := make([]string, len(agency.TechnologiesUsed))
	for i, t := range agency.TechnologiesUsed {
		agencyTechs[i] = strings.ToLower(t)
	}

	var matched []string
	for _, tech := range lead.TechnologiesDetected {
		techLower := strings.ToLower(tech)
		for _, at := range agencyTechs {
			if strings.Contains(at, techLower) || strings.Contains(techLower, at) {
				matched = append(matched, tech)
				break
			}
		}
	}

	ratio := float64(len(matched)) / float64(len(lead.TechnologiesDetected))
	score := int(math.Round(ratio * 100))
	if score < 30 {
		score = 30
	}

	explanation := "no direct technology overlap"
	if len(matched) > 0 {
		shown := matched
		if len(shown) > 3 {
			shown = shown[:3]
		}
		explanation = "proficiency in " + strings.Join(shown, ", ")
	}
	return fitResult{score: capScore(score), explanation: explanation}
}

// semanticFit scores text-level alignment out of three independently capped
// contributions: pain-point alignment (40), case-study lookalike (40, first
// hit wins), hidden-signal detection (20, first hit wins). The sum is floored
// at 20 and capped at 100.
func semanticFit(agency *model.AgencyVector, lead *model.LeadVector) (fitResult, *model.SimilarClient) {
	var score float64
	var reasons []string
	var similar *model.SimilarClient

	// Pain-point alignment.
	matches := 0
	for _, leadPain := range lead.PainPointsDetected {
		lp := strings.ToLower(leadPain)
		for _, agencyPain := range agency.PainPointsResolved {
			ap := strings.ToLower(agencyPain)
			if strings.Contains(ap, lp) || strings.Contains(lp, ap) || sharesLongToken(ap, lp) {
				matches++
				break
			}
		}
	}
	if n := len(lead.PainPointsDetected); n > 0 {
		score += float64(matches) / float64(n) * 40
		if matches > 0 {
			reasons = append(reasons, fmt.Sprintf("%d problem(s) already solved for past clients", matches))
		}
	}

	// Case-study lookalike. First hit wins.
	content := strings.ToLower(lead.ScrapedContent)
	for i := range agency.CaseStudies {
		cs := &agency.CaseStudies[i]
		industryMatch := cs.Industry != "" && strings.EqualFold(cs.Industry, lead.Industry)
		challengeMatch := containsLongToken(content, cs.Challenge)

		if industryMatch || challengeMatch {
			score += 40
			similarity := fmt.Sprintf("similar context to %s", cs.ClientName)
			if industryMatch {
				similarity = fmt.Sprintf("same industry as %s", cs.ClientName)
			}
			similar = &model.SimilarClient{
				Name:            cs.ClientName,
				CaseStudySource: cs.ExtractedFrom,
				Similarity:      similarity,
			}
			reasons = append(reasons, fmt.Sprintf("resembles your client '%s'", cs.ClientName))
			break
		}
	}

	// Hidden-signal detection. First hit wins.
	for _, signal := range agency.HiddenSignals {
		if containsLongToken(content, signal.Signal) {
			score += 20
			reasons = append(reasons, fmt.Sprintf("signal detected: \"%s\"", truncate(signal.Signal, 50)))
			break
		}
	}

	final := int(math.Round(math.Min(100, math.Max(20, score))))
	explanation := "partial semantic alignment"
	if len(reasons) > 0 {
		explanation = strings.Join(reasons, " • ")
	}
	return fitResult{score: final, explanation: explanation}, similar
}

// sharesLongToken reports whether any token of a longer than minTokenLen
// appears as a substring of b.
func sharesLongToken(a, b string) bool {
	for _, word := range strings.Fields(a) {
		if utf8.RuneCountInString(word) > minTokenLen && strings.Contains(b, word) {
			return true
		}
	}
	return false
}

// containsLongToken reports whether any token of phrase longer than
// minTokenLen appears in content. Both sides are compared lowercase; content
// is expected to be pre-lowered.
func containsLongToken(content, phrase string) bool {
	if content == "" {
		return false
	}
	return sharesLongToken(strings.ToLower(phrase), content)
}

func capScore(s int) int {
	if s > 100 {
		return 100
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
