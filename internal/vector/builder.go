// Package vector builds agency and lead attribute vectors from loosely
// structured inputs: agency DNA blobs, document-insight maps, and raw text
// chunks. Input shapes are never trusted; fields that are absent or of the
// wrong type are silently skipped.
package vector

import (
	"github.com/kortex-hq/radar-cli/internal/model"
)

// Builder turns raw project data into an AgencyVector.
type Builder struct {
	rules []SignalRule
}

// NewBuilder creates a Builder with the given signal rule table. A nil table
// falls back to the built-in rules.
func NewBuilder(rules []SignalRule) *Builder {
	if rules == nil {
		rules = defaultRules
	}
	return &Builder{rules: rules}
}

// BuildAgencyVector assembles an AgencyVector from the agency DNA, per
// document insight maps, and extracted text chunks. Every chunk is scanned
// for hidden signals.
func (b *Builder) BuildAgencyVector(dna map[string]any, documentInsights []map[string]any, extractedChunks []string) *model.AgencyVector {
	v := model.NewAgencyVector()

	if dna != nil {
		v.Skills = append(v.Skills, stringSlice(dna["differentiators"])...)
		v.TargetIndustries = append(v.TargetIndustries, stringSlice(dna["targetSectors"])...)
		if m := stringValue(dna["methodology"]); m != "" {
			v.Methodologies = append(v.Methodologies, m)
		}
		if track, ok := dna["trackRecord"].(map[string]any); ok {
			clients, _ := track["pastClients"].([]any)
			for _, raw := range clients {
				client, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				name := stringValue(client["name"])
				if name == "" {
					name = "Client"
				}
				v.CaseStudies = append(v.CaseStudies, model.CaseStudyInsight{
					ClientName:       name,
					Industry:         stringValue(client["industry"]),
					Challenge:        stringValue(client["challenge"]),
					Solution:         stringValue(client["solution"]),
					Result:           stringValue(client["result"]),
					TechnologiesUsed: []string{},
					ExtractedFrom:    "Agency DNA - Track Record",
				})
			}
		}
	}

	for _, doc := range documentInsights {
		v.PainPointsResolved = append(v.PainPointsResolved, stringSlice(doc["painPoints"])...)
		v.Skills = append(v.Skills, stringSlice(doc["competitiveAdvantages"])...)
		v.TechnologiesUsed = append(v.TechnologiesUsed, stringSlice(doc["technologies"])...)
		if icp := stringValue(doc["icp"]); icp != "" {
			v.ClientTypes = append(v.ClientTypes, icp)
		}
	}

	for _, chunk := range extractedChunks {
		v.HiddenSignals = append(v.HiddenSignals, ExtractHiddenSignals(chunk, b.rules)...)
	}

	return v
}

// stringSlice coerces a raw JSON value into []string, dropping non-string
// elements. Anything that is not an array yields nil.
func stringSlice(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// stringValue coerces a raw JSON value into a string, "" when absent or not
// a string.
func stringValue(raw any) string {
	s, _ := raw.(string)
	return s
}
