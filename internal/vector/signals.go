package vector

import (
	"fmt"
	"os"
	"regexp"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/kortex-hq/radar-cli/internal/model"
)

// SignalRule maps a text pattern to a signal category. Rules are declarative
// so the table can be extended without touching the extraction logic.
type SignalRule struct {
	Pattern  *regexp.Regexp
	Category string
	Profile  string
}

// Context window, in bytes, around a numeric-result match.
const (
	contextBefore = 50
	contextAfter  = 100
)

// defaultRules is the built-in pattern table. The regexes and category labels
// deliberately mix French and English: agency documents in the wild carry
// both, and category labels themselves feed the engine's hidden-signal
// token matching.
var defaultRules = []SignalRule{
	{regexp.MustCompile(`(?i)migration\s+(cloud|aws|azure|gcp)`), "Migration Cloud", "Companies needing Migration Cloud"},
	{regexp.MustCompile(`(?i)réduction?\s+(de\s+)?(churn|turnover|attrition)`), "Réduction Churn", "Companies needing Réduction Churn"},
	{regexp.MustCompile(`(?i)implémentation?\s+(erp|crm|salesforce|hubspot)`), "Implémentation CRM/ERP", "Companies needing Implémentation CRM/ERP"},
	{regexp.MustCompile(`(?i)transformation\s+(digitale|numérique)`), "Transformation Digitale", "Companies needing Transformation Digitale"},
	{regexp.MustCompile(`(?i)optimisation?\s+(seo|acquisition|conversion)`), "Optimisation Marketing", "Companies needing Optimisation Marketing"},
	{regexp.MustCompile(`(?i)automatisation?\s+(marketing|ventes|process)`), "Automatisation", "Companies needing Automatisation"},
	{regexp.MustCompile(`(?i)levée\s+(de\s+)?fonds?`), "Levée de fonds", "Companies needing Levée de fonds"},
	{regexp.MustCompile(`(?i)expansion\s+(international|europe|usa)`), "Expansion Internationale", "Companies needing Expansion Internationale"},
	{regexp.MustCompile(`(?i)recrutement\s+(massif|intensif|accéléré)`), "Hypercroissance", "Companies needing Hypercroissance"},
	{regexp.MustCompile(`(?i)refonte\s+(site|branding|identité)`), "Refonte Identité", "Companies needing Refonte Identité"},
}

// percentPattern catches measurable-result mentions ("40% de réduction").
var percentPattern = regexp.MustCompile(`(?i)(\d+)\s*%\s*(de\s+)?(réduction|augmentation|croissance|amélioration)`)

// ruleFile is the YAML shape of an external rule table.
type ruleFile struct {
	Rules []struct {
		Pattern  string `yaml:"pattern"`
		Category string `yaml:"category"`
		Profile  string `yaml:"profile"`
	} `yaml:"rules"`
}

// LoadRules reads a signal rule table from a YAML file. An empty path returns
// the built-in table.
func LoadRules(path string) ([]SignalRule, error) {
	if path == "" {
		return defaultRules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: read rules %s", path)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrap(err, "vector: parse rules")
	}

	rules := make([]SignalRule, 0, len(rf.Rules))
	for i, r := range rf.Rules {
		if r.Pattern == "" || r.Category == "" {
			return nil, eris.Errorf("vector: rule %d missing pattern or category", i)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: compile rule %d", i)
		}
		profile := r.Profile
		if profile == "" {
			profile = fmt.Sprintf("Companies needing %s", r.Category)
		}
		rules = append(rules, SignalRule{Pattern: re, Category: r.Category, Profile: profile})
	}
	return rules, nil
}

// ExtractHiddenSignals scans a text chunk against the rule table plus the
// numeric-result pattern. Every match yields one signal; no de-duplication
// happens here. Absence of matches yields an empty slice, never an error.
func ExtractHiddenSignals(text string, rules []SignalRule) []model.HiddenSignal {
	signals := []model.HiddenSignal{}

	for _, rule := range rules {
		for _, match := range rule.Pattern.FindAllString(text, -1) {
			signals = append(signals, model.HiddenSignal{
				Signal:               rule.Category,
				Context:              match,
				ExtractedFrom:        "Document Analysis",
				DeducedTargetProfile: rule.Profile,
			})
		}
	}

	for _, loc := range percentPattern.FindAllStringIndex(text, -1) {
		signals = append(signals, model.HiddenSignal{
			Signal:               "Résultat: " + text[loc[0]:loc[1]],
			Context:              contextWindow(text, loc[0]),
			ExtractedFrom:        "Document Analysis - Results",
			DeducedTargetProfile: "Companies seeking measurable results",
		})
	}

	return signals
}

// contextWindow slices text around a match start, clamped to the text bounds
// and snapped outward to rune boundaries.
func contextWindow(text string, idx int) string {
	start := idx - contextBefore
	if start < 0 {
		start = 0
	}
	end := idx + contextAfter
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}
