package recalibrate

import (
	"strings"
	"unicode/utf8"

	"github.com/kortex-hq/radar-cli/internal/model"
)

const (
	maxKeywords       = 10
	keywordsPerSignal = 3
	keywordsFromDesc  = 5
	signalMinLen      = 4 // exclusive
	descriptionMinLen = 5 // exclusive
)

// descriptionStopwords are filler nouns that dominate company descriptions
// without carrying preference signal. French and English variants, since the
// pool mixes both.
var descriptionStopwords = map[string]struct{}{
	"entreprise": {},
	"société":    {},
	"service":    {},
	"solution":   {},
	"company":    {},
	"business":   {},
	"services":   {},
	"solutions":  {},
}

// ExtractKeywords derives preference keywords from a candidate: long words
// from its buying signals plus filtered long words from its description,
// deduplicated in order of appearance and capped at 10. The same function
// feeds both weight adjustment and the resweep delta so a candidate always
// maps to the same keys.
func ExtractKeywords(c *model.Candidate) []string {
	var keywords []string

	for _, signal := range c.BuyingSignals {
		taken := 0
		for _, word := range strings.Fields(strings.ToLower(signal)) {
			if utf8.RuneCountInString(word) <= signalMinLen {
				continue
			}
			keywords = append(keywords, word)
			taken++
			if taken == keywordsPerSignal {
				break
			}
		}
	}

	taken := 0
	for _, word := range strings.Fields(strings.ToLower(c.Description)) {
		if utf8.RuneCountInString(word) <= descriptionMinLen {
			continue
		}
		if _, stop := descriptionStopwords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
		taken++
		if taken == keywordsFromDesc {
			break
		}
	}

	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
