package hmdb

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// StatusPolicy canonicalizes scraped status labels. HMDB pages are not a
// stable API: labels drift in casing, whitespace and phrasing, so matching
// against the canonical set is approximate and the acceptance threshold is
// configuration, not code.
type StatusPolicy struct {
	// Labels is the canonical label set, in priority order for tie-breaks.
	Labels []string
	// MinSimilarity is the Jaro-Winkler score required to accept a fuzzy
	// match. Exact matches after normalization always win.
	MinSimilarity float64
}

// DefaultStatusPolicy covers the HMDB curation statuses.
func DefaultStatusPolicy() StatusPolicy {
	return StatusPolicy{
		Labels:        []string{"detected", "expected", "predicted", "quantified"},
		MinSimilarity: 0.9,
	}
}

// Canonical maps a raw scraped label onto the configured canonical set. An
// unmatched label passes through trimmed rather than being guessed at.
func (p StatusPolicy) Canonical(raw string) string {
	n := normalizeLabel(raw)
	if n == "" {
		return strings.TrimSpace(raw)
	}

	for _, label := range p.Labels {
		if normalizeLabel(label) == n {
			return label
		}
	}

	best := ""
	bestScore := 0.0
	for _, label := range p.Labels {
		score := matchr.JaroWinkler(n, normalizeLabel(label), false)
		if score > bestScore {
			bestScore = score
			best = label
		}
	}
	if best != "" && bestScore >= p.MinSimilarity {
		return best
	}
	return strings.TrimSpace(raw)
}
