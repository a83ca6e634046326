package hmdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusPolicyCanonical(t *testing.T) {
	policy := DefaultStatusPolicy()

	cases := []struct {
		raw  string
		want string
	}{
		{"detected", "detected"},
		{"  DETECTED ", "detected"},
		{"Quantified", "quantified"},
		{"quantifed", "quantified"}, // scrape typo within threshold
		{"Expected\n", "expected"},
		{"withdrawn", "withdrawn"}, // outside the canonical set, passes through
		{"  something else entirely ", "something else entirely"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, policy.Canonical(tc.raw), "raw=%q", tc.raw)
	}
}

func TestStatusPolicyThreshold(t *testing.T) {
	strict := StatusPolicy{Labels: []string{"detected"}, MinSimilarity: 0.999}
	require.Equal(t, "detectd", strict.Canonical("detectd"))

	loose := StatusPolicy{Labels: []string{"detected"}, MinSimilarity: 0.8}
	require.Equal(t, "detected", loose.Canonical("detectd"))
}

func TestStatusPolicyTieBreakPrefersFirstLabel(t *testing.T) {
	policy := StatusPolicy{Labels: []string{"expected", "expectorated"}, MinSimilarity: 0.8}
	require.Equal(t, "expected", policy.Canonical("expected"))
}
