package verify

import (
	"regexp"
	"strings"
)

// Coverage grades how much the evidence snippets overlap with the claim.
// It is passed to the adjudicator so weak evidence leads to UNKNOWN or
// UNVERIFIABLE instead of FALSE.
type Coverage string

// Coverage grades.
const (
	CoverageNone   Coverage = "NONE"
	CoverageLow    Coverage = "LOW"
	CoverageMedium Coverage = "MEDIUM"
	CoverageHigh   Coverage = "HIGH"
)

const (
	coverageMinTokenLength = 4
	coverageLowCutoff      = 0.2
	coverageMediumCutoff   = 0.5
)

var coverageTokenPattern = regexp.MustCompile(`\b\w+\b`)

// AssessCoverage computes the fraction of content words from the claim
// that appear anywhere in the evidence.
func AssessCoverage(claimText string, snippets []string) Coverage {
	if len(snippets) == 0 {
		return CoverageNone
	}

	var tokens []string

	for _, tok := range coverageTokenPattern.FindAllString(strings.ToLower(claimText), -1) {
		if len(tok) >= coverageMinTokenLength {
			tokens = append(tokens, tok)
		}
	}

	if len(tokens) == 0 {
		return CoverageLow
	}

	joined := strings.ToLower(strings.Join(snippets, " "))

	hits := make(map[string]struct{})

	for _, tok := range tokens {
		if strings.Contains(joined, tok) {
			hits[tok] = struct{}{}
		}
	}

	ratio := float64(len(hits)) / float64(len(tokens))

	switch {
	case ratio == 0:
		return CoverageNone
	case ratio < coverageLowCutoff:
		return CoverageLow
	case ratio < coverageMediumCutoff:
		return CoverageMedium
	default:
		return CoverageHigh
	}
}
