package verify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/claimlens/claimlens/internal/core/domain"
)

// Reply formatting limits.
const (
	rebuttalEvidenceLimit      = 3
	rebuttalEvidenceSnippetLen = 200
	rebuttalSourceLimit        = 3
	rebuttalHeaderRule         = "=============================="
)

// authoritativeSourceNames maps source domains to the display names used in
// replies.
var authoritativeSourceNames = map[string]string{
	"pib.gov.in":      "PIB Fact Check",
	"who.int":         "WHO",
	"cdc.gov":         "CDC",
	"mohfw.gov.in":    "Ministry of Health",
	"ndma.gov.in":     "NDMA",
	"factcheck.org":   "FactCheck.org",
	"snopes.com":      "Snopes",
	"altnews.in":      "Alt News",
	"boomlive.in":     "BOOM",
	"vishvasnews.com": "Vishvas News",
}

var (
	dangerCuePattern      = regexp.MustCompile(`(?i)\b(forward|share|urgent|breaking)\b`)
	sentenceBoundaryRegex = regexp.MustCompile(`[.!?]+`)
)

// statusEmoji returns the reply emoji for a verdict status.
func statusEmoji(status domain.ClaimStatus) string {
	switch status {
	case domain.StatusFalse:
		return "❌"
	case domain.StatusTrue:
		return "✅"
	case domain.StatusMisleading, domain.StatusPartiallyTrue:
		return "⚠️"
	default:
		return "❓"
	}
}

// BuildShortReply renders the WhatsApp-style short rebuttal in Myth/Fact
// format: status line, claim vs explanation, forwarding warning, and up to
// three source attributions.
func BuildShortReply(status domain.ClaimStatus, claimText, explanation string, sources []string) string {
	emoji := statusEmoji(status)

	var statusLine, warning string

	switch status {
	case domain.StatusFalse:
		statusLine = emoji + " *FALSE - This is a HOAX!*"
		warning = "\n\n⚠️ *DO NOT FORWARD*"
	case domain.StatusTrue:
		statusLine = emoji + " *TRUE - This is accurate*"
	case domain.StatusMisleading:
		statusLine = emoji + " *MISLEADING - Partly incorrect*"
		warning = "\n\n⚠️ *Verify before sharing*"
	default:
		statusLine = emoji + " *UNVERIFIED*"
		warning = "\n\n⚠️ *Check official sources*"
	}

	var body string

	switch status {
	case domain.StatusFalse:
		body = fmt.Sprintf("*Myth:* %s\n\n*Fact:* %s", claimText, explanation)

		if dangerCuePattern.MatchString(claimText) {
			body += "\n\n*Why this is dangerous:* Spreading such messages creates panic and helps misinformation spread."
		}
	case domain.StatusTrue:
		body = fmt.Sprintf("*Claim:* %s\n\n*Verification:* %s", claimText, explanation)
	default:
		body = fmt.Sprintf("*Claim:* %s\n\n*Status:* %s", claimText, explanation)
	}

	sourceLine := ""

	if len(sources) > 0 {
		limited := sources
		if len(limited) > rebuttalSourceLimit {
			limited = limited[:rebuttalSourceLimit]
		}

		sourceLine = "\n\n✅ *Verified by:* " + strings.Join(limited, ", ")
	}

	return statusLine + "\n\n" + body + warning + sourceLine
}

// BuildLongReply renders the detailed fact-check text with claim, verdict,
// evidence bullets, and source sections.
func BuildLongReply(status domain.ClaimStatus, claimText, explanation string, snippets, sources []string) string {
	header := fmt.Sprintf("%s *FACT CHECK: %s*\n%s", statusEmoji(status), status, rebuttalHeaderRule)

	var b strings.Builder

	b.WriteString(header)
	b.WriteString("\n\n*Claim:*\n")
	b.WriteString(summarizeClaim(claimText))
	b.WriteString("\n\n*Verdict:*\n")
	b.WriteString(explanation)

	if len(snippets) > 0 {
		limited := snippets
		if len(limited) > rebuttalEvidenceLimit {
			limited = limited[:rebuttalEvidenceLimit]
		}

		bullets := make([]string, len(limited))
		for i, s := range limited {
			bullets[i] = "• " + truncateSnippet(s, rebuttalEvidenceSnippetLen)
		}

		b.WriteString("\n\n*Evidence:*\n")
		b.WriteString(strings.Join(bullets, "\n\n"))
	}

	if len(sources) > 0 {
		b.WriteString("\n\n*Official Sources:*\n")
		b.WriteString(strings.Join(sources, ", "))
	}

	if status == domain.StatusFalse {
		b.WriteString("\n\n⚠️ *This is misinformation. Do not share.*")
	}

	b.WriteString("\n\n_Fact-checked by ClaimLens_")

	return b.String()
}

// ExtractSources pulls the display names of authoritative sources that the
// evidence mentions, sorted for stable output.
func ExtractSources(snippets []string) []string {
	found := make(map[string]struct{})

	for _, snippet := range snippets {
		lower := strings.ToLower(snippet)

		for sourceDomain, name := range authoritativeSourceNames {
			if strings.Contains(lower, sourceDomain) || strings.Contains(lower, strings.ToLower(name)) {
				found[name] = struct{}{}
			}
		}

		if strings.Contains(lower, "who") && strings.Contains(lower, "world health") {
			found["WHO"] = struct{}{}
		}

		if strings.Contains(lower, "cdc") {
			found["CDC"] = struct{}{}
		}

		if strings.Contains(lower, "pib") || strings.Contains(lower, "press information bureau") {
			found["PIB Fact Check"] = struct{}{}
		}

		if strings.Contains(lower, "government") && strings.Contains(lower, "india") {
			found["Government of India"] = struct{}{}
		}
	}

	sources := make([]string, 0, len(found))
	for name := range found {
		sources = append(sources, name)
	}

	sort.Strings(sources)

	return sources
}

// summarizeClaim keeps the first two sentences of the claim.
func summarizeClaim(claimText string) string {
	sentences := sentenceBoundaryRegex.Split(claimText, -1)
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}

	return strings.TrimSpace(strings.Join(sentences, ". "))
}

func truncateSnippet(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen]) + "..."
}
