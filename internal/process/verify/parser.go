package verify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/claimlens/claimlens/internal/core/domain"
)

// Neutral fallbacks for adjudicator output with missing fields. A response
// with no recognizable field at all drops to failureConfidence instead.
const (
	defaultShortReply = "We could not verify this claim. Please check official sources."
	defaultLongReply  = "This claim requires further verification."
	defaultConfidence = 0.5

	shortReplyMaxLen = 200
)

var (
	statusLinePattern     = regexp.MustCompile(`(?i)STATUS:\s*(\w+)`)
	confidenceLinePattern = regexp.MustCompile(`(?i)CONFIDENCE:\s*([\d.]+)`)
	shortReplyPattern     = regexp.MustCompile(`(?is)SHORT_REPLY:\s*(.+?)(?:\n[A-Z_]+:|$)`)
	longReplyPattern      = regexp.MustCompile(`(?is)LONG_REPLY:\s*(.+?)(?:\n[A-Z_]+:|$)`)
)

// ParsedVerdict is the structured content of an adjudicator response.
type ParsedVerdict struct {
	Status     domain.ClaimStatus
	Confidence float32
	ShortReply string
	LongReply  string
}

// ParseResponse extracts the STATUS/CONFIDENCE/SHORT_REPLY/LONG_REPLY lines
// from an adjudicator response. Missing or malformed fields fall back to
// neutral defaults so a garbled response never produces a verdict stronger
// than UNKNOWN.
func ParseResponse(response string) ParsedVerdict {
	parsed := ParsedVerdict{
		Status:     domain.StatusUnknown,
		Confidence: defaultConfidence,
		ShortReply: defaultShortReply,
		LongReply:  defaultLongReply,
	}

	recognized := false

	if m := statusLinePattern.FindStringSubmatch(response); m != nil {
		parsed.Status = domain.ParseClaimStatus(strings.ToUpper(m[1]))
		recognized = true
	}

	if m := confidenceLinePattern.FindStringSubmatch(response); m != nil {
		if conf, err := strconv.ParseFloat(m[1], 32); err == nil {
			parsed.Confidence = clamp(float32(conf))
			recognized = true
		}
	}

	if m := shortReplyPattern.FindStringSubmatch(response); m != nil {
		parsed.ShortReply = truncateReply(strings.TrimSpace(m[1]), shortReplyMaxLen)
		recognized = true
	}

	if m := longReplyPattern.FindStringSubmatch(response); m != nil {
		parsed.LongReply = strings.TrimSpace(m[1])
		recognized = true
	}

	if !recognized {
		parsed.Confidence = failureConfidence
	}

	return parsed
}

func truncateReply(reply string, maxLen int) string {
	runes := []rune(reply)
	if len(runes) <= maxLen {
		return reply
	}

	return string(runes[:maxLen-3]) + "..."
}

func clamp(v float32) float32 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
