package detect

import (
	"regexp"
	"strings"
)

// Canonical form length bounds.
const (
	canonicalMaxLength  = 500
	canonicalSplitLimit = 600
)

var forwardPrefixPatterns = compileAll([]string{
	`(?i)^(fwd?|fw|forwarded?|shared?):\s*`,
	`(?i)^(re|reply):\s*`,
	`(?i)^\*+\s*forwarded\s+message\s*\*+\s*`,
	`(?i)^-+\s*forwarded\s+message\s*-+\s*`,
})

var urlPatterns = compileAll([]string{
	`https?://\S+`,
	`www\.\S+`,
})

var ctaPatterns = compileAll([]string{
	`(?i)\b(share|forward|send)\s+(this|to|with)\s+.{0,50}$`,
	`(?i)\b(please|pls)\s+(share|forward|spread)\b`,
	`(?i)\b(must|have to|should)\s+(read|watch|see|share)\b`,
	`(?i)(spread\s+the\s+word|pass\s+it\s+on)`,
})

var (
	exclamationRunPattern = regexp.MustCompile(`[!?]{2,}`)
	ellipsisPattern       = regexp.MustCompile(`\.{2,}`)
	emojiPattern          = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}]+`)
	whitespacePattern     = regexp.MustCompile(`\s+`)
	sentenceEndPattern    = regexp.MustCompile(`[.!?]+`)
)

// Canonicalize strips forwarding noise from a message and returns the core
// claim text: forward prefixes, URLs, calls to action, emoji and punctuation
// runs are removed, whitespace is collapsed, and overly long messages are
// truncated at a sentence boundary.
func Canonicalize(text string) string {
	canonical := strings.TrimSpace(text)
	if canonical == "" {
		return ""
	}

	for _, p := range forwardPrefixPatterns {
		canonical = p.ReplaceAllString(canonical, "")
	}

	for _, p := range urlPatterns {
		canonical = p.ReplaceAllString(canonical, "")
	}

	for _, p := range ctaPatterns {
		canonical = p.ReplaceAllString(canonical, "")
	}

	canonical = exclamationRunPattern.ReplaceAllString(canonical, ".")
	canonical = ellipsisPattern.ReplaceAllString(canonical, ".")
	canonical = emojiPattern.ReplaceAllString(canonical, "")
	canonical = strings.TrimSpace(whitespacePattern.ReplaceAllString(canonical, " "))

	runes := []rune(canonical)
	if len(runes) > canonicalMaxLength {
		head := runes
		if len(head) > canonicalSplitLimit {
			head = head[:canonicalSplitLimit]
		}

		sentences := sentenceEndPattern.Split(string(head), -1)
		if len(sentences) > 1 {
			canonical = strings.Join(sentences[:len(sentences)-1], ". ") + "."
		} else {
			canonical = string(runes[:canonicalMaxLength]) + "..."
		}
	}

	return canonical
}
