package detect

import "strings"

const defaultLanguage = "en"

// scriptRanges maps Unicode script blocks to ISO 639-1 codes. Checked in
// order, first block with any matching rune wins.
var scriptRanges = []struct {
	lo, hi rune
	lang   string
}{
	{0x0900, 0x097F, "hi"}, // Devanagari
	{0x0B80, 0x0BFF, "ta"}, // Tamil
	{0x0C00, 0x0C7F, "te"}, // Telugu
	{0x0980, 0x09FF, "bn"}, // Bengali
	{0x0D00, 0x0D7F, "ml"}, // Malayalam
	{0x0C80, 0x0CFF, "kn"}, // Kannada
	{0x0A80, 0x0AFF, "gu"}, // Gujarati
	{0x0600, 0x06FF, "ur"}, // Arabic script
}

// DetectLanguage returns the ISO 639-1 code of the dominant script, falling
// back to English for short or Latin-script text.
func DetectLanguage(text string) string {
	if len([]rune(strings.TrimSpace(text))) < 10 {
		return defaultLanguage
	}

	for _, sr := range scriptRanges {
		if strings.ContainsFunc(text, func(r rune) bool {
			return r >= sr.lo && r <= sr.hi
		}) {
			return sr.lang
		}
	}

	return defaultLanguage
}
