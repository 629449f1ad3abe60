package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Keyword extraction limits.
const (
	defaultMaxKeywords   = 10
	defaultMaxPhrases    = 5
	defaultMaxQueries    = 3
	importantBoost       = 3
	minKeywordLength     = 3
	maxPhraseLen         = 4
	minPhraseLen         = 2
	queryKeywordsForTop  = 3
	queryKeywordsForHoax = 2
)

var stopWords = toSet([]string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "will", "with", "this", "these", "those", "we", "you",
	"they", "them", "been", "have", "had", "having", "do", "does", "did",
})

// importantKeywords are always kept and weighted up during extraction.
var importantKeywords = toSet([]string{
	// Health
	"vaccine", "covid", "corona", "virus", "cure", "treatment", "medicine",
	"doctor", "hospital", "disease", "symptom", "pandemic", "epidemic",

	// Tech
	"whatsapp", "facebook", "google", "5g", "phone", "internet", "app",
	"technology", "radiation", "microchip", "tracking",

	// Authority
	"government", "minister", "pm", "president", "official", "announce",
	"declare", "statement", "said", "confirmed",

	// Actions
	"shutdown", "ban", "illegal", "arrest", "death", "kill", "cause",
	"prevent", "proven", "study", "research",

	// Misinformation markers
	"hoax", "fake", "false", "true", "fact", "myth", "rumor",
})

var (
	wordPattern         = regexp.MustCompile(`\b[a-z]+\b`)
	personPattern       = regexp.MustCompile(`\b(?:PM|President|Minister|Dr\.?|Mr\.?|Mrs\.?)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	organizationPattern = regexp.MustCompile(`(?i)\b(WHO|CDC|FDA|NASA|WhatsApp|Facebook|Google|PIB|NDMA|Ministry\s+of\s+\w+)`)
	capitalizedPattern  = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)
	deathCuePattern     = regexp.MustCompile(`(?i)\b(died|is dead|was found dead|passed away|death)\b`)
	phraseSplitPattern  = regexp.MustCompile(`[.!?]+`)
	spaceRunPattern     = regexp.MustCompile(`\s+`)
)

// ExtractKeywords returns up to max keywords ordered by boosted frequency.
// Important keywords count triple; stop words and short tokens are dropped.
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		max = defaultMaxKeywords
	}

	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int)
	firstSeen := make(map[string]int)

	for _, w := range words {
		if len(w) < minKeywordLength {
			continue
		}

		if _, important := importantKeywords[w]; !important {
			if _, stop := stopWords[w]; stop {
				continue
			}
		}

		if _, ok := firstSeen[w]; !ok {
			firstSeen[w] = len(firstSeen)
		}

		counts[w]++
	}

	for w := range counts {
		if _, ok := importantKeywords[w]; ok {
			counts[w] *= importantBoost
		}
	}

	keywords := make([]string, 0, len(counts))
	for w := range counts {
		keywords = append(keywords, w)
	}

	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}

		return firstSeen[keywords[i]] < firstSeen[keywords[j]]
	})

	if len(keywords) > max {
		keywords = keywords[:max]
	}

	return keywords
}

// Entities holds named entities pulled out of a claim.
type Entities struct {
	People        []string
	Organizations []string
}

// ExtractEntities finds people and organizations referenced in the text.
func ExtractEntities(text string) Entities {
	var e Entities

	for _, m := range personPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name != "" && !contains(e.People, name) {
			e.People = append(e.People, name)
		}
	}

	for _, m := range organizationPattern.FindAllStringSubmatch(text, -1) {
		org := strings.TrimSpace(m[1])
		if org != "" && !contains(e.Organizations, org) {
			e.Organizations = append(e.Organizations, org)
		}
	}

	return e
}

// ExtractKeyPhrases returns up to max 2-4 word phrases that contain an
// important keyword, in document order.
func ExtractKeyPhrases(text string, max int) []string {
	if max <= 0 {
		max = defaultMaxPhrases
	}

	text = strings.TrimSpace(spaceRunPattern.ReplaceAllString(text, " "))

	var phrases []string

	seen := make(map[string]struct{})

	for _, sentence := range phraseSplitPattern.Split(text, -1) {
		words := strings.Fields(strings.ToLower(sentence))

		for i := range words {
			for phraseLen := minPhraseLen; phraseLen <= maxPhraseLen; phraseLen++ {
				if i+phraseLen > len(words) {
					continue
				}

				window := words[i : i+phraseLen]
				if !anyImportant(window) || allStopWords(window) {
					continue
				}

				phrase := strings.Join(window, " ")
				if _, ok := seen[phrase]; ok {
					continue
				}

				seen[phrase] = struct{}{}
				phrases = append(phrases, phrase)
			}
		}
	}

	if len(phrases) > max {
		phrases = phrases[:max]
	}

	return phrases
}

// BuildSearchQueries derives up to max search queries from a claim:
// a quoted key phrase with "fact check", top keywords with "verification",
// and an entity-focused query when a person or organization is named.
func BuildSearchQueries(text string, max int) []string {
	if max <= 0 {
		max = defaultMaxQueries
	}

	var queries []string

	keywords := ExtractKeywords(text, 5)
	entities := ExtractEntities(text)
	phrases := ExtractKeyPhrases(text, 3)

	if len(phrases) > 0 {
		queries = append(queries, fmt.Sprintf("%q fact check", phrases[0]))
	}

	if len(keywords) >= 2 {
		top := keywords
		if len(top) > queryKeywordsForTop {
			top = top[:queryKeywordsForTop]
		}

		queries = append(queries, strings.Join(top, " ")+" verification")
	}

	switch {
	case len(entities.People) > 0 && len(keywords) > 0:
		queries = append(queries, fmt.Sprintf("%q %s official statement", entities.People[0], keywords[0]))
	case len(entities.Organizations) > 0:
		kw := "statement"
		if len(keywords) > 0 {
			kw = keywords[0]
		}

		queries = append(queries, entities.Organizations[0]+" "+kw)
	case len(keywords) > 0:
		top := keywords
		if len(top) > queryKeywordsForHoax {
			top = top[:queryKeywordsForHoax]
		}

		queries = append(queries, strings.Join(top, " ")+" hoax myth")
	}

	if len(queries) > max {
		queries = queries[:max]
	}

	return queries
}

// deathQuery builds a focused "Name death" query for death-type claims so
// the main entity is not lost behind generic hoax debunks. Returns "" when
// the claim has no death cue or no capitalized name.
func deathQuery(text string) string {
	if !deathCuePattern.MatchString(text) {
		return ""
	}

	names := capitalizedPattern.FindAllString(text, -1)
	if len(names) == 0 {
		return ""
	}

	return strings.Join(names, " ") + " death"
}

func anyImportant(words []string) bool {
	for _, w := range words {
		if _, ok := importantKeywords[w]; ok {
			return true
		}
	}

	return false
}

func allStopWords(words []string) bool {
	for _, w := range words {
		if _, ok := stopWords[w]; !ok {
			return false
		}
	}

	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	return set
}
