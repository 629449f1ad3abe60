package detect

import "strings"

// TopicGeneral is the catch-all topic when no keyword matches.
const TopicGeneral = "general"

// topicKeywords maps topic labels to lowercase trigger keywords. The slice
// keeps the match order deterministic.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"health", []string{"vaccine", "covid", "corona", "virus", "medicine", "cure", "treatment", "disease", "health", "hospital", "doctor"}},
	{"politics", []string{"government", "election", "politician", "minister", "party", "vote", "parliament", "law", "policy"}},
	{"science", []string{"research", "study", "scientist", "discovery", "experiment", "technology", "climate", "environment"}},
	{"finance", []string{"money", "bank", "economy", "tax", "investment", "stock", "bitcoin", "crypto", "loan"}},
	{"social", []string{"religion", "caste", "community", "riot", "protest", "violence", "discrimination"}},
	{"disaster", []string{"earthquake", "flood", "cyclone", "tsunami", "fire", "accident", "emergency"}},
	{"food", []string{"food", "water", "nutrition", "diet", "eating", "drinking", "organic"}},
	{"technology", []string{"phone", "internet", "5g", "radiation", "hacking", "privacy", "data", "whatsapp", "app"}},
	{"misinformation", []string{"hoax", "fake", "forward", "share", "urgent", "breaking", "secret", "exposed", "truth"}},
}

// Topics returns the topic labels whose keywords appear in the text,
// or ["general"] when none match.
func Topics(text string) []string {
	lower := strings.ToLower(text)

	var topics []string

	for _, tk := range topicKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, tk.topic)

				break
			}
		}
	}

	if len(topics) == 0 {
		return []string{TopicGeneral}
	}

	return topics
}
