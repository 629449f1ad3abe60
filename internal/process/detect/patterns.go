package detect

import "regexp"

// claimPatterns are the rule cues for factual assertions. Each distinct
// matching pattern contributes to the rule score.
var claimPatterns = compileAll([]string{
	// Definitive statements
	`(?i)\b(is|are|was|were|will be|has been|have been)\s+(proven|confirmed|discovered|revealed|shown)\b`,
	`(?i)\b(causes?|prevents?|cures?|kills?|protects?)\s+\w+`,
	`(?i)\b(always|never|100%|guaranteed|definitely|certainly)\b`,

	// Urgency and emotional triggers
	`(?i)\b(urgent|breaking|alert|warning|danger|shocking|incredible)\b`,
	`(?i)\b(share this|forward|must read|everyone should know)\b`,

	// Disaster and weather alerts
	`(?i)\b(cyclone|hurricane|typhoon|storm|earthquake|tsunami|floods?|landslides?)\b`,
	`(?i)\b(red|orange|yellow)\s+alerts?\b`,
	`(?i)\b(alerts?\s+issued|warnings?\s+issued)\b`,
	`(?i)\b(evacuate|evacuation|take shelter|seek shelter|emergency)\b`,
	`(?i)\b(death toll|casualties|injured|missing persons?)\b`,
	`(?i)\b(magnitude|intensity|category|level)\s+\d+\b`,

	// Known hoax shapes
	`(?i)\bearth\s+is\s+flat\b`,
	`(?i)\bscam\b`,
	`(?i)\bhoax\b`,
	`(?i)\bconspiracy\b`,

	// Health claims
	`(?i)\b(vaccine|vaccination|covid|corona|virus|treatment|cure|medicine|drug)\b`,
	`(?i)\b(cancer|disease|illness|symptoms|side effects)\b`,

	// Conspiracy indicators
	`(?i)\b(government|they|officials|elites?|billionaires?)\s+(is|are|wants?|hid(e|ing)?|cover)`,
	`(?i)\b(secret|hidden|suppressed|censored|banned)\b`,
	`(?i)\b(don't want you to know|wake up|truth|exposed|leaked)\b`,

	// Numerical claims
	`(?i)\b\d+\s*(%|percent|times|x)\s*(more|less|higher|lower|better|worse)\b`,
	`(?i)\b(study|research|survey|poll)\s+(shows?|finds?|reveals?|proves?)\b`,

	// Authority claims
	`(?i)\b(scientists?|doctors?|experts?|researchers?|professors?)\s+(say|claim|confirm|discover)\b`,
	`(?i)\b(according to|based on|sources? say|reports? indicate)\b`,
})

// highPriorityPatterns always classify as a claim, regardless of scores.
var highPriorityPatterns = compileAll([]string{
	`(?i)\b(is dead|has died|was found dead|has been found dead|passed away|died in|died at|was killed in|killed in)\b`,
	`(?i)\b(declared dead|pronounced dead)\b`,
})

// nonClaimPatterns zero the rule score: questions, opinions, hedges,
// greetings, casual chat.
var nonClaimPatterns = compileAll([]string{
	`(?i)^\s*(what|who|where|when|why|how|is|are|do|does|did|can|could|would|should)\s+.+\?\s*$`,
	`(?i)\b(i think|i believe|in my opinion|personally|i feel|seems to me)\b`,
	`(?i)\b(maybe|perhaps|might|could be|possibly|i wonder)\b`,
	`(?i)^\s*(hi|hello|hey|good morning|good evening|thanks|thank you)\b`,
	`(?i)^\s*(lol|haha|hehe)\b`,
})

// auxiliaryVerbPattern is the crude verb presence check for the
// generic-fact fallback.
var auxiliaryVerbPattern = regexp.MustCompile(`(?i)\b(is|are|was|were|has|have|had|will|shall|won|lost)\b`)

// multiDigitPattern matches a 2-4 digit number such as a year.
var multiDigitPattern = regexp.MustCompile(`\b\d{2,4}\b`)

// properNounPattern matches a capitalized token.
var properNounPattern = regexp.MustCompile(`^[A-Z][a-zA-Z]+$`)

// triggerPhrases is the fixed corpus the semantic score compares against:
// misinformation templates mixed with neutral factual templates.
var triggerPhrases = []string{
	// Classic misinfo patterns
	"scientists have discovered that",
	"studies prove that",
	"research shows that",
	"experts confirm that",
	"it has been proven that",
	"the government is hiding",
	"they don't want you to know",
	"breaking news reveals",
	"leaked documents show",
	"this cure will",
	"this treatment prevents",
	"vaccines cause",
	"this food causes cancer",
	"eating this will cure",
	"drinking this prevents",
	"the real truth about",
	"what they're not telling you",
	"exposed: the truth about",
	"fact: this actually",
	"warning: this common",
	"urgent: new evidence shows",
	"confirmed: government admits",
	"exposed: secret plan to",
	"shocking discovery reveals",
	"doctors are hiding this",

	// Neutral factual templates
	"X has won the election",
	"X has been elected as the president",
	"X has been appointed as the new CEO",
	"X will host the World Cup in 2030",
	"India will host the Commonwealth Games",
	"the government has announced a new policy",
	"the central bank has increased interest rates",
	"inflation has risen to 7 percent",
	"the unemployment rate has fallen",
	"India has signed a new trade agreement",
	"the court has ruled that",
	"the company reported record profits",
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}

	return compiled
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}

	return false
}
