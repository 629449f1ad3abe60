package verify

import (
	"fmt"
	"strings"
)

const maxPromptSnippets = 5

const adjudicatorSystemPrompt = `You are a professional fact-checker.

Your job:
- Compare the claim with the evidence.
- Use common sense and background knowledge, BUT DO NOT invent specific events or dates that are not supported.
- Be conservative: if evidence is weak or unrelated, prefer UNKNOWN or UNVERIFIABLE over FALSE.

VERY IMPORTANT DECISION RULES:

1. When to use FALSE:
   - ONLY if there is clear, credible evidence that the claim is wrong or has been debunked.
   - Example: official statements or multiple reliable sources explicitly refuting the claim.

2. When to use TRUE:
   - Evidence strongly supports the main point of the claim.

3. When to use PARTIALLY_TRUE:
   - The core idea is supported, but some important details (like exact date, numbers, location) are incorrect or unconfirmed.
   - Example: countries do have a trade agreement in general, but not "signed TODAY" as claimed.

4. When to use MISLEADING:
   - The claim mixes some true facts with exaggerations, omissions, or wrong context that can seriously mislead people.

5. When to use UNKNOWN or UNVERIFIABLE:
   - Evidence is sparse, generic, out of date, or does not specifically address the claim.
   - There is no strong supporting OR refuting evidence.
   - NEVER mark a claim as FALSE just because you cannot find evidence.

You MUST follow these rules strictly.`

const verdictPromptTemplate = `Fact-check this claim based on the evidence provided.

CLAIM:
%s

EVIDENCE COVERAGE: %s
(Interpretation:
- NONE/LOW = most snippets do NOT mention the key entities/claims directly.
- MEDIUM/HIGH = evidence substantially overlaps with the claim.)

EVIDENCE SNIPPETS:
%s

Instructions for you:
- If coverage is NONE or LOW and you see no explicit refutation, strongly prefer STATUS: UNKNOWN or STATUS: UNVERIFIABLE.
- If background knowledge supports general relationships (e.g., countries often have trade agreements), but the specific claim (e.g., "signed today") is not confirmed, prefer PARTIALLY_TRUE or MISLEADING over TRUE or FALSE.
- Only assign FALSE if you have strong, direct evidence that the claim is wrong.

Now provide your analysis in this EXACT format:

STATUS: [Choose ONE: TRUE, FALSE, MISLEADING, PARTIALLY_TRUE, UNVERIFIABLE, or UNKNOWN]
CONFIDENCE: [Number from 0.0 to 1.0]
SHORT_REPLY: [Write a WhatsApp-ready response. Use:
  - ✅ *TRUE* when supported
  - ❌ *FALSE - This is a HOAX!* only when clearly debunked
  - ⚠️ *MISLEADING* or *PARTIALLY TRUE* when mixed/partial
  - ❓ *UNVERIFIED* when UNKNOWN/UNVERIFIABLE.
  Summarize the myth vs fact in 2-3 sentences, and if FALSE explain briefly why sharing is harmful.]
LONG_REPLY: [Provide a detailed 3-4 paragraph fact-check explanation including what the evidence shows, any nuance (partial truth), and recommendations.]
SOURCES: [List the key authoritative sources from the evidence, if any. If coverage is NONE/LOW, clearly say that no directly relevant sources were found.]

Your response:`

// buildVerdictPrompt renders the adjudication prompt with numbered evidence
// snippets and the coverage grade.
func buildVerdictPrompt(claimText string, coverage Coverage, snippets []string) string {
	evidenceText := "No evidence found from search."

	if len(snippets) > 0 {
		limited := snippets
		if len(limited) > maxPromptSnippets {
			limited = limited[:maxPromptSnippets]
		}

		lines := make([]string, len(limited))
		for i, s := range limited {
			lines[i] = fmt.Sprintf("%d. %s", i+1, s)
		}

		evidenceText = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(verdictPromptTemplate, claimText, coverage, evidenceText)
}
