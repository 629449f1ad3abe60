// Package detect decides whether an incoming message carries a verifiable
// claim and derives its canonical text, language, and topics.
//
// Classification combines three signals: a rule score from regex cues,
// a semantic score against a fixed trigger-phrase corpus, and a fallback
// heuristic for plain declarative facts. Death-type claims bypass scoring
// entirely.
package detect

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/core/embeddings"
	"github.com/claimlens/claimlens/internal/platform/observability"
)

// Text length bounds for claim candidates, in code points.
const (
	MinClaimLength = 10
	MaxClaimLength = 5000
)

// semanticFloor is the cosine similarity below which the semantic score
// is treated as no signal at all.
const semanticFloor = 0.3

const ruleScoreDivisor = 3.0

// Embedder produces unit-norm embedding vectors for texts.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is the full classification outcome for one message.
type Result struct {
	IsClaim       bool
	HighPriority  bool
	RuleScore     float32
	SemanticScore float32
	CanonicalText string
	Language      string
	Topics        []string
}

// Detector classifies message texts. Safe for concurrent use.
type Detector struct {
	embedder  Embedder
	threshold float32
	logger    *zerolog.Logger

	mu          sync.Mutex
	triggerVecs [][]float32
}

// NewDetector creates a detector. The embedder may be nil, in which case
// classification runs on rules alone.
func NewDetector(embedder Embedder, threshold float32, logger *zerolog.Logger) *Detector {
	return &Detector{
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
	}
}

// Classify runs the full detection pipeline on a raw message text.
func (d *Detector) Classify(ctx context.Context, text string) Result {
	res := Result{
		CanonicalText: Canonicalize(text),
		Language:      DetectLanguage(text),
		Topics:        Topics(text),
	}

	trimmed := strings.TrimSpace(text)
	length := len([]rune(trimmed))

	if length < MinClaimLength || length > MaxClaimLength {
		observability.ClaimsDetected.WithLabelValues("non_claim").Inc()

		return res
	}

	if matchesAny(highPriorityPatterns, strings.ToLower(trimmed)) {
		res.IsClaim = true
		res.HighPriority = true

		d.getLogger().Info().Str("text", trimmed).Msg("high-priority claim detected")
		observability.ClaimsDetected.WithLabelValues("claim").Inc()

		return res
	}

	res.RuleScore = ruleScore(trimmed)
	res.SemanticScore = d.semanticScore(ctx, trimmed)

	final := res.RuleScore
	if res.SemanticScore > final {
		final = res.SemanticScore
	}

	d.getLogger().Debug().
		Float32("rule_score", res.RuleScore).
		Float32("semantic_score", res.SemanticScore).
		Float32("final_score", final).
		Msg("claim scores computed")

	res.IsClaim = final >= d.threshold || looksLikeGenericFact(trimmed)

	outcome := "non_claim"
	if res.IsClaim {
		outcome = "claim"
	}

	observability.ClaimsDetected.WithLabelValues(outcome).Inc()

	return res
}

// ruleScore counts matching claim cues and normalizes to [0, 1].
// Non-claim patterns and out-of-bounds lengths zero the score.
func ruleScore(text string) float32 {
	lower := strings.ToLower(strings.TrimSpace(text))
	length := len([]rune(lower))

	if length < MinClaimLength || length > MaxClaimLength {
		return 0
	}

	if matchesAny(nonClaimPatterns, lower) {
		return 0
	}

	matches := 0

	for _, p := range claimPatterns {
		if p.MatchString(lower) {
			matches++
		}
	}

	score := float32(matches) / ruleScoreDivisor
	if score > 1 {
		score = 1
	}

	return score
}

// semanticScore is the maximum cosine similarity between the text and the
// trigger-phrase corpus, with similarities under the floor treated as zero.
func (d *Detector) semanticScore(ctx context.Context, text string) float32 {
	if d.embedder == nil {
		return 0
	}

	triggers, err := d.triggerEmbeddings(ctx)
	if err != nil {
		d.getLogger().Warn().Err(err).Msg("semantic scoring unavailable, using rules only")

		return 0
	}

	vec, err := d.embedder.GetEmbedding(ctx, text)
	if err != nil {
		d.getLogger().Warn().Err(err).Msg("failed to embed text for semantic score")

		return 0
	}

	var best float32

	for _, tv := range triggers {
		if sim := embeddings.CosineSimilarity(tv, vec); sim > best {
			best = sim
		}
	}

	if best < semanticFloor {
		return 0
	}

	if best > 1 {
		best = 1
	}

	return best
}

// triggerEmbeddings lazily embeds the trigger corpus, retrying on the next
// call if the embedder was unavailable.
func (d *Detector) triggerEmbeddings(ctx context.Context) ([][]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.triggerVecs != nil {
		return d.triggerVecs, nil
	}

	vecs, err := d.embedder.GetEmbeddings(ctx, triggerPhrases)
	if err != nil {
		return nil, err
	}

	d.triggerVecs = vecs

	return vecs, nil
}

// looksLikeGenericFact catches plain declarative facts that miss the
// misinfo cues, such as "India has won a bid to host Commonwealth Games 2030."
func looksLikeGenericFact(text string) bool {
	t := strings.TrimSpace(text)

	if strings.HasSuffix(t, "?") {
		return false
	}

	if matchesAny(nonClaimPatterns, strings.ToLower(t)) {
		return false
	}

	if !auxiliaryVerbPattern.MatchString(t) {
		return false
	}

	tokens := strings.Fields(t)
	if len(tokens) < 5 {
		return false
	}

	if multiDigitPattern.MatchString(t) {
		return true
	}

	for _, tok := range tokens {
		if properNounPattern.MatchString(tok) {
			return true
		}
	}

	return false
}

func (d *Detector) getLogger() *zerolog.Logger {
	if d.logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return d.logger
}
