package detect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) GetEmbedding(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

func (s stubEmbedder) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}

	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vec
	}

	return out, nil
}

func TestClassifyRules(t *testing.T) {
	d := NewDetector(nil, 0.3, nil)

	tests := []struct {
		name         string
		text         string
		wantClaim    bool
		wantPriority bool
	}{
		{
			name:      "too short",
			text:      "ok sure",
			wantClaim: false,
		},
		{
			name:      "too long",
			text:      strings.Repeat("a", 5001),
			wantClaim: false,
		},
		{
			name:      "greeting question",
			text:      "Hello, how are you today?",
			wantClaim: false,
		},
		{
			name:      "opinion hedged",
			text:      "I think the earth is flat honestly",
			wantClaim: false,
		},
		{
			name:      "misinformation cue",
			text:      "Scientists have discovered that drinking warm water kills coronavirus instantly.",
			wantClaim: true,
		},
		{
			name:         "death claim override",
			text:         "BREAKING: Famous actor has died in a car crash",
			wantClaim:    true,
			wantPriority: true,
		},
		{
			name:      "generic fact fallback",
			text:      "India has won a bid to host Commonwealth Games 2030.",
			wantClaim: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Classify(context.Background(), tt.text)
			assert.Equal(t, tt.wantClaim, res.IsClaim)
			assert.Equal(t, tt.wantPriority, res.HighPriority)
		})
	}
}

func TestClassifySemanticScore(t *testing.T) {
	// Text without rule cues, generic-fact auxiliaries, or proper nouns.
	// Only the semantic path can mark it.
	text := "something vague happening soon around here"

	d := NewDetector(stubEmbedder{vec: []float32{1, 0, 0}}, 0.3, nil)
	res := d.Classify(context.Background(), text)

	assert.True(t, res.IsClaim)
	assert.InDelta(t, 1.0, res.SemanticScore, 1e-6)
	assert.Zero(t, res.RuleScore)
}

func TestClassifyEmbedderFailureFallsBackToRules(t *testing.T) {
	d := NewDetector(stubEmbedder{err: errors.New("provider down")}, 0.3, nil)

	res := d.Classify(context.Background(), "something vague happening soon around here")
	assert.False(t, res.IsClaim)

	res = d.Classify(context.Background(), "Scientists have discovered that drinking warm water kills coronavirus instantly.")
	assert.True(t, res.IsClaim)
}

func TestRuleScoreCapped(t *testing.T) {
	// At least four distinct cues: urgency, share CTA, disaster, health.
	score := ruleScore("URGENT warning: share this cyclone alert, the virus causes cancer")
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestCanonicalizeForwardNoise(t *testing.T) {
	got := Canonicalize("Fwd: Breaking news!!! Check https://example.com now")
	assert.Equal(t, "Breaking news. Check now", got)
}

func TestCanonicalizeCallToAction(t *testing.T) {
	got := Canonicalize("Drinking hot water cures covid. Share this with everyone you know")
	assert.Equal(t, "Drinking hot water cures covid.", got)
}

func TestCanonicalizeEmpty(t *testing.T) {
	assert.Equal(t, "", Canonicalize("   "))
}

func TestCanonicalizeTruncatesAtSentenceBoundary(t *testing.T) {
	long := strings.Repeat("This is a sentence about current events. ", 20)

	got := Canonicalize(long)
	require.LessOrEqual(t, len([]rune(got)), 600)
	assert.True(t, strings.HasSuffix(got, "."))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "short defaults to english", text: "hi", want: "en"},
		{name: "english", text: "The government announced a new policy today", want: "en"},
		{name: "hindi", text: "यह एक परीक्षण संदेश है और काफी लंबा है", want: "hi"},
		{name: "tamil", text: "இது ஒரு சோதனை செய்தி ஆகும்", want: "ta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestTopics(t *testing.T) {
	topics := Topics("URGENT: this vaccine causes disease, the government is hiding it")
	assert.Contains(t, topics, "health")
	assert.Contains(t, topics, "politics")
	assert.Contains(t, topics, "misinformation")

	assert.Equal(t, []string{TopicGeneral}, Topics("the sky looked lovely this evening"))
}
