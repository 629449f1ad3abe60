package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeywordsBoostsImportant(t *testing.T) {
	keywords := ExtractKeywords("The new vaccine rollout continues while rollout critics rollout complaints", 5)

	require.NotEmpty(t, keywords)
	// "rollout" appears three times but "vaccine" is boosted to the same
	// weight and was seen first.
	assert.Equal(t, "vaccine", keywords[0])
}

func TestExtractKeywordsFiltersStopWords(t *testing.T) {
	keywords := ExtractKeywords("this is that and the with from", 10)
	assert.Empty(t, keywords)
}

func TestExtractEntities(t *testing.T) {
	e := ExtractEntities("PM Narendra Modi met WHO officials, says Dr Sharma")

	assert.Contains(t, e.People, "Narendra Modi")
	assert.Contains(t, e.Organizations, "WHO")
}

func TestExtractKeyPhrases(t *testing.T) {
	phrases := ExtractKeyPhrases("Drinking warm water can cure the virus instantly.", 3)

	require.NotEmpty(t, phrases)

	for _, p := range phrases {
		assert.True(t, strings.Contains(p, "cure") || strings.Contains(p, "virus"), p)
	}
}

func TestBuildSearchQueries(t *testing.T) {
	queries := BuildSearchQueries("The vaccine causes serious disease according to doctors", 3)

	require.NotEmpty(t, queries)
	assert.LessOrEqual(t, len(queries), 3)
	assert.Contains(t, queries[0], "fact check")
}

func TestDeathQuery(t *testing.T) {
	assert.Equal(t, "Dharmendra death", deathQuery("Dharmendra passed away this morning"))
	assert.Empty(t, deathQuery("the weather is nice today"))
}
