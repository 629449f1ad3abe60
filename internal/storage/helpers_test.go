package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimlens/claimlens/internal/core/domain"
)

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "hello", SanitizeUTF8("hello"))
	assert.Equal(t, "", SanitizeUTF8(""))
	assert.Equal(t, "ab", SanitizeUTF8("a\xffb"))
}

func TestMarshalMetaNil(t *testing.T) {
	data, err := marshalMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	meta, err := unmarshalMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestMetaRoundTrip(t *testing.T) {
	in := &domain.MessageMeta{ChatID: "chat-1", UserID: "user-9"}

	data, err := marshalMeta(in)
	require.NoError(t, err)

	out, err := unmarshalMeta(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEvidenceOmitsZeroPublishedAt(t *testing.T) {
	data, err := marshalEvidence([]domain.EvidenceItem{{URL: "https://who.int", Domain: "who.int"}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "published_at")

	items, err := unmarshalEvidence(data)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].PublishedAt.IsZero())
}
