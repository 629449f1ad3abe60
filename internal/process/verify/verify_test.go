package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimlens/claimlens/internal/core/domain"
	"github.com/claimlens/claimlens/internal/core/llm"
)

func TestAssessCoverage(t *testing.T) {
	cases := []struct {
		name     string
		claim    string
		snippets []string
		want     Coverage
	}{
		{
			name:  "no snippets",
			claim: "alpha bravo charlie",
			want:  CoverageNone,
		},
		{
			name:     "no overlap",
			claim:    "alpha bravo charlie delta",
			snippets: []string{"completely unrelated text"},
			want:     CoverageNone,
		},
		{
			name:     "only short tokens",
			claim:    "a bb cc",
			snippets: []string{"whatever"},
			want:     CoverageLow,
		},
		{
			name:     "one of six",
			claim:    "alpha bravo charlie delta echoes foxtrot",
			snippets: []string{"the alpha report"},
			want:     CoverageLow,
		},
		{
			name:     "two of six",
			claim:    "alpha bravo charlie delta echoes foxtrot",
			snippets: []string{"alpha and bravo were mentioned"},
			want:     CoverageMedium,
		},
		{
			name:     "four of six",
			claim:    "alpha bravo charlie delta echoes foxtrot",
			snippets: []string{"alpha bravo charlie", "delta too"},
			want:     CoverageHigh,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AssessCoverage(tc.claim, tc.snippets))
		})
	}
}

func TestParseResponseFullBlock(t *testing.T) {
	response := "STATUS: FALSE\n" +
		"CONFIDENCE: 0.9\n" +
		"SHORT_REPLY: ❌ *FALSE - This is a HOAX!* Warm water does not cure the virus.\n" +
		"LONG_REPLY: Multiple health agencies have debunked this.\n" +
		"Second paragraph with more detail.\n" +
		"SOURCES: WHO, CDC"

	parsed := ParseResponse(response)

	assert.Equal(t, domain.StatusFalse, parsed.Status)
	assert.InDelta(t, 0.9, parsed.Confidence, 0.001)
	assert.Equal(t, "❌ *FALSE - This is a HOAX!* Warm water does not cure the virus.", parsed.ShortReply)
	assert.Equal(t, "Multiple health agencies have debunked this.\nSecond paragraph with more detail.", parsed.LongReply)
}

func TestParseResponseDefaults(t *testing.T) {
	for _, response := range []string{"", "   ", "the model rambled with no structure at all"} {
		parsed := ParseResponse(response)

		assert.Equal(t, domain.StatusUnknown, parsed.Status)
		assert.InDelta(t, failureConfidence, parsed.Confidence, 0.001)
		assert.Equal(t, defaultShortReply, parsed.ShortReply)
		assert.Equal(t, defaultLongReply, parsed.LongReply)
	}
}

func TestParseResponseUnrecognizedStatus(t *testing.T) {
	parsed := ParseResponse("STATUS: MAYBE\nCONFIDENCE: 0.6")

	assert.Equal(t, domain.StatusUnknown, parsed.Status)
	assert.InDelta(t, 0.6, parsed.Confidence, 0.001)
}

func TestParseResponseClampsConfidence(t *testing.T) {
	parsed := ParseResponse("STATUS: TRUE\nCONFIDENCE: 1.7")

	assert.Equal(t, float32(1), parsed.Confidence)
}

func TestParseResponseTruncatesShortReply(t *testing.T) {
	parsed := ParseResponse("SHORT_REPLY: " + strings.Repeat("x", 250))

	assert.Len(t, []rune(parsed.ShortReply), shortReplyMaxLen)
	assert.True(t, strings.HasSuffix(parsed.ShortReply, "..."))
}

func TestBuildShortReplyFalse(t *testing.T) {
	claim := "Vaccines contain microchips. Forward to everyone!"

	reply := BuildShortReply(domain.StatusFalse, claim, "Vaccines do not contain microchips.", []string{"PIB Fact Check", "WHO"})

	assert.Contains(t, reply, "*FALSE - This is a HOAX!*")
	assert.Contains(t, reply, "*Myth:* "+claim)
	assert.Contains(t, reply, "*Fact:* Vaccines do not contain microchips.")
	assert.Contains(t, reply, "DO NOT FORWARD")
	assert.Contains(t, reply, "*Why this is dangerous:*")
	assert.Contains(t, reply, "✅ *Verified by:* PIB Fact Check, WHO")
}

func TestBuildShortReplyTrueHasNoWarning(t *testing.T) {
	reply := BuildShortReply(domain.StatusTrue, "Washing hands prevents infection.", "Health agencies confirm this.", nil)

	assert.Contains(t, reply, "*TRUE - This is accurate*")
	assert.Contains(t, reply, "*Verification:*")
	assert.NotContains(t, reply, "DO NOT FORWARD")
}

func TestBuildShortReplySourceLimit(t *testing.T) {
	reply := BuildShortReply(domain.StatusTrue, "claim", "fine", []string{"A", "B", "C", "D"})

	assert.Contains(t, reply, "*Verified by:* A, B, C")
	assert.NotContains(t, reply, "D")
}

func TestBuildLongReplyFalse(t *testing.T) {
	snippets := []string{"Health authorities have repeatedly debunked this claim.", strings.Repeat("y", 250)}

	reply := BuildLongReply(domain.StatusFalse, "First sentence. Second sentence. Third sentence.", "It is false.", snippets, []string{"WHO"})

	assert.Contains(t, reply, "❌ *FACT CHECK: FALSE*")
	assert.Contains(t, reply, rebuttalHeaderRule)
	assert.Contains(t, reply, "First sentence. Second sentence")
	assert.NotContains(t, reply, "Third sentence")
	assert.Contains(t, reply, "• Health authorities")
	assert.Contains(t, reply, strings.Repeat("y", rebuttalEvidenceSnippetLen)+"...")
	assert.Contains(t, reply, "*Official Sources:*\nWHO")
	assert.Contains(t, reply, "Do not share")
	assert.Contains(t, reply, "_Fact-checked by ClaimLens_")
}

func TestExtractSources(t *testing.T) {
	snippets := []string{
		"The World Health Organization (WHO) has debunked this claim.",
		"See pib.gov.in for the official statement by the Government of India.",
	}

	assert.Equal(t, []string{"Government of India", "PIB Fact Check", "WHO"}, ExtractSources(snippets))
}

func TestStripStatusMarkup(t *testing.T) {
	in := "❌ *FALSE - This is a HOAX!*\n\nVaccines do not contain microchips."

	assert.Equal(t, "Vaccines do not contain microchips.", stripStatusMarkup(in))

	// All-banner replies pass through unchanged.
	assert.Equal(t, "❌ *FALSE*", stripStatusMarkup("❌ *FALSE*"))
}

type fakeVerifyRepo struct {
	pending   []domain.Cluster
	verdicts  map[int64]domain.Verdict
	statuses  map[int64]domain.ClaimStatus
	upsertErr map[int64]error
}

func newFakeVerifyRepo(pending ...domain.Cluster) *fakeVerifyRepo {
	return &fakeVerifyRepo{
		pending:  pending,
		verdicts: make(map[int64]domain.Verdict),
		statuses: make(map[int64]domain.ClaimStatus),
	}
}

func (f *fakeVerifyRepo) ClustersNeedingVerification(_ context.Context, limit int) ([]domain.Cluster, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}

	return f.pending, nil
}

func (f *fakeVerifyRepo) CountPendingVerification(context.Context) (int, error) {
	return len(f.pending), nil
}

func (f *fakeVerifyRepo) UpsertVerdict(_ context.Context, verdict *domain.Verdict) error {
	if err := f.upsertErr[verdict.ClusterID]; err != nil {
		return err
	}

	f.verdicts[verdict.ClusterID] = *verdict

	return nil
}

func (f *fakeVerifyRepo) UpdateClusterStatus(_ context.Context, clusterID int64, status domain.ClaimStatus) error {
	f.statuses[clusterID] = status

	return nil
}

type fakeRetriever struct {
	items []domain.EvidenceItem
	err   error
}

func (f *fakeRetriever) Gather(context.Context, string) ([]domain.EvidenceItem, error) {
	return f.items, f.err
}

type fakeAdjudicator struct {
	response string
	err      error
	lastReq  llm.GenerateRequest
}

func (f *fakeAdjudicator) Generate(_ context.Context, req llm.GenerateRequest) (string, llm.ProviderName, error) {
	f.lastReq = req

	return f.response, llm.ProviderMock, f.err
}

func testCluster(id int64, text string) domain.Cluster {
	return domain.Cluster{
		ID:            id,
		CanonicalText: text,
		Topic:         "health",
		Status:        domain.StatusUnknown,
		MessageCount:  1,
		LastSeenAt:    time.Now().UTC(),
	}
}

func TestVerifyClusterFalse(t *testing.T) {
	repo := newFakeVerifyRepo()
	retriever := &fakeRetriever{items: []domain.EvidenceItem{
		{URL: "https://pib.gov.in/factcheck", Domain: "pib.gov.in", Snippet: "See pib.gov.in: vaccines contain no microchips."},
		{URL: "https://who.int/news", Domain: "who.int", Snippet: "The World Health Organization (WHO) confirms vaccines contain no tracking devices."},
	}}
	adjudicator := &fakeAdjudicator{response: "STATUS: FALSE\n" +
		"CONFIDENCE: 0.92\n" +
		"SHORT_REPLY: ❌ *FALSE - This is a HOAX!*\n" +
		"Vaccines do not contain microchips.\n" +
		"LONG_REPLY: The claim has been repeatedly debunked.",
	}

	svc := NewService(repo, retriever, adjudicator, Config{}, nil)

	verdict, err := svc.VerifyCluster(context.Background(), testCluster(7, "Vaccines contain microchips. Forward to everyone!"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFalse, verdict.Status)
	assert.InDelta(t, 0.92, verdict.Confidence, 0.001)
	require.NotNil(t, verdict.VerifiedAt)

	// FALSE replies are rendered deterministically.
	assert.Contains(t, verdict.ShortReply, "DO NOT FORWARD")
	assert.Contains(t, verdict.ShortReply, "*Fact:* Vaccines do not contain microchips.")
	assert.Contains(t, verdict.ShortReply, "*Verified by:* PIB Fact Check, WHO")
	assert.Contains(t, verdict.LongReply, "*FACT CHECK: FALSE*")

	assert.Equal(t, domain.StatusFalse, repo.statuses[7])
	assert.Len(t, repo.verdicts[7].Sources, 2)

	// Adjudicator was called with the fact-checking prompt.
	assert.Contains(t, adjudicator.lastReq.Prompt, "Vaccines contain microchips")
	assert.Contains(t, adjudicator.lastReq.System, "professional fact-checker")
	assert.Equal(t, llm.VerdictMaxTokens, adjudicator.lastReq.MaxTokens)
}

func TestVerifyClusterTrueKeepsModelReply(t *testing.T) {
	repo := newFakeVerifyRepo()
	retriever := &fakeRetriever{items: []domain.EvidenceItem{{Snippet: "Handwashing is effective."}}}
	adjudicator := &fakeAdjudicator{response: "STATUS: TRUE\n" +
		"CONFIDENCE: 0.8\n" +
		"SHORT_REPLY: ✅ *TRUE* Handwashing does prevent infections.\n" +
		"LONG_REPLY: Supported by the evidence.",
	}

	svc := NewService(repo, retriever, adjudicator, Config{}, nil)

	verdict, err := svc.VerifyCluster(context.Background(), testCluster(3, "Washing hands prevents infection"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTrue, verdict.Status)
	assert.Equal(t, "✅ *TRUE* Handwashing does prevent infections.", verdict.ShortReply)
	assert.NotNil(t, verdict.VerifiedAt)
}

func TestVerifyClusterUnknownStaysPending(t *testing.T) {
	repo := newFakeVerifyRepo()
	retriever := &fakeRetriever{}
	adjudicator := &fakeAdjudicator{response: "STATUS: UNKNOWN\nCONFIDENCE: 0.5"}

	svc := NewService(repo, retriever, adjudicator, Config{}, nil)

	verdict, err := svc.VerifyCluster(context.Background(), testCluster(4, "the mayor opened a bridge"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnknown, verdict.Status)
	assert.Nil(t, verdict.VerifiedAt)
	assert.Equal(t, defaultShortReply, verdict.ShortReply)
	assert.Equal(t, domain.StatusUnknown, repo.statuses[4])
}

func TestVerifyClusterRetrieverFailure(t *testing.T) {
	repo := newFakeVerifyRepo()
	retriever := &fakeRetriever{err: errors.New("search down")}

	svc := NewService(repo, retriever, &fakeAdjudicator{}, Config{}, nil)

	verdict, err := svc.VerifyCluster(context.Background(), testCluster(9, "some claim"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnknown, verdict.Status)
	assert.InDelta(t, failureConfidence, verdict.Confidence, 0.001)
	assert.Nil(t, verdict.VerifiedAt)
	assert.Empty(t, verdict.Sources)
}

func TestVerifyClusterAdjudicatorFailure(t *testing.T) {
	repo := newFakeVerifyRepo()
	retriever := &fakeRetriever{items: []domain.EvidenceItem{{Snippet: "something"}}}
	adjudicator := &fakeAdjudicator{err: errors.New("all backends down")}

	svc := NewService(repo, retriever, adjudicator, Config{}, nil)

	verdict, err := svc.VerifyCluster(context.Background(), testCluster(5, "some claim"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnknown, verdict.Status)
	assert.Nil(t, verdict.VerifiedAt)
	assert.Equal(t, []string{"something"}, verdict.Snippets)
}

func TestVerifyClusterPersistFailure(t *testing.T) {
	repo := newFakeVerifyRepo()
	repo.upsertErr = map[int64]error{2: errors.New("db down")}

	svc := NewService(repo, &fakeRetriever{}, &fakeAdjudicator{response: "STATUS: TRUE\nCONFIDENCE: 0.8"}, Config{}, nil)

	_, err := svc.VerifyCluster(context.Background(), testCluster(2, "claim"))
	assert.Error(t, err)
}

func TestWorkerTickContinuesPastFailures(t *testing.T) {
	repo := newFakeVerifyRepo(
		testCluster(1, "first claim text"),
		testCluster(2, "second claim text"),
	)
	repo.upsertErr = map[int64]error{1: errors.New("db down")}

	svc := NewService(repo, &fakeRetriever{}, &fakeAdjudicator{response: "STATUS: UNVERIFIABLE\nCONFIDENCE: 0.4"}, Config{}, nil)
	w := NewWorker(svc, repo, WorkerConfig{BatchSize: 5}, nil)

	w.tick(context.Background())

	// Cluster 1 failed to persist, cluster 2 still got its verdict.
	assert.NotContains(t, repo.verdicts, int64(1))
	assert.Contains(t, repo.verdicts, int64(2))
	assert.Equal(t, domain.StatusUnverifiable, repo.verdicts[2].Status)
}

func TestWorkerRespectsBatchSize(t *testing.T) {
	repo := newFakeVerifyRepo(
		testCluster(1, "first"),
		testCluster(2, "second"),
		testCluster(3, "third"),
	)

	svc := NewService(repo, &fakeRetriever{}, &fakeAdjudicator{response: "STATUS: TRUE\nCONFIDENCE: 0.9"}, Config{}, nil)
	w := NewWorker(svc, repo, WorkerConfig{BatchSize: 2}, nil)

	w.tick(context.Background())

	assert.Len(t, repo.verdicts, 2)
}
