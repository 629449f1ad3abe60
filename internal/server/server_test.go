package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimlens/claimlens/internal/core/domain"
	apperrors "github.com/claimlens/claimlens/internal/core/errors"
	"github.com/claimlens/claimlens/internal/ingest"
	"github.com/claimlens/claimlens/internal/process/memgraph"
)

type fakeIngestor struct {
	resp    ingest.Response
	err     error
	lastReq ingest.Request
}

func (f *fakeIngestor) Ingest(_ context.Context, req ingest.Request) (ingest.Response, error) {
	f.lastReq = req

	return f.resp, f.err
}

func (f *fakeIngestor) IngestBatch(ctx context.Context, reqs []ingest.Request) []ingest.Response {
	responses := make([]ingest.Response, 0, len(reqs))

	for _, req := range reqs {
		resp, _ := f.Ingest(ctx, req)
		responses = append(responses, resp)
	}

	return responses
}

type fakeClusterReader struct {
	cluster    domain.Cluster
	clusterErr error
	verdict    domain.Verdict
	verdictErr error
	top        []domain.Cluster
	topLimit   int
	counts     map[domain.MessageSource]int
	edges      []domain.GraphEdge
}

func (f *fakeClusterReader) GetCluster(context.Context, int64) (domain.Cluster, error) {
	return f.cluster, f.clusterErr
}

func (f *fakeClusterReader) GetVerdictByCluster(context.Context, int64) (domain.Verdict, error) {
	return f.verdict, f.verdictErr
}

func (f *fakeClusterReader) TopClusters(_ context.Context, limit int) ([]domain.Cluster, error) {
	f.topLimit = limit

	return f.top, nil
}

func (f *fakeClusterReader) SightingCounts(context.Context, int64) (map[domain.MessageSource]int, error) {
	return f.counts, nil
}

func (f *fakeClusterReader) GraphEdges(context.Context, int64) ([]domain.GraphEdge, error) {
	return f.edges, nil
}

type fakeReverifier struct {
	verdict domain.Verdict
	calls   int
}

func (f *fakeReverifier) VerifyCluster(context.Context, domain.Cluster) (domain.Verdict, error) {
	f.calls++

	return f.verdict, nil
}

func newTestServer(ing *fakeIngestor, reader *fakeClusterReader, rev *fakeReverifier, graph *memgraph.Graph, token string) *Server {
	return New(ing, reader, rev, graph, Config{InternalToken: token}, nil)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestIngestEndpoint(t *testing.T) {
	clusterID := int64(7)
	ing := &fakeIngestor{resp: ingest.Response{
		MessageID:     3,
		IsClaim:       true,
		ClusterID:     &clusterID,
		ClusterStatus: domain.StatusFalse,
		ShortReply:    "❌ debunked",
	}}

	srv := newTestServer(ing, &fakeClusterReader{}, &fakeReverifier{}, nil, "")

	rec := postJSON(t, srv.Handler(), "/api/messages", ingestPayload{
		Text:     "Vaccines contain microchips",
		Source:   "web_form",
		Metadata: &metadataPayload{ChatID: "chat-1"},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var result ingestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, int64(3), result.MessageID)
	assert.True(t, result.IsClaim)
	require.NotNil(t, result.ClusterID)
	assert.Equal(t, clusterID, *result.ClusterID)
	require.NotNil(t, result.ClusterStatus)
	assert.Equal(t, "FALSE", *result.ClusterStatus)
	assert.Nil(t, result.AudioURL)

	require.NotNil(t, ing.lastReq.Meta)
	assert.Equal(t, "chat-1", ing.lastReq.Meta.ChatID)
}

func TestIngestEndpointRejectsOversizedText(t *testing.T) {
	srv := newTestServer(&fakeIngestor{}, &fakeClusterReader{}, &fakeReverifier{}, nil, "")

	long := make([]byte, maxTextLength+1)
	for i := range long {
		long[i] = 'a'
	}

	rec := postJSON(t, srv.Handler(), "/api/messages", ingestPayload{Text: string(long), Source: "api"}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEndpointInvalidSource(t *testing.T) {
	ing := &fakeIngestor{err: apperrors.ErrInvalidInput}
	srv := newTestServer(ing, &fakeClusterReader{}, &fakeReverifier{}, nil, "")

	rec := postJSON(t, srv.Handler(), "/api/messages", ingestPayload{Text: "hello", Source: "carrier_pigeon"}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEndpointRateLimited(t *testing.T) {
	ing := &fakeIngestor{resp: ingest.Response{RateLimited: true}}
	srv := newTestServer(ing, &fakeClusterReader{}, &fakeReverifier{}, nil, "")

	rec := postJSON(t, srv.Handler(), "/api/messages", ingestPayload{Text: "hello", Source: "web_form"}, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestIngestEndpointTokenGuard(t *testing.T) {
	srv := newTestServer(&fakeIngestor{}, &fakeClusterReader{}, &fakeReverifier{}, nil, "secret")

	rec := postJSON(t, srv.Handler(), "/api/messages", ingestPayload{Text: "hello", Source: "web_form"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, srv.Handler(), "/api/messages", ingestPayload{Text: "hello", Source: "web_form"},
		map[string]string{internalTokenHeader: "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBatchEndpointKeepsPositions(t *testing.T) {
	ing := &fakeIngestor{resp: ingest.Response{MessageID: 1, IsClaim: true}}
	srv := newTestServer(ing, &fakeClusterReader{}, &fakeReverifier{}, nil, "")

	rec := postJSON(t, srv.Handler(), "/api/messages/batch", []ingestPayload{
		{Text: "first claim", Source: "web_form"},
		{Text: "second claim", Source: "web_form"},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var results []ingestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 2)
}

func TestGetClusterEndpoint(t *testing.T) {
	now := time.Now().UTC()
	verifiedAt := now

	reader := &fakeClusterReader{
		cluster: domain.Cluster{
			ID:            5,
			CanonicalText: "vaccines contain microchips",
			Topic:         "health",
			Status:        domain.StatusFalse,
			MessageCount:  4,
			FirstSeenAt:   now,
			LastSeenAt:    now,
		},
		counts: map[domain.MessageSource]int{
			domain.SourceWebForm:  3,
			domain.SourceTelegram: 1,
		},
		verdict: domain.Verdict{
			ClusterID:  5,
			Status:     domain.StatusFalse,
			Confidence: 0.9,
			ShortReply: "❌ debunked",
			VerifiedAt: &verifiedAt,
			Sources: []domain.EvidenceItem{
				{URL: "https://who.int/x", Domain: "who.int", Title: "WHO statement", Score: 1.0},
			},
		},
	}

	graph := memgraph.NewGraph(nil)
	graph.AddRelationship(5, 6, "", 1.0)

	srv := newTestServer(&fakeIngestor{}, reader, &fakeReverifier{}, graph, "")

	req := httptest.NewRequest(http.MethodGet, "/api/clusters/5", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result clusterResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, int64(5), result.ID)
	assert.Equal(t, "Health", result.TopicDisplay)
	assert.Equal(t, "FALSE", result.Status)
	require.NotNil(t, result.Verdict)
	assert.Equal(t, "FALSE", result.Verdict.Status)
	require.Len(t, result.Verdict.Sources, 1)
	assert.Equal(t, "WHO statement", result.Verdict.Sources[0].Name)
	assert.Equal(t, []int64{6}, result.RelatedClusterIDs)
	assert.Equal(t, map[string]int{"web_form": 3, "telegram": 1}, result.SightingCounts)
}

func TestGetClusterUsesPersistedEdgesWithoutGraph(t *testing.T) {
	reader := &fakeClusterReader{
		cluster: domain.Cluster{ID: 5, Topic: "general", Status: domain.StatusUnknown},
		edges: []domain.GraphEdge{
			{SourceClusterID: 5, TargetClusterID: 9, Relationship: domain.RelationshipRelated, Weight: 0.9},
			{SourceClusterID: 2, TargetClusterID: 5, Relationship: domain.RelationshipRelated, Weight: 0.6},
		},
	}

	srv := newTestServer(&fakeIngestor{}, reader, &fakeReverifier{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/clusters/5", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result clusterResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []int64{9, 2}, result.RelatedClusterIDs)
}

func TestListClustersEndpoint(t *testing.T) {
	reader := &fakeClusterReader{
		top: []domain.Cluster{
			{ID: 1, Topic: "health", Status: domain.StatusFalse, MessageCount: 12},
			{ID: 2, Topic: "general", Status: domain.StatusUnknown, MessageCount: 4},
		},
	}

	srv := newTestServer(&fakeIngestor{}, reader, &fakeReverifier{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/clusters?limit=2", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, reader.topLimit)

	var results []clusterResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, 12, results[0].MessageCount)
	assert.Equal(t, "Health", results[0].TopicDisplay)

	req = httptest.NewRequest(http.MethodGet, "/api/clusters?limit=nope", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetClusterNotFound(t *testing.T) {
	reader := &fakeClusterReader{clusterErr: apperrors.ErrClusterNotFound}
	srv := newTestServer(&fakeIngestor{}, reader, &fakeReverifier{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/clusters/99", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetClusterWithoutVerdict(t *testing.T) {
	reader := &fakeClusterReader{
		cluster:    domain.Cluster{ID: 2, Topic: "general", Status: domain.StatusUnknown},
		verdictErr: apperrors.ErrVerdictNotFound,
	}
	srv := newTestServer(&fakeIngestor{}, reader, &fakeReverifier{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/clusters/2", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result clusterResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Nil(t, result.Verdict)
}

func TestReverifyEndpoint(t *testing.T) {
	reader := &fakeClusterReader{cluster: domain.Cluster{ID: 3, Status: domain.StatusFalse}}
	rev := &fakeReverifier{verdict: domain.Verdict{ClusterID: 3, Status: domain.StatusTrue, Confidence: 0.8}}

	srv := newTestServer(&fakeIngestor{}, reader, rev, nil, "")

	rec := postJSON(t, srv.Handler(), "/api/clusters/3/verify", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, rev.calls)

	var result verdictResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "TRUE", result.Status)
}

func TestGraphPredictionsEndpoint(t *testing.T) {
	graph := memgraph.NewGraph(nil)
	graph.AddNode(4, "health")

	now := time.Now().UTC()
	graph.RecordSpike(4, now.Add(-20*24*time.Hour))
	graph.RecordSpike(4, now.Add(-10*24*time.Hour))

	srv := newTestServer(&fakeIngestor{}, &fakeClusterReader{}, &fakeReverifier{}, graph, "")

	req := httptest.NewRequest(http.MethodGet, "/api/graph/predictions", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var predictions []memgraph.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &predictions))
	require.Len(t, predictions, 1)
	assert.Equal(t, int64(4), predictions[0].ClusterID)
	assert.InDelta(t, 1.0, predictions[0].Probability, 0.05)

	req = httptest.NewRequest(http.MethodGet, "/api/graph/predictions?context=abc", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraphStatsEndpoint(t *testing.T) {
	graph := memgraph.NewGraph(nil)
	graph.AddRelationship(1, 2, "", 1.0)

	srv := newTestServer(&fakeIngestor{}, &fakeClusterReader{}, &fakeReverifier{}, graph, "")

	req := httptest.NewRequest(http.MethodGet, "/api/graph/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats memgraph.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.Edges)
}
