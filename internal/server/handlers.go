package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/claimlens/claimlens/internal/core/domain"
	apperrors "github.com/claimlens/claimlens/internal/core/errors"
	"github.com/claimlens/claimlens/internal/ingest"
	"github.com/claimlens/claimlens/internal/process/memgraph"
)

var topicCaser = cases.Title(language.English)

type metadataPayload struct {
	ChatID           string         `json:"chat_id"`
	UserID           string         `json:"user_id"`
	ReplyToMessageID string         `json:"reply_to_message_id"`
	PlatformSpecific map[string]any `json:"platform_specific"`
}

type ingestPayload struct {
	Text     string           `json:"text"`
	Source   string           `json:"source"`
	Metadata *metadataPayload `json:"metadata"`
}

type ingestResult struct {
	MessageID         int64   `json:"message_id"`
	IsClaim           bool    `json:"is_claim"`
	ClusterID         *int64  `json:"cluster_id"`
	ClusterStatus     *string `json:"cluster_status"`
	ShortReply        *string `json:"short_reply"`
	AudioURL          *string `json:"audio_url"`
	NeedsVerification bool    `json:"needs_verification"`
}

type verdictResult struct {
	Status     string          `json:"status"`
	Confidence float32         `json:"confidence"`
	ShortReply string          `json:"short_reply,omitempty"`
	LongReply  string          `json:"long_reply,omitempty"`
	VerifiedAt *time.Time      `json:"verified_at,omitempty"`
	Sources    []evidenceEntry `json:"sources,omitempty"`
}

type evidenceEntry struct {
	URL     string  `json:"url"`
	Name    string  `json:"name"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float32 `json:"score"`
}

type clusterResult struct {
	ID                int64                     `json:"id"`
	CanonicalText     string                    `json:"canonical_text"`
	Topic             string                    `json:"topic"`
	TopicDisplay      string                    `json:"topic_display"`
	Status            string                    `json:"status"`
	MessageCount      int                       `json:"message_count"`
	FirstSeenAt       time.Time                 `json:"first_seen_at"`
	LastSeenAt        time.Time                 `json:"last_seen_at"`
	Verdict           *verdictResult            `json:"verdict,omitempty"`
	SightingCounts    map[string]int            `json:"sighting_counts,omitempty"`
	RelatedClusterIDs []int64                   `json:"related_cluster_ids"`
	RelatedClusters   []memgraph.RelatedCluster `json:"related_clusters,omitempty"`
}

type errorResult struct {
	Error string `json:"error"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload ingestPayload

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	req, err := toIngestRequest(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	resp, err := s.ingestor.Ingest(r.Context(), req)
	if err != nil {
		s.respondIngestError(w, err)

		return
	}

	if resp.RateLimited {
		writeError(w, http.StatusTooManyRequests, "rate limited")

		return
	}

	writeJSON(w, http.StatusOK, toIngestResult(resp))
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var payloads []ingestPayload

	if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	reqs := make([]ingest.Request, 0, len(payloads))

	for _, payload := range payloads {
		req, err := toIngestRequest(payload)
		if err != nil {
			// Invalid entries stay in the batch; the pipeline rejects
			// them individually and the response keeps positions aligned.
			req = ingest.Request{}
		}

		reqs = append(reqs, req)
	}

	responses := s.ingestor.IngestBatch(r.Context(), reqs)

	results := make([]ingestResult, 0, len(responses))
	for _, resp := range responses {
		results = append(results, toIngestResult(resp))
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cluster id")

		return
	}

	cluster, err := s.clusters.GetCluster(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrClusterNotFound) {
			writeError(w, http.StatusNotFound, "cluster not found")

			return
		}

		s.getLogger().Error().Err(err).Int64("cluster_id", id).Msg("cluster lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	result := clusterResult{
		ID:                cluster.ID,
		CanonicalText:     cluster.CanonicalText,
		Topic:             cluster.Topic,
		TopicDisplay:      topicCaser.String(cluster.Topic),
		Status:            string(cluster.Status),
		MessageCount:      cluster.MessageCount,
		FirstSeenAt:       cluster.FirstSeenAt,
		LastSeenAt:        cluster.LastSeenAt,
		RelatedClusterIDs: []int64{},
	}

	if verdict, err := s.clusters.GetVerdictByCluster(r.Context(), id); err == nil {
		result.Verdict = toVerdictResult(verdict)
	} else if !errors.Is(err, apperrors.ErrVerdictNotFound) {
		s.getLogger().Warn().Err(err).Int64("cluster_id", id).Msg("verdict lookup failed")
	}

	if counts, err := s.clusters.SightingCounts(r.Context(), id); err != nil {
		s.getLogger().Warn().Err(err).Int64("cluster_id", id).Msg("sighting count lookup failed")
	} else if len(counts) > 0 {
		result.SightingCounts = make(map[string]int, len(counts))
		for source, n := range counts {
			result.SightingCounts[string(source)] = n
		}
	}

	if s.graph != nil {
		related := s.graph.RelatedClusters(id, memgraph.DefaultMaxDepth)

		for _, rel := range related {
			result.RelatedClusterIDs = append(result.RelatedClusterIDs, rel.ClusterID)
		}

		result.RelatedClusters = related
	} else if edges, err := s.clusters.GraphEdges(r.Context(), id); err != nil {
		s.getLogger().Warn().Err(err).Int64("cluster_id", id).Msg("graph edge lookup failed")
	} else {
		// Without the in-memory graph, related ids come from persisted edges.
		for _, edge := range edges {
			other := edge.TargetClusterID
			if other == id {
				other = edge.SourceClusterID
			}

			result.RelatedClusterIDs = append(result.RelatedClusterIDs, other)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// Cluster listing bounds.
const (
	defaultClusterListLimit = 20
	maxClusterListLimit     = 100
)

// handleListClusters returns the busiest clusters, most messages first.
func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	limit := defaultClusterListLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")

			return
		}

		limit = n
		if limit > maxClusterListLimit {
			limit = maxClusterListLimit
		}
	}

	clusters, err := s.clusters.TopClusters(r.Context(), limit)
	if err != nil {
		s.getLogger().Error().Err(err).Msg("cluster listing failed")
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	results := make([]clusterResult, 0, len(clusters))

	for _, c := range clusters {
		results = append(results, clusterResult{
			ID:                c.ID,
			CanonicalText:     c.CanonicalText,
			Topic:             c.Topic,
			TopicDisplay:      topicCaser.String(c.Topic),
			Status:            string(c.Status),
			MessageCount:      c.MessageCount,
			FirstSeenAt:       c.FirstSeenAt,
			LastSeenAt:        c.LastSeenAt,
			RelatedClusterIDs: []int64{},
		})
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleReverify(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cluster id")

		return
	}

	cluster, err := s.clusters.GetCluster(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrClusterNotFound) {
			writeError(w, http.StatusNotFound, "cluster not found")

			return
		}

		s.getLogger().Error().Err(err).Int64("cluster_id", id).Msg("cluster lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	verdict, err := s.reverifier.VerifyCluster(r.Context(), cluster)
	if err != nil {
		s.getLogger().Error().Err(err).Int64("cluster_id", id).Msg("re-verification failed")
		writeError(w, http.StatusInternalServerError, "verification failed")

		return
	}

	writeJSON(w, http.StatusOK, toVerdictResult(verdict))
}

func (s *Server) handleGraphStats(w http.ResponseWriter, _ *http.Request) {
	if s.graph == nil {
		writeJSON(w, http.StatusOK, memgraph.Stats{})

		return
	}

	writeJSON(w, http.StatusOK, s.graph.Stats())
}

// handleGraphPredictions forecasts likely re-emerging claims. The optional
// context parameter lists cluster ids currently seeing activity.
func (s *Server) handleGraphPredictions(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		writeJSON(w, http.StatusOK, []memgraph.Prediction{})

		return
	}

	var contextIDs []int64

	if raw := r.URL.Query().Get("context"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid context cluster id")

				return
			}

			contextIDs = append(contextIDs, id)
		}
	}

	predictions := s.graph.PredictReemergence(contextIDs, memgraph.DefaultPredictionLimit)
	if predictions == nil {
		predictions = []memgraph.Prediction{}
	}

	writeJSON(w, http.StatusOK, predictions)
}

func (s *Server) respondIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperrors.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	s.getLogger().Error().Err(err).Msg("ingestion failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func toIngestRequest(payload ingestPayload) (ingest.Request, error) {
	if len(payload.Text) == 0 || len([]rune(payload.Text)) > maxTextLength {
		return ingest.Request{}, errors.New("text must be between 1 and 10000 characters")
	}

	req := ingest.Request{
		Text:   payload.Text,
		Source: domain.MessageSource(payload.Source),
	}

	if payload.Metadata != nil {
		req.Meta = &domain.MessageMeta{
			ChatID:           payload.Metadata.ChatID,
			UserID:           payload.Metadata.UserID,
			ReplyToMessageID: payload.Metadata.ReplyToMessageID,
			PlatformSpecific: payload.Metadata.PlatformSpecific,
		}
	}

	return req, nil
}

func toIngestResult(resp ingest.Response) ingestResult {
	result := ingestResult{
		MessageID:         resp.MessageID,
		IsClaim:           resp.IsClaim,
		ClusterID:         resp.ClusterID,
		NeedsVerification: resp.NeedsVerification,
	}

	if resp.ClusterStatus != "" {
		status := string(resp.ClusterStatus)
		result.ClusterStatus = &status
	}

	if resp.ShortReply != "" {
		reply := resp.ShortReply
		result.ShortReply = &reply
	}

	return result
}

func toVerdictResult(verdict domain.Verdict) *verdictResult {
	result := &verdictResult{
		Status:     string(verdict.Status),
		Confidence: verdict.Confidence,
		ShortReply: verdict.ShortReply,
		LongReply:  verdict.LongReply,
		VerifiedAt: verdict.VerifiedAt,
	}

	for _, item := range verdict.Sources {
		name := item.Title
		if name == "" {
			name = item.Domain
		}

		result.Sources = append(result.Sources, evidenceEntry{
			URL:     item.URL,
			Name:    name,
			Snippet: item.Snippet,
			Score:   item.Score,
		})
	}

	return result
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResult{Error: message})
}
