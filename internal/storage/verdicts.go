package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/claimlens/claimlens/internal/core/domain"
	apperrors "github.com/claimlens/claimlens/internal/core/errors"
)

// evidenceRecord is the JSONB shape of one evidence item.
type evidenceRecord struct {
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	Title       string     `json:"title,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
	Score       float32    `json:"score"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	RetrievedAt time.Time  `json:"retrieved_at"`
}

// UpsertVerdict inserts or replaces the verdict for a cluster. There is
// at most one verdict per cluster.
func (db *DB) UpsertVerdict(ctx context.Context, verdict *domain.Verdict) error {
	sources, err := marshalEvidence(verdict.Sources)
	if err != nil {
		return fmt.Errorf("encode verdict sources: %w", err)
	}

	snippets, err := marshalSnippets(verdict.Snippets)
	if err != nil {
		return fmt.Errorf("encode verdict snippets: %w", err)
	}

	const query = `
		INSERT INTO verdicts (cluster_id, status, confidence_score, short_reply, long_reply, sources, evidence_snippets, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cluster_id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence_score = EXCLUDED.confidence_score,
			short_reply = EXCLUDED.short_reply,
			long_reply = EXCLUDED.long_reply,
			sources = EXCLUDED.sources,
			evidence_snippets = EXCLUDED.evidence_snippets,
			verified_at = EXCLUDED.verified_at,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	row := db.Pool.QueryRow(ctx, query,
		verdict.ClusterID,
		string(verdict.Status),
		toFloat4(verdict.Confidence),
		toText(verdict.ShortReply),
		toText(verdict.LongReply),
		sources,
		snippets,
		toTimestamptzPtr(verdict.VerifiedAt),
	)

	if err := row.Scan(&verdict.ID, &verdict.CreatedAt, &verdict.UpdatedAt); err != nil {
		return fmt.Errorf("upsert verdict for cluster %d: %w", verdict.ClusterID, err)
	}

	return nil
}

// GetVerdictByCluster loads the verdict for a cluster.
func (db *DB) GetVerdictByCluster(ctx context.Context, clusterID int64) (domain.Verdict, error) {
	const query = `
		SELECT id, cluster_id, status, confidence_score, short_reply, long_reply, sources, evidence_snippets, verified_at, created_at, updated_at
		FROM verdicts
		WHERE cluster_id = $1`

	var (
		verdict    domain.Verdict
		status     string
		confidence pgtype.Float4
		short      pgtype.Text
		long       pgtype.Text
		sources    []byte
		snippets   []byte
		verifiedAt pgtype.Timestamptz
	)

	row := db.Pool.QueryRow(ctx, query, clusterID)

	err := row.Scan(
		&verdict.ID,
		&verdict.ClusterID,
		&status,
		&confidence,
		&short,
		&long,
		&sources,
		&snippets,
		&verifiedAt,
		&verdict.CreatedAt,
		&verdict.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Verdict{}, apperrors.ErrVerdictNotFound
		}

		return domain.Verdict{}, fmt.Errorf("select verdict for cluster %d: %w", clusterID, err)
	}

	verdict.Status = domain.ParseClaimStatus(status)
	verdict.Confidence = fromFloat4(confidence)
	verdict.ShortReply = fromText(short)
	verdict.LongReply = fromText(long)
	verdict.VerifiedAt = fromTimestamptzPtr(verifiedAt)

	if verdict.Sources, err = unmarshalEvidence(sources); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode verdict sources: %w", err)
	}

	if verdict.Snippets, err = unmarshalSnippets(snippets); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode verdict snippets: %w", err)
	}

	return verdict, nil
}

// CreateVerdictIfMissing ensures a pending UNKNOWN verdict row exists for
// the cluster and returns the current verdict.
func (db *DB) CreateVerdictIfMissing(ctx context.Context, clusterID int64) (domain.Verdict, error) {
	const query = `
		INSERT INTO verdicts (cluster_id, status)
		VALUES ($1, $2)
		ON CONFLICT (cluster_id) DO NOTHING`

	if _, err := db.Pool.Exec(ctx, query, clusterID, string(domain.StatusUnknown)); err != nil {
		return domain.Verdict{}, fmt.Errorf("ensure verdict for cluster %d: %w", clusterID, err)
	}

	return db.GetVerdictByCluster(ctx, clusterID)
}

func marshalEvidence(items []domain.EvidenceItem) ([]byte, error) {
	if items == nil {
		return nil, nil
	}

	records := make([]evidenceRecord, len(items))

	for i, item := range items {
		records[i] = evidenceRecord{
			URL:         item.URL,
			Domain:      item.Domain,
			Title:       item.Title,
			Snippet:     item.Snippet,
			Score:       item.Score,
			RetrievedAt: item.RetrievedAt,
		}

		if !item.PublishedAt.IsZero() {
			published := item.PublishedAt
			records[i].PublishedAt = &published
		}
	}

	return json.Marshal(records)
}

func unmarshalEvidence(data []byte) ([]domain.EvidenceItem, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var records []evidenceRecord

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	items := make([]domain.EvidenceItem, len(records))

	for i, record := range records {
		items[i] = domain.EvidenceItem{
			URL:         record.URL,
			Domain:      record.Domain,
			Title:       record.Title,
			Snippet:     record.Snippet,
			Score:       record.Score,
			RetrievedAt: record.RetrievedAt,
		}

		if record.PublishedAt != nil {
			items[i].PublishedAt = *record.PublishedAt
		}
	}

	return items, nil
}

func marshalSnippets(snippets []string) ([]byte, error) {
	if snippets == nil {
		return nil, nil
	}

	return json.Marshal(snippets)
}

func unmarshalSnippets(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var snippets []string

	if err := json.Unmarshal(data, &snippets); err != nil {
		return nil, err
	}

	return snippets, nil
}
