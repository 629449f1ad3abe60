package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/claimlens/claimlens/internal/core/domain"
	apperrors "github.com/claimlens/claimlens/internal/core/errors"
)

const clusterColumns = "id, canonical_text, topic, status, message_count, centroid_embedding, first_seen_at, last_seen_at"

// CreateCluster inserts a cluster and fills its ID.
func (db *DB) CreateCluster(ctx context.Context, cluster *domain.Cluster) error {
	const query = `
		INSERT INTO claim_clusters (canonical_text, topic, status, message_count, centroid_embedding, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, first_seen_at, last_seen_at`

	row := db.Pool.QueryRow(ctx, query,
		SanitizeUTF8(cluster.CanonicalText),
		toText(cluster.Topic),
		string(cluster.Status),
		cluster.MessageCount,
		toVector(cluster.Centroid),
		toTimestamptz(cluster.FirstSeenAt),
		toTimestamptz(cluster.LastSeenAt),
	)

	if err := row.Scan(&cluster.ID, &cluster.FirstSeenAt, &cluster.LastSeenAt); err != nil {
		return fmt.Errorf("insert cluster: %w", err)
	}

	return nil
}

// GetCluster loads one cluster by ID.
func (db *DB) GetCluster(ctx context.Context, id int64) (domain.Cluster, error) {
	query := fmt.Sprintf("SELECT %s FROM claim_clusters WHERE id = $1", clusterColumns)

	cluster, err := scanCluster(db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cluster{}, apperrors.ErrClusterNotFound
		}

		return domain.Cluster{}, fmt.Errorf("select cluster %d: %w", id, err)
	}

	return cluster, nil
}

// UpdateClusterCentroid stores a recomputed centroid along with the new
// message count and last-seen time.
func (db *DB) UpdateClusterCentroid(ctx context.Context, id int64, centroid []float32, messageCount int, lastSeenAt time.Time) error {
	const query = `
		UPDATE claim_clusters
		SET centroid_embedding = $2, message_count = $3, last_seen_at = $4
		WHERE id = $1`

	if _, err := db.Pool.Exec(ctx, query, id, toVector(centroid), messageCount, toTimestamptz(lastSeenAt)); err != nil {
		return fmt.Errorf("update cluster %d centroid: %w", id, err)
	}

	return nil
}

// UpdateClusterSpan widens the first/last seen window of a cluster.
func (db *DB) UpdateClusterSpan(ctx context.Context, id int64, firstSeenAt, lastSeenAt time.Time) error {
	const query = `
		UPDATE claim_clusters
		SET first_seen_at = $2, last_seen_at = $3
		WHERE id = $1`

	if _, err := db.Pool.Exec(ctx, query, id, toTimestamptz(firstSeenAt), toTimestamptz(lastSeenAt)); err != nil {
		return fmt.Errorf("update cluster %d span: %w", id, err)
	}

	return nil
}

// UpdateClusterStatus sets the verification status of a cluster.
func (db *DB) UpdateClusterStatus(ctx context.Context, id int64, status domain.ClaimStatus) error {
	const query = `UPDATE claim_clusters SET status = $2 WHERE id = $1`

	if _, err := db.Pool.Exec(ctx, query, id, string(status)); err != nil {
		return fmt.Errorf("update cluster %d status: %w", id, err)
	}

	return nil
}

// ReassignMessages moves every message from one cluster to another.
func (db *DB) ReassignMessages(ctx context.Context, fromClusterID, toClusterID int64) error {
	const query = `UPDATE messages SET cluster_id = $2 WHERE cluster_id = $1`

	if _, err := db.Pool.Exec(ctx, query, fromClusterID, toClusterID); err != nil {
		return fmt.Errorf("reassign messages from cluster %d: %w", fromClusterID, err)
	}

	return nil
}

// DeleteCluster removes a cluster. Verdicts and sightings cascade.
func (db *DB) DeleteCluster(ctx context.Context, id int64) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM claim_clusters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete cluster %d: %w", id, err)
	}

	return nil
}

// MessageEmbeddings returns the stored embeddings of a cluster's messages.
func (db *DB) MessageEmbeddings(ctx context.Context, clusterID int64) ([][]float32, error) {
	const query = `SELECT embedding FROM messages WHERE cluster_id = $1 AND embedding IS NOT NULL`

	rows, err := db.Pool.Query(ctx, query, clusterID)
	if err != nil {
		return nil, fmt.Errorf("select cluster %d embeddings: %w", clusterID, err)
	}
	defer rows.Close()

	var embeddings [][]float32

	for rows.Next() {
		var vec pgvector.Vector

		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}

		embeddings = append(embeddings, vec.Slice())
	}

	return embeddings, rows.Err()
}

// ClustersNeedingVerification returns UNKNOWN clusters, oldest last seen
// first, so stale claims are verified before fresh ones.
func (db *DB) ClustersNeedingVerification(ctx context.Context, limit int) ([]domain.Cluster, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM claim_clusters
		WHERE status = $1
		ORDER BY last_seen_at ASC
		LIMIT $2`, clusterColumns)

	return db.queryClusters(ctx, query, string(domain.StatusUnknown), limit)
}

// CountPendingVerification counts clusters still awaiting a verdict.
func (db *DB) CountPendingVerification(ctx context.Context) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM claim_clusters WHERE status = $1`, string(domain.StatusUnknown)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending clusters: %w", err)
	}

	return count, nil
}

// AllClusters streams every cluster, used to rebuild the vector index at
// startup.
func (db *DB) AllClusters(ctx context.Context) ([]domain.Cluster, error) {
	query := fmt.Sprintf("SELECT %s FROM claim_clusters ORDER BY id", clusterColumns)

	return db.queryClusters(ctx, query)
}

// TopClusters lists clusters by message count for the stats surface.
func (db *DB) TopClusters(ctx context.Context, limit int) ([]domain.Cluster, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM claim_clusters
		ORDER BY message_count DESC, last_seen_at DESC
		LIMIT $1`, clusterColumns)

	return db.queryClusters(ctx, query, limit)
}

func (db *DB) queryClusters(ctx context.Context, query string, args ...any) ([]domain.Cluster, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select clusters: %w", err)
	}
	defer rows.Close()

	var clusters []domain.Cluster

	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}

		clusters = append(clusters, cluster)
	}

	return clusters, rows.Err()
}

func scanCluster(row pgx.Row) (domain.Cluster, error) {
	var (
		cluster  domain.Cluster
		topic    pgtype.Text
		status   string
		centroid *pgvector.Vector
		first    pgtype.Timestamptz
		last     pgtype.Timestamptz
	)

	err := row.Scan(
		&cluster.ID,
		&cluster.CanonicalText,
		&topic,
		&status,
		&cluster.MessageCount,
		&centroid,
		&first,
		&last,
	)
	if err != nil {
		return domain.Cluster{}, err
	}

	cluster.Topic = fromText(topic)
	cluster.Status = domain.ParseClaimStatus(status)
	cluster.Centroid = fromVector(centroid)
	cluster.FirstSeenAt = fromTimestamptz(first)
	cluster.LastSeenAt = fromTimestamptz(last)

	return cluster, nil
}
