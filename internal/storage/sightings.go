package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claimlens/claimlens/internal/core/domain"
)

// RecordSighting appends one sighting of a claim cluster.
func (db *DB) RecordSighting(ctx context.Context, sighting domain.Sighting) error {
	const query = `
		INSERT INTO claim_seen (cluster_id, source, platform_chat_id, platform_user_id, seen_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := db.Pool.Exec(ctx, query,
		sighting.ClusterID,
		string(sighting.Source),
		toText(sighting.ChatID),
		toText(sighting.UserID),
		toTimestamptz(sighting.SeenAt),
	)
	if err != nil {
		return fmt.Errorf("insert sighting for cluster %d: %w", sighting.ClusterID, err)
	}

	return nil
}

// SightingTimes returns the most recent sighting timestamps for a
// cluster, newest first.
func (db *DB) SightingTimes(ctx context.Context, clusterID int64, limit int) ([]time.Time, error) {
	const query = `
		SELECT seen_at FROM claim_seen
		WHERE cluster_id = $1
		ORDER BY seen_at DESC
		LIMIT $2`

	rows, err := db.Pool.Query(ctx, query, clusterID, limit)
	if err != nil {
		return nil, fmt.Errorf("select sightings for cluster %d: %w", clusterID, err)
	}
	defer rows.Close()

	var times []time.Time

	for rows.Next() {
		var seenAt time.Time

		if err := rows.Scan(&seenAt); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}

		times = append(times, seenAt)
	}

	return times, rows.Err()
}

// SightingCounts returns per-source sighting counts for a cluster.
func (db *DB) SightingCounts(ctx context.Context, clusterID int64) (map[domain.MessageSource]int, error) {
	const query = `
		SELECT source, count(*) FROM claim_seen
		WHERE cluster_id = $1
		GROUP BY source`

	rows, err := db.Pool.Query(ctx, query, clusterID)
	if err != nil {
		return nil, fmt.Errorf("count sightings for cluster %d: %w", clusterID, err)
	}
	defer rows.Close()

	counts := make(map[domain.MessageSource]int)

	for rows.Next() {
		var (
			source string
			count  int
		)

		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan sighting count: %w", err)
		}

		counts[domain.MessageSource(source)] = count
	}

	return counts, rows.Err()
}
