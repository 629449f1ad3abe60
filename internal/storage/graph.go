package storage

import (
	"context"
	"fmt"

	"github.com/claimlens/claimlens/internal/core/domain"
)

// UpsertGraphEdge inserts or strengthens a memory graph edge. The pair is
// stored with the smaller cluster ID first so the undirected edge maps to
// one row; repeated upserts accumulate weight.
func (db *DB) UpsertGraphEdge(ctx context.Context, edge domain.GraphEdge) error {
	relationship := edge.Relationship
	if relationship == "" {
		relationship = domain.RelationshipRelated
	}

	const query = `
		INSERT INTO memory_graph_edges (source_cluster_id, target_cluster_id, relationship_type, weight)
		VALUES (LEAST($1::bigint, $2::bigint), GREATEST($1::bigint, $2::bigint), $3, $4)
		ON CONFLICT (source_cluster_id, target_cluster_id) DO UPDATE SET
			weight = memory_graph_edges.weight + EXCLUDED.weight,
			updated_at = now()`

	_, err := db.Pool.Exec(ctx, query, edge.SourceClusterID, edge.TargetClusterID, relationship, edge.Weight)
	if err != nil {
		return fmt.Errorf("upsert graph edge %d-%d: %w", edge.SourceClusterID, edge.TargetClusterID, err)
	}

	return nil
}

// GraphEdges returns the stored edges touching a cluster, strongest first.
func (db *DB) GraphEdges(ctx context.Context, clusterID int64) ([]domain.GraphEdge, error) {
	const query = `
		SELECT source_cluster_id, target_cluster_id, relationship_type, weight
		FROM memory_graph_edges
		WHERE source_cluster_id = $1 OR target_cluster_id = $1
		ORDER BY weight DESC`

	rows, err := db.Pool.Query(ctx, query, clusterID)
	if err != nil {
		return nil, fmt.Errorf("select graph edges for cluster %d: %w", clusterID, err)
	}
	defer rows.Close()

	var edges []domain.GraphEdge

	for rows.Next() {
		var edge domain.GraphEdge

		if err := rows.Scan(&edge.SourceClusterID, &edge.TargetClusterID, &edge.Relationship, &edge.Weight); err != nil {
			return nil, fmt.Errorf("scan graph edge: %w", err)
		}

		edges = append(edges, edge)
	}

	return edges, rows.Err()
}

// AllGraphEdges streams every stored edge, used to rebuild the in-memory
// graph when the JSON side file is missing.
func (db *DB) AllGraphEdges(ctx context.Context) ([]domain.GraphEdge, error) {
	const query = `
		SELECT source_cluster_id, target_cluster_id, relationship_type, weight
		FROM memory_graph_edges`

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select graph edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.GraphEdge

	for rows.Next() {
		var edge domain.GraphEdge

		if err := rows.Scan(&edge.SourceClusterID, &edge.TargetClusterID, &edge.Relationship, &edge.Weight); err != nil {
			return nil, fmt.Errorf("scan graph edge: %w", err)
		}

		edges = append(edges, edge)
	}

	return edges, rows.Err()
}
