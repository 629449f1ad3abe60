// Package memgraph maintains an in-memory relationship graph over claim
// clusters, with spike tracking and re-emergence prediction. The graph is
// persisted as a JSON side file and rebuilt empty when the file is absent.
package memgraph

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/core/domain"
	"github.com/claimlens/claimlens/internal/platform/observability"
)

// DefaultMaxDepth is the traversal depth for related cluster lookups.
const DefaultMaxDepth = 2

type edgeKey struct {
	a, b int64
}

// normalizeKey orders the pair so the undirected edge has one key.
func normalizeKey(a, b int64) edgeKey {
	if a > b {
		a, b = b, a
	}

	return edgeKey{a: a, b: b}
}

type edgeData struct {
	relationship string
	weight       float64
}

// RelatedCluster is one graph neighbor with its relevance score.
type RelatedCluster struct {
	ClusterID int64   `json:"cluster_id"`
	Score     float64 `json:"score"`
}

// Stats summarizes the graph for the stats endpoint and gauges.
type Stats struct {
	Nodes             int     `json:"nodes"`
	Edges             int     `json:"edges"`
	Density           float64 `json:"density"`
	TrackedSpikes     int     `json:"tracked_spikes"`
	ClustersWithSpike int     `json:"clusters_with_spikes"`
}

// Graph is an undirected weighted graph keyed by cluster ID. Safe for
// concurrent use.
type Graph struct {
	mu     sync.RWMutex
	nodes  map[int64]string
	edges  map[edgeKey]*edgeData
	adj    map[int64]map[int64]struct{}
	spikes map[int64][]time.Time
	logger *zerolog.Logger
}

// NewGraph creates an empty graph.
func NewGraph(logger *zerolog.Logger) *Graph {
	return &Graph{
		nodes:  make(map[int64]string),
		edges:  make(map[edgeKey]*edgeData),
		adj:    make(map[int64]map[int64]struct{}),
		spikes: make(map[int64][]time.Time),
		logger: logger,
	}
}

// AddNode registers a cluster node with its topic. Re-adding an existing
// node keeps the original topic.
func (g *Graph) AddNode(clusterID int64, topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(clusterID, topic)
}

func (g *Graph) addNodeLocked(clusterID int64, topic string) {
	if _, ok := g.nodes[clusterID]; ok {
		return
	}

	g.nodes[clusterID] = topic
	g.adj[clusterID] = make(map[int64]struct{})
}

// AddRelationship adds or strengthens the undirected edge between two
// clusters. Repeated calls accumulate weight; the relationship tag of the
// first insertion wins.
func (g *Graph) AddRelationship(a, b int64, relationship string, weight float64) {
	if a == b {
		return
	}

	if relationship == "" {
		relationship = domain.RelationshipRelated
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(a, "")
	g.addNodeLocked(b, "")

	key := normalizeKey(a, b)

	if edge, ok := g.edges[key]; ok {
		edge.weight += weight
	} else {
		g.edges[key] = &edgeData{relationship: relationship, weight: weight}
	}

	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

// HasNode reports whether the cluster is present in the graph.
func (g *Graph) HasNode(clusterID int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[clusterID]

	return ok
}

// EdgeWeight returns the accumulated weight of the edge, or 0 when the
// clusters are not directly connected.
func (g *Graph) EdgeWeight(a, b int64) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if edge, ok := g.edges[normalizeKey(a, b)]; ok {
		return edge.weight
	}

	return 0
}

// RelatedClusters walks the graph breadth-first from the cluster up to
// maxDepth hops and scores each reachable neighbor as 1/(distance+1).
// Results are sorted by score descending, then cluster ID for stability.
func (g *Graph) RelatedClusters(clusterID int64, maxDepth int) []RelatedCluster {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[clusterID]; !ok {
		return nil
	}

	distances := map[int64]int{clusterID: 0}
	frontier := []int64{clusterID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []int64

		for _, node := range frontier {
			for neighbor := range g.adj[node] {
				if _, seen := distances[neighbor]; seen {
					continue
				}

				distances[neighbor] = depth
				next = append(next, neighbor)
			}
		}

		frontier = next
	}

	related := make([]RelatedCluster, 0, len(distances)-1)

	for node, distance := range distances {
		if node == clusterID {
			continue
		}

		related = append(related, RelatedCluster{
			ClusterID: node,
			Score:     1.0 / float64(distance+1),
		})
	}

	sort.Slice(related, func(i, j int) bool {
		if related[i].Score != related[j].Score {
			return related[i].Score > related[j].Score
		}

		return related[i].ClusterID < related[j].ClusterID
	})

	return related
}

// Stats computes graph statistics and refreshes the node and edge gauges.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{
		Nodes:             len(g.nodes),
		Edges:             len(g.edges),
		ClustersWithSpike: len(g.spikes),
	}

	for _, spikes := range g.spikes {
		stats.TrackedSpikes += len(spikes)
	}

	if stats.Nodes > 1 {
		possible := float64(stats.Nodes) * float64(stats.Nodes-1) / 2

		stats.Density = float64(stats.Edges) / possible
	}

	observability.GraphNodes.Set(float64(stats.Nodes))
	observability.GraphEdges.Set(float64(stats.Edges))

	return stats
}

func (g *Graph) getLogger() *zerolog.Logger {
	if g.logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return g.logger
}
