package memgraph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrBadGraphFile marks a graph side file that could not be decoded.
// Callers should log it and continue with an empty graph.
var ErrBadGraphFile = errors.New("malformed graph file")

type persistedNode struct {
	ID    int64  `json:"id"`
	Topic string `json:"topic,omitempty"`
}

type persistedEdge struct {
	Source       int64   `json:"source"`
	Target       int64   `json:"target"`
	Relationship string  `json:"relationship"`
	Weight       float64 `json:"weight"`
}

type persistedGraph struct {
	Nodes        []persistedNode        `json:"nodes"`
	Edges        []persistedEdge        `json:"edges"`
	SpikeHistory map[string][]time.Time `json:"spike_history"`
	SavedAt      time.Time              `json:"saved_at"`
}

// LoadFile reads the graph state from path into g, replacing its current
// contents. A missing file leaves g empty and returns nil.
func (g *Graph) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("read graph file: %w", err)
	}

	var stored persistedGraph

	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("%w: %s", ErrBadGraphFile, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[int64]string, len(stored.Nodes))
	g.edges = make(map[edgeKey]*edgeData, len(stored.Edges))
	g.adj = make(map[int64]map[int64]struct{}, len(stored.Nodes))
	g.spikes = make(map[int64][]time.Time, len(stored.SpikeHistory))

	for _, node := range stored.Nodes {
		g.addNodeLocked(node.ID, node.Topic)
	}

	for _, edge := range stored.Edges {
		g.addNodeLocked(edge.Source, "")
		g.addNodeLocked(edge.Target, "")

		g.edges[normalizeKey(edge.Source, edge.Target)] = &edgeData{
			relationship: edge.Relationship,
			weight:       edge.Weight,
		}

		g.adj[edge.Source][edge.Target] = struct{}{}
		g.adj[edge.Target][edge.Source] = struct{}{}
	}

	for key, timestamps := range stored.SpikeHistory {
		clusterID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}

		g.spikes[clusterID] = timestamps
	}

	return nil
}

// SaveFile writes the graph state to path atomically via a temp file.
func (g *Graph) SaveFile(path string) error {
	g.mu.RLock()

	stored := persistedGraph{
		Nodes:        make([]persistedNode, 0, len(g.nodes)),
		Edges:        make([]persistedEdge, 0, len(g.edges)),
		SpikeHistory: make(map[string][]time.Time, len(g.spikes)),
		SavedAt:      time.Now().UTC(),
	}

	for id, topic := range g.nodes {
		stored.Nodes = append(stored.Nodes, persistedNode{ID: id, Topic: topic})
	}

	for key, edge := range g.edges {
		stored.Edges = append(stored.Edges, persistedEdge{
			Source:       key.a,
			Target:       key.b,
			Relationship: edge.relationship,
			Weight:       edge.weight,
		})
	}

	for clusterID, timestamps := range g.spikes {
		stored.SpikeHistory[strconv.FormatInt(clusterID, 10)] = timestamps
	}

	g.mu.RUnlock()

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create graph dir: %w", err)
	}

	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write graph file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace graph file: %w", err)
	}

	return nil
}
