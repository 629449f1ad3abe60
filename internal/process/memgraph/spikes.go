package memgraph

import (
	"time"

	"github.com/claimlens/claimlens/internal/platform/observability"
)

// Spike detection parameters.
const (
	// SightingHistoryLimit is how many recent sightings callers should
	// load for spike detection.
	SightingHistoryLimit = 500

	spikeWindow          = 24 * time.Hour
	spikeMultiplier      = 3.0
	spikeMinHistory      = 10
	maxSpikesPerCluster  = 100
	logKeySpikeClusterID = "cluster_id"
)

// RecordSpike appends a spike timestamp for the cluster, keeping only the
// most recent entries.
func (g *Graph) RecordSpike(clusterID int64, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	spikes := append(g.spikes[clusterID], at)

	if len(spikes) > maxSpikesPerCluster {
		spikes = spikes[len(spikes)-maxSpikesPerCluster:]
	}

	g.spikes[clusterID] = spikes
}

// DetectSpike reports whether the cluster's recent sighting rate exceeds
// its historical average by the spike multiplier, and records the spike
// when it does. Clusters with fewer than ten sightings never spike.
func (g *Graph) DetectSpike(clusterID int64, seenAt []time.Time, now time.Time) bool {
	if len(seenAt) < spikeMinHistory {
		return false
	}

	windowStart := now.Add(-spikeWindow)

	recent := 0
	oldest := seenAt[0]

	for _, ts := range seenAt {
		if !ts.Before(windowStart) {
			recent++
		}

		if ts.Before(oldest) {
			oldest = ts
		}
	}

	totalHours := now.Sub(oldest).Hours()
	if totalHours < 1 {
		totalHours = 1
	}

	windows := totalHours / spikeWindow.Hours()
	if windows < 1 {
		windows = 1
	}

	avgPerWindow := float64(len(seenAt)) / windows

	if float64(recent) <= avgPerWindow*spikeMultiplier {
		return false
	}

	g.RecordSpike(clusterID, now)
	observability.SpikesDetected.Inc()

	g.getLogger().Info().
		Int64(logKeySpikeClusterID, clusterID).
		Int("recent_sightings", recent).
		Float64("avg_per_window", avgPerWindow).
		Msg("activity spike detected")

	return true
}

// spikeHistory returns a copy of the recorded spikes for a cluster.
func (g *Graph) spikeHistory(clusterID int64) []time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()

	spikes := g.spikes[clusterID]

	out := make([]time.Time, len(spikes))
	copy(out, spikes)

	return out
}
