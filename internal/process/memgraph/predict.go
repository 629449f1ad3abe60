package memgraph

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Prediction parameters.
const (
	DefaultPredictionLimit = 5

	hoursPerDay       = 24
	contextBoost      = 0.3
	contextOnlyFactor = 0.4
	minLatePhaseProb  = 0.2
)

// Prediction is one re-emergence forecast.
type Prediction struct {
	ClusterID   int64   `json:"cluster_id"`
	Probability float64 `json:"probability"`
	Reason      string  `json:"reason"`
}

// PredictReemergence forecasts which clusters are likely to resurface,
// based on the spacing of their recorded spikes. Clusters related to the
// currently active context get boosted, and context neighbors with no
// spike history of their own enter with a relationship-only score.
func (g *Graph) PredictReemergence(currentContext []int64, topK int) []Prediction {
	if topK <= 0 {
		topK = DefaultPredictionLimit
	}

	now := time.Now().UTC()
	predictions := g.historyPredictions(now)

	for _, contextCluster := range currentContext {
		for _, related := range g.RelatedClusters(contextCluster, DefaultMaxDepth) {
			boosted := false

			for i, p := range predictions {
				if p.ClusterID != related.ClusterID {
					continue
				}

				predictions[i].Probability = math.Min(1.0, p.Probability+related.Score*contextBoost)
				predictions[i].Reason = p.Reason + fmt.Sprintf(" (related to active cluster %d)", contextCluster)
				boosted = true

				break
			}

			if !boosted {
				predictions = append(predictions, Prediction{
					ClusterID:   related.ClusterID,
					Probability: related.Score * contextOnlyFactor,
					Reason:      fmt.Sprintf("Related to currently active cluster %d", contextCluster),
				})
			}
		}
	}

	sort.Slice(predictions, func(i, j int) bool {
		if predictions[i].Probability != predictions[j].Probability {
			return predictions[i].Probability > predictions[j].Probability
		}

		return predictions[i].ClusterID < predictions[j].ClusterID
	})

	if len(predictions) > topK {
		predictions = predictions[:topK]
	}

	return predictions
}

// historyPredictions derives one prediction per cluster with at least two
// recorded spikes, from the ratio of time since the last spike to the
// average spike interval.
func (g *Graph) historyPredictions(now time.Time) []Prediction {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var predictions []Prediction

	for clusterID, spikes := range g.spikes {
		if len(spikes) < 2 {
			continue
		}

		var (
			intervalSum  float64
			intervalSeen int
			lastSpike    = spikes[0]
		)

		for i := 1; i < len(spikes); i++ {
			interval := spikes[i].Sub(spikes[i-1]).Hours() / hoursPerDay
			if interval > 0 {
				intervalSum += interval
				intervalSeen++
			}

			if spikes[i].After(lastSpike) {
				lastSpike = spikes[i]
			}
		}

		if intervalSeen == 0 {
			continue
		}

		avgInterval := intervalSum / float64(intervalSeen)
		daysSince := now.Sub(lastSpike).Hours() / hoursPerDay

		predictions = append(predictions, Prediction{
			ClusterID:   clusterID,
			Probability: cycleProbability(daysSince / avgInterval),
			Reason:      fmt.Sprintf("Historical pattern: avg %.0f day cycle, %.0f days since last", avgInterval, daysSince),
		})
	}

	return predictions
}

// cycleProbability maps the position in the spike cycle to a probability
// that peaks when the average interval has just elapsed and decays slowly
// afterwards.
func cycleProbability(cyclePosition float64) float64 {
	switch {
	case cyclePosition < 0.5:
		return cyclePosition * 0.5
	case cyclePosition < 1.5:
		return 0.5 + (1-math.Abs(1-cyclePosition))*0.5
	default:
		return math.Max(minLatePhaseProb, 1.0-(cyclePosition-1.5)*0.2)
	}
}
