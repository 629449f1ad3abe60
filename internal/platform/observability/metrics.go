package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_messages_ingested_total",
		Help: "The total number of ingested messages",
	}, []string{"source"})

	MessagesRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_messages_rate_limited_total",
		Help: "The total number of messages dropped by the per-source rate limit",
	}, []string{"source"})

	ClaimsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_claims_detected_total",
		Help: "Claim detector outcomes",
	}, []string{"result"})

	ClusterAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_cluster_assignments_total",
		Help: "Cluster assignments by outcome (merged or new)",
	}, []string{"outcome"})

	VectorIndexSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claimlens_vector_index_entries",
		Help: "Number of entries currently stored in the vector index",
	})

	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_embedding_requests_total",
		Help: "Total number of embedding requests",
	}, []string{"model", "status"})

	EmbeddingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "claimlens_embedding_latency_seconds",
		Help:    "Latency of embedding requests",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_search_requests_total",
		Help: "Total number of evidence search requests",
	}, []string{"provider", "result"})

	SearchResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claimlens_search_results",
		Help:    "Distribution of search result counts per query by provider",
		Buckets: []float64{0, 1, 2, 5, 10, 20},
	}, []string{"provider"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_verifications_total",
		Help: "Total number of completed verifications by resulting status",
	}, []string{"status"})

	VerificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "claimlens_verification_duration_seconds",
		Help:    "End to end duration of a verification pass",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	AdjudicatorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_adjudicator_requests_total",
		Help: "Total number of adjudicator requests",
	}, []string{"backend", "status"})

	AdjudicatorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claimlens_adjudicator_latency_seconds",
		Help:    "Latency of adjudicator requests by backend",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"backend"})

	AdjudicatorFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimlens_adjudicator_fallbacks_total",
		Help: "Total number of adjudicator fallback events",
	}, []string{"from_backend", "to_backend"})

	AdjudicatorCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "claimlens_adjudicator_circuit_state",
		Help: "Current state of the adjudicator circuit breaker (0=closed, 1=open)",
	}, []string{"backend"})

	SpikesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claimlens_spikes_detected_total",
		Help: "Total number of sighting spikes detected",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claimlens_memory_graph_nodes",
		Help: "Number of cluster nodes in the memory graph",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claimlens_memory_graph_edges",
		Help: "Number of edges in the memory graph",
	})

	WorkerBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "claimlens_worker_batch_duration_seconds",
		Help:    "Duration of one background verification tick",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	WorkerBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claimlens_worker_backlog_size",
		Help: "Number of clusters pending verification",
	})
)
