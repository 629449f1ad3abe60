package verify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/platform/observability"
	"github.com/claimlens/claimlens/internal/platform/worker"
)

// Worker defaults.
const (
	defaultWorkerInterval = time.Minute
	defaultBatchSize      = 5
)

// WorkerConfig tunes the background verification loop.
type WorkerConfig struct {
	// Interval between verification ticks.
	Interval time.Duration

	// BatchSize is the number of clusters verified per tick.
	BatchSize int
}

// Worker drains the queue of UNKNOWN clusters in the background.
type Worker struct {
	service *Service
	repo    Repository
	cfg     WorkerConfig
	logger  *zerolog.Logger
}

// NewWorker creates a background verification worker.
func NewWorker(service *Service, repo Repository, cfg WorkerConfig, logger *zerolog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultWorkerInterval
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Worker{service: service, repo: repo, cfg: cfg, logger: logger}
}

// Run blocks until the context is canceled, verifying one batch per tick.
func (w *Worker) Run(ctx context.Context) error {
	return worker.TickerLoop(ctx, worker.TickerConfig{
		Name:       "verification",
		Interval:   w.cfg.Interval,
		OnTick:     w.tick,
		RunOnStart: true,
		Logger:     w.logger,
	})
}

// tick runs one batch, bounded to the tick interval so a slow batch never
// runs into the next one.
func (w *Worker) tick(ctx context.Context) {
	if err := worker.RunWithTimeout(ctx, w.cfg.Interval, w.runBatch); err != nil {
		w.getLogger().Warn().Err(err).Msg("verification batch cut short")
	}
}

// runBatch verifies one batch of pending clusters. A failing cluster is
// logged and skipped so one bad claim cannot stall the queue.
func (w *Worker) runBatch(ctx context.Context) error {
	logger := w.getLogger()
	start := time.Now()

	defer func() {
		observability.WorkerBatchDuration.Observe(time.Since(start).Seconds())
	}()

	if pending, err := w.repo.CountPendingVerification(ctx); err == nil {
		observability.WorkerBacklog.Set(float64(pending))
	} else {
		logger.Warn().Err(err).Msg("counting verification backlog failed")
	}

	clusters, err := w.repo.ClustersNeedingVerification(ctx, w.cfg.BatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("loading clusters for verification failed")

		return nil
	}

	if len(clusters) == 0 {
		return nil
	}

	logger.Debug().Int("batch_size", len(clusters)).Msg("verifying batch")

	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := w.service.VerifyCluster(ctx, cluster); err != nil {
			logger.Error().
				Err(err).
				Int64(logKeyClusterID, cluster.ID).
				Msg("cluster verification failed")
		}
	}

	return nil
}

func (w *Worker) getLogger() *zerolog.Logger {
	if w.logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return w.logger
}
