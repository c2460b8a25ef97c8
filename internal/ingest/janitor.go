package ingest

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lexvault/lexvault/internal/metrics"
	"github.com/lexvault/lexvault/internal/observability"
)

// StuckDocumentStore fails documents stuck in processing past a deadline
type StuckDocumentStore interface {
	FailStuckProcessing(ctx context.Context, deadline time.Duration) (int64, error)
}

// Janitor periodically fails documents that have been in the processing
// state longer than the deadline, usually after a crash mid ingestion.
type Janitor struct {
	cron     *cron.Cron
	store    StuckDocumentStore
	deadline time.Duration
	schedule string
	logger   observability.Logger
}

// NewJanitor creates a janitor with a cron schedule like "*/5 * * * *"
func NewJanitor(store StuckDocumentStore, schedule string, deadline time.Duration, logger observability.Logger) *Janitor {
	return &Janitor{
		cron:     cron.New(),
		store:    store,
		deadline: deadline,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers and starts the cron job
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("Janitor started", map[string]interface{}{
		"schedule": j.schedule,
		"deadline": j.deadline.String(),
	})
	return nil
}

// Stop stops the cron scheduler and waits for a running job to finish
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed, err := j.store.FailStuckProcessing(ctx, j.deadline)
	if err != nil {
		j.logger.Error("Janitor sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if failed > 0 {
		metrics.StuckDocumentsFailed.Add(float64(failed))
		j.logger.Warn("Failed stuck documents", map[string]interface{}{
			"count": failed,
		})
	}
}
