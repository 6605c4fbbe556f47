package app

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/pkg/logger"
	"go.uber.org/zap"
)

// Janitor periodically removes artifacts whose deletion job was lost,
// e.g. because the process restarted inside the retention window.
type Janitor struct {
	store   domain.ArtifactStore
	maxAge  time.Duration
	cron    *cron.Cron
	logger  *zap.Logger
	metrics *Metrics
}

// NewJanitor creates a janitor sweeping on schedule (standard cron or @every)
func NewJanitor(store domain.ArtifactStore, schedule string, maxAge time.Duration, log *zap.Logger, metrics *Metrics) (*Janitor, error) {
	j := &Janitor{
		store:   store,
		maxAge:  maxAge,
		cron:    cron.New(),
		logger:  logger.OrNop(log),
		metrics: metrics,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start runs the schedule in the background
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop stops the schedule and waits for a running sweep to finish
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep removes expired artifacts once and returns how many were removed
func (j *Janitor) Sweep() int {
	removed, err := j.store.Sweep(j.maxAge)
	j.metrics.swept(removed)
	if err != nil {
		j.logger.Error("Artifact sweep failed", zap.Int("removed", removed), zap.Error(err))
		return removed
	}
	if removed > 0 {
		j.logger.Info("Swept expired artifacts", zap.Int("removed", removed))
	}
	return removed
}
