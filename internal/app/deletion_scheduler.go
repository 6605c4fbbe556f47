package app

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/pkg/logger"
	"go.uber.org/zap"
)

// pendingDeletion is a deletion job with its armed timer
type pendingDeletion struct {
	job   domain.DeletionJob
	timer *clock.Timer
}

// DeletionScheduler removes artifacts after their retention window.
// All job state lives on the event loop; timers only post back onto it.
type DeletionScheduler struct {
	loop        *EventLoop
	store       domain.ArtifactStore
	clock       clock.Clock
	logger      *zap.Logger
	multiLogger *logger.MultiLogger
	metrics     *Metrics

	jobs map[string]*pendingDeletion // loop-owned
}

// NewDeletionScheduler creates a scheduler. A nil clk uses the wall clock.
func NewDeletionScheduler(loop *EventLoop, store domain.ArtifactStore, clk clock.Clock, log *zap.Logger, multiLogger *logger.MultiLogger, metrics *Metrics) *DeletionScheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &DeletionScheduler{
		loop:        loop,
		store:       store,
		clock:       clk,
		logger:      logger.OrNop(log),
		multiLogger: multiLogger,
		metrics:     metrics,
		jobs:        make(map[string]*pendingDeletion),
	}
}

// Schedule arranges for the artifact under key to be deleted after delay.
// A job already pending for key is replaced. Returns without waiting.
func (s *DeletionScheduler) Schedule(key string, delay time.Duration) bool {
	return s.loop.Post(func(context.Context) {
		if prev, ok := s.jobs[key]; ok {
			prev.timer.Stop()
		}

		p := &pendingDeletion{
			job: domain.DeletionJob{ArtifactKey: key, FireAt: s.clock.Now().Add(delay)},
		}
		p.timer = s.clock.AfterFunc(delay, func() {
			s.loop.Post(func(context.Context) { s.fire(p) })
		})
		s.jobs[key] = p

		s.logger.Debug("Deletion scheduled",
			zap.String("key", key),
			zap.Time("fire_at", p.job.FireAt))
	})
}

// fire runs on the loop when a job's timer expires
func (s *DeletionScheduler) fire(p *pendingDeletion) {
	key := p.job.ArtifactKey
	if s.jobs[key] != p {
		// replaced after the timer had already fired
		return
	}
	delete(s.jobs, key)

	err := s.store.Delete(key)
	if err != nil && !errors.Is(err, domain.ErrArtifactNotFound) {
		s.metrics.deletion("error")
		s.logger.Error("Failed to delete artifact", zap.String("key", key), zap.Error(err))
		s.multiLogger.LogAppError("Failed to delete artifact", zap.String("key", key), zap.Error(err))
		return
	}

	s.metrics.deletion("deleted")
	s.multiLogger.LogQueueEvent("artifact_deleted", zap.String("key", key))
}

// Pending returns the number of deletion jobs waiting to fire
func (s *DeletionScheduler) Pending(ctx context.Context) (int, error) {
	jobs, err := s.Jobs(ctx)
	return len(jobs), err
}

// Jobs returns a snapshot of the pending deletion jobs
func (s *DeletionScheduler) Jobs(ctx context.Context) ([]domain.DeletionJob, error) {
	result := make(chan []domain.DeletionJob, 1)
	ok := s.loop.Post(func(context.Context) {
		jobs := make([]domain.DeletionJob, 0, len(s.jobs))
		for _, p := range s.jobs {
			jobs = append(jobs, p.job)
		}
		result <- jobs
	})
	if !ok {
		return nil, errLoopStopped
	}

	select {
	case jobs := <-result:
		return jobs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
