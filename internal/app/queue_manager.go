package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/vidgrab/internal/domain"
)

// ErrJournalDisabled is returned by history queries when no journal is configured
var ErrJournalDisabled = errors.New("job journal disabled")

// QueueStatus is a point-in-time view of the pool
type QueueStatus struct {
	QueueDepth       int              `json:"queue_depth"`
	Workers          int              `json:"workers"`
	PendingDeletions int              `json:"pending_deletions"`
	Journal          *domain.JobStats `json:"journal,omitempty"`
}

// QueueManager is the entry point used by the bot and the HTTP API. It
// validates submissions and answers history queries from the journal.
type QueueManager struct {
	pool    *WorkerPool
	deleter *DeletionScheduler
	repo    domain.JobRepository
}

// NewQueueManager creates a new queue manager. repo may be nil.
func NewQueueManager(pool *WorkerPool, deleter *DeletionScheduler, repo domain.JobRepository) *QueueManager {
	return &QueueManager{
		pool:    pool,
		deleter: deleter,
		repo:    repo,
	}
}

// Validate checks a submission without queueing it
func (qm *QueueManager) Validate(locatorKey string, target domain.NotificationTarget) error {
	locatorKey = strings.TrimSpace(locatorKey)
	if locatorKey == "" {
		return fmt.Errorf("locator key is required")
	}
	if strings.ContainsAny(locatorKey, `/\`) || locatorKey == "." || locatorKey == ".." {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKey, locatorKey)
	}
	if target.ChatID == 0 {
		return fmt.Errorf("chat id is required")
	}
	return nil
}

// Submit validates and queues a task
func (qm *QueueManager) Submit(locatorKey string, target domain.NotificationTarget) (domain.Task, error) {
	if err := qm.Validate(locatorKey, target); err != nil {
		return domain.Task{}, err
	}
	return qm.pool.Submit(strings.TrimSpace(locatorKey), target)
}

// GetJob retrieves a journaled task by ID. Returns nil, nil when unknown.
func (qm *QueueManager) GetJob(id string) (*domain.JobRecord, error) {
	if qm.repo == nil {
		return nil, ErrJournalDisabled
	}
	return qm.repo.FindByID(id)
}

// ListJobs lists journaled tasks, newest first
func (qm *QueueManager) ListJobs(filters map[string]interface{}, limit int) ([]*domain.JobRecord, error) {
	if qm.repo == nil {
		return nil, ErrJournalDisabled
	}
	return qm.repo.FindAll(filters, limit)
}

// GetStats returns live queue figures plus journal statistics when available
func (qm *QueueManager) GetStats(ctx context.Context) (*QueueStatus, error) {
	status := &QueueStatus{
		QueueDepth: qm.pool.Queue().Len(),
		Workers:    qm.pool.config.Count,
	}

	pending, err := qm.deleter.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending deletions: %w", err)
	}
	status.PendingDeletions = pending

	if qm.repo != nil {
		stats, err := qm.repo.GetStats()
		if err != nil {
			return nil, fmt.Errorf("failed to get journal stats: %w", err)
		}
		status.Journal = stats
	}
	return status, nil
}
