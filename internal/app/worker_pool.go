package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/messages"
	"github.com/yourusername/vidgrab/pkg/logger"
	"go.uber.org/zap"
)

// PoolDeps are the collaborators a WorkerPool needs
type PoolDeps struct {
	Cache    domain.Cache
	Store    domain.ArtifactStore
	Fetcher  domain.Fetcher
	Notifier *AsyncNotifier
	Reporter *ProgressReporter
	Deleter  *DeletionScheduler
	Catalog  *messages.Catalog

	// Repo is optional; when set every task is journaled best-effort
	Repo domain.JobRepository

	Logger      *zap.Logger
	MultiLogger *logger.MultiLogger
	Metrics     *Metrics
}

// PoolConfig sizes the pool
type PoolConfig struct {
	Count     int
	Retention time.Duration
}

// WorkerPool runs queued tasks on a fixed number of goroutines. Each task is
// resolved, fetched, delivered and scheduled for deletion by one worker.
type WorkerPool struct {
	deps   PoolDeps
	config PoolConfig
	queue  *TaskQueue
	logger *zap.Logger

	mu       sync.Mutex
	running  bool
	workerWg sync.WaitGroup
}

// NewWorkerPool creates a pool. Nothing runs until Start.
func NewWorkerPool(deps PoolDeps, config PoolConfig) *WorkerPool {
	if config.Count < 1 {
		config.Count = 1
	}
	if config.Retention <= 0 {
		config.Retention = 15 * time.Minute
	}
	return &WorkerPool{
		deps:   deps,
		config: config,
		queue:  NewTaskQueue(),
		logger: logger.OrNop(deps.Logger),
	}
}

// Queue returns the pool's task queue
func (p *WorkerPool) Queue() *TaskQueue {
	return p.queue
}

// Start launches the workers. They stop once ctx is done and the queue drains.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("worker pool already running")
	}
	p.running = true

	for i := 0; i < p.config.Count; i++ {
		p.workerWg.Add(1)
		go p.worker(ctx, i)
	}

	go func() {
		<-ctx.Done()
		p.queue.Close()
	}()

	p.deps.MultiLogger.LogQueueEvent("pool_started", zap.Int("workers", p.config.Count))
	return nil
}

// Submit queues a download of the resource behind locatorKey and returns at once
func (p *WorkerPool) Submit(locatorKey string, target domain.NotificationTarget) (domain.Task, error) {
	task := domain.NewTask(locatorKey, target)

	p.journal(func(repo domain.JobRepository) error {
		return repo.Create(domain.NewJobRecord(task))
	})

	if !p.queue.Enqueue(task) {
		p.journal(func(repo domain.JobRepository) error {
			job := domain.NewJobRecord(task)
			job.MarkFailed(domain.ErrQueueClosed)
			return repo.Update(job)
		})
		return task, domain.ErrQueueClosed
	}

	p.deps.MultiLogger.LogQueueEvent("task_queued",
		zap.String("id", task.ID),
		zap.String("locator_key", locatorKey),
		zap.Stringer("target", target))
	return task, nil
}

// Close stops accepting tasks. Workers finish what is already queued.
func (p *WorkerPool) Close() {
	p.queue.Close()
}

// Wait blocks until every worker has exited
func (p *WorkerPool) Wait() {
	p.workerWg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.workerWg.Done()

	for {
		task, ok := p.queue.Dequeue()
		if !ok {
			p.logger.Debug("Worker stopped", zap.Int("worker", id))
			return
		}
		p.runTask(ctx, id, task)
	}
}

// taskRun tracks one task through the loop boundary
type taskRun struct {
	task     domain.Task
	worker   int
	started  time.Time
	job      *domain.JobRecord
	finished bool
}

// runTask is the loop boundary: nothing a task does can stop the worker
func (p *WorkerPool) runTask(ctx context.Context, worker int, task domain.Task) {
	run := &taskRun{
		task:    task,
		worker:  worker,
		started: time.Now(),
		job:     domain.NewJobRecord(task),
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked",
				zap.String("id", task.ID),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"))
			if !run.finished {
				p.discard(task.LocatorKey)
			}
			p.fail(run, fmt.Errorf("panic: %v", r))
		}
	}()

	p.deps.Metrics.taskDequeued(run.started.Sub(task.CreatedAt).Seconds())
	p.deps.MultiLogger.LogQueueEvent("task_started",
		zap.String("id", task.ID),
		zap.Int("worker", worker))
	run.job.MarkProcessing()
	p.journal(func(repo domain.JobRepository) error { return repo.Update(run.job) })

	path, err := p.process(ctx, task)
	if err != nil {
		p.fail(run, err)
		return
	}
	p.complete(run, path)
}

// process resolves, fetches and commits one task's artifact
func (p *WorkerPool) process(ctx context.Context, task domain.Task) (string, error) {
	key := task.LocatorKey

	// tasks dequeued during shutdown fail with the generic text, not "link expired"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("task cancelled before start: %w", err)
	}

	value, err := p.deps.Cache.Get(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("task cancelled during resolution: %w", ctxErr)
		}
		return "", &domain.ResolutionError{Key: key, Err: err}
	}
	if value == nil {
		return "", &domain.ResolutionError{Key: key, Err: domain.ErrLocatorExpired}
	}
	address := string(value)

	hook := p.deps.Reporter.Hook(task.Target)
	if err := p.deps.Fetcher.Fetch(ctx, address, p.deps.Store.StagingPath(key), hook.Report); err != nil {
		p.discard(key)
		return "", &domain.FetchError{Address: address, Err: err}
	}

	path, err := p.deps.Store.Commit(key)
	if err != nil {
		p.discard(key)
		return "", fmt.Errorf("failed to commit artifact: %w", err)
	}
	return path, nil
}

func (p *WorkerPool) complete(run *taskRun, path string) {
	run.finished = true
	target := run.task.Target

	// posted in this order, so the caption flips before the video arrives
	p.deps.Notifier.EditCaption(target, p.deps.Catalog.Text(messages.KeyCompleted))
	p.deps.Notifier.SendMedia(target, path, "")
	p.deps.Deleter.Schedule(run.task.LocatorKey, p.config.Retention)

	elapsed := time.Since(run.started)
	p.deps.Metrics.taskFinished(statusCompleted, elapsed.Seconds())

	p.logger.Info("Task completed",
		zap.String("id", run.task.ID),
		zap.String("path", path),
		zap.Duration("elapsed", elapsed))
	p.deps.MultiLogger.LogQueueEvent("task_completed",
		zap.String("id", run.task.ID),
		zap.String("artifact", path),
		zap.Float64("seconds", elapsed.Seconds()))

	run.job.MarkCompleted(path)
	p.journal(func(repo domain.JobRepository) error { return repo.Update(run.job) })
}

// fail sends the single failure notification for a task
func (p *WorkerPool) fail(run *taskRun, err error) {
	if run.finished {
		p.logger.Error("Task failed after completion", zap.String("id", run.task.ID), zap.Error(err))
		return
	}
	run.finished = true

	status, text := statusFailed, messages.KeyDownloadFailed
	if domain.IsResolutionError(err) {
		status, text = statusExpired, messages.KeyDownloadExpired
	}
	p.deps.Notifier.EditCaption(run.task.Target, p.deps.Catalog.Text(text))

	elapsed := time.Since(run.started)
	p.deps.Metrics.taskFinished(status, elapsed.Seconds())

	p.logger.Warn("Task failed",
		zap.String("id", run.task.ID),
		zap.String("status", status),
		zap.Error(err))
	p.deps.MultiLogger.LogQueueEvent("task_failed",
		zap.String("id", run.task.ID),
		zap.String("status", status),
		zap.Error(err))
	if status == statusFailed {
		p.deps.MultiLogger.LogAppError("Failed to process task",
			zap.String("id", run.task.ID),
			zap.Error(err))
	}

	run.job.MarkFailed(err)
	p.journal(func(repo domain.JobRepository) error { return repo.Update(run.job) })
}

func (p *WorkerPool) discard(key string) {
	if err := p.deps.Store.Discard(key); err != nil {
		p.logger.Warn("Failed to discard staged data", zap.String("key", key), zap.Error(err))
	}
}

// journal applies fn to the repository if one is configured. Errors are
// logged and never affect the task.
func (p *WorkerPool) journal(fn func(repo domain.JobRepository) error) {
	if p.deps.Repo == nil {
		return
	}
	if err := fn(p.deps.Repo); err != nil {
		p.logger.Warn("Failed to journal task", zap.Error(err))
	}
}
