package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/infrastructure"
	"github.com/yourusername/vidgrab/internal/messages"
	"go.uber.org/zap"
)

type notification struct {
	op     string
	target domain.NotificationTarget
	text   string
}

// fakeNotifier records deliveries in the order the loop issued them
type fakeNotifier struct {
	mu      sync.Mutex
	calls   []notification
	editErr error
}

func (n *fakeNotifier) record(op string, target domain.NotificationTarget, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{op: op, target: target, text: text})
}

func (n *fakeNotifier) EditCaption(_ context.Context, target domain.NotificationTarget, text string) error {
	n.record("edit", target, text)
	return n.editErr
}

func (n *fakeNotifier) SendMedia(_ context.Context, target domain.NotificationTarget, path, _ string) error {
	n.record("media", target, path)
	return nil
}

func (n *fakeNotifier) SendQueuedAck(_ context.Context, target domain.NotificationTarget) error {
	n.record("ack", target, "")
	return nil
}

func (n *fakeNotifier) snapshot() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.calls...)
}

func (n *fakeNotifier) filter(op, text string) []notification {
	var out []notification
	for _, c := range n.snapshot() {
		if c.op == op && (text == "" || c.text == text) {
			out = append(out, c)
		}
	}
	return out
}

// fakeCache is an in-memory domain.Cache
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.data[key], nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

// fakeFetcher writes the address into output unless behavior says otherwise
type fakeFetcher struct {
	fs       afero.Fs
	behavior func(address string, onProgress domain.ProgressFunc) error

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeFetcher) Fetch(_ context.Context, address, output string, onProgress domain.ProgressFunc) error {
	f.mu.Lock()
	f.calls[address]++
	f.mu.Unlock()

	if f.behavior != nil {
		if err := f.behavior(address, onProgress); err != nil {
			return err
		}
	}
	return afero.WriteFile(f.fs, output, []byte(address), 0644)
}

func (f *fakeFetcher) callCount() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.calls))
	for k, v := range f.calls {
		out[k] = v
	}
	return out
}

// memRepo is an in-memory domain.JobRepository
type memRepo struct {
	mu   sync.Mutex
	jobs map[string]domain.JobRecord
	err  error
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: make(map[string]domain.JobRecord)}
}

func (r *memRepo) Create(job *domain.JobRecord) error { return r.Update(job) }

func (r *memRepo) Update(job *domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) FindByID(id string) (*domain.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (r *memRepo) FindAll(filters map[string]interface{}, limit int) ([]*domain.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.JobRecord
	for _, job := range r.jobs {
		job := job
		if status, ok := filters["status"]; ok && job.Status != status {
			continue
		}
		out = append(out, &job)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) GetStats() (*domain.JobStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.JobStats{Total: int64(len(r.jobs))}
	for _, job := range r.jobs {
		switch job.Status {
		case domain.JobQueued:
			stats.Queued++
		case domain.JobProcessing:
			stats.Processing++
		case domain.JobCompleted:
			stats.Completed++
		case domain.JobFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (r *memRepo) get(id string) domain.JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// harness wires a pool with fakes around a real store on MemMapFs
type harness struct {
	fs       afero.Fs
	store    *infrastructure.FSArtifactStore
	cache    *fakeCache
	fetcher  *fakeFetcher
	notifier *fakeNotifier
	repo     *memRepo
	clock    *clock.Mock
	loop     *EventLoop
	deleter  *DeletionScheduler
	catalog  *messages.Catalog
	pool     *WorkerPool
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, workers int) *harness {
	t.Helper()

	fs := afero.NewMemMapFs()
	store, err := infrastructure.NewFSArtifactStore(fs, "/down/staging", "/down/artifacts")
	require.NoError(t, err)

	h := &harness{
		fs:       fs,
		store:    store,
		cache:    newFakeCache(),
		fetcher:  &fakeFetcher{fs: fs, calls: make(map[string]int)},
		notifier: &fakeNotifier{},
		repo:     newMemRepo(),
		clock:    clock.NewMock(),
		catalog:  messages.NewCatalog("en"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)

	log := zap.NewNop()
	h.loop = NewEventLoop(log)
	go h.loop.Run(ctx)

	async := NewAsyncNotifier(h.loop, h.notifier, time.Second, log, nil)
	reporter := NewProgressReporter(async, h.catalog, 5, log, nil)
	h.deleter = NewDeletionScheduler(h.loop, store, h.clock, log, nil, nil)

	h.pool = NewWorkerPool(PoolDeps{
		Cache:    h.cache,
		Store:    store,
		Fetcher:  h.fetcher,
		Notifier: async,
		Reporter: reporter,
		Deleter:  h.deleter,
		Catalog:  h.catalog,
		Repo:     h.repo,
		Logger:   log,
	}, PoolConfig{Count: workers, Retention: 15 * time.Minute})
	require.NoError(t, h.pool.Start(ctx))

	return h
}

func (h *harness) locator(key, address string) {
	h.cache.Set(context.Background(), key, []byte(address), time.Hour)
}

func (h *harness) pending(t *testing.T) int {
	t.Helper()
	n, err := h.deleter.Pending(context.Background())
	require.NoError(t, err)
	return n
}

var errBoom = errors.New("boom")
