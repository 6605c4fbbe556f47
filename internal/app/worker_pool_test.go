package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/messages"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func target(n int) domain.NotificationTarget {
	return domain.NotificationTarget{ChatID: 100, MessageID: n}
}

func TestWorkerPool_SingleWorkerCompletesInSubmissionOrder(t *testing.T) {
	h := newHarness(t, 1)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		h.locator(key, "https://cdn.example.com/"+key)
		_, err := h.pool.Submit(key, target(i))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return len(h.notifier.filter("media", "")) == 5
	}, waitFor, tick)

	completed := h.notifier.filter("edit", h.catalog.Text(messages.KeyCompleted))
	require.Len(t, completed, 5)
	for i, c := range completed {
		assert.Equal(t, i, c.target.MessageID)
	}
}

func TestWorkerPool_SuccessEditsThenSendsMedia(t *testing.T) {
	h := newHarness(t, 1)
	h.locator("abc", "https://cdn.example.com/abc")

	task, err := h.pool.Submit("abc", target(7))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.notifier.filter("media", "")) == 1
	}, waitFor, tick)

	calls := h.notifier.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, notification{op: "edit", target: target(7), text: "Download complete"}, calls[0])
	assert.Equal(t, notification{op: "media", target: target(7), text: "/down/artifacts/abc"}, calls[1])

	data, err := afero.ReadFile(h.fs, "/down/artifacts/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/abc", string(data))

	require.Eventually(t, func() bool {
		return h.repo.get(task.ID).Status == domain.JobCompleted
	}, waitFor, tick)
	assert.Equal(t, "/down/artifacts/abc", h.repo.get(task.ID).ArtifactPath)
}

func TestWorkerPool_SuccessSchedulesOneDeletionAfterRetention(t *testing.T) {
	h := newHarness(t, 1)
	h.locator("abc", "https://cdn.example.com/abc")

	_, err := h.pool.Submit("abc", target(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.pending(t) == 1 }, waitFor, tick)

	h.clock.Add(15*time.Minute - time.Second)
	time.Sleep(20 * time.Millisecond)
	exists, _ := afero.Exists(h.fs, "/down/artifacts/abc")
	assert.True(t, exists, "artifact deleted before retention elapsed")
	assert.Equal(t, 1, h.pending(t))

	h.clock.Add(time.Second)
	require.Eventually(t, func() bool {
		exists, _ := afero.Exists(h.fs, "/down/artifacts/abc")
		return !exists
	}, waitFor, tick)
	assert.Equal(t, 0, h.pending(t))
}

func TestWorkerPool_MissingLocatorFailsOnce(t *testing.T) {
	h := newHarness(t, 1)

	task, err := h.pool.Submit("gone", target(3))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.repo.get(task.ID).Status == domain.JobFailed
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return len(h.notifier.snapshot()) == 1
	}, waitFor, tick)

	calls := h.notifier.snapshot()
	assert.Equal(t, "edit", calls[0].op)
	assert.Equal(t, h.catalog.Text(messages.KeyDownloadExpired), calls[0].text)
	assert.Empty(t, h.fetcher.callCount())
	assert.Equal(t, 0, h.pending(t))
	assert.Contains(t, h.repo.get(task.ID).ErrorMessage, domain.ErrLocatorExpired.Error())
}

func TestWorkerPool_CacheFaultIsResolutionFailure(t *testing.T) {
	h := newHarness(t, 1)
	h.cache.mu.Lock()
	h.cache.err = errBoom
	h.cache.mu.Unlock()

	_, err := h.pool.Submit("abc", target(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.notifier.filter("edit", h.catalog.Text(messages.KeyDownloadExpired))) == 1
	}, waitFor, tick)
	assert.Empty(t, h.notifier.filter("media", ""))
}

func TestWorkerPool_FetchErrorFailsAndDiscardsStaging(t *testing.T) {
	h := newHarness(t, 1)
	h.locator("abc", "https://cdn.example.com/abc")
	h.fetcher.behavior = func(address string, _ domain.ProgressFunc) error {
		afero.WriteFile(h.fs, "/down/staging/abc.part", []byte("partial"), 0644)
		return errBoom
	}

	task, err := h.pool.Submit("abc", target(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.repo.get(task.ID).Status == domain.JobFailed
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return len(h.notifier.snapshot()) == 1
	}, waitFor, tick)

	assert.Equal(t, h.catalog.Text(messages.KeyDownloadFailed), h.notifier.snapshot()[0].text)
	exists, _ := afero.Exists(h.fs, "/down/staging/abc.part")
	assert.False(t, exists)
	assert.Equal(t, 0, h.pending(t))
	assert.Contains(t, h.repo.get(task.ID).ErrorMessage, "fetch failed")
}

func TestWorkerPool_PanicDoesNotStopWorker(t *testing.T) {
	h := newHarness(t, 1)
	h.locator("bad", "https://cdn.example.com/bad")
	h.locator("good", "https://cdn.example.com/good")
	h.fetcher.behavior = func(address string, _ domain.ProgressFunc) error {
		if address == "https://cdn.example.com/bad" {
			panic("fetcher exploded")
		}
		return nil
	}

	_, err := h.pool.Submit("bad", target(1))
	require.NoError(t, err)
	_, err = h.pool.Submit("good", target(2))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.notifier.filter("media", "")) == 1
	}, waitFor, tick)

	failures := h.notifier.filter("edit", h.catalog.Text(messages.KeyDownloadFailed))
	require.Len(t, failures, 1)
	assert.Equal(t, target(1), failures[0].target)
	assert.Equal(t, target(2), h.notifier.filter("media", "")[0].target)
}

func TestWorkerPool_ProgressReachesNotifier(t *testing.T) {
	h := newHarness(t, 1)
	h.locator("abc", "https://cdn.example.com/abc")
	h.fetcher.behavior = func(_ string, onProgress domain.ProgressFunc) error {
		for sec := 0; sec <= 11; sec++ {
			onProgress(domain.ProgressStatus{Elapsed: float64(sec), Percent: fmt.Sprintf("%d%%", sec*8), ETA: "00:01"})
		}
		return nil
	}

	_, err := h.pool.Submit("abc", target(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.notifier.filter("media", "")) == 1
	}, waitFor, tick)

	calls := h.notifier.snapshot()
	require.Len(t, calls, 5)
	assert.Equal(t, "Downloading (0%) -- about 00:01 left", calls[0].text)
	assert.Equal(t, "Downloading (40%) -- about 00:01 left", calls[1].text)
	assert.Equal(t, "Downloading (80%) -- about 00:01 left", calls[2].text)
	assert.Equal(t, "Download complete", calls[3].text)
	assert.Equal(t, "media", calls[4].op)
}

func TestWorkerPool_ManyProducersEachTaskOnce(t *testing.T) {
	const workers, producers, perProducer = 4, 10, 20
	h := newHarness(t, workers)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				key := fmt.Sprintf("p%d-%d", p, i)
				h.locator(key, "https://cdn.example.com/"+key)
				_, err := h.pool.Submit(key, target(p*perProducer+i))
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	total := producers * perProducer
	require.Eventually(t, func() bool {
		return len(h.notifier.filter("media", "")) == total
	}, 5*time.Second, tick)

	calls := h.fetcher.callCount()
	assert.Len(t, calls, total)
	for address, n := range calls {
		assert.Equal(t, 1, n, address)
	}
	require.Eventually(t, func() bool { return h.pending(t) == total }, waitFor, tick)
}

func TestWorkerPool_JournalErrorsDoNotAffectTasks(t *testing.T) {
	h := newHarness(t, 1)
	h.repo.mu.Lock()
	h.repo.err = errBoom
	h.repo.mu.Unlock()
	h.locator("abc", "https://cdn.example.com/abc")

	_, err := h.pool.Submit("abc", target(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.notifier.filter("media", "")) == 1
	}, waitFor, tick)
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	h := newHarness(t, 1)
	h.pool.Close()

	_, err := h.pool.Submit("abc", target(1))
	assert.ErrorIs(t, err, domain.ErrQueueClosed)

	h.pool.Wait()
}

func TestWorkerPool_StartTwice(t *testing.T) {
	h := newHarness(t, 1)
	assert.Error(t, h.pool.Start(context.Background()))
}

func TestWorkerPool_CancelledTaskGetsGenericFailure(t *testing.T) {
	h := newHarness(t, 1)
	h.locator("abc", "https://cdn.example.com/abc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := domain.NewTask("abc", target(4))
	h.pool.runTask(ctx, 0, task)

	require.Eventually(t, func() bool {
		return len(h.notifier.snapshot()) == 1
	}, waitFor, tick)

	calls := h.notifier.snapshot()
	assert.Equal(t, "edit", calls[0].op)
	assert.Equal(t, h.catalog.Text(messages.KeyDownloadFailed), calls[0].text)
	assert.Empty(t, h.fetcher.callCount())
	assert.Equal(t, 0, h.pending(t))
}
