package app

import (
	"fmt"
	"math"

	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/messages"
	"github.com/yourusername/vidgrab/pkg/logger"
	"go.uber.org/zap"
)

// ProgressReporter turns fetcher progress samples into throttled chat updates
type ProgressReporter struct {
	notifier *AsyncNotifier
	catalog  *messages.Catalog
	every    int
	logger   *zap.Logger
	metrics  *Metrics
}

// NewProgressReporter creates a reporter emitting on every `every`-th second
// of elapsed download time
func NewProgressReporter(notifier *AsyncNotifier, catalog *messages.Catalog, every int, log *zap.Logger, metrics *Metrics) *ProgressReporter {
	if every < 1 {
		every = 1
	}
	return &ProgressReporter{
		notifier: notifier,
		catalog:  catalog,
		every:    every,
		logger:   logger.OrNop(log),
		metrics:  metrics,
	}
}

// Hook returns the progress callback state for one task
func (r *ProgressReporter) Hook(target domain.NotificationTarget) *ProgressHook {
	return &ProgressHook{reporter: r, target: target}
}

// ProgressHook is owned by a single worker for the duration of one fetch
type ProgressHook struct {
	reporter     *ProgressReporter
	target       domain.NotificationTarget
	lastReported int
	reported     bool
}

// Report handles one progress sample. It emits when the whole elapsed second
// is a multiple of the interval and not older than the last emitted one;
// several samples within the same qualifying second may each emit.
// It never returns an error and never panics.
func (h *ProgressHook) Report(status domain.ProgressStatus) {
	defer func() {
		if r := recover(); r != nil {
			h.reporter.metrics.progress("error")
			h.reporter.logger.Debug("Progress report panicked",
				zap.Stringer("target", h.target),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if math.IsNaN(status.Elapsed) || math.IsInf(status.Elapsed, 0) || status.Elapsed < 0 {
		return
	}
	sec := int(math.Floor(status.Elapsed))
	if sec%h.reporter.every != 0 {
		return
	}
	if h.reported && sec < h.lastReported {
		return
	}
	h.lastReported = sec
	h.reported = true

	text := h.reporter.catalog.Format(messages.KeyProgress, map[string]interface{}{
		"Percent": status.Percent,
		"ETA":     status.ETA,
	})
	h.reporter.notifier.Progress(h.target, text)
}

// LastReported returns the last emitted second and whether anything was emitted
func (h *ProgressHook) LastReported() (int, bool) {
	return h.lastReported, h.reported
}
