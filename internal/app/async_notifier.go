package app

import (
	"context"
	"time"

	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/pkg/logger"
	"go.uber.org/zap"
)

// AsyncNotifier posts Notifier calls onto the event loop. Every method
// returns immediately; delivery happens later, in posting order.
type AsyncNotifier struct {
	loop     *EventLoop
	notifier domain.Notifier
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *Metrics
}

// NewAsyncNotifier creates a notifier bound to loop. Each delivery gets timeout.
func NewAsyncNotifier(loop *EventLoop, notifier domain.Notifier, timeout time.Duration, log *zap.Logger, metrics *Metrics) *AsyncNotifier {
	return &AsyncNotifier{
		loop:     loop,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger.OrNop(log),
		metrics:  metrics,
	}
}

// Progress edits the caption with a progress update. Failures are counted and dropped.
func (n *AsyncNotifier) Progress(target domain.NotificationTarget, text string) {
	n.post("progress", target, func(ctx context.Context) error {
		if err := n.notifier.EditCaption(ctx, target, text); err != nil {
			n.metrics.progress("error")
			n.logger.Debug("Progress update failed", zap.Stringer("target", target), zap.Error(err))
			return nil
		}
		n.metrics.progress("sent")
		return nil
	})
}

// EditCaption replaces the caption of the target message
func (n *AsyncNotifier) EditCaption(target domain.NotificationTarget, text string) {
	n.post("edit_caption", target, func(ctx context.Context) error {
		return n.notifier.EditCaption(ctx, target, text)
	})
}

// SendMedia sends the artifact at path as a reply to the target message
func (n *AsyncNotifier) SendMedia(target domain.NotificationTarget, path, caption string) {
	n.post("send_media", target, func(ctx context.Context) error {
		return n.notifier.SendMedia(ctx, target, path, caption)
	})
}

// SendQueuedAck marks the target message as queued
func (n *AsyncNotifier) SendQueuedAck(target domain.NotificationTarget) {
	n.post("queued_ack", target, func(ctx context.Context) error {
		return n.notifier.SendQueuedAck(ctx, target)
	})
}

func (n *AsyncNotifier) post(op string, target domain.NotificationTarget, call func(ctx context.Context) error) {
	ok := n.loop.Post(func(ctx context.Context) {
		if n.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, n.timeout)
			defer cancel()
		}
		if err := call(ctx); err != nil {
			n.logger.Warn("Notification failed",
				zap.String("op", op),
				zap.Stringer("target", target),
				zap.Error(err))
		}
	})
	if !ok {
		n.metrics.dropped()
		n.logger.Debug("Notification dropped, loop stopped",
			zap.String("op", op),
			zap.Stringer("target", target))
	}
}
