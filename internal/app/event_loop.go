package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yourusername/vidgrab/pkg/logger"
	"go.uber.org/zap"
)

var errLoopStopped = errors.New("event loop stopped")

// EventLoop is the notification domain: a single goroutine that runs posted
// callables one at a time, in posting order. Anything touching the chat or
// pending deletion jobs runs here, so none of it needs locking.
type EventLoop struct {
	logger *zap.Logger

	mu      sync.Mutex
	pending []func(ctx context.Context)
	stopped bool

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewEventLoop creates a loop. Nothing runs until Run is called.
func NewEventLoop(log *zap.Logger) *EventLoop {
	return &EventLoop{
		logger: logger.OrNop(log),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Post schedules fn on the loop and returns immediately. It reports false
// when the loop has been stopped and fn was dropped.
func (l *EventLoop) Post(fn func(ctx context.Context)) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted callables until ctx is done or Stop is called
func (l *EventLoop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.Stop()

	for {
		for _, fn := range l.take() {
			select {
			case <-l.stop:
				return
			default:
			}
			l.invoke(ctx, fn)
		}

		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-l.wake:
		}
	}
}

// Stop ends the loop. Callables still pending are dropped, as are later posts.
func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.pending = nil
		l.mu.Unlock()
		close(l.stop)
	})
}

// Drain waits until every callable posted before the call has run. Posts
// made meanwhile may run too. It gives up when ctx is done or the loop ends.
func (l *EventLoop) Drain(ctx context.Context) error {
	reached := make(chan struct{})
	if !l.Post(func(context.Context) { close(reached) }) {
		return errLoopStopped
	}

	select {
	case <-reached:
		return nil
	case <-l.done:
		return errLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

// Len returns the number of callables waiting to run
func (l *EventLoop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *EventLoop) take() []func(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.pending
	l.pending = nil
	return batch
}

func (l *EventLoop) invoke(ctx context.Context, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Event loop callback panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn(ctx)
}
