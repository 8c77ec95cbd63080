// Package eventloop provides the single-goroutine scheduler that all
// service state mutation runs on. Background goroutines doing socket
// or CLI work hand their results back via Post, which is the single
// entry point where snapshots change and callbacks fire.
package eventloop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// CancelFunc stops a scheduled task. Calling it more than once is
// harmless; a canceled task never runs.
type CancelFunc func()

// Loop is a single-goroutine cooperative scheduler. Tasks posted from
// any goroutine run in order on the loop goroutine.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	log   *slog.Logger

	running atomic.Bool
}

// New creates an idle loop. Call Run to start processing.
func New(log *slog.Logger) *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		log:  log,
	}
}

// Run processes posted tasks until ctx is canceled. Only one Run may
// be active at a time.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		panic("eventloop: Run called twice")
	}
	defer l.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.drain()
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(task)
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("panic in event loop task", "panic", r)
		}
	}()
	task()
}

// Post enqueues fn to run on the loop goroutine. Safe to call from
// any goroutine; never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After schedules fn on the loop after d. The returned CancelFunc
// prevents the run even if the timer has already fired but the task
// has not executed yet.
func (l *Loop) After(d time.Duration, fn func()) CancelFunc {
	var canceled atomic.Bool
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			if !canceled.Load() {
				fn()
			}
		})
	})
	return func() {
		canceled.Store(true)
		t.Stop()
	}
}

// Every schedules fn on the loop at every multiple of d until
// canceled.
func (l *Loop) Every(d time.Duration, fn func()) CancelFunc {
	var canceled atomic.Bool
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.Post(func() {
					if !canceled.Load() {
						fn()
					}
				})
			}
		}
	}()
	var once sync.Once
	return func() {
		canceled.Store(true)
		once.Do(func() { close(stop) })
	}
}
