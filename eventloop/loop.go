// Package eventloop runs callbacks one at a time on a single goroutine.
//
// Everything that touches the live page tree is posted here: click handlers,
// readiness polls and fetch completions. A callback always runs to
// completion before the next one starts.
package eventloop

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrStopped is returned by Do when the loop is no longer running.
var ErrStopped = errors.New("eventloop: stopped")

// Timer is a pending delayed callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// callback was still pending.
	Stop() bool
}

// Scheduler queues callbacks for serialized execution.
type Scheduler interface {
	Post(fn func())
	After(d time.Duration, fn func()) Timer
	Now() time.Time
}

// Loop is the real Scheduler backed by one goroutine.
type Loop struct {
	logger *log.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	running bool
	done    chan struct{}
}

// New creates a Loop. Call Run to start processing.
func New(logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn. It never blocks and may be called from any goroutine,
// including from inside a running callback.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After posts fn once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

func (l *Loop) Now() time.Time { return time.Now() }

// Do posts fn and waits until it has run or ctx is done.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Run processes callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("eventloop: already running")
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.invoke(fn)
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("LOOP callback panic: %v", r)
		}
	}()
	fn()
}
