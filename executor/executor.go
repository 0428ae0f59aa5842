// Package executor provides a single-goroutine task runner with a
// bounded input queue. Each playout component owns one Executor, which
// serializes every mutation of the component's state; enqueueing into a
// full queue blocks, which is how back-pressure propagates upstream.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/xaionaro-go/avmixer/logger"
	"github.com/xaionaro-go/observability"
)

var (
	ErrNotRunning = errors.New("the executor is not running")
	ErrCleared    = errors.New("the task was cleared before execution")
)

type Task func(context.Context)

type item struct {
	fn   Task
	done chan error
}

type Executor struct {
	name string

	tasks    chan item
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates an Executor with the given input queue capacity and
// starts its worker goroutine.
func New(
	ctx context.Context,
	name string,
	capacity int,
) *Executor {
	logger.Debugf(ctx, "New(%s, %d)", name, capacity)
	if capacity < 1 {
		capacity = 1
	}
	e := &Executor{
		name:     name,
		tasks:    make(chan item, capacity),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	observability.Go(ctx, func(ctx context.Context) {
		e.worker(ctx)
	})
	return e
}

func (e *Executor) worker(ctx context.Context) {
	defer close(e.doneChan)
	for {
		select {
		case <-e.stopChan:
			e.drain()
			return
		default:
		}
		select {
		case <-e.stopChan:
			e.drain()
			return
		case it := <-e.tasks:
			e.runTask(ctx, it)
		}
	}
}

func (e *Executor) runTask(ctx context.Context, it item) {
	var err error
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("got panic in executor '%s': %v", e.name, r)
			logger.Errorf(ctx, "%v:\n%s\n", err, debug.Stack())
		}()
		it.fn(ctx)
	}()
	if it.done != nil {
		it.done <- err
	}
}

// BeginInvoke enqueues a task without waiting for it to execute. It
// blocks while the input queue is full.
func (e *Executor) BeginInvoke(ctx context.Context, fn Task) error {
	return e.enqueue(ctx, item{fn: fn})
}

// Invoke enqueues a task and waits until it has been executed (or
// cleared away). The blocking semantic makes it safe for the task
// closure to borrow references owned by the caller.
func (e *Executor) Invoke(ctx context.Context, fn Task) error {
	done := make(chan error, 1)
	if err := e.enqueue(ctx, item{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) enqueue(ctx context.Context, it item) error {
	if e.IsClosed() {
		return ErrNotRunning
	}
	select {
	case e.tasks <- it:
		if e.IsClosed() {
			// the worker may already be gone; make sure the task
			// does not sit in the queue forever
			e.drain()
		}
		return nil
	case <-e.stopChan:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear removes every pending task from the input queue. Tasks waited
// upon via Invoke are released with ErrCleared.
func (e *Executor) Clear(ctx context.Context) {
	logger.Debugf(ctx, "Clear(%s)", e.name)
	e.drain()
}

func (e *Executor) drain() {
	for {
		select {
		case it := <-e.tasks:
			if it.done != nil {
				it.done <- ErrCleared
			}
		default:
			return
		}
	}
}

// Stop clears pending tasks and halts the worker. The in-flight task,
// if any, runs to completion. Stop is idempotent.
func (e *Executor) Stop(ctx context.Context) {
	logger.Debugf(ctx, "Stop(%s)", e.name)
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	e.drain()
}

// WaitStopped blocks until the worker goroutine has exited.
func (e *Executor) WaitStopped(ctx context.Context) error {
	select {
	case <-e.doneChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) IsClosed() bool {
	select {
	case <-e.stopChan:
		return true
	default:
		return false
	}
}

// IsRunning reports whether the executor still accepts and runs tasks.
func (e *Executor) IsRunning() bool {
	return !e.IsClosed()
}

func (e *Executor) Size() int {
	return len(e.tasks)
}

func (e *Executor) Capacity() int {
	return cap(e.tasks)
}

func (e *Executor) String() string {
	return fmt.Sprintf("Executor(%s)", e.name)
}
