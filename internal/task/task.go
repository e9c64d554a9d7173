// Package task provides a small cancellable future.
//
// A Task runs a function on its own goroutine with a derived context.
// Callers wait for its result with Wait or select on Done, and may Cancel it
// at any time; cancellation is delivered through the context the function
// receives.
package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError is returned by Wait when the task function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// Error returns the error message
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Task is the eventual result of an asynchronous operation.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	value T
	err   error
}

// Go starts fn on a new goroutine and returns its Task. If ctx is nil it is
// treated as context.Background().
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	t := &Task[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				t.finish(*new(T), &PanicError{Value: p, Stack: debug.Stack()})
			}
		}()

		v, err := fn(ctx)
		t.finish(v, err)
	}()

	return t
}

// Resolved returns a Task that has already completed with v.
func Resolved[T any](v T) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), cancel: func() {}}
	t.finish(v, nil)
	return t
}

// Rejected returns a Task that has already failed with err.
func Rejected[T any](err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), cancel: func() {}}
	t.finish(*new(T), err)
	return t
}

func (t *Task[T]) finish(v T, err error) {
	t.once.Do(func() {
		t.value = v
		t.err = err
		close(t.done)
	})
}

// Done is closed when the task has completed.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes and returns its result.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.value, t.err
}

// WaitContext is Wait bounded by ctx. It does not cancel the task when ctx ends.
func (t *Task[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel cancels the task's context. It is safe to call more than once and
// after the task has completed.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Then starts a task that runs fn with this task's value once it succeeds.
// Cancelling the returned task also cancels t.
func Then[T, U any](t *Task[T], fn func(ctx context.Context, v T) (U, error)) *Task[U] {
	next := Go(context.Background(), func(ctx context.Context) (U, error) {
		v, err := t.WaitContext(ctx)
		if err != nil {
			// ctx ended first: propagate cancellation upstream.
			if ctx.Err() != nil {
				t.Cancel()
			}
			var zero U
			return zero, err
		}
		return fn(ctx, v)
	})
	return next
}
