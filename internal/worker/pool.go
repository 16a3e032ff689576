// Package worker runs tasks on a fixed set of shard goroutines. Tasks that
// share a key always land on the same shard and run one at a time in
// submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("worker pool closed")

type task func()

type Pool struct {
	name   string
	shards []chan task
	log    *slog.Logger

	mu     sync.RWMutex
	closed bool
	g      errgroup.Group
}

func NewPool(name string, workers, queue int, log *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 64
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Pool{
		name:   name,
		shards: make([]chan task, workers),
		log:    log.With("pool", name),
	}
	for i := range p.shards {
		ch := make(chan task, queue)
		p.shards[i] = ch
		p.g.Go(func() error {
			for t := range ch {
				t()
			}
			return nil
		})
	}
	return p
}

func (p *Pool) shard(key string) chan task {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return p.shards[h.Sum32()%uint32(len(p.shards))]
}

// Close stops accepting tasks, drains queued ones and waits for the shards.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, ch := range p.shards {
		close(ch)
	}
	p.mu.Unlock()
	return p.g.Wait()
}

func (p *Pool) enqueue(ctx context.Context, key string, t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.shard(key) <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Future is the eventual result of a submitted task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func (f *Future[T]) resolve(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finished or ctx is done. Cancelling ctx does not
// cancel the task.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolved returns a Future that is already complete.
func Resolved[T any](v T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.resolve(v, err)
	return f
}

// Submit queues fn on the shard owning key. fn receives ctx; a panic in fn is
// reported as the task's error.
func Submit[T any](p *Pool, ctx context.Context, key string, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	err := p.enqueue(ctx, key, func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("task_panic", "key", key, "panic", r, "stack", string(debug.Stack()))
				var zero T
				v, err = zero, fmt.Errorf("%s task panicked: %v", p.name, r)
			}
			f.resolve(v, err)
		}()
		v, err = fn(ctx)
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}
	return f
}

// Do submits fn and waits for it.
func Do[T any](p *Pool, ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	return Submit(p, ctx, key, fn).Wait(ctx)
}
