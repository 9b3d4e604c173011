// Package batcher groups queued items into rate-limited batches.
package batcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// ErrStopped is returned by Add once Stop has been called.
var ErrStopped = errors.New("batcher stopped")

// Options tune when a batch is flushed.
type Options struct {
	// Size flushes as soon as this many items are buffered.
	Size int
	// Interval flushes a partial batch after this long.
	Interval time.Duration
	// RPS bounds flushes per second.
	RPS int
}

// Batcher buffers items and hands them to a flush function by size or interval.
// Items still queued when Stop is called are flushed before it returns.
type Batcher[T any] struct {
	logger  *zap.Logger
	flush   func(context.Context, []T) error
	items   chan T
	opts    Options
	limiter ratelimit.Limiter

	mu      sync.RWMutex
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New builds a Batcher. Zero options fall back to a batch of one, a one second
// interval and an unlimited flush rate.
func New[T any](logger *zap.Logger, flush func(context.Context, []T) error, opts Options) *Batcher[T] {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	limiter := ratelimit.NewUnlimited()
	if opts.RPS > 0 {
		limiter = ratelimit.New(opts.RPS)
	}
	return &Batcher[T]{
		logger:  logger,
		flush:   flush,
		items:   make(chan T, opts.Size*2),
		opts:    opts,
		limiter: limiter,
		stop:    make(chan struct{}),
	}
}

// Start runs the flush loop until ctx is done or Stop is called.
func (b *Batcher[T]) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop ends the flush loop after flushing everything queued.
func (b *Batcher[T]) Stop() {
	b.mu.Lock()
	if !b.stopped {
		b.stopped = true
		close(b.stop)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// Add queues item, blocking while the queue is full.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrStopped
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.items <- item:
		return nil
	}
}

func (b *Batcher[T]) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()

	buf := make([]T, 0, b.opts.Size)
	flush := func(ctx context.Context) {
		if len(buf) == 0 {
			return
		}
		b.limiter.Take()
		if err := b.flush(ctx, buf); err != nil {
			b.logger.Error("batch not flushed", zap.Int("size", len(buf)), zap.Error(err))
		} else {
			b.logger.Debug("batch flushed", zap.Int("size", len(buf)))
		}
		buf = make([]T, 0, b.opts.Size)
	}

	for {
		select {
		case <-ctx.Done():
			flush(ctx)
			return

		case <-b.stop:
			// Add holds the read lock while sending, so once stop is closed
			// nothing new can arrive and the channel can be drained.
			for {
				select {
				case item := <-b.items:
					buf = append(buf, item)
					if len(buf) >= b.opts.Size {
						flush(context.WithoutCancel(ctx))
					}
					continue
				default:
				}
				break
			}
			flush(context.WithoutCancel(ctx))
			return

		case item := <-b.items:
			buf = append(buf, item)
			if len(buf) >= b.opts.Size {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}
