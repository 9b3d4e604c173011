package batcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	batches [][]int
}

func (r *recorder) flush(_ context.Context, items []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, items)
	return nil
}

func (r *recorder) snapshot() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]int(nil), r.batches...)
}

func TestBatcher_FlushOnSize(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	b := New(zap.NewNop(), rec.flush, Options{Size: 3, Interval: time.Minute})
	b.Start(ctx)
	defer b.Stop()

	for i := 0; i < 5; i++ {
		if err := b.Add(ctx, i); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for len(rec.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	batches := rec.snapshot()
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Fatalf("unexpected batches: %+v", batches)
	}
}

func TestBatcher_FlushOnInterval(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var flushed atomic.Int32
	b := New(zap.NewNop(), func(_ context.Context, items []int) error {
		flushed.Add(int32(len(items)))
		return nil
	}, Options{Size: 5, Interval: 20 * time.Millisecond, RPS: 1000})
	b.Start(ctx)
	defer b.Stop()

	if err := b.Add(ctx, 1); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if flushed.Load() != 1 {
		t.Fatalf("expected flush after interval, got %d", flushed.Load())
	}
}

func TestBatcher_StopDrainsQueue(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	b := New(zap.NewNop(), rec.flush, Options{Size: 2, Interval: time.Hour})
	b.Start(context.Background())

	for i := 0; i < 3; i++ {
		if err := b.Add(context.Background(), i); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	b.Stop()

	total := 0
	for _, batch := range rec.snapshot() {
		total += len(batch)
	}
	if total != 3 {
		t.Fatalf("expected 3 flushed items after Stop, got %d", total)
	}
}

func TestBatcher_AddAfterStop(t *testing.T) {
	t.Parallel()

	b := New(zap.NewNop(), func(context.Context, []int) error { return nil }, Options{Size: 2})
	b.Start(context.Background())
	b.Stop()
	b.Stop()

	if err := b.Add(context.Background(), 1); !errors.Is(err, ErrStopped) {
		t.Fatalf("Add() error = %v, want ErrStopped", err)
	}
}

func TestBatcher_FlushErrorLoggedButContinues(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	b := New(zap.NewNop(), func(context.Context, []int) error {
		if calls.Add(1) == 1 {
			return errors.New("flush failed")
		}
		return nil
	}, Options{Size: 1, Interval: time.Minute})
	b.Start(ctx)

	for i := 0; i < 2; i++ {
		if err := b.Add(ctx, i); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	b.Stop()

	if calls.Load() != 2 {
		t.Fatalf("expected two flush attempts, got %d", calls.Load())
	}
}
