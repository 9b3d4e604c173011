// Package deferred runs work that a store operation hands off after it commits.
package deferred

import (
	"context"
	"errors"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/pkg/batcher"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/pkg/workerpool"
	"go.uber.org/zap"
)

const (
	defaultWorkers       = 4
	defaultBatchSize     = 16
	defaultFlushInterval = 500 * time.Millisecond
	defaultRPS           = 10
)

// Options tune the scheduler. Zero values use the defaults.
type Options struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	RPS           int
	// TaskTimeout bounds each task; zero means no bound.
	TaskTimeout time.Duration
}

type job struct {
	name string
	task func(context.Context) error
}

// Scheduler queues tasks and runs them in rate-limited batches on a worker
// pool. Task errors are logged and counted, never returned to the caller.
type Scheduler struct {
	logger  *zap.Logger
	metrics Metrics
	queue   *batcher.Batcher[job]
	opts    Options
}

// NewScheduler builds a Scheduler. Call Start before deferring work.
func NewScheduler(logger *zap.Logger, metrics Metrics, opts Options) (*Scheduler, error) {
	if metrics == nil {
		return nil, errors.New("scheduler metrics is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.RPS <= 0 {
		opts.RPS = defaultRPS
	}

	s := &Scheduler{
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
	s.queue = batcher.New(logger.Named("queue"), s.run, batcher.Options{
		Size:     opts.BatchSize,
		Interval: opts.FlushInterval,
		RPS:      opts.RPS,
	})
	return s, nil
}

// Start begins flushing the queue until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop runs everything still queued and returns once it has finished.
func (s *Scheduler) Stop() {
	s.queue.Stop()
}

// Defer queues task under name.
func (s *Scheduler) Defer(ctx context.Context, name string, task func(context.Context) error) error {
	err := s.queue.Add(ctx, job{name: name, task: task})
	s.metrics.ObserveQueued(name, err)
	if err != nil {
		return err
	}
	s.logger.Debug("task deferred", zap.String("task", name))
	return nil
}

func (s *Scheduler) run(ctx context.Context, jobs []job) error {
	s.metrics.ObserveBatch(len(jobs))
	return workerpool.Run(ctx, s.opts.Workers, jobs, s.exec)
}

func (s *Scheduler) exec(ctx context.Context, j job) error {
	if s.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TaskTimeout)
		defer cancel()
	}

	started := time.Now()
	err := j.task(ctx)
	s.metrics.ObserveTask(j.name, err, started)
	if err != nil {
		s.logger.Error("deferred task failed", zap.String("task", j.name), zap.Error(err))
		return err
	}
	s.logger.Debug("deferred task done", zap.String("task", j.name), zap.Duration("took", time.Since(started)))
	return nil
}
