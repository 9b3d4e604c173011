// Package workerpool runs a function over a list of items concurrently.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// Run calls fn for every item using up to workers goroutines. A failing item
// does not stop the others; all errors are joined. Items not yet started when
// ctx is done are skipped and ctx.Err() is included in the result.
func Run[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, len(items))

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	tasks := make(chan T)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				if err := fn(ctx, item); err != nil {
					record(err)
				}
			}
		}()
	}

dispatch:
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			record(err)
			break
		}
		select {
		case <-ctx.Done():
			record(ctx.Err())
			break dispatch
		case tasks <- item:
		}
	}
	close(tasks)
	wg.Wait()

	return errors.Join(errs...)
}
