// Package concurrency provides bounded fan-out helpers used throughout the
// source → video → page pipeline tree, layered over golang.org/x/sync's
// errgroup and weighted semaphore rather than a hand-rolled worker pool.
package concurrency

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ForEach runs fn(item) for every item in items, bounded by limit concurrent
// goroutines, and returns the first error encountered. Remaining in-flight
// calls are allowed to finish; ForEach does not cancel siblings on a single
// failure since a per-source or per-video error must not abort unrelated
// siblings (the scheduler's failure model operates at a coarser grain).
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) error {
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))
	var g errgroup.Group

	for _, item := range items {
		item := item
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			return fn(ctx, item)
		})
	}
	return g.Wait()
}

// ForEachTolerant is like ForEach but collects every error instead of
// aborting the group on the first one, matching the pipeline's
// partial-failure-tolerant semantics: one video's failure must never stop
// its siblings from running. The returned slice is nil when every call
// succeeded.
func ForEachTolerant[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) []error {
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))

	errsCh := make(chan error, len(items))
	var wg errgroup.Group
	for _, item := range items {
		item := item
		if err := sem.Acquire(ctx, 1); err != nil {
			errsCh <- err
			continue
		}
		wg.Go(func() error {
			defer sem.Release(1)
			if err := fn(ctx, item); err != nil {
				errsCh <- err
			}
			return nil
		})
	}
	_ = wg.Wait()
	close(errsCh)

	var errs []error
	for err := range errsCh {
		errs = append(errs, err)
	}
	return errs
}

// Pipeline runs a sequence of stage functions over one item, short-circuiting
// on the first stage error. It exists for readability at call sites that
// chain several dependent steps (enumerate → filter → upsert → dispatch)
// rather than nesting closures.
func Pipeline(ctx context.Context, stages ...func(context.Context) error) error {
	for _, stage := range stages {
		if err := stage(ctx); err != nil {
			return err
		}
	}
	return nil
}
