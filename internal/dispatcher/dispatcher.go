// Package dispatcher fans work out over a fixed pool of workers.
package dispatcher

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/awertt/midi-proxy/internal/queue/memory"
)

// MapFunc processes one item. ok=false drops the item from the output.
type MapFunc[T, R any] func(ctx context.Context, item T) (result R, ok bool)

type job[T any] struct {
	index int
	item  T
}

type indexed[R any] struct {
	index  int
	result R
}

// Map runs fn over items with at most workers goroutines drawing from a
// shared queue. Results are merged under a mutex and returned in input order
// once every worker has finished, so output does not depend on which worker
// completed first. Items still queued when ctx ends are skipped.
func Map[T, R any](ctx context.Context, items []T, workers int, fn MapFunc[T, R]) []R {
	if len(items) == 0 {
		return nil
	}
	workers = min(max(workers, 1), len(items))

	queue := memory.NewQueue[job[T]](len(items))
	for i, item := range items {
		// capacity equals len(items), so this never blocks.
		if err := queue.Enqueue(context.Background(), job[T]{index: i, item: item}); err != nil {
			break
		}
	}
	queue.Close()

	var (
		mu        sync.Mutex
		collected = make([]indexed[R], 0, len(items))
		g         errgroup.Group
	)
	for range workers {
		g.Go(func() error {
			for {
				j, err := queue.Dequeue(ctx)
				if err != nil {
					return nil
				}
				result, ok := fn(ctx, j.item)
				if !ok {
					continue
				}
				mu.Lock()
				collected = append(collected, indexed[R]{index: j.index, result: result})
				mu.Unlock()
			}
		})
	}
	_ = g.Wait()

	sort.Slice(collected, func(a, b int) bool {
		return collected[a].index < collected[b].index
	})
	out := make([]R, len(collected))
	for i, c := range collected {
		out[i] = c.result
	}
	return out
}
