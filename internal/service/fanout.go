package service

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// JoinPolicy decides how a fan-out reacts to failing tasks.
type JoinPolicy int

const (
	// FailFast cancels the remaining tasks on the first failure and returns it.
	FailFast JoinPolicy = iota
	// BestEffort runs every task to completion and returns all failures joined.
	BestEffort
)

// fanOut runs fn once per item concurrently, at most limit at a time when
// limit > 0, and returns the results indexed like items.
func fanOut[T, R any](ctx context.Context, policy JoinPolicy, limit int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	if policy == FailFast {
		g, gctx := errgroup.WithContext(ctx)
		if limit > 0 {
			g.SetLimit(limit)
		}
		for i, item := range items {
			g.Go(func() error {
				r, err := fn(gctx, item)
				if err != nil {
					return err
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, err
		}
		return results, nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			r, err := fn(ctx, item)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
