// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package install

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/fruch/jepsen/pkg/cassprod/config"
	"github.com/fruch/jepsen/pkg/cassprod/logger"
)

// ParallelResult is the outcome of fn for one node.
type ParallelResult[N any] struct {
	// Index is the position in which the node was passed to Parallel, so
	// results keep the input order.
	Index int
	Node  N
	Err   error
}

// ParallelOptions configures Parallel / ParallelE.
type ParallelOptions struct {
	concurrency int
	display     string
	// waitOnFail makes ParallelE wait for all nodes to finish when a node
	// fails. The default is to cancel the remaining nodes on first error.
	waitOnFail bool
}

// ParallelOption is a functional option for Parallel.
type ParallelOption func(*ParallelOptions)

// WithConcurrency bounds how many nodes run at once. Zero means one task
// per node, capped by config.MaxConcurrency.
func WithConcurrency(concurrency int) ParallelOption {
	return func(o *ParallelOptions) {
		o.concurrency = concurrency
	}
}

// WithDisplay sets a progress label logged as nodes complete.
func WithDisplay(display string) ParallelOption {
	return func(o *ParallelOptions) {
		o.display = display
	}
}

// WithWaitOnFail waits for every node instead of cancelling on first error.
func WithWaitOnFail() ParallelOption {
	return func(o *ParallelOptions) {
		o.waitOnFail = true
	}
}

// ParallelE runs fn once per node, at most `concurrency` at a time, and
// returns the per-node results in input order along with a flag indicating
// whether any node failed. Unless WithWaitOnFail is given, the first failure
// cancels the context handed to the remaining invocations.
func ParallelE[N any](
	ctx context.Context,
	l *logger.Logger,
	nodes []N,
	fn func(ctx context.Context, node N) error,
	opts ...ParallelOption,
) ([]ParallelResult[N], bool) {
	var options ParallelOptions
	for _, opt := range opts {
		opt(&options)
	}

	count := len(nodes)
	if options.concurrency == 0 || options.concurrency > count {
		options.concurrency = count
	}
	if config.MaxConcurrency > 0 && options.concurrency > config.MaxConcurrency {
		options.concurrency = config.MaxConcurrency
	}

	groupCtx, groupCancel := context.WithCancel(ctx)
	defer groupCancel()

	results := make([]ParallelResult[N], count)
	sem := make(chan struct{}, options.concurrency)
	var hasError bool
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := range nodes {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer func() {
				<-sem
				wg.Done()
			}()
			err := fn(groupCtx, nodes[i])

			mu.Lock()
			results[i] = ParallelResult[N]{Index: i, Node: nodes[i], Err: err}
			if err != nil {
				hasError = true
				if !options.waitOnFail {
					groupCancel()
				}
			}
			mu.Unlock()

			if options.display != "" {
				if err != nil {
					l.Errorf("%s: %d/%d failed: %s", options.display, i+1, count, err)
				} else if !config.Quiet {
					l.Printf("%s: %d/%d done", options.display, i+1, count)
				}
			}
		}(i)
	}
	wg.Wait()

	return results, hasError
}

// Parallel runs fn across the nodes and combines any per-node failures into
// a single error.
func Parallel[N any](
	ctx context.Context,
	l *logger.Logger,
	nodes []N,
	fn func(ctx context.Context, node N) error,
	opts ...ParallelOption,
) error {
	results, hasError := ParallelE(ctx, l, nodes, fn, opts...)
	if !hasError {
		return nil
	}
	var err error
	for _, r := range results {
		if r.Err != nil {
			err = errors.CombineErrors(err, errors.Wrapf(r.Err, "node %v", r.Node))
		}
	}
	return errors.Wrap(err, "one or more parallel execution failure(s)")
}
