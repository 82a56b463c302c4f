// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package harness orchestrates the per-node lifecycle of a database cluster
// under fault-injection testing: install, configure, guarded start, and
// convergence checks. The package reasons about distributed, partially
// observable cluster state that is concurrently mutated by the test driver's
// bootstrap and decommission operations; no single node is trusted as an
// oracle.
package harness

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"

	"github.com/fruch/jepsen/pkg/util/syncutil"
)

// RunContext is the shared, long-lived state of one test run. It owns the
// fixed node set and the membership tracker, and is passed by reference to
// every component that reads or writes cluster membership. It is never a
// package-level singleton.
type RunContext struct {
	// Nodes is the full set of node hostnames participating in the run,
	// fixed at run start.
	Nodes []string

	// Membership tracks which nodes are mid-bootstrap or mid-decommission.
	Membership *Membership

	mu       syncutil.Mutex
	resolved map[string]string

	// lookupHost is swappable in tests.
	lookupHost func(ctx context.Context, host string) ([]string, error)
}

// NewRunContext returns a RunContext for the given nodes.
func NewRunContext(nodes []string) *RunContext {
	return &RunContext{
		Nodes:      nodes,
		Membership: NewMembership(),
		resolved:   make(map[string]string),
		lookupHost: net.DefaultResolver.LookupHost,
	}
}

// Resolve maps a node hostname to its dotted address. The resolution is
// cached: a node's address is immutable for the duration of a run.
func (rc *RunContext) Resolve(ctx context.Context, node string) (string, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if addr, ok := rc.resolved[node]; ok {
		return addr, nil
	}
	addrs, err := rc.lookupHost(ctx, node)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", node)
	}
	if len(addrs) == 0 {
		return "", errors.Errorf("no addresses for %s", node)
	}
	rc.resolved[node] = addrs[0]
	return addrs[0], nil
}

// ResolveAll resolves every node in the run, in node order.
func (rc *RunContext) ResolveAll(ctx context.Context) ([]string, error) {
	addrs := make([]string, 0, len(rc.Nodes))
	for _, node := range rc.Nodes {
		addr, err := rc.Resolve(ctx, node)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
