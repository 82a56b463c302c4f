// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package harness

import (
	"context"
	"math/rand"

	"github.com/fruch/jepsen/pkg/cassprod/logger"
	"github.com/fruch/jepsen/pkg/harness/admin"
)

// ProbePolicy decides how a status probe walks its candidate list.
type ProbePolicy int

const (
	// FirstSuccess stops at the first candidate that answers.
	FirstSuccess ProbePolicy = iota
	// AccumulateAll queries every candidate and merges the answers. Joining
	// status may legitimately differ by observer, so the joining probe
	// collects all perspectives rather than trusting one.
	AccumulateAll
)

// Prober queries cluster-wide membership through the administrative
// management protocol. No single node is trusted as an oracle: candidates
// are shuffled per probe and individual query failures mean "try the next
// one", never a fatal error.
type Prober struct {
	rc     *RunContext
	client admin.Client
	l      *logger.Logger

	// shuffle is swappable in tests that need a deterministic order.
	shuffle func(n int, swap func(i, j int))
}

// NewProber returns a Prober over the run's nodes.
func NewProber(rc *RunContext, client admin.Client, l *logger.Logger) *Prober {
	return &Prober{rc: rc, client: client, l: l, shuffle: rand.Shuffle}
}

// LiveNodes returns the set of addresses some live cluster member reports
// as live. The first candidate to answer wins. If every candidate fails,
// the result is empty: degraded, not fatal.
func (p *Prober) LiveNodes(ctx context.Context) []string {
	return p.probe(ctx, p.client.LiveNodes, FirstSuccess)
}

// JoiningNodes returns the union of the joining-node sets reported by every
// candidate that answers.
func (p *Prober) JoiningNodes(ctx context.Context) []string {
	return p.probe(ctx, p.client.JoiningNodes, AccumulateAll)
}

func (p *Prober) probe(
	ctx context.Context,
	query func(ctx context.Context, addr string) ([]string, error),
	policy ProbePolicy,
) []string {
	var merged []string
	for _, addr := range p.candidates(ctx) {
		answer, err := query(ctx, addr)
		if err != nil {
			p.l.Printf("status probe of %s failed, trying next candidate: %s", addr, err)
			continue
		}
		merged = append(merged, answer...)
		if policy == FirstSuccess {
			break
		}
	}
	return p.filterEligible(ctx, dedupe(merged))
}

// candidates computes the shuffled list of addresses eligible to be queried:
// every node of the run that is not bootstrapping and whose resolved address
// is not decommissioned. Shuffling avoids hot-spotting one node as the
// oracle.
func (p *Prober) candidates(ctx context.Context) []string {
	decommissioned := p.rc.Membership.DecommissionedAddrs()

	var addrs []string
	for _, node := range p.rc.Nodes {
		if p.rc.Membership.IsBootstrapping(node) {
			continue
		}
		addr, err := p.rc.Resolve(ctx, node)
		if err != nil {
			p.l.Printf("skipping unresolvable candidate %s: %s", node, err)
			continue
		}
		if _, ok := decommissioned[addr]; ok {
			continue
		}
		addrs = append(addrs, addr)
	}

	p.shuffle(len(addrs), func(i, j int) {
		addrs[i], addrs[j] = addrs[j], addrs[i]
	})
	return addrs
}

// filterEligible removes bootstrapping and decommissioned addresses from a
// probe answer. A member's view can be stale; the tracker's view of what is
// joining or leaving wins.
func (p *Prober) filterEligible(ctx context.Context, addrs []string) []string {
	bootstrapping := make(map[string]struct{})
	for _, node := range p.rc.Nodes {
		if !p.rc.Membership.IsBootstrapping(node) {
			continue
		}
		if addr, err := p.rc.Resolve(ctx, node); err == nil {
			bootstrapping[addr] = struct{}{}
		}
	}
	decommissioned := p.rc.Membership.DecommissionedAddrs()

	filtered := addrs[:0]
	for _, addr := range addrs {
		if _, ok := bootstrapping[addr]; ok {
			continue
		}
		if _, ok := decommissioned[addr]; ok {
			continue
		}
		filtered = append(filtered, addr)
	}
	return filtered
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := addrs[:0]
	for _, addr := range addrs {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
