// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package harness

import "github.com/fruch/jepsen/pkg/util/syncutil"

// Membership is the process-wide record of nodes currently bootstrapping or
// decommissioning. It is mutated concurrently by the test driver's
// bootstrap/decommission operations and read by guarded start and the status
// prober; every operation is atomic, so eligibility is never evaluated
// against a partially updated set.
type Membership struct {
	bootstrapping syncutil.Set[string]

	decommissioned struct {
		mu syncutil.RWMutex
		// byAddr maps a resolved address to the node identifier that is
		// being decommissioned at that address.
		byAddr map[string]string
	}
}

// NewMembership returns an empty Membership.
func NewMembership() *Membership {
	m := &Membership{}
	m.decommissioned.byAddr = make(map[string]string)
	return m
}

// MarkBootstrapping records that the node has begun joining the cluster.
func (m *Membership) MarkBootstrapping(node string) {
	m.bootstrapping.Add(node)
}

// ClearBootstrapping records that the node has finished (or abandoned) its
// join.
func (m *Membership) ClearBootstrapping(node string) {
	m.bootstrapping.Remove(node)
}

// IsBootstrapping reports whether the node is mid-join.
func (m *Membership) IsBootstrapping(node string) bool {
	return m.bootstrapping.Contains(node)
}

// MarkDecommissioning records that the node, reachable at the given resolved
// address, has begun leaving the cluster. Re-marking a node replaces its
// recorded address in the same critical section, so readers never observe a
// node holding two addresses.
func (m *Membership) MarkDecommissioning(node, addr string) {
	m.decommissioned.mu.Lock()
	defer m.decommissioned.mu.Unlock()
	for a, n := range m.decommissioned.byAddr {
		if n == node {
			delete(m.decommissioned.byAddr, a)
		}
	}
	m.decommissioned.byAddr[addr] = node
}

// ClearDecommissioning removes the node's decommission record, if any.
func (m *Membership) ClearDecommissioning(node string) {
	m.decommissioned.mu.Lock()
	defer m.decommissioned.mu.Unlock()
	for addr, n := range m.decommissioned.byAddr {
		if n == node {
			delete(m.decommissioned.byAddr, addr)
		}
	}
}

// DecommissionedAddrOf returns the resolved address the node is being
// decommissioned at, if it is being decommissioned.
func (m *Membership) DecommissionedAddrOf(node string) (string, bool) {
	m.decommissioned.mu.RLock()
	defer m.decommissioned.mu.RUnlock()
	for addr, n := range m.decommissioned.byAddr {
		if n == node {
			return addr, true
		}
	}
	return "", false
}

// IsDecommissionedAddr reports whether the resolved address belongs to a
// decommissioning node.
func (m *Membership) IsDecommissionedAddr(addr string) bool {
	m.decommissioned.mu.RLock()
	defer m.decommissioned.mu.RUnlock()
	_, ok := m.decommissioned.byAddr[addr]
	return ok
}

// DecommissionedAddrs returns the set of decommissioned addresses.
func (m *Membership) DecommissionedAddrs() map[string]struct{} {
	m.decommissioned.mu.RLock()
	defer m.decommissioned.mu.RUnlock()
	addrs := make(map[string]struct{}, len(m.decommissioned.byAddr))
	for addr := range m.decommissioned.byAddr {
		addrs[addr] = struct{}{}
	}
	return addrs
}
