// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package harness

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMembershipBootstrapping(t *testing.T) {
	m := NewMembership()
	require.False(t, m.IsBootstrapping("n1"))

	m.MarkBootstrapping("n1")
	require.True(t, m.IsBootstrapping("n1"))
	require.False(t, m.IsBootstrapping("n2"))

	m.ClearBootstrapping("n1")
	require.False(t, m.IsBootstrapping("n1"))

	// Clearing an absent node is a no-op.
	m.ClearBootstrapping("n3")
}

func TestMembershipDecommissioning(t *testing.T) {
	m := NewMembership()
	addr, ok := m.DecommissionedAddrOf("n1")
	require.False(t, ok)
	require.Empty(t, addr)

	m.MarkDecommissioning("n1", "10.0.0.1")
	addr, ok = m.DecommissionedAddrOf("n1")
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", addr)
	require.True(t, m.IsDecommissionedAddr("10.0.0.1"))
	require.False(t, m.IsDecommissionedAddr("10.0.0.2"))

	// Re-marking the same node replaces its recorded address.
	m.MarkDecommissioning("n1", "10.0.0.9")
	addr, _ = m.DecommissionedAddrOf("n1")
	require.Equal(t, "10.0.0.9", addr)
	require.False(t, m.IsDecommissionedAddr("10.0.0.1"))

	m.ClearDecommissioning("n1")
	_, ok = m.DecommissionedAddrOf("n1")
	require.False(t, ok)
	require.False(t, m.IsDecommissionedAddr("10.0.0.9"))
}

func TestMembershipDecommissionedAddrs(t *testing.T) {
	m := NewMembership()
	m.MarkDecommissioning("n1", "10.0.0.1")
	m.MarkDecommissioning("n2", "10.0.0.2")

	addrs := m.DecommissionedAddrs()
	require.Len(t, addrs, 2)
	require.Contains(t, addrs, "10.0.0.1")
	require.Contains(t, addrs, "10.0.0.2")

	// The returned set is a snapshot.
	m.ClearDecommissioning("n1")
	require.Contains(t, addrs, "10.0.0.1")
	require.Len(t, m.DecommissionedAddrs(), 1)
}

func TestMembershipConcurrent(t *testing.T) {
	m := NewMembership()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.MarkBootstrapping("n1")
				m.IsBootstrapping("n1")
				m.ClearBootstrapping("n1")
				m.MarkDecommissioning("n2", "10.0.0.2")
				m.IsDecommissionedAddr("10.0.0.2")
				m.ClearDecommissioning("n2")
			}
		}()
	}
	wg.Wait()
	require.False(t, m.IsBootstrapping("n1"))
}
