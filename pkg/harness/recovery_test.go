// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package harness

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/fruch/jepsen/pkg/cassprod/logger"
	"github.com/fruch/jepsen/pkg/harness/cql"
)

// fakeSession replays a sequence of metadata reads, sticking on the last
// one, and records whether it was closed.
type fakeSession struct {
	reads  []func() ([]cql.HostStatus, error)
	calls  int
	closed bool
}

var _ cql.MetadataSession = (*fakeSession)(nil)

func (s *fakeSession) Hosts(ctx context.Context) ([]cql.HostStatus, error) {
	i := s.calls
	if i >= len(s.reads) {
		i = len(s.reads) - 1
	}
	s.calls++
	return s.reads[i]()
}

func (s *fakeSession) Close() { s.closed = true }

func hostsUp(addrs ...string) func() ([]cql.HostStatus, error) {
	return func() ([]cql.HostStatus, error) {
		hosts := make([]cql.HostStatus, 0, len(addrs))
		for _, addr := range addrs {
			hosts = append(hosts, cql.HostStatus{Addr: addr, Up: true})
		}
		return hosts, nil
	}
}

func hostsWithDown(down string, addrs ...string) func() ([]cql.HostStatus, error) {
	return func() ([]cql.HostStatus, error) {
		hosts := make([]cql.HostStatus, 0, len(addrs))
		for _, addr := range addrs {
			hosts = append(hosts, cql.HostStatus{Addr: addr, Up: addr != down})
		}
		return hosts, nil
	}
}

func TestAwaitRecoveryImmediateConvergence(t *testing.T) {
	session := &fakeSession{reads: []func() ([]cql.HostStatus, error){
		hostsUp("10.0.0.1", "10.0.0.2"),
	}}

	status, err := AwaitRecovery(context.Background(), logger.Discard(), time.Minute, session)
	require.NoError(t, err)
	require.Equal(t, Converged, status)
	require.Equal(t, 1, session.calls)
	// The session is owned by the caller.
	require.False(t, session.closed)
}

func TestAwaitRecoveryConvergesAfterRetries(t *testing.T) {
	session := &fakeSession{reads: []func() ([]cql.HostStatus, error){
		func() ([]cql.HostStatus, error) { return nil, errors.New("connection reset") },
		hostsWithDown("10.0.0.2", "10.0.0.1", "10.0.0.2"),
		hostsUp("10.0.0.1", "10.0.0.2"),
	}}

	status, err := AwaitRecovery(context.Background(), logger.Discard(), time.Minute, session)
	require.NoError(t, err)
	require.Equal(t, Converged, status)
	// One failed read and one partial read before convergence.
	require.Equal(t, 3, session.calls)
}

func TestAwaitRecoveryTimesOut(t *testing.T) {
	session := &fakeSession{reads: []func() ([]cql.HostStatus, error){
		hostsWithDown("10.0.0.2", "10.0.0.1", "10.0.0.2"),
	}}

	timeout := 5 * RecoveryPollInterval / 2
	start := time.Now()
	status, err := AwaitRecovery(context.Background(), logger.Discard(), timeout, session)
	require.NoError(t, err)
	require.Equal(t, TimedOut, status)
	// TimedOut is only reported once the full bound has elapsed.
	require.GreaterOrEqual(t, time.Since(start), timeout)
	require.False(t, session.closed)
}

func TestAwaitRecoveryEmptyMetadataIsNotConverged(t *testing.T) {
	session := &fakeSession{reads: []func() ([]cql.HostStatus, error){
		func() ([]cql.HostStatus, error) { return nil, nil },
	}}

	status, err := AwaitRecovery(
		context.Background(), logger.Discard(), RecoveryPollInterval/2, session)
	require.NoError(t, err)
	require.Equal(t, TimedOut, status)
}

func TestAwaitRecoveryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := &fakeSession{reads: []func() ([]cql.HostStatus, error){
		hostsWithDown("10.0.0.2", "10.0.0.1", "10.0.0.2"),
	}}

	status, err := AwaitRecovery(ctx, logger.Discard(), time.Hour, session)
	require.Error(t, err)
	require.Equal(t, TimedOut, status)
}
