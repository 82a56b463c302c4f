// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package cql provides the client-driver view of the cluster: an open
// session to one node, through which the harness enumerates the hosts the
// cluster knows about and checks each host's reachability.
package cql

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"

	"github.com/fruch/jepsen/pkg/cassprod/config"
)

// HostStatus is one known host's reachability as seen through the driver.
type HostStatus struct {
	Addr string
	Up   bool
}

// MetadataSession is an open client-driver session scoped to whichever
// operation opened it; it must be released with Close on every exit path.
type MetadataSession interface {
	// Hosts enumerates every host the cluster knows about, with each host's
	// current reachability.
	Hosts(ctx context.Context) ([]HostStatus, error)
	Close()
}

// DialFunc opens a MetadataSession against one node. Injected so that tests
// can substitute a fake for the driver.
type DialFunc func(ctx context.Context, host string) (MetadataSession, error)

type driverSession struct {
	session *gocql.Session
	port    int
}

var _ MetadataSession = (*driverSession)(nil)

// Dial opens a driver session against the given node.
func Dial(ctx context.Context, host string) (MetadataSession, error) {
	cluster := gocql.NewCluster(host)
	cluster.Port = config.CQLPort
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second
	cluster.Consistency = gocql.One

	session, err := awaitDial(ctx, cluster.CreateSession)
	if err != nil {
		return nil, errors.Wrapf(err, "opening driver session to %s", host)
	}
	return &driverSession{session: session, port: config.CQLPort}, nil
}

// awaitDial runs the driver's session creation in its own goroutine so that
// a hung handshake can be abandoned when ctx is canceled; the driver's
// CreateSession is not context-aware. An abandoned session that eventually
// does come up is closed rather than leaked.
func awaitDial(
	ctx context.Context, create func() (*gocql.Session, error),
) (*gocql.Session, error) {
	type dialResult struct {
		session *gocql.Session
		err     error
	}
	ch := make(chan dialResult, 1)
	go func() {
		session, err := create()
		ch <- dialResult{session: session, err: err}
	}()

	select {
	case r := <-ch:
		return r.session, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.session != nil {
				r.session.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Hosts implements MetadataSession. The host list comes from the cluster's
// own metadata tables; reachability is probed per host.
func (d *driverSession) Hosts(ctx context.Context) ([]HostStatus, error) {
	var addrs []string

	var self string
	if err := d.session.Query(`SELECT rpc_address FROM system.local`).
		WithContext(ctx).Scan(&self); err != nil {
		return nil, errors.Wrap(err, "reading local metadata")
	}
	addrs = append(addrs, self)

	iter := d.session.Query(`SELECT peer FROM system.peers`).WithContext(ctx).Iter()
	var peer string
	for iter.Scan(&peer) {
		addrs = append(addrs, peer)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "reading peer metadata")
	}

	hosts := make([]HostStatus, 0, len(addrs))
	for _, addr := range addrs {
		hosts = append(hosts, HostStatus{Addr: addr, Up: d.hostUp(ctx, addr)})
	}
	return hosts, nil
}

// hostUp probes one host through a short-lived session pinned to that host.
// Any failure to connect or to answer a trivial read counts as down.
func (d *driverSession) hostUp(ctx context.Context, addr string) bool {
	cluster := gocql.NewCluster(addr)
	cluster.Port = d.port
	cluster.Timeout = 2 * time.Second
	cluster.ConnectTimeout = 2 * time.Second
	cluster.Consistency = gocql.One
	cluster.DisableInitialHostLookup = true
	cluster.HostFilter = gocql.WhiteListHostFilter(addr)

	session, err := cluster.CreateSession()
	if err != nil {
		return false
	}
	defer session.Close()
	return session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Exec() == nil
}

// Close implements MetadataSession.
func (d *driverSession) Close() {
	d.session.Close()
}
