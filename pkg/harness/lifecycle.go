// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package harness

import (
	"context"
	"time"

	"github.com/fruch/jepsen/pkg/cassprod/install"
	"github.com/fruch/jepsen/pkg/cassprod/logger"
	"github.com/fruch/jepsen/pkg/cassprod/ssh"
	"github.com/fruch/jepsen/pkg/harness/cql"
	"github.com/fruch/jepsen/pkg/util/timeutil"
)

// dialTimeout bounds the readiness connection attempt; a node that accepts
// neither a connection nor a handshake within it is treated as a setup
// failure rather than waited on.
const dialTimeout = 30 * time.Second

// Controller drives the per-node lifecycle: setup is install, configure,
// guarded start, and a convergence check; teardown is stop and wipe. Its
// operations are invoked concurrently, one logical task per node, by the
// test orchestrator; cross-node correctness relies on the membership
// tracker's atomicity, not on any ordering between nodes.
type Controller struct {
	rc           *RunContext
	capability   ssh.Capability
	installer    *install.Installer
	configWriter *install.ConfigWriter
	procs        *install.ProcessController
	dial         cql.DialFunc
	settings     install.ClusterSettings
	l            *logger.Logger

	// RecoveryTimeout bounds the post-start convergence wait.
	RecoveryTimeout time.Duration
}

// NewController wires a Controller from its leaves.
func NewController(
	rc *RunContext,
	capability ssh.Capability,
	settings install.ClusterSettings,
	dial cql.DialFunc,
	l *logger.Logger,
) *Controller {
	return &Controller{
		rc:              rc,
		capability:      capability,
		installer:       install.NewInstaller(capability, l),
		configWriter:    install.NewConfigWriter(capability, l),
		procs:           install.NewProcessController(capability, l),
		dial:            dial,
		settings:        settings,
		l:               l,
		RecoveryTimeout: 2 * time.Minute,
	}
}

// Setup brings one node to a confirmed running-and-ready state, or
// deliberately leaves it stopped when the guarded-start policy excludes it.
// It returns an error only for installation/configuration failures and for
// the fatal convergence timeout.
func (c *Controller) Setup(ctx context.Context, node string) error {
	if err := c.installer.Install(ctx, node); err != nil {
		return err
	}
	nc, err := c.nodeConfig(ctx, node)
	if err != nil {
		return err
	}
	if err := c.configWriter.Configure(ctx, node, nc); err != nil {
		return err
	}

	started, err := c.GuardedStart(ctx, node)
	if err != nil {
		return err
	}
	if !started {
		return nil
	}

	var session cql.MetadataSession
	if err := timeutil.RunWithTimeout(ctx, "open readiness connection to "+node,
		dialTimeout, func(ctx context.Context) error {
			var err error
			session, err = c.dial(ctx, node)
			return err
		}); err != nil {
		return err
	}
	defer session.Close()

	status, err := AwaitRecovery(ctx, c.l, c.RecoveryTimeout, session)
	if err != nil {
		return err
	}
	if status == TimedOut {
		return &ConvergenceError{Node: node, Timeout: c.RecoveryTimeout}
	}
	c.l.Printf("%s: ready", node)
	return nil
}

// GuardedStart starts the node's process unless the node is mid-bootstrap
// or its resolved address is decommissioned. Restarting a bootstrapping
// node would corrupt join semantics; restarting a decommissioned one would
// resurrect a member that was intentionally removed. The returned bool
// reports whether a start was issued.
func (c *Controller) GuardedStart(ctx context.Context, node string) (bool, error) {
	if c.rc.Membership.IsBootstrapping(node) {
		c.l.Printf("%s: start skipped, node is bootstrapping", node)
		return false, nil
	}
	addr, err := c.rc.Resolve(ctx, node)
	if err != nil {
		return false, err
	}
	if c.rc.Membership.IsDecommissionedAddr(addr) {
		c.l.Printf("%s: start skipped, %s is decommissioned", node, addr)
		return false, nil
	}

	var extraEnv []string
	if c.settings.Knobs.DisableBatchlog {
		extraEnv = append(extraEnv, "JVM_EXTRA_OPTS=-Dcassandra.batchlog.disable=true")
	}
	if err := c.procs.Start(ctx, node, extraEnv...); err != nil {
		return false, err
	}
	return true, nil
}

// Stop synchronously stops the node's processes.
func (c *Controller) Stop(ctx context.Context, node string) error {
	return c.procs.Stop(ctx, node)
}

// Wipe stops the node and removes its data and logs.
func (c *Controller) Wipe(ctx context.Context, node string) error {
	return c.procs.Wipe(ctx, node)
}

// Teardown is equivalent to Wipe.
func (c *Controller) Teardown(ctx context.Context, node string) error {
	return c.Wipe(ctx, node)
}

// nodeConfig derives the node's rendered-configuration inputs: its own
// resolved address and the full resolved node set as seeds.
func (c *Controller) nodeConfig(ctx context.Context, node string) (install.NodeConfig, error) {
	addr, err := c.rc.Resolve(ctx, node)
	if err != nil {
		return install.NodeConfig{}, err
	}
	seeds, err := c.rc.ResolveAll(ctx)
	if err != nil {
		return install.NodeConfig{}, err
	}
	return install.NodeConfig{
		Addr:      addr,
		SeedAddrs: seeds,
		Settings:  c.settings,
	}, nil
}
