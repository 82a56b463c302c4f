// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package harness

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fruch/jepsen/pkg/cassprod/config"
	"github.com/fruch/jepsen/pkg/cassprod/install"
	"github.com/fruch/jepsen/pkg/cassprod/ssh"
)

// SetupAll runs Setup on every node of the run concurrently. The first
// failure cancels the remaining setups: a partially converged cluster is
// useless to the orchestrator.
func (c *Controller) SetupAll(ctx context.Context) error {
	return install.Parallel(ctx, c.l, c.rc.Nodes, c.Setup,
		install.WithDisplay("setup"))
}

// TeardownAll tears down every node, waiting for all of them regardless of
// individual failures so a broken node cannot block cleanup of the rest.
func (c *Controller) TeardownAll(ctx context.Context) error {
	return install.Parallel(ctx, c.l, c.rc.Nodes, c.Teardown,
		install.WithDisplay("teardown"), install.WithWaitOnFail())
}

// FetchLogs copies the node's database log into destDir as <node>.log.
func (c *Controller) FetchLogs(ctx context.Context, node, destDir string) error {
	out, err := c.capability.Execute(ctx, node, ssh.Root, "cat", config.LogPath)
	if err != nil {
		return errors.Wrapf(err, "fetching log from %s", node)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, node+".log"), []byte(out), 0644)
}

// CollectLogs fetches every node's log into destDir, best-effort: a node
// whose log cannot be read (wiped, unreachable) is logged and skipped.
func (c *Controller) CollectLogs(ctx context.Context, destDir string) {
	var g errgroup.Group
	g.SetLimit(config.MaxConcurrency)
	for _, node := range c.rc.Nodes {
		node := node
		g.Go(func() error {
			if err := c.FetchLogs(ctx, node, destDir); err != nil {
				c.l.Errorf("could not collect log from %s: %s", node, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
