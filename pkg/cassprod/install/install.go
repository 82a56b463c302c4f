// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package install implements the node lifecycle leaves: installing the
// database packages, regenerating a node's configuration, and controlling
// the database process. All remote action goes through the ssh.Capability
// interface.
package install

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fruch/jepsen/pkg/cassprod/config"
	cassproderrors "github.com/fruch/jepsen/pkg/cassprod/errors"
	"github.com/fruch/jepsen/pkg/cassprod/logger"
	"github.com/fruch/jepsen/pkg/cassprod/ssh"
	"github.com/fruch/jepsen/pkg/util/retry"
)

const (
	repoListPath = "/etc/apt/sources.list.d/cassandra.list"
	repoListLine = "deb https://debian.cassandra.apache.org 41x main"
	repoKeyURL   = "https://downloads.apache.org/cassandra/KEYS"
	repoKeyPath  = "/etc/apt/trusted.gpg.d/cassandra.asc"
)

// aptRetryOpts retries package manager failures, which are frequently
// transient (mirror hiccups, concurrent dpkg locks).
var aptRetryOpts = retry.Options{
	InitialBackoff: 5 * time.Second,
	MaxBackoff:     30 * time.Second,
	MaxRetries:     2,
}

// Installer ensures the database binary and companion tools are present on a
// node. Install is idempotent: re-running it on an installed node is a
// no-op beyond the package manager's own checks.
type Installer struct {
	capability ssh.Capability
	l          *logger.Logger
}

// NewInstaller returns an Installer using the given capability.
func NewInstaller(capability ssh.Capability, l *logger.Logger) *Installer {
	return &Installer{capability: capability, l: l}
}

// Install adds the package repository and installs the database and tools
// packages, then stashes the pristine configuration file for the config
// writer to regenerate from.
func (i *Installer) Install(ctx context.Context, node string) error {
	steps := []struct {
		name string
		args []string
	}{
		{"add repository", []string{"bash", "-c",
			"echo '" + repoListLine + "' > " + repoListPath}},
		{"fetch repository key", []string{"curl", "-fsSL", repoKeyURL, "-o", repoKeyPath}},
		{"update package index", []string{"apt-get", "update", "-y", "-q"}},
		{"install packages", []string{"env", "DEBIAN_FRONTEND=noninteractive",
			"apt-get", "install", "-y", "-q", "cassandra", "cassandra-tools"}},
		// cp -n: only stash on first install, so reconfigure keeps working
		// from the true pristine copy across repeated setups.
		{"stash pristine config", []string{"cp", "-n", config.ConfigPath, config.PristineConfigPath}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "installing on %s", node)
		}
		var lastErr error
		for r := retry.StartWithCtx(ctx, aptRetryOpts); r.Next(); {
			_, lastErr = i.capability.Execute(ctx, node, ssh.Root, step.args...)
			if lastErr == nil {
				break
			}
			if !cassproderrors.IsTransient(lastErr) {
				// The retry budget covers the package manager and the
				// transport; anything else fails immediately.
				break
			}
			i.l.Printf("%s: %s failed, retrying: %s", node, step.name, lastErr)
		}
		if lastErr != nil {
			return errors.Wrapf(lastErr, "%s on %s", step.name, node)
		}
	}
	i.l.Printf("%s: install complete", node)
	return nil
}
