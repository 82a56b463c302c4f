// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package ssh provides the remote command-execution capability used by the
// node lifecycle layer. The capability is an interface so that unit tests
// can substitute an in-memory fake; the production implementation shells out
// to the system ssh client.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"

	cassproderrors "github.com/fruch/jepsen/pkg/cassprod/errors"
	"github.com/fruch/jepsen/pkg/cassprod/logger"
)

// Privilege is the privilege level a remote command runs with.
type Privilege int

const (
	// User runs the command as the connecting user.
	User Privilege = iota
	// Root runs the command under sudo.
	Root
)

// Capability executes shell-level commands on a named node.
type Capability interface {
	// Execute runs the command on the node and returns its combined output.
	// The returned error, if any, is classified per the cassprod errors
	// taxonomy.
	Execute(ctx context.Context, node string, priv Privilege, args ...string) (string, error)
}

// Remote is the ssh-backed Capability.
type Remote struct {
	user string
	l    *logger.Logger
}

var _ Capability = (*Remote)(nil)

// NewRemote returns a Capability that connects to nodes as the given user.
func NewRemote(user string, l *logger.Logger) *Remote {
	return &Remote{user: user, l: l}
}

var sshFlags = []string{
	"-q",
	"-o", "StrictHostKeyChecking=no",
	"-o", "UserKnownHostsFile=/dev/null",
	"-o", "ConnectTimeout=10",
}

// Execute implements Capability.
func (r *Remote) Execute(
	ctx context.Context, node string, priv Privilege, args ...string,
) (string, error) {
	cmd := make([]string, 0, len(args)+1)
	if priv == Root {
		cmd = append(cmd, "sudo")
	}
	cmd = append(cmd, args...)

	sshArgs := append([]string{}, sshFlags...)
	sshArgs = append(sshArgs, fmt.Sprintf("%s@%s", r.user, node), "--")
	sshArgs = append(sshArgs, cmd...)

	r.l.Printf("%s> %s", node, strings.Join(cmd, " "))
	c := exec.CommandContext(ctx, "ssh", sshArgs...)
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out
	if err := c.Run(); err != nil {
		err = errors.Wrapf(err, "%s: %s", node, strings.Join(cmd, " "))
		return out.String(), cassproderrors.ClassifyCmdError(err)
	}
	return out.String(), nil
}
