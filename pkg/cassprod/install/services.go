// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package install

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fruch/jepsen/pkg/cassprod/config"
	cassproderrors "github.com/fruch/jepsen/pkg/cassprod/errors"
	"github.com/fruch/jepsen/pkg/cassprod/logger"
	"github.com/fruch/jepsen/pkg/cassprod/ssh"
	"github.com/fruch/jepsen/pkg/util/timeutil"
)

// ProcessController starts, stops and wipes the database process on a node.
//
// Stop is synchronous: it returns only once the process table confirms the
// process is gone. The orchestrator relies on that guarantee, since it
// cannot safely wipe or reconfigure while the process may still hold disk
// state.
type ProcessController struct {
	capability ssh.Capability
	l          *logger.Logger

	// PollInterval is the process-table polling interval during stop.
	PollInterval time.Duration
	// SafetyBound converts a stop that would otherwise hang forever into a
	// diagnosable failure. It is deliberately generous; reaching it means
	// the node is broken, not slow.
	SafetyBound time.Duration
}

// NewProcessController returns a ProcessController with default intervals.
func NewProcessController(capability ssh.Capability, l *logger.Logger) *ProcessController {
	return &ProcessController{
		capability:   capability,
		l:            l,
		PollInterval: 100 * time.Millisecond,
		SafetyBound:  10 * time.Minute,
	}
}

// Start starts the database process through the service manager. Starting an
// already-running process is accepted; double-start protection is the
// service manager's job, not this layer's.
func (p *ProcessController) Start(ctx context.Context, node string, extraEnv ...string) error {
	args := []string{"service", "cassandra", "start"}
	if len(extraEnv) > 0 {
		args = append([]string{"env"}, append(extraEnv, args...)...)
	}
	if _, err := p.capability.Execute(ctx, node, ssh.Root, args...); err != nil {
		return errors.Wrapf(err, "starting %s", node)
	}
	p.l.Printf("%s: started", node)
	return nil
}

// stopState is the explicit state of the kill-then-poll loop.
type stopState int

const (
	stopProbing stopState = iota
	stopKilling
	stopConfirmed
)

// Stop kills the auxiliary management process and then the main database
// process, blocking until the process table confirms each is gone.
func (p *ProcessController) Stop(ctx context.Context, node string) error {
	for _, pattern := range []string{config.ToolProcess, config.MainProcess} {
		if err := p.stopProcess(ctx, node, pattern); err != nil {
			return err
		}
	}
	p.l.Printf("%s: stopped", node)
	return nil
}

// stopProcess drives the probing -> killing -> confirmed state machine for
// one process-table pattern. The kill is best-effort (a pattern with no
// matching process is the expected terminal case); only the process-table
// probe can fail the operation.
func (p *ProcessController) stopProcess(ctx context.Context, node, pattern string) error {
	deadline := timeutil.Now().Add(p.SafetyBound)
	state := stopProbing
	for state != stopConfirmed {
		if timeutil.Now().After(deadline) {
			return errors.Errorf("%s: process %q still in process table after %s",
				node, pattern, p.SafetyBound)
		}
		switch state {
		case stopProbing:
			running, err := p.processRunning(ctx, node, pattern)
			if err != nil {
				return errors.Wrapf(err, "probing process table on %s", node)
			}
			if running {
				state = stopKilling
			} else {
				state = stopConfirmed
			}
		case stopKilling:
			// Best-effort: the process may exit between probe and kill.
			_, _ = p.capability.Execute(ctx, node, ssh.Root, "pkill", "-9", "-f", pattern)
			select {
			case <-time.After(p.PollInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
			state = stopProbing
		}
	}
	return nil
}

// processRunning reports whether any process matching pattern appears in the
// node's process table. pgrep exits 1 when nothing matches, which is a
// result, not a failure.
func (p *ProcessController) processRunning(ctx context.Context, node, pattern string) (bool, error) {
	out, err := p.capability.Execute(ctx, node, ssh.Root, "pgrep", "-f", pattern)
	if err != nil {
		if code, ok := cassproderrors.GetExitCode(err); ok && code == 1 {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Wipe stops the node and then deletes its data and log files. Deletion is
// best-effort; a directory that is already gone is not an error.
func (p *ProcessController) Wipe(ctx context.Context, node string) error {
	if err := p.Stop(ctx, node); err != nil {
		return err
	}
	for _, path := range []string{
		config.DataDir + "/data",
		config.DataDir + "/commitlog",
		config.DataDir + "/saved_caches",
		config.DataDir + "/hints",
		config.LogPath,
	} {
		_, _ = p.capability.Execute(ctx, node, ssh.Root, "rm", "-rf", path)
	}
	p.l.Printf("%s: wiped", node)
	return nil
}
