// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/fruch/jepsen/pkg/cassprod/logger"
	"github.com/fruch/jepsen/pkg/harness/cql"
	"github.com/fruch/jepsen/pkg/util/timeutil"
)

// RecoveryPollInterval is how often the readiness waiter re-reads the
// cluster metadata.
const RecoveryPollInterval = 500 * time.Millisecond

// RecoveryStatus is the outcome of a readiness wait. The waiter itself does
// not decide whether a timeout is fatal; that is the caller's call. The
// setup path treats it as fatal.
type RecoveryStatus int

const (
	// Converged means every host known to the cluster reported up within
	// the bound.
	Converged RecoveryStatus = iota
	// TimedOut means the bound elapsed first.
	TimedOut
)

// ConvergenceError is the fatal error raised when a node's setup gives up on
// cluster convergence. A cluster that cannot converge within the bound is
// considered broken for the remainder of the run, so this error is not
// retryable.
type ConvergenceError struct {
	Node    string
	Timeout time.Duration
}

var _ error = (*ConvergenceError)(nil)

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("cluster failed to converge from %s within %s", e.Node, e.Timeout)
}

// AwaitRecovery polls the driver connection's cluster metadata until every
// known host reports up, returning Converged the moment that holds. If the
// timeout elapses first it returns TimedOut, and guarantees at least the
// full bound has elapsed before doing so. Metadata read failures are soft:
// logged and retried on the next poll.
//
// The session is owned by the caller; AwaitRecovery never closes it.
func AwaitRecovery(
	ctx context.Context, l *logger.Logger, timeout time.Duration, session cql.MetadataSession,
) (RecoveryStatus, error) {
	start := timeutil.Now()
	for {
		hosts, err := session.Hosts(ctx)
		switch {
		case err != nil:
			l.Printf("cluster metadata read failed, will retry: %s", err)
		case allUp(hosts):
			return Converged, nil
		default:
			for _, h := range hosts {
				if !h.Up {
					l.Printf("waiting for %s to come up (%s elapsed)",
						h.Addr, timeutil.Since(start).Round(time.Millisecond))
				}
			}
		}

		if timeutil.Since(start) >= timeout {
			return TimedOut, nil
		}
		select {
		case <-time.After(RecoveryPollInterval):
		case <-ctx.Done():
			return TimedOut, ctx.Err()
		}
	}
}

func allUp(hosts []cql.HostStatus) bool {
	if len(hosts) == 0 {
		return false
	}
	for _, h := range hosts {
		if !h.Up {
			return false
		}
	}
	return true
}
