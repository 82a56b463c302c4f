// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package admin

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/fruch/jepsen/pkg/cassprod/ssh"
)

// NodetoolClient is a Client that reads membership by running the nodetool
// binary on the queried node itself. It is the fallback for clusters whose
// management port carries no HTTP bridge; the answers come from the same
// gossip state the HTTP client reads.
type NodetoolClient struct {
	capability ssh.Capability
}

var _ Client = (*NodetoolClient)(nil)

// NewNodetoolClient returns a NodetoolClient executing through the given
// capability.
func NewNodetoolClient(capability ssh.Capability) *NodetoolClient {
	return &NodetoolClient{capability: capability}
}

// LiveNodes implements Client.
func (c *NodetoolClient) LiveNodes(ctx context.Context, addr string) ([]string, error) {
	return c.status(ctx, addr, func(status, state byte) bool {
		return status == 'U'
	})
}

// JoiningNodes implements Client.
func (c *NodetoolClient) JoiningNodes(ctx context.Context, addr string) ([]string, error) {
	return c.status(ctx, addr, func(status, state byte) bool {
		return state == 'J'
	})
}

// status runs nodetool status on the node and returns the addresses whose
// status/state flags match.
func (c *NodetoolClient) status(
	ctx context.Context, addr string, match func(status, state byte) bool,
) ([]string, error) {
	out, err := c.capability.Execute(ctx, addr, ssh.User, "nodetool", "status")
	if err != nil {
		return nil, errors.Wrapf(err, "nodetool status on %s", addr)
	}
	return parseStatus(out, match), nil
}

// parseStatus extracts addresses from nodetool status output. Node lines
// start with a two-letter flag pair: status (U up, D down) followed by state
// (N normal, L leaving, J joining, M moving), then the address.
func parseStatus(out string, match func(status, state byte) bool) []string {
	var addrs []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 2 {
			continue
		}
		status, state := fields[0][0], fields[0][1]
		if (status != 'U' && status != 'D') ||
			(state != 'N' && state != 'L' && state != 'J' && state != 'M') {
			continue
		}
		if match(status, state) {
			addrs = append(addrs, fields[1])
		}
	}
	return addrs
}
