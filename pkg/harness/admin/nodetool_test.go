// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package admin

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/fruch/jepsen/pkg/cassprod/ssh"
)

const sampleStatus = `Datacenter: datacenter1
=======================
Status=Up/Down
|/ State=Normal/Leaving/Joining/Moving
--  Address    Load      Tokens  Owns   Host ID                               Rack
UN  10.0.0.1   103 KiB   256     33.1%  11111111-1111-1111-1111-111111111111  rack1
UN  10.0.0.2   98 KiB    256     32.8%  22222222-2222-2222-2222-222222222222  rack1
UJ  10.0.0.3   12 KiB    256     ?      33333333-3333-3333-3333-333333333333  rack1
DN  10.0.0.4   95 KiB    256     34.1%  44444444-4444-4444-4444-444444444444  rack1
`

type execFunc func(node string, args []string) (string, error)

func (f execFunc) Execute(
	_ context.Context, node string, _ ssh.Privilege, args ...string,
) (string, error) {
	return f(node, args)
}

func TestNodetoolClientLiveNodes(t *testing.T) {
	client := NewNodetoolClient(execFunc(func(node string, args []string) (string, error) {
		require.Equal(t, "10.0.0.1", node)
		require.Equal(t, []string{"nodetool", "status"}, args)
		return sampleStatus, nil
	}))

	live, err := client.LiveNodes(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	// Up nodes regardless of state; the joining node is up too.
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, live)
}

func TestNodetoolClientJoiningNodes(t *testing.T) {
	client := NewNodetoolClient(execFunc(func(node string, args []string) (string, error) {
		return sampleStatus, nil
	}))

	joining, err := client.JoiningNodes(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.3"}, joining)
}

func TestNodetoolClientExecError(t *testing.T) {
	client := NewNodetoolClient(execFunc(func(node string, args []string) (string, error) {
		return "", errors.New("connection refused")
	}))

	_, err := client.LiveNodes(context.Background(), "10.0.0.1")
	require.Error(t, err)
}

func TestParseStatusIgnoresNoise(t *testing.T) {
	out := `Note: this output is for humans
UNKNOWN garbage line
XX  10.0.0.9
UN  10.0.0.1   1 KiB  256  ?  id  rack1
`
	addrs := parseStatus(out, func(status, state byte) bool { return status == 'U' })
	require.Equal(t, []string{"10.0.0.1"}, addrs)
}
