// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package install

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	cassproderrors "github.com/fruch/jepsen/pkg/cassprod/errors"
	"github.com/fruch/jepsen/pkg/cassprod/ssh"
)

// fakeCapability records every command and answers them through a
// user-supplied respond function.
type fakeCapability struct {
	mu       sync.Mutex
	commands []string
	respond  func(node string, args []string) (string, error)
}

var _ ssh.Capability = (*fakeCapability)(nil)

func (f *fakeCapability) Execute(
	_ context.Context, node string, _ ssh.Privilege, args ...string,
) (string, error) {
	f.mu.Lock()
	f.commands = append(f.commands, node+": "+strings.Join(args, " "))
	f.mu.Unlock()
	if f.respond == nil {
		return "", nil
	}
	return f.respond(node, args)
}

func (f *fakeCapability) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// exitError fabricates a classified error carrying a real process exit code,
// the way the ssh capability surfaces remote command failures.
func exitError(t *testing.T, code int) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit "+strconv.Itoa(code)).Run()
	require.Error(t, err)
	return cassproderrors.ClassifyCmdError(err)
}
