// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package timeutil

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestRunWithTimeout(t *testing.T) {
	ctx := context.Background()

	err := RunWithTimeout(ctx, "noop", time.Minute, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	err = RunWithTimeout(ctx, "block", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	require.Equal(t, 10*time.Millisecond, te.Timeout())
	require.Contains(t, err.Error(), "block")

	// A non-timeout failure passes through unwrapped.
	errBoom := errors.New("boom")
	err = RunWithTimeout(ctx, "fail", time.Minute, func(ctx context.Context) error {
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	require.False(t, errors.As(err, &te))
}
