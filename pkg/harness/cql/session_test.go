// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package cql

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"
	"github.com/stretchr/testify/require"
)

func TestAwaitDialReturnsResult(t *testing.T) {
	session, err := awaitDial(context.Background(), func() (*gocql.Session, error) {
		return nil, nil
	})
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestAwaitDialPropagatesError(t *testing.T) {
	errBoom := errors.New("no route to host")
	_, err := awaitDial(context.Background(), func() (*gocql.Session, error) {
		return nil, errBoom
	})
	require.ErrorIs(t, err, errBoom)
}

func TestAwaitDialAbandonsHungHandshake(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := awaitDial(ctx, func() (*gocql.Session, error) {
			<-release
			return nil, nil
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		// The dial returns as soon as the context is canceled, without
		// waiting for the handshake goroutine.
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("dial did not observe cancellation")
	}
	close(release)
}
