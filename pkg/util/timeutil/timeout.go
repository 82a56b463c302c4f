// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package timeutil

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// TimeoutError is the error returned by RunWithTimeout when the bound is
// exceeded. It records the operation, the bound, and how long the operation
// actually ran, so that a timeout failure is diagnosable at the point where
// it surfaces.
type TimeoutError struct {
	operation string
	timeout   time.Duration
	took      time.Duration
	cause     error
}

var _ error = (*TimeoutError)(nil)

func (t *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s (took %s): %v",
		t.operation, t.timeout, t.took.Round(time.Millisecond), t.cause)
}

// Timeout returns the bound that was exceeded.
func (t *TimeoutError) Timeout() time.Duration { return t.timeout }

// Cause implements errors.Causer.
func (t *TimeoutError) Cause() error { return t.cause }

// Unwrap implements errors.Wrapper.
func (t *TimeoutError) Unwrap() error { return t.cause }

// RunWithTimeout runs a function with a timeout, the same way you'd do with
// context.WithTimeout. It improves the opaque error messages returned by
// WithTimeout by augmenting them with the operation name and the bound.
func RunWithTimeout(
	ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := Now()
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = &TimeoutError{
			operation: op,
			timeout:   timeout,
			took:      Since(start),
			cause:     err,
		}
	}
	return err
}
