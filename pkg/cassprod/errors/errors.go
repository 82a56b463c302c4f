// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package errors

import (
	"fmt"
	"os/exec"

	"github.com/cockroachdb/errors"
)

// Error is an interface for error types used to classify failures of
// commands run against cluster nodes.
type Error interface {
	error

	// The exit code for the error when exiting the harness.
	ExitCode() int
}

// Exit codes for the errors.
const (
	cmdExitCode          = 20
	transientExitCode    = 10
	unclassifiedExitCode = 1

	sshProblemCause = "ssh_problem"
	aptProblemCause = "apt_problem"
)

// Cmd wraps errors that result from a command run against a node.
type Cmd struct {
	Err error
}

func (e Cmd) Error() string {
	return fmt.Sprintf("COMMAND_PROBLEM: %s", e.Err.Error())
}

// ExitCode gives the process exit code to return for command errors.
func (e Cmd) ExitCode() int {
	return cmdExitCode
}

// Format passes formatting responsibilities to cockroachdb/errors.
func (e Cmd) Format(s fmt.State, verb rune) {
	errors.FormatError(e, s, verb)
}

// Unwrap the wrapped command error.
func (e Cmd) Unwrap() error {
	return e.Err
}

// TransientError labels errors that are known to be transient: failures of
// the transport to a node rather than of the commands run on it. Callers can
// choose to deal with these differently, e.g. by retrying against a
// different node.
type TransientError struct {
	Err   error
	Cause string
}

// TransientFailure wraps err as a transient error with a cause label.
func TransientFailure(err error, label string) TransientError {
	return TransientError{err, label}
}

func (te TransientError) Error() string {
	return fmt.Sprintf("TRANSIENT_ERROR(%s): %s", te.Cause, te.Err)
}

func (te TransientError) Format(s fmt.State, verb rune) {
	errors.FormatError(te, s, verb)
}

func (te TransientError) Is(other error) bool {
	return errors.Is(te.Err, other)
}

func (te TransientError) Unwrap() error {
	return te.Err
}

func (te TransientError) ExitCode() int {
	return transientExitCode
}

// IsTransient allows callers to check if a given error is transient.
func IsTransient(err error) bool {
	var ref TransientError
	return errors.As(err, &ref)
}

// NewSSHError returns a transient error for SSH-related issues.
func NewSSHError(err error) TransientError {
	return TransientFailure(err, sshProblemCause)
}

// AptError returns a transient error for package manager issues.
func AptError(err error) TransientError {
	return TransientFailure(err, aptProblemCause)
}

// IsSSHError returns true for transient errors caused by the SSH transport.
func IsSSHError(err error) bool {
	var transientErr TransientError
	if errors.As(err, &transientErr) {
		return transientErr.Cause == sshProblemCause
	}
	return false
}

// Unclassified wraps harness and unclassified errors.
type Unclassified struct {
	Err error
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("UNCLASSIFIED_PROBLEM: %s", e.Err.Error())
}

// ExitCode gives the process exit code to return for unclassified errors.
func (e Unclassified) ExitCode() int {
	return unclassifiedExitCode
}

// Format passes formatting responsibilities to cockroachdb/errors.
func (e Unclassified) Format(s fmt.State, verb rune) {
	errors.FormatError(e, s, verb)
}

// Unwrap the wrapped unclassified error.
func (e Unclassified) Unwrap() error {
	return e.Err
}

// ClassifyCmdError classifies an error received while executing a command
// remotely over an ssh connection to the right Error type. Exit code 255 is
// the ssh client's own failure mode, and 100 is apt's.
func ClassifyCmdError(err error) Error {
	if err == nil {
		return nil
	}

	if exitCode, ok := GetExitCode(err); ok {
		if exitCode == 255 {
			return NewSSHError(err)
		}
		if exitCode == 100 {
			return AptError(err)
		}
		return Cmd{err}
	}

	return Unclassified{err}
}

// GetExitCode returns an exit code, true if the error is an instance of an
// ExitError, or -1, false otherwise.
func GetExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return -1, false
}

// AsError extracts the Error from err's error tree or (nil, false) if none
// exists.
func AsError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
