// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config configures the construction of a Logger.
type Config struct {
	// Prefix, if set, is prepended to every line that reaches the stdio
	// tee. The log file records lines unprefixed; it is already scoped to
	// one node operation by its name.
	Prefix         string
	Stdout, Stderr io.Writer
}

// Option is an option to Logger construction.
type Option interface {
	apply(*Config)
}

type logPrefix string

var _ Option = logPrefix("")

func (p logPrefix) apply(cfg *Config) {
	cfg.Prefix = string(p)
}

// LogPrefix sets the prefix applied to stdout/stderr lines.
func LogPrefix(prefix string) Option {
	return logPrefix(prefix)
}

type quietStdoutOption struct{}

func (quietStdoutOption) apply(cfg *Config) {
	cfg.Stdout = io.Discard
}

type quietStderrOption struct{}

func (quietStderrOption) apply(cfg *Config) {
	cfg.Stderr = io.Discard
}

// QuietStdout silences the logger's stdout tee.
var QuietStdout quietStdoutOption

// QuietStderr silences the logger's stderr tee.
var QuietStderr quietStderrOption

// Logger logs to a file in the artifacts directory and to stdio
// simultaneously. This makes it possible to observe the progress of multiple
// concurrent node operations from the terminal while creating a
// non-interleaved record in the run artifacts.
type Logger struct {
	path string
	// File is the log file, if the logger is logging to a file.
	File           *os.File
	Stdout, Stderr io.Writer
}

// NewLogger constructs a Logger writing to the given file path. Callers
// normally go through RootLogger or Logger.ChildLogger rather than
// constructing configs by hand.
//
// If path is empty, lines go to stdout/stderr only.
func (cfg *Config) NewLogger(path string) (*Logger, error) {
	if path == "" {
		stdout, stderr := cfg.Stdout, cfg.Stderr
		if stdout == nil {
			stdout = os.Stdout
		}
		if stderr == nil {
			stderr = os.Stderr
		}
		return &Logger{Stdout: stdout, Stderr: stderr}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	newWriter := func(w io.Writer) io.Writer {
		if w == nil {
			return f
		}
		if cfg.Prefix != "" {
			w = &prefixWriter{out: w, prefix: []byte(cfg.Prefix)}
		}
		return io.MultiWriter(f, w)
	}

	return &Logger{
		path:   path,
		File:   f,
		Stdout: newWriter(cfg.Stdout),
		Stderr: newWriter(cfg.Stderr),
	}, nil
}

// TeeOptType controls whether a root logger tees its output to the process's
// stdio in addition to the log file.
type TeeOptType bool

const (
	// TeeToStdout tees output to stdout/stderr.
	TeeToStdout TeeOptType = true
	// NoTee sends output only to the log file.
	NoTee TeeOptType = false
)

// RootLogger creates a logger.
//
// If path is empty, all logs go to stdout/stderr regardless of teeOpt.
func RootLogger(path string, teeOpt TeeOptType) (*Logger, error) {
	var stdout, stderr io.Writer
	if teeOpt == TeeToStdout {
		stdout = os.Stdout
		stderr = os.Stderr
	}
	cfg := &Config{Stdout: stdout, Stderr: stderr}
	return cfg.NewLogger(path)
}

// Discard returns a logger that throws away everything written to it. Useful
// in tests.
func Discard() *Logger {
	return &Logger{Stdout: io.Discard, Stderr: io.Discard}
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() {
	if l.File != nil {
		_ = l.File.Close()
	}
}

// ChildLogger derives a logger for one node operation. When the parent is
// file-backed the child gets its own <name>.log beside the parent's file,
// so concurrent per-node output stays untangled in the artifacts; prefixing
// and stdio teeing are adjustable through options.
func (l *Logger) ChildLogger(name string, opts ...Option) (*Logger, error) {
	// Without a parent file there is nothing to split; the child only
	// prefixes the shared stdio streams.
	if l.File == nil {
		p := []byte(name + ": ")
		return &Logger{
			path:   l.path,
			Stdout: &prefixWriter{out: l.Stdout, prefix: p},
			Stderr: &prefixWriter{out: l.Stderr, prefix: p},
		}, nil
	}

	cfg := &Config{
		Prefix: name + ": ", // might be overridden by opts
		Stdout: l.Stdout,
		Stderr: l.Stderr,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	var path string
	if l.path != "" {
		path = filepath.Join(filepath.Dir(l.path), name+".log")
	}
	return cfg.NewLogger(path)
}

// Printf writes a formatted message to the logger's stdout.
func (l *Logger) Printf(f string, args ...interface{}) {
	fmt.Fprintf(l.Stdout, ensureNewline(f), args...)
}

// Errorf writes a formatted message to the logger's stderr.
func (l *Logger) Errorf(f string, args ...interface{}) {
	fmt.Fprintf(l.Stderr, ensureNewline(f), args...)
}

func ensureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

type prefixWriter struct {
	out    io.Writer
	prefix []byte
	buf    []byte
}

func (w *prefixWriter) Write(data []byte) (int, error) {
	// Lines are emitted whole: partial writes are buffered until their
	// newline arrives, so prefixed lines from concurrent node operations
	// never interleave mid-line. A trailing fragment with no newline stays
	// buffered.
	var count int
	for len(data) > 0 {
		if len(w.buf) == 0 {
			w.buf = append(w.buf, w.prefix...)
		}

		i := bytes.IndexByte(data, '\n')
		if i == -1 {
			// No newline, buffer the partial line.
			w.buf = append(w.buf, data...)
			count += len(data)
			break
		}

		// Output the buffered line including prefix.
		w.buf = append(w.buf, data[:i+1]...)
		if _, err := w.out.Write(w.buf); err != nil {
			return 0, err
		}
		w.buf = w.buf[:0]
		data = data[i+1:]
		count += i + 1
	}
	return count, nil
}
