// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package config

import (
	"os"
	"strconv"
)

const (
	// AdminPort is the port of the node's out-of-band management interface,
	// from which cluster status attributes are read.
	AdminPort = 7199

	// CQLPort is the client driver port.
	CQLPort = 9042

	// ConfigPath is the node's on-disk configuration file.
	ConfigPath = "/etc/cassandra/cassandra.yaml"

	// PristineConfigPath is the stashed copy of the stock configuration file,
	// saved at install time. Every configure call regenerates ConfigPath from
	// this copy, which is what makes configuration idempotent.
	PristineConfigPath = "/etc/cassandra/cassandra.yaml.orig"

	// DataDir holds the database's on-disk state; removed on wipe.
	DataDir = "/var/lib/cassandra"

	// LogPath is the single fixed log file per node, fetched into the run's
	// artifacts directory on teardown.
	LogPath = "/var/log/cassandra/system.log"

	// MainProcess is the process-table pattern of the database process.
	MainProcess = "CassandraDaemon"

	// ToolProcess is the process-table pattern of the auxiliary management
	// process, killed ahead of the main process on stop.
	ToolProcess = "cassandra.tools"
)

// MaxConcurrency is the maximum number of node operations to run in
// parallel. A value of 0 means no limit.
var MaxConcurrency = 32

// Quiet reduces progress output to the terminal.
var Quiet = false

// Knobs are the environment-derived configuration knobs recognized by the
// harness. Each knob has a default matching a stock installation; the
// environment overrides them per run.
type Knobs struct {
	// CompactionStrategy names the table compaction strategy under test.
	CompactionStrategy string
	// CommitlogCompression enables the commit log compression lines in the
	// rendered configuration.
	CommitlogCompression bool
	// DisableBatchlog disables the coordinator batchlog.
	DisableBatchlog bool
	// PhiThreshold is the accrual failure detector sensitivity.
	PhiThreshold int
	// DisableHints disables hinted handoff.
	DisableHints bool
}

// DefaultKnobs returns the knob defaults.
func DefaultKnobs() Knobs {
	return Knobs{
		CompactionStrategy:   "SizeTieredCompactionStrategy",
		CommitlogCompression: true,
		DisableBatchlog:      false,
		PhiThreshold:         8,
		DisableHints:         false,
	}
}

// KnobsFromEnv reads the recognized JEPSEN_* environment variables over the
// defaults. Unset or unparsable values leave the default in place.
func KnobsFromEnv() Knobs {
	k := DefaultKnobs()
	if v := os.Getenv("JEPSEN_COMPACTION_STRATEGY"); v != "" {
		k.CompactionStrategy = v
	}
	if v, ok := envBool("JEPSEN_COMMITLOG_COMPRESSION"); ok {
		k.CommitlogCompression = v
	}
	if v, ok := envBool("JEPSEN_DISABLE_COORDINATOR_BATCHLOG"); ok {
		k.DisableBatchlog = v
	}
	if v := os.Getenv("JEPSEN_PHI_VALUE"); v != "" {
		if phi, err := strconv.Atoi(v); err == nil {
			k.PhiThreshold = phi
		}
	}
	if v, ok := envBool("JEPSEN_DISABLE_HINTS"); ok {
		k.DisableHints = v
	}
	return k
}

func envBool(name string) (value, ok bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
