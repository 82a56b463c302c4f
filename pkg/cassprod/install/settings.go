// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package install

import "github.com/fruch/jepsen/pkg/cassprod/config"

// ClusterSettings contains the knobs that shape the configuration rendered
// for every node of a cluster.
type ClusterSettings struct {
	// ClusterName is written into every node's configuration; nodes with
	// mismatched names refuse to gossip.
	ClusterName string
	// KeyCacheSizeMB bounds the partition key cache.
	KeyCacheSizeMB int
	// InternodeCompression is one of all, dc, none.
	InternodeCompression string
	// CommitlogSync is the commit log sync mode; the harness runs batch mode
	// so that acknowledged writes are on disk.
	CommitlogSync string
	// CommitlogBatchWindowMS is the batch sync window.
	CommitlogBatchWindowMS float64
	// Knobs are the environment-derived options.
	Knobs config.Knobs
}

// ClusterSettingOption is the interface satisfied by options to
// MakeClusterSettings.
type ClusterSettingOption interface {
	apply(settings *ClusterSettings)
}

// ClusterNameOption is used to pass a cluster name.
type ClusterNameOption string

func (o ClusterNameOption) apply(settings *ClusterSettings) {
	settings.ClusterName = string(o)
}

// KeyCacheSizeOption is used to pass a key cache size in megabytes.
type KeyCacheSizeOption int

func (o KeyCacheSizeOption) apply(settings *ClusterSettings) {
	settings.KeyCacheSizeMB = int(o)
}

// InternodeCompressionOption is used to pass the internode compression mode.
type InternodeCompressionOption string

func (o InternodeCompressionOption) apply(settings *ClusterSettings) {
	settings.InternodeCompression = string(o)
}

// KnobsOption replaces the environment-derived knobs wholesale.
type KnobsOption config.Knobs

func (o KnobsOption) apply(settings *ClusterSettings) {
	settings.Knobs = config.Knobs(o)
}

// MakeClusterSettings makes a ClusterSettings with the given options,
// applied over defaults. The knob defaults come from the environment.
func MakeClusterSettings(opts ...ClusterSettingOption) ClusterSettings {
	clusterSettings := ClusterSettings{
		ClusterName:            "jepsen",
		KeyCacheSizeMB:         16,
		InternodeCompression:   "all",
		CommitlogSync:          "batch",
		CommitlogBatchWindowMS: 1.0,
		Knobs:                  config.KnobsFromEnv(),
	}
	for _, opt := range opts {
		opt.apply(&clusterSettings)
	}
	return clusterSettings
}
