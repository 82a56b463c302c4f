// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package harness

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	yaml "gopkg.in/yaml.v2"
)

// RunConfig is the harness's own configuration for one test run, loaded
// from a YAML file. It is distinct from the database configuration the
// harness writes onto the nodes.
type RunConfig struct {
	// Nodes are the hostnames participating in the run.
	Nodes []string `yaml:"nodes"`
	// SSHUser is the user the remote capability connects as.
	SSHUser string `yaml:"ssh_user"`
	// ClusterName is written into every node's database configuration.
	ClusterName string `yaml:"cluster_name"`
	// ArtifactsDir receives run logs and collected node logs.
	ArtifactsDir string `yaml:"artifacts_dir"`
	// RecoveryTimeoutSeconds bounds the post-start convergence wait.
	RecoveryTimeoutSeconds int `yaml:"recovery_timeout_seconds"`
}

// LoadRunConfig reads and validates a run configuration file.
func LoadRunConfig(path string) (RunConfig, error) {
	var cfg RunConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading run config %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing run config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid run config %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration and fills in defaults.
func (cfg *RunConfig) Validate() error {
	if len(cfg.Nodes) == 0 {
		return errors.New("no nodes configured")
	}
	seen := make(map[string]struct{}, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		if node == "" {
			return errors.New("empty node name")
		}
		if _, ok := seen[node]; ok {
			return errors.Errorf("duplicate node %s", node)
		}
		seen[node] = struct{}{}
	}
	if cfg.SSHUser == "" {
		cfg.SSHUser = "ubuntu"
	}
	if cfg.ClusterName == "" {
		cfg.ClusterName = "jepsen"
	}
	if cfg.RecoveryTimeoutSeconds <= 0 {
		cfg.RecoveryTimeoutSeconds = 120
	}
	return nil
}

// RecoveryTimeout returns the configured convergence bound as a duration.
func (cfg *RunConfig) RecoveryTimeout() time.Duration {
	return time.Duration(cfg.RecoveryTimeoutSeconds) * time.Second
}
