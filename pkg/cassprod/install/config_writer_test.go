// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package install

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fruch/jepsen/pkg/cassprod/config"
	"github.com/fruch/jepsen/pkg/cassprod/logger"
)

// sampleBase mimics the relevant shape of a stock configuration file,
// including nested seed indentation and commented-out optional keys.
const sampleBase = `cluster_name: 'Test Cluster'
hinted_handoff_enabled: true
commitlog_sync: periodic
commitlog_sync_period_in_ms: 10000
seed_provider:
    - class_name: org.apache.cassandra.locator.SimpleSeedProvider
      parameters:
          - seeds: "127.0.0.1"
listen_address: localhost
rpc_address: localhost
# broadcast_address: 1.2.3.4
# internode_compression: dc
# phi_convict_threshold: 8
`

func testSettings() ClusterSettings {
	return MakeClusterSettings(
		ClusterNameOption("jepsen"),
		KnobsOption(config.DefaultKnobs()),
	)
}

func TestRenderConfigSubstitutions(t *testing.T) {
	nc := NodeConfig{
		Addr:      "10.0.0.1",
		SeedAddrs: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		Settings:  testSettings(),
	}
	doc := RenderConfig(sampleBase, nc)

	for _, line := range []string{
		"cluster_name: 'jepsen'",
		`          - seeds: "10.0.0.1,10.0.0.2,10.0.0.3"`,
		"listen_address: 10.0.0.1",
		"rpc_address: 10.0.0.1",
		"broadcast_address: 10.0.0.1",
		"internode_compression: all",
		"hinted_handoff_enabled: true",
		"commitlog_sync: batch",
		"# commitlog_sync_period_in_ms: 10000",
		"commitlog_sync_batch_window_in_ms: 1",
		"phi_convict_threshold: 8",
		"developer_mode: true",
		"key_cache_size_in_mb: 16",
		"auto_bootstrap: true",
		"commitlog_compression:",
		"    - class_name: LZ4Compressor",
	} {
		require.Contains(t, doc, line+"\n", "missing line %q", line)
	}
	require.NotContains(t, doc, "localhost")
	require.NotContains(t, doc, "Test Cluster")
}

func TestRenderConfigKnobs(t *testing.T) {
	knobs := config.DefaultKnobs()
	knobs.DisableHints = true
	knobs.PhiThreshold = 12
	knobs.CommitlogCompression = false

	nc := NodeConfig{
		Addr:      "10.0.0.1",
		SeedAddrs: []string{"10.0.0.1"},
		Settings:  MakeClusterSettings(KnobsOption(knobs)),
	}
	doc := RenderConfig(sampleBase, nc)

	require.Contains(t, doc, "hinted_handoff_enabled: false\n")
	require.Contains(t, doc, "phi_convict_threshold: 12\n")
	require.NotContains(t, doc, "commitlog_compression")
}

func TestRenderConfigIdempotent(t *testing.T) {
	nc := NodeConfig{
		Addr:      "10.0.0.2",
		SeedAddrs: []string{"10.0.0.1", "10.0.0.2"},
		Settings:  testSettings(),
	}
	first := RenderConfig(sampleBase, nc)
	second := RenderConfig(sampleBase, nc)
	require.Equal(t, first, second)
}

// TestConfigureRegeneratesFromPristine checks that repeated Configure calls
// write byte-identical content, because rendering always starts from the
// stashed pristine copy rather than the previously written file.
func TestConfigureRegeneratesFromPristine(t *testing.T) {
	var writes []string
	capability := &fakeCapability{
		respond: func(node string, args []string) (string, error) {
			if args[0] == "cat" {
				return sampleBase, nil
			}
			if args[0] == "bash" {
				writes = append(writes, args[2])
			}
			return "", nil
		},
	}
	w := NewConfigWriter(capability, logger.Discard())
	nc := NodeConfig{
		Addr:      "10.0.0.3",
		SeedAddrs: []string{"10.0.0.1", "10.0.0.2"},
		Settings:  testSettings(),
	}

	ctx := context.Background()
	require.NoError(t, w.Configure(ctx, "n3", nc))
	require.NoError(t, w.Configure(ctx, "n3", nc))
	require.Len(t, writes, 2)
	require.Equal(t, writes[0], writes[1])
	require.True(t, strings.Contains(writes[0], config.ConfigPath))
}
