// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// jepsen is the command-line front end of the lifecycle harness. Every
// subcommand loads the run configuration, wires a controller over the
// configured nodes, and applies one lifecycle operation to all of them (or
// to the subset named as arguments).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/fruch/jepsen/pkg/cassprod/install"
	"github.com/fruch/jepsen/pkg/cassprod/logger"
	"github.com/fruch/jepsen/pkg/cassprod/ssh"
	"github.com/fruch/jepsen/pkg/harness"
	"github.com/fruch/jepsen/pkg/harness/admin"
	"github.com/fruch/jepsen/pkg/harness/cql"
)

var (
	configPath string
	logsDir    string
)

var rootCmd = &cobra.Command{
	Use:   "jepsen [command] (flags)",
	Short: "jepsen manages the lifecycle of a database cluster under test",
	Long: `jepsen installs, configures, starts, stops and wipes the database
process on every node of a test run, and reports cluster status through the
management protocol. The node set comes from the run configuration file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// runEnv is everything a subcommand needs: the run configuration, a root
// logger, and a controller wired over the configured nodes.
type runEnv struct {
	cfg        harness.RunConfig
	rc         *harness.RunContext
	controller *harness.Controller
	l          *logger.Logger
}

func newRunEnv() (*runEnv, error) {
	cfg, err := harness.LoadRunConfig(configPath)
	if err != nil {
		return nil, err
	}

	var logPath string
	if cfg.ArtifactsDir != "" {
		logPath = filepath.Join(cfg.ArtifactsDir, "jepsen.log")
	}
	l, err := logger.RootLogger(logPath, logger.TeeToStdout)
	if err != nil {
		return nil, err
	}

	rc := harness.NewRunContext(cfg.Nodes)
	remote := ssh.NewRemote(cfg.SSHUser, l)
	settings := install.MakeClusterSettings(install.ClusterNameOption(cfg.ClusterName))
	controller := harness.NewController(rc, remote, settings, cql.Dial, l)
	controller.RecoveryTimeout = cfg.RecoveryTimeout()

	return &runEnv{cfg: cfg, rc: rc, controller: controller, l: l}, nil
}

// selectNodes narrows the run's node set to the subcommand's arguments, or
// returns the full set when no arguments were given.
func (env *runEnv) selectNodes(args []string) ([]string, error) {
	if len(args) == 0 {
		return env.rc.Nodes, nil
	}
	known := make(map[string]struct{}, len(env.rc.Nodes))
	for _, node := range env.rc.Nodes {
		known[node] = struct{}{}
	}
	for _, node := range args {
		if _, ok := known[node]; !ok {
			return nil, errors.Errorf("node %s is not part of this run", node)
		}
	}
	return args, nil
}

var setupCmd = &cobra.Command{
	Use:   "setup [nodes]",
	Short: "install, configure, start and await readiness on every node",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newRunEnv()
		if err != nil {
			return err
		}
		defer env.l.Close()
		if len(args) > 0 {
			nodes, err := env.selectNodes(args)
			if err != nil {
				return err
			}
			return install.Parallel(context.Background(), env.l, nodes,
				env.controller.Setup, install.WithDisplay("setup"))
		}
		return env.controller.SetupAll(context.Background())
	},
}

var teardownCmd = &cobra.Command{
	Use:   "teardown [nodes]",
	Short: "stop and wipe every node, collecting logs first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newRunEnv()
		if err != nil {
			return err
		}
		defer env.l.Close()
		dest := logsDir
		if dest == "" && env.cfg.ArtifactsDir != "" {
			dest = filepath.Join(env.cfg.ArtifactsDir, "logs")
		}
		if dest != "" {
			env.controller.CollectLogs(context.Background(), dest)
		}
		if len(args) > 0 {
			nodes, err := env.selectNodes(args)
			if err != nil {
				return err
			}
			return install.Parallel(context.Background(), env.l, nodes,
				env.controller.Teardown,
				install.WithDisplay("teardown"), install.WithWaitOnFail())
		}
		return env.controller.TeardownAll(context.Background())
	},
}

var startCmd = &cobra.Command{
	Use:   "start [nodes]",
	Short: "start the database process, honoring membership guards",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newRunEnv()
		if err != nil {
			return err
		}
		defer env.l.Close()
		nodes, err := env.selectNodes(args)
		if err != nil {
			return err
		}
		return install.Parallel(context.Background(), env.l, nodes,
			func(ctx context.Context, node string) error {
				_, err := env.controller.GuardedStart(ctx, node)
				return err
			}, install.WithDisplay("start"))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [nodes]",
	Short: "stop the database process and wait until it is gone",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newRunEnv()
		if err != nil {
			return err
		}
		defer env.l.Close()
		nodes, err := env.selectNodes(args)
		if err != nil {
			return err
		}
		return install.Parallel(context.Background(), env.l, nodes,
			env.controller.Stop, install.WithDisplay("stop"), install.WithWaitOnFail())
	},
}

var wipeCmd = &cobra.Command{
	Use:   "wipe [nodes]",
	Short: "stop the database process and delete its data and logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newRunEnv()
		if err != nil {
			return err
		}
		defer env.l.Close()
		nodes, err := env.selectNodes(args)
		if err != nil {
			return err
		}
		return install.Parallel(context.Background(), env.l, nodes,
			env.controller.Wipe, install.WithDisplay("wipe"), install.WithWaitOnFail())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the live and joining node sets as seen by the cluster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newRunEnv()
		if err != nil {
			return err
		}
		defer env.l.Close()
		ctx := context.Background()

		// Probe chatter (per-candidate soft failures) goes to the run log
		// only; stdout carries just the summary below.
		probeLog, err := env.l.ChildLogger("status", logger.QuietStdout)
		if err != nil {
			return err
		}
		defer probeLog.Close()
		prober := harness.NewProber(env.rc, admin.NewHTTPClient(0), probeLog)
		live := prober.LiveNodes(ctx)
		joining := prober.JoiningNodes(ctx)
		fmt.Printf("live:    %s\n", formatSet(live))
		fmt.Printf("joining: %s\n", formatSet(joining))
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <dest-dir>",
	Short: "collect every node's database log into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newRunEnv()
		if err != nil {
			return err
		}
		defer env.l.Close()
		env.controller.CollectLogs(context.Background(), args[0])
		return nil
	},
}

func formatSet(addrs []string) string {
	if len(addrs) == 0 {
		return "(none)"
	}
	return strings.Join(addrs, " ")
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "jepsen.yaml",
		"path to the run configuration file")
	teardownCmd.Flags().StringVar(&logsDir, "logs-dir", "",
		"directory receiving collected node logs (defaults to <artifacts_dir>/logs)")

	rootCmd.AddCommand(setupCmd, teardownCmd, startCmd, stopCmd, wipeCmd,
		statusCmd, logsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
