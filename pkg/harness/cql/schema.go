// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package cql

import (
	"fmt"
	"strings"

	"github.com/fruch/jepsen/pkg/cassprod/config"
)

// TableOptions renders the WITH clause a workload appends to its CREATE
// TABLE statements so that the tables under test carry the configured
// compaction strategy.
func TableOptions(knobs config.Knobs) string {
	return fmt.Sprintf("WITH compaction = {'class': '%s'}", knobs.CompactionStrategy)
}

// CreateTable builds a CREATE TABLE statement for a workload table,
// applying the configured table options.
func CreateTable(keyspace, table, schema string, knobs config.Knobs) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s) %s",
		keyspace, table, strings.TrimSpace(schema), TableOptions(knobs))
}

// CreateKeyspace builds a CREATE KEYSPACE statement with simple replication
// at the given factor.
func CreateKeyspace(keyspace string, replicationFactor int) string {
	return fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = "+
			"{'class': 'SimpleStrategy', 'replication_factor': %d}",
		keyspace, replicationFactor)
}
