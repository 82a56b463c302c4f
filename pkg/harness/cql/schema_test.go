// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package cql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fruch/jepsen/pkg/cassprod/config"
)

func TestTableOptions(t *testing.T) {
	knobs := config.DefaultKnobs()
	require.Equal(t,
		"WITH compaction = {'class': 'SizeTieredCompactionStrategy'}",
		TableOptions(knobs))

	knobs.CompactionStrategy = "LeveledCompactionStrategy"
	require.Equal(t,
		"WITH compaction = {'class': 'LeveledCompactionStrategy'}",
		TableOptions(knobs))
}

func TestCreateTable(t *testing.T) {
	stmt := CreateTable("jepsen", "registers", `
		id int PRIMARY KEY,
		value int
	`, config.DefaultKnobs())
	require.Equal(t,
		"CREATE TABLE IF NOT EXISTS jepsen.registers (id int PRIMARY KEY,\n\t\tvalue int) "+
			"WITH compaction = {'class': 'SizeTieredCompactionStrategy'}",
		stmt)
}

func TestCreateKeyspace(t *testing.T) {
	require.Equal(t,
		"CREATE KEYSPACE IF NOT EXISTS jepsen WITH replication = "+
			"{'class': 'SimpleStrategy', 'replication_factor': 3}",
		CreateKeyspace("jepsen", 3))
}
