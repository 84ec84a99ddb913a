package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(dir, "config.yaml")}, args...))
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestCommands_MigrateSeedHistory(t *testing.T) {
	// GIVEN: An empty database file configured through the environment
	// WHEN: Migrating, rolling back, seeding and reading a history
	// THEN: Each command reports through its output writer

	dir := t.TempDir()
	t.Setenv("PAYOUT_DATABASE_PATH", filepath.Join(dir, "payouts.db"))
	t.Setenv("PAYOUT_LOGGING_LEVEL", "error")

	assert.Equal(t, "schema version: 2\n", run(t, dir, "migrate", "up"))
	assert.Equal(t, "schema version: 1\n", run(t, dir, "migrate", "down"))
	assert.Equal(t, "schema version: 1\n", run(t, dir, "migrate", "version"))

	// seed migrates back up through database.auto_migrate.
	assert.Contains(t, run(t, dir, "seed", "--scenario", "new-coach"), "loaded scenario new-coach")
	assert.Equal(t, "schema version: 2\n", run(t, dir, "migrate", "version"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(run(t, dir, "history", "--coach", "coach-001", "--months", "3")), &rows))
	assert.Len(t, rows, 3)
}

func TestCommands_SeedUnknownScenario(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAYOUT_DATABASE_PATH", filepath.Join(dir, "payouts.db"))
	t.Setenv("PAYOUT_LOGGING_LEVEL", "error")

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(dir, "config.yaml"), "seed", "--scenario", "nope"})
	assert.Error(t, root.Execute())
}
