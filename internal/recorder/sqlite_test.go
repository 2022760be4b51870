package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRecorder_RecordRefresh(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	run := &RefreshRun{
		StartedAt: time.Date(2024, 5, 10, 7, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Trigger:   "cron",
		Requested: 3, Live: 1, Stale: 1, Failed: 1,
	}
	outcomes := []FetchOutcome{
		{Code: "PN01271PM", Source: "primary", Points: 12},
		{Code: "PD04638PD", Source: "cache-stale", Stale: true, Points: 30, Failures: 3},
		{Code: "PM04908AA", Failures: 4, Error: "no data for indicator PM04908AA"},
	}
	require.NoError(t, r.RecordRefresh(run, outcomes))
	require.NoError(t, r.RecordRefresh(&RefreshRun{StartedAt: run.StartedAt, Trigger: "manual"}, nil))

	var runs, durationMS int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM refresh_runs`).Scan(&runs))
	assert.Equal(t, 2, runs)
	require.NoError(t, r.db.QueryRow(`SELECT duration_ms FROM refresh_runs WHERE trigger_type = 'cron'`).Scan(&durationMS))
	assert.Equal(t, 1500, durationMS)

	var stale int
	var source string
	require.NoError(t, r.db.QueryRow(
		`SELECT source, stale FROM fetch_outcomes WHERE code = ?`, "PD04638PD").Scan(&source, &stale))
	assert.Equal(t, "cache-stale", source)
	assert.Equal(t, 1, stale)

	var n int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM fetch_outcomes`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordRefresh(&RefreshRun{}, nil))
	assert.NoError(t, r.Close())
}
