package recorder

import "time"

// RefreshRun summarizes one catalog refresh.
type RefreshRun struct {
	StartedAt time.Time
	Duration  time.Duration
	Trigger   string // "cron" or "manual"
	Requested int
	Live      int
	Cached    int
	Stale     int
	Failed    int
}

// FetchOutcome records how a single indicator was served during a refresh.
type FetchOutcome struct {
	Code     string
	Source   string // strategy name, "cache", "cache-stale" or "" when unavailable
	Stale    bool
	Points   int
	Failures int
	Error    string
}

// Recorder persists refresh history for later analysis.
type Recorder interface {
	RecordRefresh(run *RefreshRun, outcomes []FetchOutcome) error
	Close() error
}
