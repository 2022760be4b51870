package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BCRPSentinel/internal/collector"
	"BCRPSentinel/internal/model"
	"BCRPSentinel/internal/notifier"
	"BCRPSentinel/internal/recorder"
)

type fakeFetcher struct {
	mu          sync.Mutex
	manyCalls   [][]string
	ranges      [][2]string
	recentCalls int
	batch       *collector.Batch
}

func (f *fakeFetcher) Fetch(ctx context.Context, req collector.Request) (*collector.Result, error) {
	return nil, errors.New("not used")
}

func (f *fakeFetcher) FetchMany(_ context.Context, codes []string, from, to string) *collector.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manyCalls = append(f.manyCalls, codes)
	f.ranges = append(f.ranges, [2]string{from, to})
	return f.batch
}

func (f *fakeFetcher) FetchRecent(_ context.Context, codes []string, limit int) *collector.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	return f.batch
}

type fakeRecorder struct {
	runs     []*recorder.RefreshRun
	outcomes [][]recorder.FetchOutcome
}

func (r *fakeRecorder) RecordRefresh(run *recorder.RefreshRun, outcomes []recorder.FetchOutcome) error {
	r.runs = append(r.runs, run)
	r.outcomes = append(r.outcomes, outcomes)
	return nil
}

func (r *fakeRecorder) Close() error { return nil }

func telegramSink(t *testing.T) (*notifier.TelegramNotifier, func() []string) {
	var mu sync.Mutex
	var msgs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		msgs = append(msgs, body["text"])
		mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	tn := notifier.NewTelegramNotifier("123:abc", "42", "")
	tn.APIBase = srv.URL
	return tn, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), msgs...)
	}
}

func res(code, source string, stale bool) *collector.Result {
	return &collector.Result{
		Record: &model.SeriesRecord{Code: code, Name: code, Points: []model.TimeSeriesPoint{model.Point("2024-05", 1)}},
		Source: source,
		Stale:  stale,
	}
}

func TestRefreshTask_AlertsOnStaleAndFailed(t *testing.T) {
	ff := &fakeFetcher{batch: &collector.Batch{
		Results: []*collector.Result{
			res("A", "primary", false),
			res("B", collector.SourceCache, false),
			res("C", collector.SourceCacheStale, true),
		},
		Errors: map[string]error{
			"D": &collector.ExhaustedError{Code: "D", Failures: []collector.Failure{
				{Strategy: "primary", Err: errors.New("boom")},
				{Strategy: "cache", Err: errors.New("miss")},
			}},
		},
	}}
	rec := &fakeRecorder{}
	tn, sent := telegramSink(t)

	s := NewScheduler(context.Background(), ff, tn, rec, Options{Codes: []string{"A", "B", "C", "D"}, WindowYears: 2})
	s.now = func() time.Time { return time.Date(2024, 5, 10, 7, 0, 0, 0, time.UTC) }
	s.refreshTask("cron")

	require.Len(t, ff.manyCalls, 1)
	assert.Equal(t, [2]string{"2022-05", "2024-05"}, ff.ranges[0])

	require.Len(t, rec.runs, 1)
	run := rec.runs[0]
	assert.Equal(t, "cron", run.Trigger)
	assert.Equal(t, 4, run.Requested)
	assert.Equal(t, 1, run.Live)
	assert.Equal(t, 1, run.Cached)
	assert.Equal(t, 1, run.Stale)
	assert.Equal(t, 1, run.Failed)

	outcomes := rec.outcomes[0]
	require.Len(t, outcomes, 4)
	assert.Equal(t, "D", outcomes[3].Code)
	assert.Equal(t, 2, outcomes[3].Failures)
	assert.Contains(t, outcomes[3].Error, "no data for indicator D")

	msgs := sent()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "No disponibles (1)")
}

func TestRefreshTask_QuietWhenHealthy(t *testing.T) {
	ff := &fakeFetcher{batch: &collector.Batch{Results: []*collector.Result{res("A", "primary", false)}}}
	tn, sent := telegramSink(t)
	s := NewScheduler(context.Background(), ff, tn, &fakeRecorder{}, Options{Codes: []string{"A"}})

	s.refreshTask("cron")
	assert.Empty(t, sent())

	// manual runs always report back
	s.RunRefreshNow()
	assert.Len(t, sent(), 1)
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeFetcher{}, nil, nil, Options{})
	assert.Equal(t, model.CatalogCodes(), s.opts.Codes)
	assert.Len(t, s.opts.DailyCodes, len(model.DailyIndicators))
	assert.Equal(t, 5, s.opts.WindowYears)
	assert.Equal(t, 30, s.opts.RecentLimit)
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeFetcher{}, nil, nil, Options{})
	require.NoError(t, s.RegisterAll("0 0 7 * * *", "0 30 18 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 2)

	assert.Error(t, s.RegisterAll("not a cron", "0 0 7 * * *"))
}

func TestHandleCommand(t *testing.T) {
	ff := &fakeFetcher{batch: &collector.Batch{Results: []*collector.Result{res("PD04638PD", "recent", false)}}}
	s := NewScheduler(context.Background(), ff, nil, &fakeRecorder{}, Options{})

	status := s.HandleCommand("/status")
	assert.Contains(t, status, "PD04638PD: 1 (2024-05)")
	assert.Equal(t, 1, ff.recentCalls)

	// cached until the next recent poll
	s.HandleCommand("estado")
	assert.Equal(t, 1, ff.recentCalls)

	assert.Contains(t, s.HandleCommand("/indicadores"), "PM04908AA")
	assert.Contains(t, s.HandleCommand("hola"), "/refresh")

	assert.Equal(t, "", s.HandleCommand("/refresh"))
	assert.Len(t, ff.manyCalls, 1)
}
