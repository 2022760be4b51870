package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"BCRPSentinel/internal/collector"
	"BCRPSentinel/internal/model"
	"BCRPSentinel/internal/notifier"
	"BCRPSentinel/internal/recorder"
)

// Options selects what the scheduled tasks fetch.
type Options struct {
	Codes       []string // refreshed on every run; defaults to the whole catalog
	DailyCodes  []string // polled by the recent task; defaults to the daily catalog
	WindowYears int
	RecentLimit int
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Fetcher  collector.Fetcher
	Notifier *notifier.TelegramNotifier
	Recorder recorder.Recorder
	Ctx      context.Context

	opts Options
	now  func() time.Time

	refreshMu  sync.Mutex
	mu         sync.Mutex
	lastRecent *collector.Batch
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, f collector.Fetcher, tn *notifier.TelegramNotifier, rec recorder.Recorder, opts Options) *Scheduler {
	if len(opts.Codes) == 0 {
		opts.Codes = model.CatalogCodes()
	}
	if len(opts.DailyCodes) == 0 {
		for _, ind := range model.DailyIndicators {
			opts.DailyCodes = append(opts.DailyCodes, ind.Code)
		}
	}
	if opts.WindowYears <= 0 {
		opts.WindowYears = 5
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 30
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Fetcher:  f,
		Notifier: tn,
		Recorder: rec,
		Ctx:      ctx,
		opts:     opts,
		now:      time.Now,
	}
}

// RegisterAll registers the catalog refresh and the recent-data poll.
func (s *Scheduler) RegisterAll(refreshCron, recentCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, func() { s.refreshTask("cron") }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(recentCron, s.recentTask); err != nil {
		return fmt.Errorf("register recent task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask("manual")
}

// refreshWindow returns the trailing month range refreshed on every run.
func (s *Scheduler) refreshWindow() (string, string) {
	now := s.now()
	return now.AddDate(-s.opts.WindowYears, 0, 0).Format("2006-01"), now.Format("2006-01")
}

func (s *Scheduler) refreshTask(trigger string) {
	if !s.refreshMu.TryLock() {
		log.Println("[WARN] refresh already running, skipping")
		return
	}
	defer s.refreshMu.Unlock()

	from, to := s.refreshWindow()
	log.Printf("[INFO] running refresh (%s) of %d indicators, %s..%s", trigger, len(s.opts.Codes), from, to)
	started := s.now()
	batch := s.Fetcher.FetchMany(s.Ctx, s.opts.Codes, from, to)
	took := s.now().Sub(started)

	run, outcomes := summarize(batch, s.opts.Codes)
	run.StartedAt = started
	run.Duration = took
	run.Trigger = trigger
	log.Printf("[INFO] refresh done in %v: live=%d cached=%d stale=%d failed=%d",
		took, run.Live, run.Cached, run.Stale, run.Failed)

	if err := s.Recorder.RecordRefresh(run, outcomes); err != nil {
		log.Printf("[ERROR] record refresh: %v", err)
	}

	if run.Stale > 0 || run.Failed > 0 || trigger == "manual" {
		s.trySend(notifier.FormatRefreshReport(batch, took))
	}
}

func summarize(batch *collector.Batch, codes []string) (*recorder.RefreshRun, []recorder.FetchOutcome) {
	run := &recorder.RefreshRun{Requested: len(codes)}
	outcomes := make([]recorder.FetchOutcome, 0, len(codes))

	for _, r := range batch.Results {
		o := recorder.FetchOutcome{
			Code:     r.Record.Code,
			Source:   r.Source,
			Stale:    r.Stale,
			Points:   len(r.Record.Points),
			Failures: len(r.Failures),
		}
		switch {
		case r.Stale:
			run.Stale++
		case r.Source == collector.SourceCache:
			run.Cached++
		default:
			run.Live++
		}
		outcomes = append(outcomes, o)
	}
	for _, code := range codes {
		err, ok := batch.Errors[code]
		if !ok {
			continue
		}
		run.Failed++
		o := recorder.FetchOutcome{Code: code, Error: err.Error()}
		var ex *collector.ExhaustedError
		if errors.As(err, &ex) {
			o.Failures = len(ex.Failures)
		}
		outcomes = append(outcomes, o)
	}
	return run, outcomes
}

func (s *Scheduler) recentTask() {
	log.Printf("[INFO] polling recent data for %d daily indicators", len(s.opts.DailyCodes))
	batch := s.Fetcher.FetchRecent(s.Ctx, s.opts.DailyCodes, s.opts.RecentLimit)
	for _, r := range batch.Results {
		if p, ok := r.Record.Latest(); ok && p.IsNumber() {
			log.Printf("[INFO] %s latest %s = %g", r.Record.Code, p.Date, p.Value.Float64)
		}
	}
	for code, err := range batch.Errors {
		log.Printf("[WARN] recent data for %s unavailable: %v", code, err)
	}

	s.mu.Lock()
	s.lastRecent = batch
	s.mu.Unlock()
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "actualizar", "/refresh":
		s.RunRefreshNow()
		return ""
	case "estado", "/status":
		s.mu.Lock()
		batch := s.lastRecent
		s.mu.Unlock()
		if batch == nil {
			s.recentTask()
			s.mu.Lock()
			batch = s.lastRecent
			s.mu.Unlock()
		}
		return notifier.FormatStatus(batch)
	case "indicadores", "/indicadores":
		return notifier.FormatCatalog()
	default:
		return "Comandos disponibles:\n• /refresh actualizar todos los indicadores\n• /status últimos valores diarios\n• /indicadores catálogo"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
