package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"BCRPSentinel/internal/backoff"
	"BCRPSentinel/internal/model"
)

// Request identifies one series fetch. From and To are already normalized.
type Request struct {
	Code        string
	From        string
	To          string
	PreferCache bool
}

// HasRange reports whether the request is bounded.
func (r Request) HasRange() bool { return r.From != "" && r.To != "" }

// Strategy is one ordered way of obtaining a series from upstream.
// Attempt returns ErrNotApplicable when it does not apply to the request;
// otherwise a failure is recorded by the driver. Strategies may record
// intermediate failures on the trail themselves.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request, trail *Trail) (*model.SeriesRecord, error)
}

// SpecialSeries describes an indicator served better by an HTML results page.
type SpecialSeries struct {
	Slug string
	Name string
}

// DefaultSpecialSeries lists the annual GDP series the JSON API often fails on.
var DefaultSpecialSeries = map[string]SpecialSeries{
	"PM04908AA": {Slug: "PBI-nivel", Name: "PBI (millones S/)"},
	"PM05373BA": {Slug: "PBI-var", Name: "PBI (var%)"},
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

// primaryStrategy requests the series as asked, retrying transient failures
// with exponential backoff (base·2^n).
type primaryStrategy struct {
	upstream    Upstream
	maxAttempts int
	backoffBase time.Duration
	timeout     time.Duration
	sleep       sleepFunc
}

func (s *primaryStrategy) Name() string { return "primary" }

func (s *primaryStrategy) Attempt(ctx context.Context, req Request, trail *Trail) (*model.SeriesRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		rec, err := s.try(ctx, req)
		if err == nil {
			return rec, nil
		}
		lastErr = fmt.Errorf("try %d/%d: %w", attempt, s.maxAttempts, err)
		if !retryable(err, req) || ctx.Err() != nil || attempt == s.maxAttempts {
			break
		}

		trail.Add(s.Name(), lastErr)
		delay := backoff.Exponential(s.backoffBase, attempt)
		log.Printf("[WARN] %s %s failed (attempt %d/%d): %v, retrying in %v",
			s.Name(), req.Code, attempt, s.maxAttempts, err, delay)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("backoff interrupted: %w", err)
		}
	}
	return nil, lastErr
}

func (s *primaryStrategy) try(ctx context.Context, req Request) (*model.SeriesRecord, error) {
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.upstream.FetchAPI(actx, req.Code, req.From, req.To)
}

// retryable classifies a primary failure. A rejection (403/500) of a bounded
// request goes straight to the dateless strategy. Without a range there is no
// dateless alternative, so rejections are retried like any transient error.
// Malformed payloads never are.
func retryable(err error, req Request) bool {
	if errors.Is(err, ErrMalformedPayload) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Rejected() {
			return !req.HasRange()
		}
		return se.Retryable()
	}
	return true
}

// datelessStrategy repeats a rejected bounded request once without dates.
type datelessStrategy struct {
	upstream Upstream
	timeout  time.Duration
}

func (s *datelessStrategy) Name() string { return "dateless" }

func (s *datelessStrategy) Attempt(ctx context.Context, req Request, trail *Trail) (*model.SeriesRecord, error) {
	if !req.HasRange() || !trail.Rejected() {
		return nil, ErrNotApplicable
	}
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.upstream.FetchAPI(actx, req.Code, "", "")
}

// specialStrategy scrapes the HTML results page of a known-problematic series,
// then falls back to the unbounded JSON endpoint for the same code.
type specialStrategy struct {
	upstream Upstream
	table    map[string]SpecialSeries
	timeout  time.Duration
}

func (s *specialStrategy) Name() string { return "special" }

func (s *specialStrategy) Attempt(ctx context.Context, req Request, trail *Trail) (*model.SeriesRecord, error) {
	entry, ok := s.table[req.Code]
	if !ok {
		return nil, ErrNotApplicable
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	points, err := s.upstream.FetchPBIPage(pctx, entry.Slug)
	cancel()
	if err == nil {
		return &model.SeriesRecord{Code: req.Code, Name: entry.Name, Points: points}, nil
	}
	trail.Add(s.Name(), fmt.Errorf("page %s: %w", entry.Slug, err))

	bctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.upstream.FetchAPI(bctx, req.Code, "", "")
	if err != nil {
		return nil, fmt.Errorf("base endpoint: %w", err)
	}
	return rec, nil
}
