package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"BCRPSentinel/internal/backoff"
	"BCRPSentinel/internal/cache"
	"BCRPSentinel/internal/model"
	"BCRPSentinel/internal/sanitizer"
)

// Result sources.
const (
	SourceCache      = "cache"
	SourceCacheStale = "cache-stale"
	SourceRecent     = "recent"
)

// Result is a sanitized series together with where it came from.
type Result struct {
	Record    *model.SeriesRecord
	Source    string
	Stale     bool
	FetchedAt time.Time
	// Failures lists the strategies that failed before this result was obtained.
	Failures []Failure
}

func (r *Result) clone() *Result {
	out := *r
	out.Record = r.Record.Clone()
	out.Failures = append([]Failure(nil), r.Failures...)
	return &out
}

// Batch is the outcome of a multi-indicator fetch. Results keep request order;
// codes that could not be served are listed in Errors.
type Batch struct {
	Results []*Result
	Errors  map[string]error
}

// Options tunes the resilient fetcher.
type Options struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
	RecentTimeout  time.Duration
	Concurrency    int
	Special        map[string]SpecialSeries
}

func (o *Options) defaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 30 * time.Second
	}
	if o.RecentTimeout <= 0 {
		o.RecentTimeout = 10 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Special == nil {
		o.Special = DefaultSpecialSeries
	}
}

// Service obtains sanitized series, walking the fallback strategies in order
// and falling back to the cache when every live strategy fails.
type Service struct {
	upstream   Upstream
	store      cache.Store
	strategies []Strategy
	opts       Options
	group      singleflight.Group
	now        func() time.Time
}

// NewService wires the default strategy chain: primary, dateless, special.
func NewService(upstream Upstream, store cache.Store, opts Options) *Service {
	opts.defaults()
	s := &Service{
		upstream: upstream,
		store:    store,
		opts:     opts,
		now:      time.Now,
	}
	s.strategies = []Strategy{
		&primaryStrategy{
			upstream:    upstream,
			maxAttempts: opts.MaxAttempts,
			backoffBase: opts.BackoffBase,
			timeout:     opts.AttemptTimeout,
			sleep:       backoff.Sleep,
		},
		&datelessStrategy{upstream: upstream, timeout: opts.AttemptTimeout},
		&specialStrategy{upstream: upstream, table: opts.Special, timeout: opts.AttemptTimeout},
	}
	return s
}

// Strategies returns the names of the live strategies in execution order.
func (s *Service) Strategies() []string {
	names := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		names[i] = st.Name()
	}
	return names
}

// Fetch returns the sanitized series for code within [from, to].
// Bounds may be YYYY-MM or YYYY-MM-DD. Identical concurrent calls share one
// fetch, which runs detached from any single caller's cancellation and is
// bounded by the per-attempt timeouts. A caller whose ctx ends stops waiting
// without affecting the others.
func (s *Service) Fetch(ctx context.Context, req Request) (*Result, error) {
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return nil, ErrEmptyCode
	}
	from, to, err := NormalizeRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	req.From, req.To = from, to

	key := fmt.Sprintf("%s|%s|%s|%t", req.Code, req.From, req.To, req.PreferCache)
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetch(shared, req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result).clone(), nil
	}
}

func (s *Service) fetch(ctx context.Context, req Request) (*Result, error) {
	trace := uuid.NewString()[:8]
	trail := &Trail{}
	log.Printf("[INFO] [%s] fetching %s range=%q..%q", trace, req.Code, req.From, req.To)

	if req.PreferCache {
		if res := s.fromCache(ctx, trace, req.Code, cache.LookupFresh, nil); res != nil {
			return res, nil
		}
	}

	for _, st := range s.strategies {
		rec, err := st.Attempt(ctx, req, trail)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err != nil {
			log.Printf("[WARN] [%s] %s strategy failed for %s: %v", trace, st.Name(), req.Code, err)
			trail.Add(st.Name(), err)
			continue
		}

		clean := sanitizer.SanitizeRecord(rec)
		if s.store != nil {
			if err := s.store.Upsert(ctx, req.Code, clean); err != nil {
				log.Printf("[WARN] [%s] cache write for %s failed: %v", trace, req.Code, err)
			}
		}
		log.Printf("[INFO] [%s] %s served by %s (%d points)", trace, req.Code, st.Name(), len(clean.Points))
		return &Result{
			Record:    clean,
			Source:    st.Name(),
			FetchedAt: s.now(),
			Failures:  trail.Failures(),
		}, nil
	}

	if res := s.fromCache(ctx, trace, req.Code, cache.LookupFresh, trail); res != nil {
		return res, nil
	}
	if res := s.fromCache(ctx, trace, req.Code, cache.LookupForced, trail); res != nil {
		return res, nil
	}

	exhausted := &ExhaustedError{Code: req.Code, Failures: trail.Failures()}
	log.Printf("[ERROR] [%s] %v", trace, exhausted)
	return nil, exhausted
}

// fromCache serves a sanitized cached snapshot. Lookup errors are recorded on
// trail when one is given; a forced miss is recorded as well.
func (s *Service) fromCache(ctx context.Context, trace, code string, mode cache.LookupMode, trail *Trail) *Result {
	if s.store == nil {
		return nil
	}
	ent, err := s.store.Get(ctx, code, mode)
	if err != nil {
		if trail != nil && (mode == cache.LookupForced || !errors.Is(err, cache.ErrNotFound)) {
			trail.Add("cache", fmt.Errorf("%s lookup: %w", mode, err))
		}
		return nil
	}

	res := &Result{
		Record:    sanitizer.SanitizeRecord(ent.Record),
		Source:    SourceCache,
		FetchedAt: ent.RetrievedAt,
	}
	if trail != nil {
		res.Failures = trail.Failures()
	}
	if mode == cache.LookupForced {
		res.Source = SourceCacheStale
		res.Stale = true
		log.Printf("[WARN] [%s] serving possibly outdated %s from cache (retrieved %s)",
			trace, code, ent.RetrievedAt.Format(time.RFC3339))
	} else {
		log.Printf("[INFO] [%s] serving %s from cache", trace, code)
	}
	return res
}

// FetchMany fetches several indicators concurrently. A failing code never
// affects the others.
func (s *Service) FetchMany(ctx context.Context, codes []string, from, to string) *Batch {
	results := make([]*Result, len(codes))
	errs := make([]error, len(codes))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, code := range codes {
		g.Go(func() error {
			results[i], errs[i] = s.Fetch(ctx, Request{Code: code, From: from, To: to})
			return nil
		})
	}
	_ = g.Wait()

	return collect(codes, results, errs)
}

// FetchRecent returns the last limit observations of each code using a single
// unbounded request per code with a short timeout. It bypasses the fallback
// chain and the cache.
func (s *Service) FetchRecent(ctx context.Context, codes []string, limit int) *Batch {
	results := make([]*Result, len(codes))
	errs := make([]error, len(codes))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, code := range codes {
		g.Go(func() error {
			results[i], errs[i] = s.recent(ctx, code, limit)
			return nil
		})
	}
	_ = g.Wait()

	return collect(codes, results, errs)
}

func (s *Service) recent(ctx context.Context, code string, limit int) (*Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	rctx, cancel := context.WithTimeout(ctx, s.opts.RecentTimeout)
	defer cancel()

	rec, err := s.upstream.FetchAPI(rctx, code, "", "")
	if err != nil {
		log.Printf("[WARN] recent data for %s failed: %v", code, err)
		return nil, err
	}
	return &Result{
		Record:    sanitizer.SanitizeRecord(rec.Tail(limit)),
		Source:    SourceRecent,
		FetchedAt: s.now(),
	}, nil
}

func collect(codes []string, results []*Result, errs []error) *Batch {
	b := &Batch{Errors: make(map[string]error)}
	for i, code := range codes {
		if errs[i] != nil {
			b.Errors[code] = errs[i]
			continue
		}
		b.Results = append(b.Results, results[i])
	}
	return b
}
