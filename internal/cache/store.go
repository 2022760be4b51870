package cache

import (
	"context"
	"errors"
	"time"

	"BCRPSentinel/internal/model"
)

// ErrNotFound is returned when no usable entry exists for a code.
var ErrNotFound = errors.New("cache: entry not found")

// LookupMode selects how strict a cache read is about freshness.
type LookupMode int

const (
	// LookupFresh only returns entries retrieved on the current calendar day.
	LookupFresh LookupMode = iota
	// LookupForced returns any entry regardless of age.
	LookupForced
)

func (m LookupMode) String() string {
	if m == LookupForced {
		return "forced"
	}
	return "fresh"
}

// Entry is a cached, already sanitized series snapshot.
type Entry struct {
	Record      *model.SeriesRecord
	RetrievedAt time.Time
}

// Store persists the last good series per indicator code.
// Upserts are last-writer-wins; entries for different codes never interact.
type Store interface {
	Get(ctx context.Context, code string, mode LookupMode) (*Entry, error)
	Upsert(ctx context.Context, code string, rec *model.SeriesRecord) error
	Close() error
}

// SameDay reports whether a and b fall on the same calendar date in loc.
// Freshness is deliberately coarse: 00:01 and 23:59 of one day are equivalent.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// freshness holds the clock and timezone shared by store implementations.
type freshness struct {
	now func() time.Time
	loc *time.Location
}

func newFreshness(loc *time.Location) freshness {
	if loc == nil {
		loc = time.UTC
	}
	return freshness{now: time.Now, loc: loc}
}

func (f freshness) accept(retrievedAt time.Time, mode LookupMode) bool {
	if mode == LookupForced {
		return true
	}
	return SameDay(retrievedAt, f.now(), f.loc)
}
