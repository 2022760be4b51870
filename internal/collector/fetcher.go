package collector

import "context"

// Fetcher defines the interface consumers use to obtain indicator series.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
	FetchMany(ctx context.Context, codes []string, from, to string) *Batch
	FetchRecent(ctx context.Context, codes []string, limit int) *Batch
}

var _ Fetcher = (*Service)(nil)
