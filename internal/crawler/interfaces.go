package crawler

import (
	"context"

	"relentless-jobs/internal/fetch"
)

// Fetcher abstracts *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string, kind fetch.Kind) (fetch.Page, error)
}
