package crawler

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"relentless-jobs/internal/extract"
	"relentless-jobs/internal/fetch"
	"relentless-jobs/internal/metrics"
	"relentless-jobs/internal/models"
	"relentless-jobs/pkg/logging"
)

// Options bounds one crawl. Zero values take the defaults in withDefaults.
type Options struct {
	RunID             string
	MaxItems          int    // 0 = unbounded
	Concurrency       int    // shared by summary and detail fetches
	SearchConcurrency int    // walkers running at once
	MaxPages          int    // per search URL; 0 = unbounded
	StaleLimit        int    // consecutive all-duplicate pages before a walker stops
	PageParam         string // query parameter to increment when a page has no next link
	Metrics           *metrics.Metrics
	Logger            *logging.Logger
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.SearchConcurrency <= 0 {
		o.SearchConcurrency = 2
	}
	if o.StaleLimit < 0 {
		o.StaleLimit = 0
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Pipeline walks search URLs, completes listings from their detail pages and
// collects deduplicated records.
type Pipeline struct {
	fetcher Fetcher
	parser  *extract.Parser
	opts    Options
	log     *logging.Logger
}

func New(fetcher Fetcher, parser *extract.Parser, opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		fetcher: fetcher,
		parser:  parser,
		opts:    opts,
		log:     opts.Logger,
	}
}

// Result is what a finished crawl hands to the exporters.
type Result struct {
	Records []models.JobRecord
	Summary models.RunSummary
}

// run holds the state of one Run call.
type run struct {
	p       *Pipeline
	coord   *coordinator
	sem     chan struct{}
	details sync.WaitGroup
}

// Run crawls every search URL and returns records in discovery order. Per-URL
// and per-listing failures are reported in the summary; only a run with no
// usable outcome returns *RunAbortError, alongside the summary.
func (p *Pipeline) Run(ctx context.Context, searchURLs []string) (Result, error) {
	started := p.opts.Now()
	r := &run{
		p:     p,
		coord: newCoordinator(p.opts.MaxItems, searchURLs),
		sem:   make(chan struct{}, p.opts.Concurrency),
	}

	var valid []int
	for i, raw := range searchURLs {
		if err := validateSearchURL(raw); err != nil {
			r.coord.Fail(i, err)
			continue
		}
		valid = append(valid, i)
	}
	if len(valid) == 0 {
		res := p.result(r, started)
		return res, &RunAbortError{Reason: "no usable search URLs", Failed: res.Summary.FailedSearchURLs}
	}

	p.log.Info("crawl started",
		"run_id", p.opts.RunID,
		"search_urls", len(valid),
		"max_items", p.opts.MaxItems,
		"concurrency", p.opts.Concurrency,
	)

	var g errgroup.Group
	g.SetLimit(p.opts.SearchConcurrency)
	for _, i := range valid {
		w := p.newWalker(r, i, searchURLs[i])
		g.Go(func() error {
			w.walk(ctx)
			return nil
		})
	}
	_ = g.Wait()
	r.details.Wait()

	res := p.result(r, started)
	p.log.Info("crawl finished",
		"run_id", p.opts.RunID,
		"records", res.Summary.RecordsEmitted,
		"parse_anomalies", res.Summary.ParseAnomalies,
		"fetch_failures", res.Summary.FetchFailures,
		"failed_search_urls", len(res.Summary.FailedSearchURLs),
		"elapsed", res.Summary.Elapsed.String(),
	)
	if len(res.Records) == 0 && len(res.Summary.FailedSearchURLs) == len(searchURLs) {
		return res, &RunAbortError{Reason: "every search URL failed", Failed: res.Summary.FailedSearchURLs}
	}
	return res, nil
}

func (p *Pipeline) result(r *run, started time.Time) Result {
	finished := p.opts.Now()
	records := r.coord.Records()
	searches := r.coord.Searches()
	anomalies := r.coord.Anomalies()
	failures := r.coord.Failures()

	summary := models.RunSummary{
		RunID:            p.opts.RunID,
		StartedAt:        started.UTC(),
		FinishedAt:       finished.UTC(),
		Elapsed:          finished.Sub(started),
		ElapsedSeconds:   finished.Sub(started).Seconds(),
		RecordsEmitted:   len(records),
		FetchFailures:    len(failures),
		FailedSearchURLs: []string{},
		Searches:         searches,
		Anomalies:        anomalies,
		Failures:         failures,
	}
	for _, a := range anomalies {
		if a.Kind == models.AnomalyParse {
			summary.ParseAnomalies++
		}
	}
	for _, s := range searches {
		if s.State == models.SearchFailed {
			summary.FailedSearchURLs = append(summary.FailedSearchURLs, s.URL)
		}
	}
	return Result{Records: records, Summary: summary}
}

// fetch runs one request inside the shared fetch semaphore.
func (r *run) fetch(ctx context.Context, rawURL string, kind fetch.Kind) (fetch.Page, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return fetch.Page{}, ctx.Err()
	}
	r.p.opts.Metrics.InFlight(1)
	defer func() {
		r.p.opts.Metrics.InFlight(-1)
		<-r.sem
	}()
	return r.p.fetcher.Fetch(ctx, rawURL, kind)
}

func (r *run) startDetail(ctx context.Context, partial models.PartialRecord) {
	r.details.Add(1)
	go func() {
		defer r.details.Done()
		r.detail(ctx, partial)
	}()
}

// detail completes one admitted listing. A vanished listing is dropped; any
// other failure keeps the summary fields.
func (r *run) detail(ctx context.Context, partial models.PartialRecord) {
	page, err := r.fetch(ctx, partial.Link, fetch.KindDetail)
	if err != nil {
		r.recordFailure(partial.SearchURL, partial.Link, fetch.KindDetail, err)
		if fetch.IsNotFound(err) {
			r.anomalies(models.Anomaly{
				Kind:      models.AnomalyNotFound,
				SearchURL: partial.SearchURL,
				URL:       partial.Link,
				Message:   err.Error(),
			})
			r.coord.Complete(models.JobRecord{}, partial.Ordinal, false)
			return
		}
		r.partial(partial, err)
		return
	}
	r.p.opts.Metrics.DetailFetched()

	record, err := r.p.parser.ParseDetail(page.Body, pageBase(page, partial.Link), partial)
	if err != nil {
		r.partial(partial, err)
		return
	}
	r.coord.Complete(record, partial.Ordinal, true)
	r.p.opts.Metrics.RecordEmitted()
}

func (r *run) partial(partial models.PartialRecord, err error) {
	r.anomalies(models.Anomaly{
		Kind:      models.AnomalyPartial,
		SearchURL: partial.SearchURL,
		URL:       partial.Link,
		Message:   err.Error(),
		Partial:   true,
	})
	r.coord.Complete(partial.Record(), partial.Ordinal, true)
	r.p.opts.Metrics.RecordEmitted()
}

func (r *run) anomalies(a ...models.Anomaly) {
	for _, anomaly := range a {
		if anomaly.Kind == models.AnomalyParse {
			r.p.opts.Metrics.ParseAnomaly()
		}
	}
	r.coord.Anomaly(a...)
}

func (r *run) recordFailure(searchURL, pageURL string, kind fetch.Kind, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	r.p.opts.Metrics.FetchFailure()
	r.coord.Failure(failureFor(r.p.opts.RunID, searchURL, pageURL, kind, err, r.p.opts.Now()))
	r.p.log.Warn("fetch failed", "kind", kind.String(), "url", pageURL, "error", err)
}

func validateSearchURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &fetch.ClientError{URL: raw, Reason: "invalid url"}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &fetch.ClientError{URL: raw, Reason: "invalid url"}
	}
	return nil
}
