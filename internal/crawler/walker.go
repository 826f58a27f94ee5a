package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"relentless-jobs/internal/fetch"
	"relentless-jobs/internal/models"
	"relentless-jobs/pkg/logging"
)

// walker drives one search URL through
// Seeding -> Fetching -> Parsing -> Advancing -> ... -> Exhausted | Failed.
// Pages of one chain are fetched strictly in sequence.
type walker struct {
	p       *Pipeline
	run     *run
	index   int
	search  string
	task    models.CrawlTask
	visited map[string]struct{}
	stale   int
	log     *logging.Logger
}

func (p *Pipeline) newWalker(r *run, index int, searchURL string) *walker {
	return &walker{
		p:       p,
		run:     r,
		index:   index,
		search:  searchURL,
		visited: make(map[string]struct{}),
		log:     p.log.With("search", searchURL),
	}
}

func (w *walker) walk(ctx context.Context) {
	coord := w.run.coord
	coord.SetState(w.index, models.SearchSeeding, "")
	w.task = models.CrawlTask{SearchURL: w.search, SearchIndex: w.index, PageIndex: 1, URL: w.search}
	w.visited[pageKey(w.search)] = struct{}{}

	for {
		if err := ctx.Err(); err != nil {
			w.fail(err)
			return
		}
		if w.p.opts.MaxPages > 0 && w.task.PageIndex > w.p.opts.MaxPages {
			w.exhaust("max pages reached")
			return
		}
		ok, err := coord.HasCapacity(ctx)
		if err != nil {
			w.fail(err)
			return
		}
		if !ok {
			w.exhaust("item cap reached")
			return
		}

		coord.SetState(w.index, models.SearchFetching, "")
		page, err := w.run.fetch(ctx, w.task.URL, fetch.KindSummary)
		if err != nil {
			w.run.recordFailure(w.search, w.task.URL, fetch.KindSummary, err)
			w.fail(err)
			return
		}
		coord.PageFetched(w.index)
		w.p.opts.Metrics.PageFetched()

		coord.SetState(w.index, models.SearchParsing, "")
		parsed, err := w.p.parser.ParseSummary(page.Body, pageBase(page, w.task.URL), w.search)
		if err != nil {
			w.fail(err)
			return
		}
		w.run.anomalies(parsed.Anomalies...)
		if len(parsed.Records) == 0 {
			w.exhaust("no listings on page")
			return
		}

		admitted, duplicates, capped, err := w.admit(ctx, parsed.Records)
		w.log.Debug("page parsed",
			"page", w.task.PageIndex,
			"url", w.task.URL,
			"cards", len(parsed.Records),
			"admitted", admitted,
			"duplicates", duplicates,
		)
		if err != nil {
			w.fail(err)
			return
		}
		if capped {
			w.exhaust("item cap reached")
			return
		}
		if admitted == 0 {
			w.stale++
			w.run.anomalies(models.Anomaly{
				Kind:      models.AnomalyDuplicatePage,
				SearchURL: w.search,
				URL:       w.task.URL,
				Message:   fmt.Sprintf("all %d listings already seen", duplicates),
			})
			if w.p.opts.StaleLimit > 0 && w.stale >= w.p.opts.StaleLimit {
				w.exhaust("consecutive duplicate pages")
				return
			}
		} else {
			w.stale = 0
		}

		coord.SetState(w.index, models.SearchAdvancing, "")
		next := parsed.NextURL
		if next == "" && w.p.opts.PageParam != "" {
			next = withPageParam(w.task.URL, w.p.opts.PageParam, w.task.PageIndex+1)
		}
		if next == "" {
			w.exhaust("no next page")
			return
		}
		key := pageKey(next)
		if _, seen := w.visited[key]; seen {
			w.exhaust("pagination loop")
			return
		}
		w.visited[key] = struct{}{}
		w.task = w.task.Next(next)
	}
}

// admit offers each card to the coordinator in card order and starts a
// detail fetch for every admitted one.
func (w *walker) admit(ctx context.Context, records []models.PartialRecord) (admitted, duplicates int, capped bool, err error) {
	for _, rec := range records {
		rec.Ordinal = models.Ordinal{Search: w.index, Page: w.task.PageIndex, Card: rec.Ordinal.Card}
		decision, err := w.run.coord.Admit(ctx, rec.Link, rec.Ordinal)
		if err != nil {
			return admitted, duplicates, false, err
		}
		switch decision {
		case Duplicate:
			duplicates++
			w.p.opts.Metrics.Duplicate()
		case CapReached:
			return admitted, duplicates, true, nil
		case Admitted:
			admitted++
			w.run.startDetail(ctx, rec)
		}
	}
	return admitted, duplicates, false, nil
}

func (w *walker) exhaust(reason string) {
	w.run.coord.SetState(w.index, models.SearchExhausted, reason)
	w.log.Info("search exhausted", "reason", reason, "pages", w.task.PageIndex)
}

func (w *walker) fail(err error) {
	w.run.coord.Fail(w.index, err)
	if errors.Is(err, context.Canceled) {
		w.log.Warn("search canceled", "page", w.task.PageIndex)
		return
	}
	w.log.Error("search failed", "page", w.task.PageIndex, "url", w.task.URL, "error", err)
}

// pageBase is the URL relative links on a fetched page resolve against.
func pageBase(page fetch.Page, requested string) string {
	if page.URL != "" {
		return page.URL
	}
	return requested
}

// pageKey identifies a results page for loop detection: scheme and host
// lower-cased, query sorted, fragment and trailing slash dropped.
func pageKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) +
		strings.TrimRight(u.EscapedPath(), "/") + "?" + u.Query().Encode()
}

// withPageParam sets the page query parameter on raw.
func withPageParam(raw, param string, page int) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}

func failureFor(runID, searchURL, pageURL string, kind fetch.Kind, err error, now time.Time) models.CrawlFailure {
	return models.CrawlFailure{
		RunID:      runID,
		SearchURL:  searchURL,
		URL:        pageURL,
		Kind:       kind.String(),
		StatusCode: fetch.StatusCode(err),
		Error:      err.Error(),
		FailedAt:   now.UTC(),
	}
}
