package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"relentless-jobs/internal/extract"
	"relentless-jobs/internal/fetch"
	"relentless-jobs/internal/models"
)

type fakeResponse struct {
	body  string
	err   error
	delay time.Duration
}

// fakeFetcher serves canned pages; unknown URLs are 404.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fakeResponse
	hits  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]fakeResponse), hits: make(map[string]int)}
}

func (f *fakeFetcher) set(url, body string) {
	f.pages[url] = fakeResponse{body: body}
}

func (f *fakeFetcher) slow(url, body string, delay time.Duration) {
	f.pages[url] = fakeResponse{body: body, delay: delay}
}

func (f *fakeFetcher) fail(url string, err error) {
	f.pages[url] = fakeResponse{err: err}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, kind fetch.Kind) (fetch.Page, error) {
	f.mu.Lock()
	f.hits[url]++
	resp, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return fetch.Page{}, &fetch.NotFoundError{URL: url, StatusCode: 404}
	}
	if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-ctx.Done():
			return fetch.Page{}, ctx.Err()
		}
	}
	if resp.err != nil {
		return fetch.Page{}, resp.err
	}
	return fetch.Page{URL: url, StatusCode: 200, Body: []byte(resp.body), Attempts: 1}, nil
}

func (f *fakeFetcher) hitCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[url]
}

func listingPage(next string, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, link := range links {
		fmt.Fprintf(&b, `<div class="job-card"><h2><a href="%s">Title %s</a></h2><span class="company">Co %s</span></div>`,
			link, lastSegment(link), lastSegment(link))
	}
	if next != "" {
		fmt.Fprintf(&b, `<a rel="next" href="%s">next</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailPage(link string) string {
	return fmt.Sprintf(`<html><body><h1>Detail</h1><div class="job-description">About %s</div><div class="job-type">Full Time</div></body></html>`, lastSegment(link))
}

func lastSegment(link string) string {
	return link[strings.LastIndex(link, "/")+1:]
}

func withDetails(f *fakeFetcher, links ...string) {
	for _, link := range links {
		f.set(link, detailPage(link))
	}
}

func newTestPipeline(f Fetcher, opts Options) *Pipeline {
	parser := extract.NewParser(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	return New(f, parser, opts)
}

func links(records []models.JobRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.JobLink
	}
	return out
}

func TestRunCapStopsBeforeNextPage(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	page2 := "https://jobs.example/search?page=2"
	f.set(search, listingPage(page2, "https://jobs.example/job/a", "https://jobs.example/job/b"))
	f.set(page2, listingPage("", "https://jobs.example/job/c"))
	withDetails(f, "https://jobs.example/job/a", "https://jobs.example/job/b", "https://jobs.example/job/c")

	res, err := newTestPipeline(f, Options{MaxItems: 2}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := links(res.Records); len(got) != 2 || got[0] != "https://jobs.example/job/a" || got[1] != "https://jobs.example/job/b" {
		t.Fatalf("unexpected records: %v", got)
	}
	if f.hitCount(page2) != 0 {
		t.Fatalf("expected page 2 not to be fetched, got %d hits", f.hitCount(page2))
	}
	rec := res.Records[0]
	if rec.JobTitle != "Title a" || rec.JobCompany != "Co a" || rec.JobDescription != "About a" || rec.JobType != "Full Time" || rec.SearchURL != search {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if s := res.Summary.Searches[0]; s.State != models.SearchExhausted || s.Pages != 1 || s.Records != 2 {
		t.Fatalf("unexpected search summary: %+v", s)
	}
}

func TestRunWalksAllPagesAndKeepsDiscoveryOrder(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	page2 := "https://jobs.example/search?page=2"
	f.set(search, listingPage(page2, "https://jobs.example/job/a", "https://jobs.example/job/b"))
	f.set(page2, listingPage("", "https://jobs.example/job/c"))
	withDetails(f, "https://jobs.example/job/a", "https://jobs.example/job/b", "https://jobs.example/job/c")

	res, err := newTestPipeline(f, Options{Concurrency: 3}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := links(res.Records)
	want := []string{"https://jobs.example/job/a", "https://jobs.example/job/b", "https://jobs.example/job/c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if res.Summary.Searches[0].Reason != "no next page" || res.Summary.Searches[0].Pages != 2 {
		t.Fatalf("unexpected summary: %+v", res.Summary.Searches[0])
	}
}

func TestRunIsolatesFailedSearchURL(t *testing.T) {
	f := newFakeFetcher()
	a := "https://jobs.example/a"
	b := "https://jobs.example/b" // every request 404s
	c := "https://jobs.example/c"
	f.set(a, listingPage("", "https://jobs.example/job/1"))
	f.set(c, listingPage("", "https://jobs.example/job/2"))
	withDetails(f, "https://jobs.example/job/1", "https://jobs.example/job/2")

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{a, b, c})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %v", links(res.Records))
	}
	if len(res.Summary.FailedSearchURLs) != 1 || res.Summary.FailedSearchURLs[0] != b {
		t.Fatalf("expected only %s to fail, got %v", b, res.Summary.FailedSearchURLs)
	}
	if res.Summary.FetchFailures != 1 {
		t.Fatalf("expected 1 fetch failure, got %d", res.Summary.FetchFailures)
	}
	if res.Summary.Searches[1].State != models.SearchFailed || res.Summary.Searches[1].Err == "" {
		t.Fatalf("unexpected summary for %s: %+v", b, res.Summary.Searches[1])
	}
}

func TestRunDeduplicatesAcrossSearchURLs(t *testing.T) {
	f := newFakeFetcher()
	a := "https://jobs.example/a"
	b := "https://jobs.example/b"
	f.set(a, listingPage("", "https://jobs.example/job/1", "https://jobs.example/job/2"))
	f.set(b, listingPage("", "https://JOBS.example/job/2/?ref=b", "https://jobs.example/job/3"))
	withDetails(f, "https://jobs.example/job/1", "https://jobs.example/job/2", "https://jobs.example/job/3")

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("expected 3 unique records, got %v", links(res.Records))
	}
	if res.Records[1].JobLink != "https://jobs.example/job/2" || res.Records[1].SearchURL != a {
		t.Fatalf("expected first-seen provenance for job/2, got %+v", res.Records[1])
	}
	if f.hitCount("https://jobs.example/job/2") != 1 {
		t.Fatal("expected the duplicate detail page to be fetched once")
	}
}

func TestRunCreditsDuplicateToEarlierSearchURL(t *testing.T) {
	f := newFakeFetcher()
	a := "https://jobs.example/search-a"
	b := "https://jobs.example/search-b"
	shared := "https://jobs.example/job/shared"
	f.slow(a, listingPage("", shared), 200*time.Millisecond)
	f.set(b, listingPage("", shared))
	withDetails(f, shared)

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %v", links(res.Records))
	}
	if res.Records[0].SearchURL != a {
		t.Fatalf("expected provenance %s, got %s", a, res.Records[0].SearchURL)
	}
	if res.Summary.Searches[0].Records != 1 || res.Summary.Searches[1].Records != 0 {
		t.Fatalf("unexpected per-search counts: %+v", res.Summary.Searches)
	}
	if f.hitCount(shared) != 1 {
		t.Fatal("expected the shared detail page to be fetched once")
	}
}

func TestRunTakesTitleFromDetailPage(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	link := "https://jobs.example/job/x"
	f.set(search, `<html><body><div class="job-card"><h2><a href="/job/x"><img src="/logo.png"></a></h2></div></body></html>`)
	withDetails(f, link)

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	if res.Records[0].JobLink != link || res.Records[0].JobTitle != "Detail" {
		t.Fatalf("expected the detail title to fill the card, got %+v", res.Records[0])
	}
	if res.Summary.ParseAnomalies != 0 {
		t.Fatalf("expected no parse anomalies, got %+v", res.Summary.Anomalies)
	}
}

func TestRunCapCountsOnlyKeptRecords(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	f.set(search, listingPage("", "https://jobs.example/job/gone", "https://jobs.example/job/b", "https://jobs.example/job/c"))
	withDetails(f, "https://jobs.example/job/b", "https://jobs.example/job/c")

	res, err := newTestPipeline(f, Options{MaxItems: 2}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := links(res.Records); len(got) != 2 || got[0] != "https://jobs.example/job/b" || got[1] != "https://jobs.example/job/c" {
		t.Fatalf("unexpected records: %v", got)
	}
	var notFound int
	for _, a := range res.Summary.Anomalies {
		if a.Kind == models.AnomalyNotFound {
			notFound++
		}
	}
	if notFound != 1 {
		t.Fatalf("expected one not_found anomaly, got %+v", res.Summary.Anomalies)
	}
}

func TestRunDetailFailureEmitsPartialRecord(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	link := "https://jobs.example/job/flaky"
	f.set(search, listingPage("", link))
	f.fail(link, &fetch.FetchError{URL: link, Attempts: 3, StatusCode: 503, Err: errors.New("unavailable")})

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	rec := res.Records[0]
	if rec.JobTitle != "Title flaky" || rec.JobCompany != "Co flaky" || rec.JobDescription != "" {
		t.Fatalf("expected summary-only record, got %+v", rec)
	}
	if len(res.Summary.Anomalies) != 1 || !res.Summary.Anomalies[0].Partial || res.Summary.Anomalies[0].Kind != models.AnomalyPartial {
		t.Fatalf("expected a partial anomaly, got %+v", res.Summary.Anomalies)
	}
	if res.Summary.Failures[0].Kind != "detail" || res.Summary.Failures[0].StatusCode != 503 {
		t.Fatalf("unexpected failure: %+v", res.Summary.Failures[0])
	}
}

func TestRunEmptyResult(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	f.set(search, "<html><body><p>No jobs found</p></body></html>")

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 0 || res.Summary.RecordsEmitted != 0 {
		t.Fatalf("expected no records, got %d", len(res.Records))
	}
	if res.Summary.Searches[0].State != models.SearchExhausted {
		t.Fatalf("expected exhausted, got %+v", res.Summary.Searches[0])
	}
}

func TestRunAbortsWhenEverySearchFails(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	f.fail(search, &fetch.FetchError{URL: search, Attempts: 4, StatusCode: 500, Err: errors.New("boom")})

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{search})
	var abort *RunAbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected RunAbortError, got %v", err)
	}
	if len(abort.Failed) != 1 || res.Summary.FetchFailures != 1 {
		t.Fatalf("unexpected abort: %+v summary=%+v", abort, res.Summary)
	}
}

func TestRunAbortsWithoutUsableURLs(t *testing.T) {
	f := newFakeFetcher()
	_, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{"not a url", "ftp://jobs.example/x"})
	var abort *RunAbortError
	if !errors.As(err, &abort) || abort.Reason != "no usable search URLs" {
		t.Fatalf("expected RunAbortError, got %v", err)
	}
}

func TestRunStopsOnPaginationLoop(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	page2 := "https://jobs.example/search?page=2"
	f.set(search, listingPage(page2, "https://jobs.example/job/1"))
	f.set(page2, listingPage(search+"/", "https://jobs.example/job/1"))
	withDetails(f, "https://jobs.example/job/1")

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := res.Summary.Searches[0]
	if s.Reason != "pagination loop" || s.Pages != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	var dupPages int
	for _, a := range res.Summary.Anomalies {
		if a.Kind == models.AnomalyDuplicatePage {
			dupPages++
		}
	}
	if dupPages != 1 {
		t.Fatalf("expected one duplicate page anomaly, got %d", dupPages)
	}
}

func TestRunStopsAfterStaleDuplicatePages(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	f.set(search, listingPage(search+"?page=2", "https://jobs.example/job/1"))
	for i := 2; i <= 5; i++ {
		f.set(fmt.Sprintf("%s?page=%d", search, i), listingPage(fmt.Sprintf("%s?page=%d", search, i+1), "https://jobs.example/job/1"))
	}
	withDetails(f, "https://jobs.example/job/1")

	res, err := newTestPipeline(f, Options{StaleLimit: 2}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := res.Summary.Searches[0]; s.Reason != "consecutive duplicate pages" || s.Pages != 3 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if f.hitCount(search+"?page=4") != 0 {
		t.Fatal("expected page 4 not to be fetched")
	}
}

func TestRunPageParamFallbackAndMaxPages(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search?q=go"
	f.set(search, listingPage("", "https://jobs.example/job/1"))
	f.set("https://jobs.example/search?page=2&q=go", listingPage("", "https://jobs.example/job/2"))
	f.set("https://jobs.example/search?page=3&q=go", listingPage("", "https://jobs.example/job/3"))
	withDetails(f, "https://jobs.example/job/1", "https://jobs.example/job/2", "https://jobs.example/job/3")

	res, err := newTestPipeline(f, Options{PageParam: "page", MaxPages: 2}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %v", links(res.Records))
	}
	if s := res.Summary.Searches[0]; s.Reason != "max pages reached" {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if f.hitCount("https://jobs.example/search?page=3&q=go") != 0 {
		t.Fatal("expected page 3 not to be fetched")
	}
}

func TestRunCountsParseAnomalies(t *testing.T) {
	f := newFakeFetcher()
	search := "https://jobs.example/search"
	f.set(search, `<html><body>
		<div class="job-card"><h2><a href="https://jobs.example/job/1">Good</a></h2></div>
		<div class="job-card"><h2><a href="javascript:void(0)">No link</a></h2></div>
	</body></html>`)
	withDetails(f, "https://jobs.example/job/1")

	res, err := newTestPipeline(f, Options{}).Run(context.Background(), []string{search})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 || res.Summary.ParseAnomalies != 1 {
		t.Fatalf("expected 1 record and 1 parse anomaly, got %d and %d", len(res.Records), res.Summary.ParseAnomalies)
	}
}
