package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"relentless-jobs/internal/metrics"
	"relentless-jobs/pkg/logging"
)

// Kind selects the retry budget and timeout of a fetch.
type Kind int

const (
	KindSummary Kind = iota
	KindDetail
)

func (k Kind) String() string {
	if k == KindDetail {
		return "detail"
	}
	return "summary"
}

const defaultMaxBodyBytes = 8 << 20

// Options configures a Client. Zero values take the defaults below.
type Options struct {
	Proxies         []string
	UserAgent       string // pins the User-Agent header; empty rotates the built-in pool
	SummaryTimeout  time.Duration
	DetailTimeout   time.Duration
	SummaryAttempts int
	DetailAttempts  int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RequestDelay    time.Duration // minimum gap between request starts; 0 disables
	RespectRobots   bool
	MaxBodyBytes    int64 // larger responses fail with *ClientError
	Metrics         *metrics.Metrics
	Logger          *logging.Logger
}

func (o Options) withDefaults() Options {
	if o.SummaryTimeout <= 0 {
		o.SummaryTimeout = 15 * time.Second
	}
	if o.DetailTimeout <= 0 {
		o.DetailTimeout = o.SummaryTimeout
	}
	if o.SummaryAttempts <= 0 {
		o.SummaryAttempts = 4
	}
	if o.DetailAttempts <= 0 {
		o.DetailAttempts = 3
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = 0
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

// Page is a successfully fetched document.
type Page struct {
	URL        string // final URL after redirects
	StatusCode int
	Body       []byte
	Attempts   int
}

// Client fetches pages with proxy rotation, header rotation and bounded retry.
// It is safe for concurrent use.
type Client struct {
	opts    Options
	pool    *proxyPool
	headers *headerPool
	limiter *rate.Limiter
	robots  *robotsCache
	log     *logging.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	timeout := opts.SummaryTimeout
	if opts.DetailTimeout > timeout {
		timeout = opts.DetailTimeout
	}
	pool, err := newProxyPool(opts.Proxies, timeout)
	if err != nil {
		return nil, err
	}
	c := &Client{
		opts:    opts,
		pool:    pool,
		headers: newHeaderPool(opts.UserAgent),
		log:     opts.Logger,
		sleep:   sleepContext,
	}
	if opts.RequestDelay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
	}
	if opts.RespectRobots {
		ua := opts.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		c.robots = &robotsCache{
			entries: make(map[string]*robotsEntry),
			load: func(ctx context.Context, origin *url.URL) (*RobotsRules, error) {
				body, err := fetchRobots(ctx, c.pool.client(0), origin, ua)
				if err != nil {
					return nil, err
				}
				return ParseRobots(body, ua), nil
			},
			onError: func(host string, err error) {
				c.log.Warn("robots.txt unavailable; not enforcing", "host", host, "error", err)
			},
		}
	}
	return c, nil
}

func (c *Client) attemptsFor(kind Kind) int {
	if kind == KindDetail {
		return c.opts.DetailAttempts
	}
	return c.opts.SummaryAttempts
}

func (c *Client) timeoutFor(kind Kind) time.Duration {
	if kind == KindDetail {
		return c.opts.DetailTimeout
	}
	return c.opts.SummaryTimeout
}

// Fetch retrieves rawURL. It returns *NotFoundError, *ClientError or
// *FetchError on failure, or the context error if ctx ends first.
func (c *Client) Fetch(ctx context.Context, rawURL string, kind Kind) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, &ClientError{URL: rawURL, Reason: "invalid url"}
	}
	if c.robots != nil && !c.robots.rules(ctx, u).Allowed(PathFromURL(rawURL)) {
		return Page{}, &ClientError{URL: rawURL, Reason: "robots"}
	}

	maxAttempts := c.attemptsFor(kind)
	b := newBackoff(c.opts.BaseDelay, c.opts.MaxDelay)
	proxyIdx := c.pool.start()
	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Page{}, ctxErr(ctx, err)
			}
		}
		page, res := c.do(ctx, proxyIdx, u, kind)
		if res.err == nil {
			page.Attempts = attempt
			return page, nil
		}
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		if !res.retryable {
			return Page{}, res.err
		}
		lastErr, lastStatus = res.err, res.status
		if attempt == maxAttempts {
			break
		}
		if res.rotate && c.pool.size() > 1 {
			proxyIdx = c.pool.rotate(proxyIdx)
			c.opts.Metrics.ProxyRotation()
		}
		delay := b.Next(res.retryAfter)
		c.opts.Metrics.Retry()
		c.log.Debug("fetch retry",
			"url", rawURL,
			"kind", kind.String(),
			"attempt", attempt,
			"status", res.status,
			"delay", delay.String(),
			"proxy", c.pool.label(proxyIdx),
			"error", res.err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return Page{}, err
		}
	}
	return Page{}, &FetchError{URL: rawURL, Attempts: maxAttempts, StatusCode: lastStatus, Err: lastErr}
}

type attemptResult struct {
	status     int
	retryable  bool
	rotate     bool
	retryAfter time.Duration
	err        error
}

func (c *Client) do(ctx context.Context, proxyIdx int, u *url.URL, kind Kind) (Page, attemptResult) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(kind))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, attemptResult{err: &ClientError{URL: u.String(), Reason: "invalid url"}}
	}
	c.headers.apply(req)

	start := time.Now()
	resp, err := c.pool.client(proxyIdx).Do(req)
	if err != nil {
		c.opts.Metrics.ObserveFetch(time.Since(start))
		// Dial errors, timeouts and resets all point at the egress.
		return Page{}, attemptResult{retryable: true, rotate: true, err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
	c.opts.Metrics.ObserveFetch(time.Since(start))

	res := classify(u.String(), resp)
	if res.status == http.StatusTooManyRequests {
		c.opts.Metrics.RateLimitHit()
	}
	if res.err != nil {
		return Page{}, res
	}
	if readErr != nil {
		return Page{}, attemptResult{status: resp.StatusCode, retryable: true, rotate: true, err: fmt.Errorf("read body: %w", readErr)}
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return Page{}, attemptResult{status: resp.StatusCode, err: &ClientError{
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("body larger than %d bytes", c.opts.MaxBodyBytes),
		}}
	}
	return Page{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Body: body}, res
}

func classify(rawURL string, resp *http.Response) attemptResult {
	code := resp.StatusCode
	res := attemptResult{status: code}
	switch {
	case code >= 200 && code < 300:
		return res
	case code == http.StatusNotFound || code == http.StatusGone:
		res.err = &NotFoundError{URL: rawURL, StatusCode: code}
	case retryableStatus(code):
		res.retryable = true
		res.rotate = rotatesProxy(code)
		res.err = &statusError{code: code}
		if code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable {
			res.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
	default:
		res.err = &ClientError{URL: rawURL, StatusCode: code}
	}
	return res
}

// parseRetryAfter understands the delta-seconds form only.
func parseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("fetch: rate limiter: %w", err)
}
