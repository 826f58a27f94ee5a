package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"relentless-jobs/pkg/logging"
)

// Metrics holds the scraper's counters exposed on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	pagesFetched   atomic.Uint64
	detailsFetched atomic.Uint64
	recordsEmitted atomic.Uint64
	duplicates     atomic.Uint64
	parseAnomalies atomic.Uint64
	fetchFailures  atomic.Uint64
	rateLimitHits  atomic.Uint64 // HTTP 429 responses
	retries        atomic.Uint64
	proxyRotations atomic.Uint64
	inFlight       atomic.Int64 // fetch semaphore slots in use

	fetchLatency *Histogram
	proxies      []string // set once before serving
}

// New creates a metrics set with the default fetch latency buckets.
func New() *Metrics {
	return &Metrics{
		fetchLatency: NewHistogram([]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15}),
	}
}

func (m *Metrics) PageFetched() {
	if m != nil {
		m.pagesFetched.Add(1)
	}
}

func (m *Metrics) DetailFetched() {
	if m != nil {
		m.detailsFetched.Add(1)
	}
}

func (m *Metrics) RecordEmitted() {
	if m != nil {
		m.recordsEmitted.Add(1)
	}
}

func (m *Metrics) Duplicate() {
	if m != nil {
		m.duplicates.Add(1)
	}
}

func (m *Metrics) ParseAnomaly() {
	if m != nil {
		m.parseAnomalies.Add(1)
	}
}

func (m *Metrics) FetchFailure() {
	if m != nil {
		m.fetchFailures.Add(1)
	}
}

func (m *Metrics) RateLimitHit() {
	if m != nil {
		m.rateLimitHits.Add(1)
	}
}

func (m *Metrics) Retry() {
	if m != nil {
		m.retries.Add(1)
	}
}

func (m *Metrics) ProxyRotation() {
	if m != nil {
		m.proxyRotations.Add(1)
	}
}

// InFlight adjusts the in-flight gauge by delta.
func (m *Metrics) InFlight(delta int64) {
	if m != nil {
		m.inFlight.Add(delta)
	}
}

// SetProxies records the proxy pool for the proxy_info gauge. Call before StartServer.
func (m *Metrics) SetProxies(proxies []string) {
	if m != nil {
		m.proxies = append([]string(nil), proxies...)
	}
}

// ObserveFetch records one HTTP attempt's latency.
func (m *Metrics) ObserveFetch(duration time.Duration) {
	if m != nil {
		m.fetchLatency.Observe(duration)
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	PagesFetched   uint64
	DetailsFetched uint64
	RecordsEmitted uint64
	Duplicates     uint64
	ParseAnomalies uint64
	FetchFailures  uint64
	RateLimitHits  uint64
	Retries        uint64
	ProxyRotations uint64
	InFlight       int64
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		PagesFetched:   m.pagesFetched.Load(),
		DetailsFetched: m.detailsFetched.Load(),
		RecordsEmitted: m.recordsEmitted.Load(),
		Duplicates:     m.duplicates.Load(),
		ParseAnomalies: m.parseAnomalies.Load(),
		FetchFailures:  m.fetchFailures.Load(),
		RateLimitHits:  m.rateLimitHits.Load(),
		Retries:        m.retries.Load(),
		ProxyRotations: m.proxyRotations.Load(),
		InFlight:       m.inFlight.Load(),
	}
}

// ServeHTTP writes the Prometheus text exposition.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s := m.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	var body strings.Builder
	body.WriteString("relentless_jobs_up 1\n")
	fmt.Fprintf(&body,
		"relentless_jobs_pages_fetched_total %d\n"+
			"relentless_jobs_details_fetched_total %d\n"+
			"relentless_jobs_records_emitted_total %d\n"+
			"relentless_jobs_duplicates_total %d\n"+
			"relentless_jobs_parse_anomalies_total %d\n"+
			"relentless_jobs_fetch_failures_total %d\n",
		s.PagesFetched, s.DetailsFetched, s.RecordsEmitted, s.Duplicates, s.ParseAnomalies, s.FetchFailures,
	)
	body.WriteString("# HELP relentless_jobs_rate_limit_hits_total HTTP 429 (rate limit) responses.\n")
	body.WriteString("# TYPE relentless_jobs_rate_limit_hits_total counter\n")
	fmt.Fprintf(&body,
		"relentless_jobs_rate_limit_hits_total %d\n"+
			"relentless_jobs_retries_total %d\n"+
			"relentless_jobs_proxy_rotations_total %d\n"+
			"relentless_jobs_in_flight %d\n",
		s.RateLimitHits, s.Retries, s.ProxyRotations, s.InFlight,
	)
	if m != nil && len(m.proxies) > 0 {
		body.WriteString("# HELP relentless_jobs_proxy_info Proxies in the rotation pool (1 when set).\n")
		body.WriteString("# TYPE relentless_jobs_proxy_info gauge\n")
		for _, proxy := range m.proxies {
			fmt.Fprintf(&body, "relentless_jobs_proxy_info{proxy=\"%s\"} 1\n", EscapeLabel(proxy))
		}
	}
	if m != nil {
		body.WriteString("# HELP relentless_jobs_fetch_latency_seconds Page fetch latency per attempt.\n")
		body.WriteString("# TYPE relentless_jobs_fetch_latency_seconds histogram\n")
		m.fetchLatency.write(&body, "relentless_jobs_fetch_latency_seconds", "%.2f")
	}
	_, _ = w.Write([]byte(body.String()))
}

// StartServer serves /metrics on addr until ctx is done.
func StartServer(ctx context.Context, addr string, m *Metrics, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
}
