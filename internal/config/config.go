package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"relentless-jobs/common"
	"relentless-jobs/internal/export"
)

const (
	defaultOutputDir = "data"
	defaultBasename  = "jobs"
)

// Settings is everything one run needs, after file, env and flags are merged.
type Settings struct {
	SearchURLs    []string
	MaxItems      int
	ProxyPool     []string
	OutputFormats []export.Format
	OutputDir     string
	Basename      string
	LogLevel      string

	UserAgent         string
	HTTPTimeout       time.Duration
	SummaryAttempts   int
	DetailAttempts    int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestDelay      time.Duration
	ConcurrentFetches int
	SearchConcurrency int
	MaxPages          int
	StaleLimit        int
	PageParam         string
	RespectRobots     bool

	MetricsAddr       string
	KafkaBroker       string
	KafkaResultsTopic string
	KafkaDLQTopic     string
	Neo4jURI          string
	Neo4jUser         string
	Neo4jPassword     string
	RedisAddr         string
	StatusTTL         time.Duration
}

// Overrides carries command-line values. Zero values leave settings untouched;
// MaxItems below zero means unset.
type Overrides struct {
	InputsPath string
	URLs       []string
	MaxItems   int
	Formats    string
	OutputDir  string
	Basename   string
	LogLevel   string
	Proxies    []string
}

// Load merges the inputs file, the environment (plus .env) and overrides, in
// that order of precedence, and validates the result.
func Load(o Overrides) (Settings, error) {
	_ = godotenv.Load()

	s := FromEnv()
	if o.InputsPath != "" {
		in, err := ReadInputs(o.InputsPath)
		if err != nil {
			return Settings{}, err
		}
		if err := s.applyInputs(in); err != nil {
			return Settings{}, err
		}
	}
	if err := s.applyOverrides(o); err != nil {
		return Settings{}, err
	}
	if len(s.OutputFormats) == 0 {
		s.OutputFormats = []export.Format{export.JSON}
	}
	return s, s.Validate()
}

// FromEnv reads the environment with the documented fallbacks.
func FromEnv() Settings {
	timeout := common.ParseDuration(common.GetEnv("HTTP_TIMEOUT", "15s"), 15*time.Second)
	return Settings{
		ProxyPool:         common.SplitList(common.GetEnv("PROXY_POOL", "")),
		OutputDir:         defaultOutputDir,
		Basename:          defaultBasename,
		LogLevel:          common.GetEnv("LOG_LEVEL", "info"),
		UserAgent:         common.GetEnv("USER_AGENT", ""),
		HTTPTimeout:       timeout,
		SummaryAttempts:   common.ParseInt(common.GetEnv("SUMMARY_RETRY_MAX", "4"), 4),
		DetailAttempts:    common.ParseInt(common.GetEnv("DETAIL_RETRY_MAX", "3"), 3),
		RetryBaseDelay:    common.ParseDuration(common.GetEnv("RETRY_BASE_DELAY", "500ms"), 500*time.Millisecond),
		RetryMaxDelay:     common.ParseDuration(common.GetEnv("RETRY_MAX_DELAY", "10s"), 10*time.Second),
		RequestDelay:      common.ParseDuration(common.GetEnv("REQUEST_DELAY", "1s"), time.Second),
		ConcurrentFetches: common.ParseInt(common.GetEnv("CONCURRENT_FETCHES", "5"), 5),
		SearchConcurrency: common.ParseInt(common.GetEnv("SEARCH_CONCURRENCY", "2"), 2),
		MaxPages:          common.ParseInt(common.GetEnv("MAX_PAGES", "0"), 0),
		StaleLimit:        common.ParseInt(common.GetEnv("STALE_PAGE_LIMIT", "3"), 3),
		PageParam:         common.GetEnv("PAGE_PARAM", "page"),
		RespectRobots:     common.ParseBool(common.GetEnv("RESPECT_ROBOTS_TXT", ""), false),
		MetricsAddr:       common.GetEnv("METRICS_ADDR", ""),
		KafkaBroker:       common.GetEnv("KAFKA_BROKER", ""),
		KafkaResultsTopic: common.GetEnv("KAFKA_RESULTS_TOPIC", "relentless.jobs.results"),
		KafkaDLQTopic:     common.GetEnv("KAFKA_DLQ_TOPIC", "relentless.jobs.dlq"),
		Neo4jURI:          common.GetEnv("NEO4J_URI", ""),
		Neo4jUser:         common.GetEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     common.GetEnv("NEO4J_PASSWORD", ""),
		RedisAddr:         common.GetEnv("REDIS_ADDR", ""),
		StatusTTL:         common.ParseDuration(common.GetEnv("STATUS_TTL", "24h"), 24*time.Hour),
	}
}

func (s *Settings) applyInputs(in Inputs) error {
	if urls := in.URLs(); len(urls) > 0 {
		s.SearchURLs = urls
	}
	if limit := in.Limit(); limit > 0 {
		s.MaxItems = limit
	}
	if len(in.ProxyPool) > 0 {
		s.ProxyPool = in.ProxyPool
	}
	if formats := in.Formats(); len(formats) > 0 {
		parsed, err := parseFormats(formats)
		if err != nil {
			return err
		}
		s.OutputFormats = parsed
	}
	if dir := strings.TrimSpace(in.Output.Directory); dir != "" {
		s.OutputDir = dir
	}
	if base := in.Basename(); base != "" {
		s.Basename = base
	}
	return nil
}

func (s *Settings) applyOverrides(o Overrides) error {
	if len(o.URLs) > 0 {
		s.SearchURLs = o.URLs
	}
	if o.MaxItems >= 0 {
		s.MaxItems = o.MaxItems
	}
	if formats := common.SplitList(o.Formats); len(formats) > 0 {
		parsed, err := parseFormats(formats)
		if err != nil {
			return err
		}
		s.OutputFormats = parsed
	}
	if o.OutputDir != "" {
		s.OutputDir = o.OutputDir
	}
	if o.Basename != "" {
		s.Basename = o.Basename
	}
	if o.LogLevel != "" {
		s.LogLevel = o.LogLevel
	}
	if len(o.Proxies) > 0 {
		s.ProxyPool = o.Proxies
	}
	return nil
}

// parseFormats parses and de-duplicates format names, keeping first order.
func parseFormats(names []string) ([]export.Format, error) {
	seen := make(map[export.Format]bool, len(names))
	var out []export.Format
	for _, name := range names {
		f, err := export.ParseFormat(name)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Validate rejects settings no run could use. Search URLs are checked by the
// pipeline so a partly bad list still runs.
func (s Settings) Validate() error {
	var errs []error
	if s.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("maxItems must be >= 0, got %d", s.MaxItems))
	}
	if s.ConcurrentFetches < 1 {
		errs = append(errs, fmt.Errorf("CONCURRENT_FETCHES must be >= 1, got %d", s.ConcurrentFetches))
	}
	if s.SearchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SEARCH_CONCURRENCY must be >= 1, got %d", s.SearchConcurrency))
	}
	if s.SummaryAttempts < 1 || s.DetailAttempts < 1 {
		errs = append(errs, errors.New("retry budgets must allow at least one attempt"))
	}
	if s.StaleLimit < 0 {
		errs = append(errs, fmt.Errorf("STALE_PAGE_LIMIT must be >= 0, got %d", s.StaleLimit))
	}
	if strings.TrimSpace(s.Basename) == "" {
		errs = append(errs, errors.New("output basename is empty"))
	}
	for _, proxy := range s.ProxyPool {
		u, err := url.Parse(proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid proxy %q", proxy))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
