package models

import "time"

// SearchState is the terminal (or current) state of a search URL's walker.
type SearchState string

const (
	SearchSeeding   SearchState = "seeding"
	SearchFetching  SearchState = "fetching"
	SearchParsing   SearchState = "parsing"
	SearchAdvancing SearchState = "advancing"
	SearchExhausted SearchState = "exhausted"
	SearchFailed    SearchState = "failed"
)

// Terminal reports whether the walker has stopped.
func (s SearchState) Terminal() bool {
	return s == SearchExhausted || s == SearchFailed
}

// SearchSummary reports one search URL's pagination chain.
type SearchSummary struct {
	URL     string      `json:"url"`
	State   SearchState `json:"state"`
	Pages   int         `json:"pages"`
	Records int         `json:"records"`
	Reason  string      `json:"reason,omitempty"`
	Err     string      `json:"error,omitempty"`
}

// RunSummary is what a finished run reports next to its output files.
type RunSummary struct {
	RunID            string          `json:"run_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	Elapsed          time.Duration   `json:"-"`
	ElapsedSeconds   float64         `json:"elapsed_seconds"`
	RecordsEmitted   int             `json:"records_emitted"`
	ParseAnomalies   int             `json:"parse_anomalies"`
	FetchFailures    int             `json:"fetch_failures"`
	FailedSearchURLs []string        `json:"failed_search_urls"`
	Searches         []SearchSummary `json:"searches"`
	Anomalies        []Anomaly       `json:"anomalies,omitempty"`
	Failures         []CrawlFailure  `json:"failures,omitempty"`
	Outputs          []string        `json:"outputs,omitempty"`
}
