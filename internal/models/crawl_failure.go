package models

import "time"

// CrawlFailure captures a fetch that failed for good; published to the DLQ topic.
type CrawlFailure struct {
	RunID      string    `json:"run_id"`
	SearchURL  string    `json:"search_url"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind"` // "summary" or "detail"
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error"`
	FailedAt   time.Time `json:"failed_at"`
}
