package models

import "time"

// Run status values stored by the status store.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunStatus tracks the state of one scrape invocation.
type RunStatus struct {
	RunID      string      `json:"run_id"`
	SearchURLs []string    `json:"search_urls"`
	Status     string      `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Summary    *RunSummary `json:"summary,omitempty"`
}
