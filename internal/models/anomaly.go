package models

// AnomalyKind classifies a recoverable extraction problem.
type AnomalyKind string

const (
	AnomalyParse         AnomalyKind = "parse"
	AnomalyNotFound      AnomalyKind = "not_found"
	AnomalyPartial       AnomalyKind = "partial"
	AnomalyDuplicatePage AnomalyKind = "duplicate_page"
)

// Anomaly is reported in the run summary and never fails the run.
// Partial marks a record that was emitted with summary fields only.
type Anomaly struct {
	Kind      AnomalyKind `json:"kind"`
	SearchURL string      `json:"search_url"`
	URL       string      `json:"url,omitempty"`
	Message   string      `json:"message"`
	Partial   bool        `json:"partial,omitempty"`
}
