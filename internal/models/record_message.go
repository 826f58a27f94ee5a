package models

import "encoding/json"

// RecordMessage is the payload written to the results topic.
type RecordMessage struct {
	RunID  string    `json:"run_id"`
	Record JobRecord `json:"record"`
}

// NewRecordMessage marshals a record payload for a run.
func NewRecordMessage(runID string, record JobRecord) ([]byte, error) {
	return json.Marshal(RecordMessage{RunID: runID, Record: record})
}
