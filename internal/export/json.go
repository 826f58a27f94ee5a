package export

import (
	"encoding/json"
	"fmt"
	"io"

	"relentless-jobs/internal/models"
)

func writeJSON(w io.Writer, records []models.JobRecord) error {
	if records == nil {
		records = []models.JobRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("export: json: %w", err)
	}
	return nil
}

// writeJSONL writes one object per line; no records means an empty file.
func writeJSONL(w io.Writer, records []models.JobRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("export: jsonl: %w", err)
		}
	}
	return nil
}
