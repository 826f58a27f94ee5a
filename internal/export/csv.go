package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"relentless-jobs/internal/models"
)

func writeCSV(w io.Writer, records []models.JobRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.FieldNames); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("export: csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: csv: %w", err)
	}
	return nil
}

// ReadCSV parses a file written by the csv exporter.
func ReadCSV(r io.Reader) ([]models.JobRecord, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("export: read csv: missing header")
	}
	out := make([]models.JobRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, models.RecordFromValues(row))
	}
	return out, nil
}
