package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"relentless-jobs/internal/models"
)

const sheetName = "Jobs"

func writeXLSX(w io.Writer, records []models.JobRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export: xlsx sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("export: xlsx stream: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: xlsx style: %w", err)
	}

	header := make([]interface{}, len(models.FieldNames))
	for i, name := range models.FieldNames {
		header[i] = excelize.Cell{StyleID: bold, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("export: xlsx header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: xlsx cell: %w", err)
		}
		values := r.Values()
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("export: xlsx row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: xlsx flush: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: xlsx write: %w", err)
	}
	return nil
}

// ReadXLSX reads the Jobs sheet written by the xlsx exporter.
func ReadXLSX(r io.Reader) ([]models.JobRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("export: open xlsx: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("export: read xlsx: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("export: read xlsx: missing header")
	}
	out := make([]models.JobRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, models.RecordFromValues(row))
	}
	return out, nil
}
