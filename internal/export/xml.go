package export

import (
	"encoding/xml"
	"fmt"
	"io"

	"relentless-jobs/internal/models"
)

type xmlJob struct {
	XMLName xml.Name `xml:"job"`
	models.JobRecord
}

type xmlJobs struct {
	XMLName xml.Name `xml:"jobs"`
	Jobs    []xmlJob
}

func writeXML(w io.Writer, records []models.JobRecord) error {
	doc := xmlJobs{Jobs: make([]xmlJob, len(records))}
	for i, r := range records {
		doc.Jobs[i] = xmlJob{JobRecord: r}
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("export: xml: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: xml: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("export: xml: %w", err)
	}
	return nil
}
