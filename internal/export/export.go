package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"relentless-jobs/internal/models"
)

// Format names an output serialization.
type Format string

const (
	JSON  Format = "json"
	JSONL Format = "jsonl"
	CSV   Format = "csv"
	XLSX  Format = "xlsx"
	HTML  Format = "html"
	XML   Format = "xml"
)

// Formats lists every supported format in a stable order.
var Formats = []Format{JSON, JSONL, CSV, XLSX, HTML, XML}

// ParseFormat accepts a format name case-insensitively; "excel" means xlsx.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return JSON, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	case "csv":
		return CSV, nil
	case "xlsx", "excel":
		return XLSX, nil
	case "html":
		return HTML, nil
	case "xml":
		return XML, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", name)
	}
}

// Extension is the file extension for the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Write serializes records in format to w. Field names and order come from
// models.FieldNames for every format.
func Write(w io.Writer, records []models.JobRecord, format Format) error {
	switch format {
	case JSON:
		return writeJSON(w, records)
	case JSONL:
		return writeJSONL(w, records)
	case CSV:
		return writeCSV(w, records)
	case XLSX:
		return writeXLSX(w, records)
	case HTML:
		return writeHTML(w, records)
	case XML:
		return writeXML(w, records)
	default:
		return fmt.Errorf("export: unsupported format %q", format)
	}
}

// WriteFile writes <dir>/<base>.<ext> and returns its path.
func WriteFile(dir, base string, records []models.JobRecord, format Format) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, base+"."+format.Extension())
	tmp, err := os.CreateTemp(dir, "."+base+"-*."+format.Extension())
	if err != nil {
		return "", fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := Write(bw, records, format); err != nil {
		tmp.Close()
		return "", err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("export: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("export: rename %s: %w", path, err)
	}
	return path, nil
}
