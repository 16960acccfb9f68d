package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders documents into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the header row, the data rows and, after an empty record,
// one "Note" record per note.
func (e *CSVExporter) Render(doc Document) ([]byte, error) {
	data := doc.Dataset
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	if len(doc.Notes) > 0 {
		blank := make([]string, len(data.Headers))
		if err := writer.Write(blank); err != nil {
			return nil, fmt.Errorf("write csv separator: %w", err)
		}
		for _, note := range doc.Notes {
			record := make([]string, len(data.Headers))
			record[0] = "Note"
			if len(record) > 1 {
				record[1] = note
			} else {
				record[0] = "Note: " + note
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv note: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
