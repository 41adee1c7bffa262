package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders a Dataset as RFC 4180 CSV with a header row.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType of rendered documents.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// Extension of rendered documents.
func (e *CSVExporter) Extension() string { return ".csv" }

// Render encodes data.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("csv"); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.titles()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(data.record(row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
