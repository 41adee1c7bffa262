package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title: "Task report",
		Columns: []Column{
			{Key: "id", Title: "ID", Weight: 0.5},
			{Key: "title", Title: "Title", Weight: 3},
			{Key: "status"},
		},
		Rows: []map[string]string{
			{"id": "1", "title": "Draft chapter, part 1", "status": "pending"},
			{"id": "2", "title": "Submit results", "status": "done"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	data, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ID", "Title", "status"},
		{"1", "Draft chapter, part 1", "pending"},
		{"2", "Submit results", "done"},
	}, records)
}

func TestExportersRequireColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	ds := sampleDataset()
	for i := 0; i < 80; i++ {
		ds.Rows = append(ds.Rows, map[string]string{"id": "x", "title": "a very long title that keeps going and going well past the width of its column", "status": "pending"})
	}
	data, err := exporter.Render(ds)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, "application/pdf", exporter.ContentType())
}

func TestColumnWidthsSpanPage(t *testing.T) {
	widths := columnWidths(sampleDataset().Columns)
	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, pdfPrintableWidth, total, 0.001)
	assert.Greater(t, widths[1], widths[0])
}
