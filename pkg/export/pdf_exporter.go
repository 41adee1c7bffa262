package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const pdfPrintableWidth = 277.0

// PDFExporter renders a Dataset as a landscape A4 table.
type PDFExporter struct {
	now func() time.Time
}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Extension() string { return ".pdf" }

// Render draws the title, a generation stamp and the table. The header row
// repeats on every page.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("pdf"); err != nil {
		return nil, err
	}
	widths := columnWidths(data.Columns)
	titles := data.titles()

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, title := range titles {
			pdf.CellFormat(widths[i], 7, tr(title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}

	pdf.AddPage()
	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, tr(data.Title), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Generated "+e.now().UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(3)
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i, value := range data.record(row) {
			pdf.CellFormat(widths[i], 6, tr(fitText(pdf, value, widths[i]-2)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(cols []Column) []float64 {
	total := 0.0
	for _, col := range cols {
		total += weight(col)
	}
	widths := make([]float64, len(cols))
	for i, col := range cols {
		widths[i] = pdfPrintableWidth * weight(col) / total
	}
	return widths
}

func weight(col Column) float64 {
	if col.Weight <= 0 {
		return 1
	}
	return col.Weight
}

func fitText(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
