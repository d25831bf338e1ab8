package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"metas/internal/engine"
)

var (
	headerColor     = [3]int{40, 40, 40}
	headerTextColor = [3]int{255, 255, 255}
	titleColor      = [3]int{0, 0, 0}
	bodyTextColor   = [3]int{50, 50, 50}
	lineColor       = [3]int{200, 200, 200}
	doneColor       = [3]int{0, 128, 0}
	behindColor     = [3]int{192, 0, 0}
)

func encodePDF(w io.Writer, d engine.Dashboard) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right

	section := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(titleColor[0], titleColor[1], titleColor[2])
		pdf.Cell(0, 8, tr(title))
		pdf.Ln(7)
		pdf.SetDrawColor(lineColor[0], lineColor[1], lineColor[2])
		pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+usable, pdf.GetY())
		pdf.Ln(4)
	}

	tableHeader := func(cols []string, widths []float64) {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(240, 240, 240)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		for i, c := range cols {
			pdf.CellFormat(widths[i], 7, tr(c), "B", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.AddPage()
	pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
	pdf.SetTextColor(headerTextColor[0], headerTextColor[1], headerTextColor[2])
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, tr(fmt.Sprintf("  Goals %s to %s", d.Start, d.End)), "", 1, "L", true, 0, "")
	pdf.Ln(8)

	section("Period summary")
	if len(d.Summaries) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		pdf.Cell(0, 8, "No goals recorded in this period.")
		pdf.Ln(10)
	} else {
		widths := make([]float64, len(summaryHeaders))
		for i := range widths {
			widths[i] = usable / float64(len(widths))
		}
		tableHeader(summaryHeaders, widths)
		pdf.SetFont("Arial", "", 9)
		for _, s := range d.Summaries {
			record := summaryRecord(s)
			for i, v := range record {
				pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
				if i == len(record)-1 {
					c := behindColor
					if s.PercentComplete >= 100 {
						c = doneColor
					}
					pdf.SetTextColor(c[0], c[1], c[2])
				}
				align := "R"
				if i == 0 {
					align = "L"
				}
				pdf.CellFormat(widths[i], 6, tr(v), "", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(8)
	}

	section(fmt.Sprintf("Annual projection %d", d.Annual.Year))
	cols := annualHeaders(d)
	widths := make([]float64, len(cols))
	widths[0], widths[1] = 34, 18
	for i := 2; i < len(widths); i++ {
		widths[i] = (usable - widths[0] - widths[1]) / float64(engine.MonthsPerYear)
	}
	tableHeader(cols, widths)
	pdf.SetFont("Arial", "", 8)
	pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	for _, s := range d.Annual.Series {
		for _, rec := range seriesRecords(s) {
			for i, v := range rec {
				align := "R"
				if i < 2 {
					align = "L"
				}
				pdf.CellFormat(widths[i], 5, tr(v), "", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 4, tr("annual target "+strconv.FormatInt(s.AnnualTarget, 10)), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
	}

	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Generated by metas | %s", time.Now().Format("2006-01-02"))), "", 0, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("error writing PDF: %w", err)
	}
	return nil
}
