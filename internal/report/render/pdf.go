// Package render turns a scored report into the client-facing PDF artifact.
// Rendering is pure: it reads only the report entity, so the same report
// always produces the same bytes and regeneration is safe for audit.
package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/postureboard/postureboard/internal/report"
)

// rgb is a fill/draw color.
type rgb struct{ r, g, b int }

var (
	colorLow    = rgb{46, 204, 113}  // green
	colorMedium = rgb{243, 156, 18}  // amber
	colorHigh   = rgb{231, 76, 60}   // red
	colorInk    = rgb{52, 73, 94}    // headings
	colorFrame  = rgb{210, 214, 220} // table borders, gauge track
)

func bandColor(score int) rgb {
	switch report.BandOf(score) {
	case report.BandHigh:
		return colorHigh
	case report.BandMedium:
		return colorMedium
	default:
		return colorLow
	}
}

// Render produces the fixed-layout PDF for a report.
func Render(rep *report.Report) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	// A fixed creation date keeps re-renders byte-identical. fpdf defaults
	// ModDate to time.Now() and iterates resource catalogs in map order, so
	// both must be pinned as well.
	pdf.SetCreationDate(rep.PeriodStart)
	pdf.SetModificationDate(rep.PeriodStart)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(fmt.Sprintf("Security Posture Report Q%d %d", rep.Quarter, rep.Year), false)
	pdf.AddPage()

	title(pdf, rep)
	gauge(pdf, rep.OverallRisk)
	categoryTable(pdf, rep)
	threatSummary(pdf, rep)
	comments(pdf, rep)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func title(pdf *fpdf.Fpdf, rep *report.Report) {
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(colorInk.r, colorInk.g, colorInk.b)
	pdf.CellFormat(0, 12, "Security Posture Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(110, 120, 130)
	period := fmt.Sprintf("Q%d %d  (%s - %s)",
		rep.Quarter, rep.Year,
		rep.PeriodStart.Format("Jan 2, 2006"),
		rep.PeriodEnd.Format("Jan 2, 2006"),
	)
	pdf.CellFormat(0, 8, period, "", 1, "C", false, 0, "")
	pdf.Ln(6)
}

// gauge draws the radial overall-risk dial colored by band.
func gauge(pdf *fpdf.Fpdf, overall int) {
	const cx, r = 105.0, 24.0
	cy := pdf.GetY() + r + 4

	// Track.
	pdf.SetLineWidth(3.5)
	pdf.SetDrawColor(colorFrame.r, colorFrame.g, colorFrame.b)
	pdf.Circle(cx, cy, r, "D")

	// Filled arc, clockwise from 12 o'clock, proportional to the score.
	if overall > 0 {
		c := bandColor(overall)
		pdf.SetDrawColor(c.r, c.g, c.b)
		sweep := 3.6 * float64(overall)
		pdf.Arc(cx, cy, r, r, 0, 90-sweep, 90, "D")
	}

	// Centered score and band label.
	c := bandColor(overall)
	pdf.SetTextColor(c.r, c.g, c.b)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetXY(cx-20, cy-8)
	pdf.CellFormat(40, 10, fmt.Sprintf("%d", overall), "", 0, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(cx-20, cy+2)
	pdf.CellFormat(40, 6, fmt.Sprintf("%s risk", report.BandOf(overall)), "", 0, "C", false, 0, "")

	pdf.SetY(cy + r + 10)
}

func categoryTable(pdf *fpdf.Fpdf, rep *report.Report) {
	rows := []struct {
		label string
		score int
	}{
		{"Identity & Access", rep.IdentityRisk},
		{"Security Awareness Training", rep.TrainingRisk},
		{"Devices & Endpoints", rep.DeviceRisk},
		{"Cloud & Collaboration", rep.CloudRisk},
		{"Active Threats", rep.ThreatRisk},
	}

	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(colorInk.r, colorInk.g, colorInk.b)
	pdf.CellFormat(0, 9, "Risk by Category", "", 1, "L", false, 0, "")

	pdf.SetLineWidth(0.3)
	pdf.SetDrawColor(colorFrame.r, colorFrame.g, colorFrame.b)
	pdf.SetFont("Helvetica", "", 11)

	for _, row := range rows {
		c := bandColor(row.score)
		pdf.SetTextColor(colorInk.r, colorInk.g, colorInk.b)
		pdf.CellFormat(110, 9, row.label, "1", 0, "L", false, 0, "")

		pdf.SetFillColor(c.r, c.g, c.b)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(25, 9, fmt.Sprintf("%d", row.score), "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 9, string(report.BandOf(row.score)), "1", 1, "C", true, 0, "")
	}
	pdf.Ln(6)
}

func threatSummary(pdf *fpdf.Fpdf, rep *report.Report) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(colorInk.r, colorInk.g, colorInk.b)
	pdf.CellFormat(0, 9, "Threat Activity", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	n := rep.Metrics.Threat.TotalThreats
	var line string
	switch {
	case n == 0:
		line = "No active threats were detected during this period."
	case n == 1:
		line = "1 threat was detected during this period."
	default:
		line = fmt.Sprintf("%d threats were detected during this period.", n)
	}
	pdf.MultiCell(0, 6, line, "", "L", false)
	pdf.Ln(4)
}

func comments(pdf *fpdf.Fpdf, rep *report.Report) {
	sections := []struct {
		heading string
		body    string
	}{
		{"Summary", rep.Summary},
		{"Recommendations", rep.Recommendations},
		{"Analyst Comments", rep.AnalystComments},
	}

	for _, s := range sections {
		if s.body == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 13)
		pdf.SetTextColor(colorInk.r, colorInk.g, colorInk.b)
		pdf.CellFormat(0, 9, s.heading, "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 6, s.body, "", "L", false)
		pdf.Ln(3)
	}
}

// Filename returns the canonical attachment name for a report artifact.
func Filename(rep *report.Report) string {
	return fmt.Sprintf("security-report-%d-Q%d.pdf", rep.Year, rep.Quarter)
}
