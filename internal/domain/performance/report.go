package performance

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pdfDate = "2006-01-02"

// RenderSummaryPDF writes a one-document summary of an assessment: its items with both
// ratings, the composite rating and the hike outcome once approved.
func RenderSummaryPDF(a SelfAssessment, cycle ReviewCycle) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Review Summary")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", a.EmployeeID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Cycle: %s (%s)", cycle.Name, cycle.Type))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", cycle.Period.Start.Format(pdfDate), cycle.Period.End.Format(pdfDate)))
	pdf.Ln(7)
	status := string(a.Status)
	if a.Status == AssessmentStatusDraft {
		status = "draft"
	}
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", status))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(110, 7, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, "Self", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 7, "Manager", "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, item := range FlattenAssessment(a) {
		manager := "-"
		if item.ManagerRating != nil {
			manager = fmt.Sprintf("%.1f", *item.ManagerRating)
		}
		pdf.CellFormat(110, 7, truncate(item.Label, 60), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.1f", item.SelfRating), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, manager, "1", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Composite rating: %.1f", CompositeRating(a)))
	pdf.Ln(7)
	if a.HikeDetails != nil {
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 8, fmt.Sprintf("Hike: %.2f%%", a.HikeDetails.Percentage))
		pdf.Ln(7)
		if a.HikeDetails.EffectiveDate != nil {
			pdf.Cell(0, 8, fmt.Sprintf("Effective: %s", a.HikeDetails.EffectiveDate.Format(pdfDate)))
			pdf.Ln(7)
		}
		pdf.Cell(0, 8, fmt.Sprintf("Approved by %s on %s", a.HikeDetails.ApprovedBy, a.HikeDetails.ApprovedAt.Format(pdfDate)))
		pdf.Ln(7)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-3]) + "..."
}
