// Package report renders the periodic inventory report as a PDF document:
// the current stock position followed by the dispensation history of the
// requested period.
package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/domain"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
)

const dateLayout = "02/01/2006"

// Renderer turns report data into a PDF
type Renderer struct {
	thresholds domain.Thresholds
}

// NewRenderer creates a new PDF renderer
func NewRenderer(thresholds domain.Thresholds) *Renderer {
	return &Renderer{thresholds: thresholds}
}

// Render produces the PDF bytes for the given report
func (r *Renderer) Render(rep *repository.InventoryReport) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	r.header(pdf, rep)
	r.stockSection(pdf, rep)

	pdf.AddPage()
	r.historySection(pdf, rep)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) header(pdf *fpdf.Fpdf, rep *repository.InventoryReport) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "FarmaTrack Inventory Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	period := fmt.Sprintf("Dispensation period: %s to %s",
		rep.From.Format(dateLayout), rep.To.Format(dateLayout))
	pdf.CellFormat(0, 6, period, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Generated at "+rep.GeneratedAt.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)
}

func (r *Renderer) stockSection(pdf *fpdf.Fpdf, rep *repository.InventoryReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "1. Current Stock Position (Active Lots)", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	widths := []float64{80, 30, 45, 30, 25, 35}
	headers := []string{"Medication / Ingredient", "Class", "Lot", "Expiry", "Quantity", "Status"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(26, 128, 77)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	total := 0
	asOf := rep.GeneratedAt
	for i, lot := range rep.Stock {
		status := domain.LotStatus(lot.ExpiryDate, lot.CurrentQuantity, asOf, r.thresholds)

		fill := i%2 == 0
		pdf.SetFillColor(245, 245, 245)

		name := lot.MedicationName
		if lot.ActiveIngredient != nil && *lot.ActiveIngredient != "" {
			name += " / " + *lot.ActiveIngredient
		}

		r.textColorFor(pdf, status)
		pdf.CellFormat(widths[0], 7, name, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[1], 7, derefOrDash(lot.PrescriptionClass), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[2], 7, lot.LotNumber, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[3], 7, lot.ExpiryDate.Format(dateLayout), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[4], 7, fmt.Sprintf("%d", lot.CurrentQuantity), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(widths[5], 7, status, "1", 0, "C", fill, 0, "")
		pdf.Ln(-1)

		total += lot.CurrentQuantity
	}
	pdf.SetTextColor(0, 0, 0)

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total in stock: %d units", total), "", 1, "L", false, 0, "")
}

func (r *Renderer) historySection(pdf *fpdf.Fpdf, rep *repository.InventoryReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "2. Dispensation History (Selected Period)", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	widths := []float64{35, 40, 80, 40, 20, 40}
	headers := []string{"Date/Time", "Patient ID", "Medication", "Lot", "Qty", "Type"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(51, 102, 153)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(0, 0, 0)
	total := 0
	for i, d := range rep.History {
		fill := i%2 == 0
		pdf.SetFillColor(245, 245, 245)

		pdf.CellFormat(widths[0], 7, d.DispensedAt.Format("02/01 15:04"), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[1], 7, d.PatientID, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[2], 7, d.MedicationName, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[3], 7, d.LotNumber, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[4], 7, fmt.Sprintf("%d", d.Quantity), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(widths[5], 7, d.DispensationType, "1", 0, "L", fill, 0, "")
		pdf.Ln(-1)

		total += d.Quantity
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total dispensed: %d units", total), "", 1, "L", false, 0, "")
}

// textColorFor paints expired rows red, matching the on-screen alert color.
func (r *Renderer) textColorFor(pdf *fpdf.Fpdf, status string) {
	if status == domain.StatusExpired {
		pdf.SetTextColor(200, 0, 0)
		return
	}
	pdf.SetTextColor(0, 0, 0)
}

func derefOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
