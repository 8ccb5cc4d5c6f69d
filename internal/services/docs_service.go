package services

import (
	"bytes"
	"fmt"
	"strings"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders trip paperwork: the seat manifest and per-payment receipts.
type DocsService struct {
	Core       *CoreService
	DriverName string
	RequestID  string
	Loader     func() (ManifestView, error)
}

func (s DocsService) GenerateManifest() ([]byte, string, error) {
	view, err := s.load()
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_manifest", fmt.Sprintf("trip_id=%s seats=%d", view.Trip.ID, len(view.Seats)))
	return buildManifestPDF(view, s.DriverName)
}

// GenerateReceipt renders one ledger line of the current trip.
func (s DocsService) GenerateReceipt(txID string) ([]byte, string, error) {
	view, err := s.load()
	if err != nil {
		return nil, "", err
	}
	txID = strings.TrimSpace(txID)
	for _, tx := range view.Transactions {
		if tx.ID == txID {
			utils.LogEvent(s.RequestID, "docs", "generate_receipt", "tx_id="+txID)
			return buildReceiptPDF(view, tx, s.DriverName)
		}
	}
	return nil, "", domain.NotFoundError{Resource: "transaction", ID: txID}
}

func (s DocsService) load() (ManifestView, error) {
	if s.Loader != nil {
		return s.Loader()
	}
	if s.Core == nil {
		return ManifestView{}, domain.InternalError{Msg: "docs service has no core"}
	}
	return s.Core.Manifest()
}

func buildManifestPDF(v ManifestView, driver string) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Trip manifest", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "TRIP MANIFEST")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	header := []string{
		fmt.Sprintf("Trip      : %s", safe(v.Trip.ID, "-")),
		fmt.Sprintf("Route     : %s (%s -> %s)", safe(v.Route.ID, "-"), safe(stopName(v.Stops, 0), "-"), safe(stopName(v.Stops, len(v.Stops)-1), "-")),
		fmt.Sprintf("Direction : %s", v.Trip.Direction),
		fmt.Sprintf("Phase     : %s", v.Trip.Phase),
		fmt.Sprintf("Driver    : %s", safe(driver, "-")),
		fmt.Sprintf("Printed   : %s", utils.FormatDateTime(v.GeneratedAt)),
	}
	for _, line := range header {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(4)

	widths := []float64{14, 60, 50, 22, 34}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Seat", "Passenger", "Stops", "Method", "Amount"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, seat := range v.Seats {
		row := []string{fmt.Sprintf("%d", seat.ID), "free", "", "", ""}
		if seat.Occupied && seat.Assignment != nil {
			a := seat.Assignment
			row[1] = safe(a.PassengerName, "-")
			if a.FromStop != 0 || a.ToStop != 0 {
				row[2] = fmt.Sprintf("%s -> %s", stopLabel(v.Stops, a.FromStop), stopLabel(v.Stops, a.ToStop))
			}
			row[3] = string(a.PaymentMethod)
			row[4] = utils.FormatRubles(a.Amount)
		}
		for i, cell := range row {
			pdf.CellFormat(widths[i], 7, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	var income int64
	for _, tx := range v.Transactions {
		switch tx.Kind {
		case domain.TxBookingFare, domain.TxQueueFare, domain.TxCashReceipt:
			income += tx.Amount
		}
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Trip income: %s (%d payments)", utils.FormatRubles(income), len(v.Transactions)))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Driver balance: "+utils.FormatRubles(v.Balance))
	pdf.Ln(7)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("MANIFEST_%s_%s.pdf", utils.SafeFilenamePart(v.Route.ID), utils.SafeFilenamePart(v.Trip.ID))
	return buf.Bytes(), filename, nil
}

func buildReceiptPDF(v ManifestView, tx models.Transaction, driver string) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("Receipt", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		"No        : " + tx.ID,
		"Date      : " + utils.FormatDateTime(tx.CreatedAt),
		"Paid by   : " + safe(tx.Counterparty, "-"),
		"Kind      : " + string(tx.Kind),
		"Method    : " + string(tx.PaymentMethod),
		"Route     : " + safe(v.Route.ID, "-"),
		"Driver    : " + safe(driver, "-"),
	}
	if tx.Intermediary != "" {
		lines = append(lines, "Via       : "+tx.Intermediary)
	}
	for _, line := range lines {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Total: "+utils.FormatRubles(tx.Amount))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("RECEIPT_%s_%s.pdf", utils.SafeFilenamePart(tx.Counterparty), utils.SafeFilenamePart(tx.ID))
	return buf.Bytes(), filename, nil
}

func stopName(stops []models.Stop, i int) string {
	if i < 0 || i >= len(stops) {
		return ""
	}
	return stops[i].Name
}

func stopLabel(stops []models.Stop, id int) string {
	for _, s := range stops {
		if s.ID == id {
			return s.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}
