package cashsession

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

var amountPrinter = message.NewPrinter(language.English)

func formatAmount(d decimal.Decimal) string {
	return amountPrinter.Sprintf("%.2f", d.Round(ledger.CurrencyPrecision).InexactFloat64())
}

func formatNullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return formatAmount(d.Decimal)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// Report renders the closing ("Z") report of a session as PDF.
func (s *Service) Report(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	view, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return BuildReportPDF(view, entries)
}

// BuildReportPDF renders a session view and its entries.
func BuildReportPDF(view View, entries []ledger.Entry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Cash Session Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	header := []string{
		fmt.Sprintf("Session: %s", view.ID),
		fmt.Sprintf("Point of sale: %s", view.PointOfSaleID),
		fmt.Sprintf("Status: %s", view.Status),
		fmt.Sprintf("Opened: %s", view.OpenedAt.Format(time.RFC3339)),
		fmt.Sprintf("Closed: %s", formatTime(view.ClosedAt)),
		fmt.Sprintf("Reconciled: %s", formatTime(view.ReconciledAt)),
	}
	for _, line := range header {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}

	pdf.Ln(4)
	totals := [][2]string{
		{"Opening amount", formatAmount(view.Summary.OpeningAmount)},
		{"Cash in", formatAmount(view.Summary.CashIn)},
		{"Cash out", formatAmount(view.Summary.CashOut)},
		{"Expected balance", formatAmount(view.Summary.ExpectedBalance)},
		{"Expected at close", formatNullAmount(view.ExpectedAmount)},
		{"Counted", formatNullAmount(view.ClosingAmount)},
		{"Difference", formatNullAmount(view.Difference)},
	}
	for _, row := range totals {
		pdf.CellFormat(60, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, row[1], "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Total", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, tt := range view.Summary.ByType {
		pdf.CellFormat(50, 6, string(tt.EntryType), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", tt.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, formatAmount(tt.Total), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(entries) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, "Document", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Status", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Method", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Total", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, e := range entries {
			pdf.CellFormat(60, 6, e.DocumentNumber, "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 6, string(e.Status), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, string(e.PaymentMethod), "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, formatAmount(e.Total), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
