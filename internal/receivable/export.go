package receivable

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-ledger/internal/quota"
)

const (
	rowsSheet  = "Receivables"
	agingSheet = "Aging"
)

// BuildXLSX renders receivable rows and their aging summary as a workbook.
func BuildXLSX(rows []quota.Quota, aging Aging) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", rowsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(agingSheet); err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f}
	header := []string{"Document", "Entry Type", "Customer", "Quota", "Quota ID", "Due Date", "Amount", "Status"}
	for i, title := range header {
		w.set(rowsSheet, i+1, 1, title)
	}
	for i, q := range rows {
		row := i + 2
		customer := ""
		if q.CustomerID.Valid {
			customer = q.CustomerID.UUID.String()
		}
		w.set(rowsSheet, 1, row, q.DocumentNumber)
		w.set(rowsSheet, 2, row, string(q.EntryType))
		w.set(rowsSheet, 3, row, customer)
		w.set(rowsSheet, 4, row, fmt.Sprintf("%d/%d", q.QuotaNumber, q.TotalQuotas))
		w.set(rowsSheet, 5, row, q.ID)
		w.set(rowsSheet, 6, row, q.DueDate.Format("2006-01-02"))
		w.set(rowsSheet, 7, row, q.Amount.InexactFloat64())
		w.set(rowsSheet, 8, row, string(q.Status))
	}
	w.width(rowsSheet, "A", 22)
	w.width(rowsSheet, "C", 38)
	w.width(rowsSheet, "E", 40)

	w.set(agingSheet, 1, 1, "As Of")
	w.set(agingSheet, 2, 1, aging.AsOf.Format("2006-01-02"))
	buckets := []struct {
		label string
		value float64
	}{
		{"Current", aging.Current.InexactFloat64()},
		{"1-30", aging.Bucket30.InexactFloat64()},
		{"31-60", aging.Bucket60.InexactFloat64()},
		{"61-90", aging.Bucket90.InexactFloat64()},
		{"90+", aging.Bucket120.InexactFloat64()},
		{"Total", aging.Total.InexactFloat64()},
	}
	for i, b := range buckets {
		w.set(agingSheet, 1, i+3, b.label)
		w.set(agingSheet, 2, i+3, b.value)
	}
	if w.err != nil {
		return nil, fmt.Errorf("receivable: write workbook: %w", w.err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sheetWriter keeps the first excelize error and skips later writes.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) set(sheet string, col, row int, value any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(sheet, cell, value)
}

func (w *sheetWriter) width(sheet, col string, width float64) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetColWidth(sheet, col, col, width)
}
