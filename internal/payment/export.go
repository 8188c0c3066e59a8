package payment

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// ocrExportLimit caps the OCR transcript column so a single pathological
// scan cannot bloat the whole export.
const ocrExportLimit = 4000

var csvHeader = []string{
	"Case",
	"Channel",
	"Payer Name",
	"Payee Name",
	"Payee VPA",
	"Bank",
	"Amount",
	"Currency",
	"UTR",
	"UPI Transaction ID",
	"Status",
	"Transaction Time",
	"Source File",
	"Remarks",
	"Review Fields",
	"OCR Text",
}

// csvRow flattens a payment into one export row. Fields still awaiting
// review export as empty cells, not zero values.
func csvRow(caseName string, p *Payment) []string {
	amount := ""
	if !p.Amount.IsZero() {
		amount = p.Amount.StringFixed(2)
	}
	txnTime := ""
	if !p.TxnTime.IsZero() {
		txnTime = p.TxnTime.Format("2006-01-02 15:04")
	}
	ocr := p.OCRText
	if len(ocr) > ocrExportLimit {
		ocr = ocr[:ocrExportLimit]
	}

	return []string{
		caseName,
		p.Channel,
		p.PayerName,
		p.PayeeName,
		p.PayeeVPA,
		p.BankName,
		amount,
		"INR",
		p.UTR,
		p.UPITxnID,
		p.Status,
		txnTime,
		p.SourceFile,
		p.Remarks,
		strings.Join(p.ReviewFields, ", "),
		ocr,
	}
}

// ExportCaseCSV renders every payment of a case as CSV, one row per
// payment, in insertion order
func (s *Service) ExportCaseCSV(caseID string) ([]byte, error) {
	c, err := s.db.GetCase(caseID)
	if err != nil {
		return nil, fmt.Errorf("getting case: %w", err)
	}

	payments, err := s.db.ListPayments(caseID)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, p := range payments {
		if err := w.Write(csvRow(c.Name, p)); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}
