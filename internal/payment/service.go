package payment

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arjunmk/upi-tracker/internal/extraction"
	"github.com/arjunmk/upi-tracker/internal/scanning"
)

// IDGenerator generates unique IDs for stored records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles case and payment operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	engine      *extraction.Engine
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		engine:      extraction.New(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	// Phone screenshots arrive with absurdly long generated names
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// CreateCase creates a new case
func (s *Service) CreateCase(name, description string) (*Case, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("case name is required")
	}

	now := s.timeSource.Now()
	c := &Case{
		ID:          s.idGenerator.Generate(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveCase(c); err != nil {
		return nil, fmt.Errorf("saving case: %w", err)
	}
	return c, nil
}

// GetCase retrieves a case by ID
func (s *Service) GetCase(id string) (*Case, error) {
	c, err := s.db.GetCase(id)
	if err != nil {
		return nil, fmt.Errorf("getting case: %w", err)
	}
	return c, nil
}

// GetCaseWithPayments retrieves a case together with its payments
func (s *Service) GetCaseWithPayments(id string) (*Case, []*Payment, error) {
	c, err := s.db.GetCase(id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting case: %w", err)
	}
	payments, err := s.db.ListPayments(id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing payments: %w", err)
	}
	return c, payments, nil
}

// ListCases returns all cases
func (s *Service) ListCases() ([]*Case, error) {
	cases, err := s.db.ListCases()
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	return cases, nil
}

// UpdateCase updates a case's name and description
func (s *Service) UpdateCase(id, name, description string) (*Case, error) {
	c, err := s.db.GetCase(id)
	if err != nil {
		return nil, fmt.Errorf("getting case: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("case name is required")
	}

	c.Name = name
	c.Description = strings.TrimSpace(description)
	c.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveCase(c); err != nil {
		return nil, fmt.Errorf("saving case: %w", err)
	}
	return c, nil
}

// DeleteCase removes a case along with its payments, their stored files,
// and its notes
func (s *Service) DeleteCase(id string) error {
	if _, err := s.db.GetCase(id); err != nil {
		return fmt.Errorf("getting case for deletion: %w", err)
	}

	payments, err := s.db.ListPayments(id)
	if err != nil {
		return fmt.Errorf("listing payments for deletion: %w", err)
	}
	for _, p := range payments {
		if err := s.storage.Delete(p.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", p.Filename, "error", err)
		}
		if err := s.db.DeletePayment(p.ID); err != nil {
			return fmt.Errorf("deleting payment %s: %w", p.ID, err)
		}
	}

	notes, err := s.db.ListNotes(id)
	if err != nil {
		return fmt.Errorf("listing notes for deletion: %w", err)
	}
	for _, n := range notes {
		if err := s.db.DeleteNote(n.ID); err != nil {
			return fmt.Errorf("deleting note %s: %w", n.ID, err)
		}
	}

	if err := s.db.DeleteCase(id); err != nil {
		return fmt.Errorf("deleting case from database: %w", err)
	}
	return nil
}

// AddNote attaches a note to a case
func (s *Service) AddNote(caseID, text string) (*Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("note text is required")
	}
	if _, err := s.db.GetCase(caseID); err != nil {
		return nil, fmt.Errorf("getting case: %w", err)
	}

	note := &Note{
		ID:        s.idGenerator.Generate(),
		CaseID:    caseID,
		Text:      text,
		CreatedAt: s.timeSource.Now(),
	}

	if err := s.db.SaveNote(note); err != nil {
		return nil, fmt.Errorf("saving note: %w", err)
	}
	return note, nil
}

// ListNotes returns all notes for a case
func (s *Service) ListNotes(caseID string) ([]*Note, error) {
	notes, err := s.db.ListNotes(caseID)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// extract runs the engine over an OCR transcript. A transcript with no
// usable text still yields a payment; every field just lands on the
// review list.
func (s *Service) extract(text string) *extraction.Record {
	rec, err := s.engine.Extract(text)
	if errors.Is(err, extraction.ErrNoText) {
		return &extraction.Record{RawText: text, Channel: "UPI"}
	}
	return rec
}

// ProcessReceipt uploads a receipt into a case, transcribes it, and
// extracts the payment fields
func (s *Service) ProcessReceipt(caseID, filename string, data []byte, contentType string) (*Payment, error) {
	if _, err := s.db.GetCase(caseID); err != nil {
		return nil, fmt.Errorf("getting case: %w", err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	text, err := s.scanner.ScanText(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		// Clean up the saved file since scanning failed
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	p := &Payment{
		ID:          id,
		CaseID:      caseID,
		Filename:    savedPath,
		SourceFile:  filename,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.applyRecord(s.extract(text))

	if err := s.db.SavePayment(p); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving payment to database: %w", err)
	}

	return p, nil
}

// RerunOCR re-transcribes a stored payment's receipt and re-extracts its
// fields, discarding earlier manual edits to extracted fields
func (s *Service) RerunOCR(id string) (*Payment, error) {
	p, err := s.db.GetPayment(id)
	if err != nil {
		return nil, fmt.Errorf("getting payment: %w", err)
	}

	data, err := s.storage.Get(p.Filename)
	if err != nil {
		return nil, fmt.Errorf("getting payment file: %w", err)
	}

	text, err := s.scanner.ScanText(data, p.ContentType)
	if err != nil {
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	p.applyRecord(s.extract(text))
	p.UpdatedAt = s.timeSource.Now()

	if err := s.db.SavePayment(p); err != nil {
		return nil, fmt.Errorf("saving payment to database: %w", err)
	}
	return p, nil
}

// GetPayment retrieves a payment by ID
func (s *Service) GetPayment(id string) (*Payment, error) {
	p, err := s.db.GetPayment(id)
	if err != nil {
		return nil, fmt.Errorf("getting payment: %w", err)
	}
	return p, nil
}

// DeletePayment removes a payment and its stored file
func (s *Service) DeletePayment(id string) error {
	p, err := s.db.GetPayment(id)
	if err != nil {
		return fmt.Errorf("getting payment for deletion: %w", err)
	}

	if err := s.storage.Delete(p.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", p.Filename, "error", err)
	}

	if err := s.db.DeletePayment(id); err != nil {
		return fmt.Errorf("deleting payment from database: %w", err)
	}
	return nil
}

// GetPaymentFile retrieves the original receipt file for a payment
func (s *Service) GetPaymentFile(id string) ([]byte, string, error) {
	p, err := s.db.GetPayment(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting payment: %w", err)
	}

	data, err := s.storage.Get(p.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting payment file: %w", err)
	}

	return data, p.ContentType, nil
}

// PaymentUpdate carries a manual edit. Nil fields are left alone; a set
// field replaces the stored value and clears the field from review.
type PaymentUpdate struct {
	PayerName *string `json:"payer_name"`
	PayeeName *string `json:"payee_name"`
	PayeeVPA  *string `json:"payee_vpa"`
	BankName  *string `json:"bank_name"`
	UTR       *string `json:"utr"`
	UPITxnID  *string `json:"upi_txn_id"`
	Status    *string `json:"status"`
	Amount    *string `json:"amount"`
	TxnTime   *string `json:"txn_time"`
	Remarks   *string `json:"remarks"`
}

var editTimeFormats = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseEditAmount accepts what a reviewer would paste, currency marks and
// grouping commas included.
func parseEditAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"₹", "INR", "Rs.", "Rs"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount: %q", s)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("amount must be positive")
	}
	return d, nil
}

func parseEditTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range editTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid transaction time: %q", s)
}

var validStatuses = map[string]string{
	"success": "Success",
	"failed":  "Failed",
	"pending": "Pending",
	"unknown": "Unknown",
}

// UpdatePayment applies a manual edit to a payment
func (s *Service) UpdatePayment(id string, upd PaymentUpdate) (*Payment, error) {
	p, err := s.db.GetPayment(id)
	if err != nil {
		return nil, fmt.Errorf("getting payment: %w", err)
	}

	setString := func(dst *string, src *string, field string) {
		if src == nil {
			return
		}
		*dst = strings.TrimSpace(*src)
		p.clearReview(field)
	}

	setString(&p.PayerName, upd.PayerName, "payer_name")
	setString(&p.PayeeName, upd.PayeeName, "payee_name")
	setString(&p.PayeeVPA, upd.PayeeVPA, "payee_vpa")
	setString(&p.BankName, upd.BankName, "bank_name")
	setString(&p.UTR, upd.UTR, "utr")
	setString(&p.UPITxnID, upd.UPITxnID, "upi_txn_id")

	if upd.Status != nil {
		status, ok := validStatuses[strings.ToLower(strings.TrimSpace(*upd.Status))]
		if !ok {
			return nil, fmt.Errorf("invalid status: %q", *upd.Status)
		}
		p.Status = status
		p.clearReview("status")
	}

	if upd.Amount != nil {
		d, err := parseEditAmount(*upd.Amount)
		if err != nil {
			return nil, err
		}
		p.Amount = d
		p.clearReview("amount")
	}

	if upd.TxnTime != nil {
		t, err := parseEditTime(*upd.TxnTime)
		if err != nil {
			return nil, err
		}
		p.TxnTime = t
		p.clearReview("txn_time")
	}

	if upd.Remarks != nil {
		p.Remarks = strings.TrimSpace(*upd.Remarks)
	}

	p.UpdatedAt = s.timeSource.Now()

	if err := s.db.SavePayment(p); err != nil {
		return nil, fmt.Errorf("saving payment to database: %w", err)
	}
	return p, nil
}
