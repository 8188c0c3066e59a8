package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/arjunmk/upi-tracker/internal/extraction"
)

// Payment represents one parsed UPI receipt attached to a case. Extracted
// fields hold their zero value when the engine could not find them; the
// field's name then appears in ReviewFields so a reviewer knows the blank
// is a miss, not a genuine empty.
type Payment struct {
	ID     string `json:"id"`
	CaseID string `json:"case_id"`

	Channel   string          `json:"channel"`
	PayerName string          `json:"payer_name"`
	PayeeName string          `json:"payee_name"`
	PayeeVPA  string          `json:"payee_vpa"`
	BankName  string          `json:"bank_name"`
	Amount    decimal.Decimal `json:"amount"`
	TxnTime   time.Time       `json:"txn_time"`
	UTR       string          `json:"utr"`
	UPITxnID  string          `json:"upi_txn_id"`
	Status    string          `json:"status"`

	// ReviewFields lists fields that came back NotFound or Ambiguous;
	// Candidates retains the distinct values of the ambiguous ones.
	ReviewFields []string            `json:"review_fields,omitempty"`
	Candidates   map[string][]string `json:"candidates,omitempty"`

	OCRText  string `json:"ocr_text"`
	Remarks  string `json:"remarks,omitempty"`
	Filename string `json:"filename"`

	// SourceFile is the name the file was uploaded under, kept for export.
	SourceFile  string `json:"source_file"`
	ContentType string `json:"content_type"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Case groups the payments of one investigation or reconciliation
type Case struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Note is a free-form annotation on a case
type Note struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// applyRecord copies an extraction outcome onto the payment, replacing
// every extracted field. Manual fields (Remarks, CaseID, file metadata)
// are untouched.
func (p *Payment) applyRecord(rec *extraction.Record) {
	p.Channel = rec.Channel
	p.OCRText = rec.RawText
	p.PayerName = foundValue(rec.Payer)
	p.PayeeName = foundValue(rec.Payee)
	p.PayeeVPA = foundValue(rec.VPA)
	p.BankName = foundValue(rec.Bank)
	p.UTR = foundValue(rec.UTR)
	p.UPITxnID = foundValue(rec.UPITxnID)
	if rec.Amount.Outcome == extraction.Found {
		p.Amount = rec.Amount.Value
	} else {
		p.Amount = decimal.Decimal{}
	}
	if rec.TxnTime.Outcome == extraction.Found {
		p.TxnTime = rec.TxnTime.Value
	} else {
		p.TxnTime = time.Time{}
	}
	if rec.Status.Outcome == extraction.Found {
		p.Status = string(rec.Status.Value)
	} else {
		p.Status = string(extraction.StatusUnknown)
	}
	p.ReviewFields = rec.ReviewFields()
	p.Candidates = rec.AmbiguousCandidates()
}

func foundValue(f extraction.Field[string]) string {
	if f.Outcome == extraction.Found {
		return f.Value
	}
	return ""
}

// clearReview drops a field from the review list and candidate map after
// a manual edit resolves it.
func (p *Payment) clearReview(name string) {
	for i, f := range p.ReviewFields {
		if f == name {
			p.ReviewFields = append(p.ReviewFields[:i], p.ReviewFields[i+1:]...)
			break
		}
	}
	if p.Candidates != nil {
		delete(p.Candidates, name)
		if len(p.Candidates) == 0 {
			p.Candidates = nil
		}
	}
}
