package extraction

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoText is returned by Extract when the input contains no usable
// text at all. Partial or garbled text is not an error; only the
// absence of text is.
var ErrNoText = errors.New("no text to extract")

// Outcome tags the result of extracting one field.
type Outcome int

const (
	// NotFound means no pattern variant produced a valid value.
	NotFound Outcome = iota
	// Found means exactly one distinct valid value was extracted.
	Found
	// Ambiguous means the winning variant produced multiple distinct
	// valid values and the engine refuses to guess between them.
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// MarshalJSON encodes the outcome as its string form
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// Field is the tagged outcome of extracting one semantic field.
// Value is only meaningful when Outcome is Found; Variant is the index
// of the pattern variant that won; Candidates holds the distinct
// canonical forms when Outcome is Ambiguous.
type Field[T any] struct {
	Outcome    Outcome  `json:"outcome"`
	Value      T        `json:"value"`
	Variant    int      `json:"variant"`
	Candidates []string `json:"candidates,omitempty"`
}

// Status is the closed set of transaction statuses. Anything the
// keyword table does not recognize maps to StatusUnknown, never to a
// fabricated value.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	StatusPending Status = "Pending"
	StatusUnknown Status = "Unknown"
)

// Record holds one extraction outcome per field for a single receipt,
// plus the raw and normalized text retained for audit. The zero value
// has every field NotFound.
type Record struct {
	Amount   Field[decimal.Decimal] `json:"amount"`
	TxnTime  Field[time.Time]       `json:"txn_time"`
	Payee    Field[string]          `json:"payee_name"`
	Payer    Field[string]          `json:"payer_name"`
	VPA      Field[string]          `json:"payee_vpa"`
	UTR      Field[string]          `json:"utr"`
	UPITxnID Field[string]          `json:"upi_txn_id"`
	Bank     Field[string]          `json:"bank_name"`
	Status   Field[Status]          `json:"status"`

	// Channel is a best-effort guess of the issuing app, "UPI" when
	// nothing more specific is recognized.
	Channel string `json:"channel"`

	RawText string `json:"raw_text"`
	Lines   Lines  `json:"normalized_text"`
}

// fieldOutcomes lists every field with its stable name, in declaration
// order. The names double as CSV column keys downstream.
func (r *Record) fieldOutcomes() []struct {
	Name       string
	Outcome    Outcome
	Candidates []string
} {
	return []struct {
		Name       string
		Outcome    Outcome
		Candidates []string
	}{
		{"amount", r.Amount.Outcome, r.Amount.Candidates},
		{"txn_time", r.TxnTime.Outcome, r.TxnTime.Candidates},
		{"payee_name", r.Payee.Outcome, r.Payee.Candidates},
		{"payer_name", r.Payer.Outcome, r.Payer.Candidates},
		{"payee_vpa", r.VPA.Outcome, r.VPA.Candidates},
		{"utr", r.UTR.Outcome, r.UTR.Candidates},
		{"upi_txn_id", r.UPITxnID.Outcome, r.UPITxnID.Candidates},
		{"bank_name", r.Bank.Outcome, r.Bank.Candidates},
		{"status", r.Status.Outcome, r.Status.Candidates},
	}
}

// ReviewFields returns the names of fields that came back NotFound or
// Ambiguous, in stable declaration order. Callers must treat these as
// needing manual review, not as failures.
func (r *Record) ReviewFields() []string {
	var names []string
	for _, f := range r.fieldOutcomes() {
		if f.Outcome != Found {
			names = append(names, f.Name)
		}
	}
	return names
}

// AmbiguousCandidates returns the retained candidates for every
// ambiguous field, keyed by field name. Nil when nothing is ambiguous.
func (r *Record) AmbiguousCandidates() map[string][]string {
	var out map[string][]string
	for _, f := range r.fieldOutcomes() {
		if f.Outcome == Ambiguous {
			if out == nil {
				out = make(map[string][]string)
			}
			out[f.Name] = f.Candidates
		}
	}
	return out
}
