package extraction

// Engine extracts structured payment fields from raw OCR text. It is
// stateless and safe for concurrent use: every call operates only on
// its input and the read-only rule registry.
type Engine struct{}

// New creates a new extraction Engine
func New() *Engine {
	return &Engine{}
}

// Extract normalizes raw OCR text and runs every field rule against
// it. It returns ErrNoText when the input holds no usable text at all;
// otherwise a Record is always produced, worst case with every field
// NotFound. Identical input always yields an identical Record.
func (e *Engine) Extract(raw string) (*Record, error) {
	lines := Normalize(raw)
	if len(lines) == 0 {
		return nil, ErrNoText
	}

	rec := &Record{
		RawText: raw,
		Lines:   lines,
		Channel: guessChannel(lines),
	}
	rec.Amount = amountRule.apply(lines)
	rec.TxnTime = txnTimeRule.apply(lines)
	rec.Payee = payeeRule.apply(lines)
	rec.Payer = payerRule.apply(lines)
	rec.VPA = vpaRule.apply(lines)
	rec.UTR = utrRule.apply(lines)
	rec.UPITxnID = upiTxnIDRule.apply(lines)
	rec.Bank = bankRule.apply(lines)
	rec.Status = statusRule.apply(lines)

	return rec, nil
}
