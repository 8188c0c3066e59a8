package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// variant is one pattern in a field rule. pattern must contain exactly
// one capture group. When label is set the variant targets label/value
// line pairs: label must match a line and pattern is applied to the
// line after it. norm turns the captured text into a typed value and
// its canonical string form, rejecting anything that fails the field's
// validation.
type variant[T any] struct {
	label   *regexp.Regexp
	pattern *regexp.Regexp
	norm    func(string) (T, string, bool)
}

// rule is the ordered variant list for one field, most specific first.
// The first variant that yields at least one valid match wins; a
// winning variant with multiple distinct values makes the field
// ambiguous rather than guessing.
type rule[T any] struct {
	name     string
	variants []variant[T]
}

func (r rule[T]) apply(lines Lines) Field[T] {
	for vi, v := range r.variants {
		var (
			values []T
			canon  []string
			seen   = map[string]bool{}
		)
		for li, line := range lines {
			target := line
			if v.label != nil {
				if li+1 >= len(lines) || !v.label.MatchString(line) {
					continue
				}
				target = lines[li+1]
			}
			for _, m := range v.pattern.FindAllStringSubmatch(target, -1) {
				val, cs, ok := v.norm(m[1])
				if !ok || seen[cs] {
					continue
				}
				seen[cs] = true
				values = append(values, val)
				canon = append(canon, cs)
			}
		}
		switch len(values) {
		case 0:
			continue
		case 1:
			return Field[T]{Outcome: Found, Value: values[0], Variant: vi}
		default:
			return Field[T]{Outcome: Ambiguous, Variant: vi, Candidates: canon}
		}
	}
	return Field[T]{Outcome: NotFound}
}

// --- normalizers and validators ---

func normAmount(s string) (decimal.Decimal, string, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || !d.IsPositive() || d.Exponent() < -2 {
		return decimal.Decimal{}, "", false
	}
	return d, d.StringFixed(2), true
}

var (
	reClockDot = regexp.MustCompile(`(\d{1,2})\.(\d{2})`)
	reMeridiem = regexp.MustCompile(`(?i)\b(am|pm)\b`)
)

// txnTimeFormats is the fixed priority order for date parsing.
// Day-month-year comes before month/day/year, so an ambiguous numeric
// date resolves the Indian way.
var txnTimeFormats = []string{
	"2 Jan 2006, 3:04 PM",
	"2 January 2006, 3:04 PM",
	"2 Jan 2006 3:04 PM",
	"2 January 2006 3:04 PM",
	"3:04 PM on 2 Jan 2006",
	"3:04 PM on 2 January 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2/1/2006",
	"1/2/2006",
}

func normTxnTime(s string) (time.Time, string, bool) {
	s = reClockDot.ReplaceAllString(s, "$1:$2")
	s = reMeridiem.ReplaceAllStringFunc(s, strings.ToUpper)
	for _, layout := range txnTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, t.Format("2006-01-02 15:04"), true
		}
	}
	return time.Time{}, "", false
}

func normName(s string) (string, string, bool) {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), ".:-"))
	if len(s) < 2 || len(s) > 255 {
		return "", "", false
	}
	return s, s, true
}

func normVPA(s string) (string, string, bool) {
	s = strings.ToLower(s)
	local, provider, ok := strings.Cut(s, "@")
	if !ok || local == "" || provider == "" {
		return "", "", false
	}
	return s, s, true
}

// normToken validates an ID token of bounded length. The pattern
// fixes the charset; the length check matters because labels are often
// OCR-garbled and length/charset is what actually tells a UPI txn ID
// from a UTR.
func normToken(min, max int) func(string) (string, string, bool) {
	return func(s string) (string, string, bool) {
		if len(s) < min || len(s) > max {
			return "", "", false
		}
		return s, s, true
	}
}

// bankAliases folds the common short forms into one canonical name so
// "SBI" and "State Bank of India" on the same receipt agree instead of
// reading as a conflict.
var bankAliases = map[string]string{
	"sbi":   "State Bank of India",
	"icici": "ICICI Bank",
	"hdfc":  "HDFC Bank",
	"axis":  "Axis Bank",
}

func normBank(s string) (string, string, bool) {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), ".:-"))
	if alias, ok := bankAliases[strings.ToLower(s)]; ok {
		s = alias
	}
	if len(s) < 2 || len(s) > 255 {
		return "", "", false
	}
	return s, s, true
}

// statusKeywords maps receipt wording onto the closed status set.
var statusKeywords = []struct {
	keyword string
	status  Status
}{
	{"successful", StatusSuccess},
	{"success", StatusSuccess},
	{"completed", StatusSuccess},
	{"complete", StatusSuccess},
	{"failed", StatusFailed},
	{"failure", StatusFailed},
	{"declined", StatusFailed},
	{"pending", StatusPending},
	{"processing", StatusPending},
}

func normStatus(s string) (Status, string, bool) {
	low := strings.ToLower(s)
	for _, e := range statusKeywords {
		if strings.Contains(low, e.keyword) {
			return e.status, string(e.status), true
		}
	}
	// Recognized label, unrecognized wording: Unknown, never a guess.
	return StatusUnknown, string(StatusUnknown), true
}

// --- the field rule registry ---
//
// Process-wide, read-only. Variants are ordered from app-specific
// labels down to bare shape fallbacks, which is what makes an explicit
// "Amount Paid" beat a stray balance elsewhere on the receipt.

var amountRule = rule[decimal.Decimal]{
	name: "amount",
	variants: []variant[decimal.Decimal]{
		{
			pattern: regexp.MustCompile(`(?i)\b(?:amount paid|amount|paid)\b\s*[:\-]?\s*(?:₹|INR|Rs\.?)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
			norm:    normAmount,
		},
		{
			label:   regexp.MustCompile(`(?i)^(?:amount paid|amount)\s*[:\-]?$`),
			pattern: regexp.MustCompile(`^(?:₹|INR|Rs\.?)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)$`),
			norm:    normAmount,
		},
		{
			pattern: regexp.MustCompile(`(?:₹|INR|Rs\.?)\s*([0-9][0-9,]*\.?[0-9]{0,2})`),
			norm:    normAmount,
		},
	},
}

var txnTimeRule = rule[time.Time]{
	name: "txn_time",
	variants: []variant[time.Time]{
		{
			pattern: regexp.MustCompile(`(\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4},?\s+\d{1,2}[:.]\d{2}\s*(?:AM|PM|am|pm))`),
			norm:    normTxnTime,
		},
		{
			pattern: regexp.MustCompile(`(\d{1,2}[:.]\d{2}\s*(?:AM|PM|am|pm)\s+on\s+\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4})`),
			norm:    normTxnTime,
		},
		{
			pattern: regexp.MustCompile(`(\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4})`),
			norm:    normTxnTime,
		},
		{
			pattern: regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`),
			norm:    normTxnTime,
		},
	},
}

var payeeRule = rule[string]{
	name: "payee_name",
	variants: []variant[string]{
		{
			pattern: regexp.MustCompile(`(?i)\bpaid to\b\s*[:\-]?\s*([A-Za-z][A-Za-z .@&]+)`),
			norm:    normName,
		},
		{
			label:   regexp.MustCompile(`(?i)^paid to\s*[:\-]?$`),
			pattern: regexp.MustCompile(`^([A-Za-z][A-Za-z .@&]+)$`),
			norm:    normName,
		},
		{
			pattern: regexp.MustCompile(`(?i)^to\s*[:\-]?\s*([A-Za-z][A-Za-z .@&]+)`),
			norm:    normName,
		},
	},
}

var payerRule = rule[string]{
	name: "payer_name",
	variants: []variant[string]{
		{
			pattern: regexp.MustCompile(`(?i)^from\s*[:\-]?\s*([A-Za-z][A-Za-z .@&]+)`),
			norm:    normName,
		},
		{
			label:   regexp.MustCompile(`(?i)^from\s*[:\-]?$`),
			pattern: regexp.MustCompile(`^([A-Za-z][A-Za-z .@&]+)$`),
			norm:    normName,
		},
	},
}

var vpaRule = rule[string]{
	name: "payee_vpa",
	variants: []variant[string]{
		{
			pattern: regexp.MustCompile(`(?i)\b(?:UPI ID|VPA)\s*[:\-]?\s*([A-Za-z0-9._\-]+@[A-Za-z]+)`),
			norm:    normVPA,
		},
		{
			label:   regexp.MustCompile(`(?i)^(?:UPI ID|VPA)\s*[:\-]?$`),
			pattern: regexp.MustCompile(`(?i)^([A-Za-z0-9._\-]+@[A-Za-z]+)$`),
			norm:    normVPA,
		},
		{
			pattern: regexp.MustCompile(`(?i)\b([a-z0-9._\-]+@[a-z]+)\b`),
			norm:    normVPA,
		},
	},
}

var utrRule = rule[string]{
	name: "utr",
	variants: []variant[string]{
		{
			pattern: regexp.MustCompile(`(?i)\bUTR(?:\s*(?:no|number))?\.?\s*[:\-]?\s*([0-9]{8,16})\b`),
			norm:    normToken(8, 16),
		},
		{
			label:   regexp.MustCompile(`(?i)^UTR(?:\s*(?:no|number))?\.?\s*[:\-]?$`),
			pattern: regexp.MustCompile(`^([0-9]{8,16})$`),
			norm:    normToken(8, 16),
		},
		{
			pattern: regexp.MustCompile(`\b([0-9]{12})\b`),
			norm:    normToken(12, 12),
		},
	},
}

var upiTxnIDRule = rule[string]{
	name: "upi_txn_id",
	variants: []variant[string]{
		{
			pattern: regexp.MustCompile(`(?i)\b(?:UPI|Txn|Transaction)\s*ID\s*[:\-]?\s*([A-Za-z0-9\-]+)`),
			norm:    normToken(10, 35),
		},
		{
			label:   regexp.MustCompile(`(?i)^(?:UPI|Txn|Transaction)\s*ID\s*[:\-]?$`),
			pattern: regexp.MustCompile(`^([A-Za-z0-9\-]+)$`),
			norm:    normToken(10, 35),
		},
		{
			pattern: regexp.MustCompile(`\b([A-Za-z]{1,4}[0-9]{8,31})\b`),
			norm:    normToken(12, 35),
		},
	},
}

var bankRule = rule[string]{
	name: "bank_name",
	variants: []variant[string]{
		{
			pattern: regexp.MustCompile(`(?i)\b(?:debited from|bank(?:ing)? name)\b\s*[:\-]?\s*([A-Za-z][A-Za-z0-9 .&]*[A-Za-z0-9])`),
			norm:    normBank,
		},
		{
			label:   regexp.MustCompile(`(?i)^(?:debited from|bank(?:ing)? name)\s*[:\-]?$`),
			pattern: regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 .&]*[A-Za-z0-9])$`),
			norm:    normBank,
		},
		{
			pattern: regexp.MustCompile(`(?i)\b(State Bank of India|Punjab National Bank|Bank of Baroda|Union Bank of India|Kotak Mahindra Bank|IndusInd Bank|Canara Bank|Yes Bank|IDFC First Bank|ICICI|HDFC|Axis|SBI)\b`),
			norm:    normBank,
		},
	},
}

var statusRule = rule[Status]{
	name: "status",
	variants: []variant[Status]{
		{
			pattern: regexp.MustCompile(`(?i)\bstatus\s*[:\-]?\s*([A-Za-z ]+)`),
			norm:    normStatus,
		},
		{
			pattern: regexp.MustCompile(`(?i)\b(successful|success|completed|complete|failed|failure|declined|pending|processing)\b`),
			norm:    normStatus,
		},
	},
}

// guessChannel identifies the issuing app from keywords anywhere in
// the text, defaulting to plain "UPI".
func guessChannel(lines Lines) string {
	t := strings.ToLower(strings.Join(lines, "\n"))
	switch {
	case strings.Contains(t, "phonepe"):
		return "PhonePe"
	case strings.Contains(t, "google pay"), strings.Contains(t, "gpay"), strings.Contains(t, "g pay"):
		return "Google Pay"
	case strings.Contains(t, "paytm"):
		return "Paytm"
	}
	return "UPI"
}
