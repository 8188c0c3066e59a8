package scanning

import (
	"regexp"
	"strings"
)

// ocrPrompt is the shared prompt used by all LLM providers for transcribing
// payment receipts. The model is asked for a plain transcript only; any
// structuring it attempts would just be noise to undo.
const ocrPrompt = `You are transcribing a UPI payment receipt or payment app screenshot (PhonePe, Google Pay, Paytm, or a bank app).

Transcribe ALL visible text exactly as it appears, top to bottom, one line of output per visual line. Include amounts, names, UPI IDs, UTR numbers, transaction IDs, dates, times and status text verbatim. Keep the ₹ symbol where it appears.

Important:
- Do NOT summarize, interpret, translate or reorder anything
- Do NOT add labels, headings or commentary of your own
- Do NOT use markdown code blocks
- If the image contains no readable text, return NO_TEXT and nothing else`

var reCodeFence = regexp.MustCompile("^```[a-zA-Z]*\n?|```$")

// cleanTranscript strips the wrappers vision models add around a transcript
// despite the prompt: markdown code fences and the NO_TEXT marker. An empty
// return means the image had no readable text.
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	text = reCodeFence.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "NO_TEXT") {
		return ""
	}
	return text
}
