package scanning

// Scanner defines the interface for receipt OCR operations. Implementations
// transcribe the visible text of a payment screenshot; they never interpret
// it. Field extraction happens downstream.
type Scanner interface {
	// ScanText transcribes all readable text from a receipt image or PDF,
	// top to bottom, one line per visual line.
	ScanText(imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
