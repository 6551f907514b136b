// Package doctext extracts plain text from uploaded study documents.
package doctext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/pavelanni/assessor/internal/model"
)

// ErrUnsupported is returned for payloads that are neither PDF nor text.
var ErrUnsupported = errors.New("unsupported document type")

// Extractor pulls text out of a SourceDocument. It does no network I/O.
type Extractor struct {
	log *slog.Logger
}

// New creates an Extractor. A nil logger uses slog.Default().
func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log}
}

// ExtractText returns the whitespace-collapsed text of doc. The result may
// be empty for scanned or image-only PDFs.
func (e *Extractor) ExtractText(ctx context.Context, doc model.SourceDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(doc.Data) == 0 {
		return "", fmt.Errorf("empty document %q", doc.Name)
	}

	if IsPDF(doc.Data) {
		return extractPDF(doc.Data)
	}

	if claimsPDF(doc) {
		e.log.Warn("document does not start with %PDF header",
			"name", doc.Name, "media_type", doc.MediaType, "size", len(doc.Data))
		return "", fmt.Errorf("document %q claims pdf but is missing the %%PDF header", doc.Name)
	}

	mt := strings.ToLower(doc.MediaType)
	if strings.HasPrefix(mt, "text/") || isProbablyText(doc.Data) {
		return collapseWhitespace(string(doc.Data)), nil
	}
	return "", fmt.Errorf("%w: name=%s media_type=%s", ErrUnsupported, doc.Name, doc.MediaType)
}

// IsPDF reports whether b starts with the PDF magic bytes.
func IsPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

// MediaType guesses the media type of data, preferring the magic bytes over
// the declared type.
func MediaType(data []byte, declared string) string {
	if IsPDF(data) {
		return "application/pdf"
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if isProbablyText(data) {
		return "text/plain"
	}
	return "application/octet-stream"
}

func claimsPDF(doc model.SourceDocument) bool {
	return strings.EqualFold(doc.MediaType, "application/pdf") ||
		strings.EqualFold(filepath.Ext(doc.Name), ".pdf")
}

func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return collapseWhitespace(string(b)), nil
}

func isProbablyText(b []byte) bool {
	sample := b[:min(len(b), 4096)]
	if len(sample) == 0 {
		return false
	}
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	return float64(good)/float64(len(sample)) > 0.9
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
