// Package extract parses uploaded PDF byte streams into ordered text segments.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	"github.com/kart-io/anaya/internal/pkg/textutil"
)

// Segment is one logical unit of extracted text, one per parsable page.
type Segment struct {
	// Page is the 1-based page number the text came from.
	Page int
	// Text is the extracted plain text.
	Text string
}

// ExtractionError indicates the document could not be parsed at all:
// unreadable bytes, an encrypted document, or zero extractable pages.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pdf extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("pdf extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PDF extracts text from a PDF byte stream, one segment per page.
// A single unparsable page is skipped with a warning; the call fails
// only when the document is unreadable or no page yields any text.
func PDF(data []byte) ([]Segment, error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Reason: "empty document"}
	}

	reader, err := newReader(data)
	if err != nil {
		return nil, &ExtractionError{Reason: "unreadable document", Err: err}
	}

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return nil, &ExtractionError{Reason: "document has no pages"}
	}

	segments := make([]Segment, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			logger.Warnw("skipping unparsable page", "page", i, "error", err.Error())
			continue
		}
		text = textutil.CollapseWhitespace(text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Page: i, Text: text})
	}

	if len(segments) == 0 {
		return nil, &ExtractionError{Reason: "no extractable text on any page"}
	}

	return segments, nil
}

// newReader opens the PDF, converting the library's parse panics into errors.
func newReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// pageText extracts plain text from one page, again guarding against panics.
func pageText(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page: %v", r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", num)
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}
