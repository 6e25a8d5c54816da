package decode

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

// PDF extracts plain text from a PDF attachment. Pages beyond maxPages are
// ignored to bound latency on malformed or huge files. An unreadable file is
// an explicit ErrUnreadable, never a silent empty artifact.
func PDF(blob []byte, maxPages int) (*Artifact, error) {
	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	pages := reader.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no extractable text", ErrUnreadable)
	}

	return &Artifact{
		Source: internal.FormatPDF,
		Text:   text,
		Dates:  util.FindDates(text),
	}, nil
}
