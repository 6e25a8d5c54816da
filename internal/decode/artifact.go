// Package decode turns raw receipt artifacts (PDF bytes, HTML markup, image
// bytes, plain text) into extractable text and structure. Decoders are pure
// functions of their input; the OCR engine is the only stateful piece.
package decode

import (
	"errors"
	"strings"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

// ErrUnreadable marks an artifact that could not be decoded at all. Callers
// skip the document and leave its source unmarked so the next cycle retries.
var ErrUnreadable = errors.New("artifact unreadable")

// Table is one extracted HTML table: ordered rows of cell text.
type Table [][]string

// Artifact is the decoded form of one receipt document: plain text plus
// optional structured accessors. Transient, discarded after parsing.
type Artifact struct {
	Source internal.ReceiptFormat
	Text   string
	HTML   string // original markup when Source is html

	Tables        []Table
	Amounts       map[string]util.Cents // semantic label -> value
	OrderNumber   *string
	InvoiceNumber *string
	CardLast4     *string
	Dates         []string // ISO, source order, deduped

	OCRConfidence float64 // mean word confidence, image source only
}

// Empty reports whether the artifact carries no usable signal.
func (a *Artifact) Empty() bool {
	return a == nil || (strings.TrimSpace(a.Text) == "" && len(a.Tables) == 0)
}

// Text builds a plain-text artifact. Used for email bodies and one-shot runs.
func Text(text string) *Artifact {
	return &Artifact{Source: internal.FormatText, Text: text}
}
