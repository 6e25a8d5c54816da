package internal

import "receiptsync/internal/util"

type ReceiptFormat string

const (
	FormatPDF   ReceiptFormat = "pdf"
	FormatHTML  ReceiptFormat = "html"
	FormatText  ReceiptFormat = "text"
	FormatImage ReceiptFormat = "image"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// SyncStatus is the receipt lifecycle: pending -> matched|synced|error.
// It only ever advances forward; see Receipt.Advance.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncMatched SyncStatus = "matched"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

type LineItem struct {
	Description string      `json:"description"`
	SKU         *string     `json:"sku,omitempty"`
	Quantity    float64     `json:"quantity"`
	UnitPrice   *util.Cents `json:"unitPrice,omitempty"`
	TotalPrice  util.Cents  `json:"totalPrice"`
}

// ParsedReceipt is the transient output of a parser, folded into a Receipt
// immediately after parsing.
type ParsedReceipt struct {
	Total           *util.Cents
	Subtotal        *util.Cents
	Tax             *util.Cents
	Shipping        *util.Cents
	TransactionDate *string // YYYY-MM-DD
	OrderNumber     *string
	InvoiceNumber   *string
	PONumber        *string
	CardLast4       *string
	PaymentMethod   *string
	Items           []LineItem
	Confidence      Confidence
}

// HasReference reports whether any order/invoice/PO number was extracted.
func (p *ParsedReceipt) HasReference() bool {
	return p.OrderNumber != nil || p.InvoiceNumber != nil || p.PONumber != nil
}

// Receipt is the durable unit of work: one parsed purchase document plus its
// reconciliation state. Created once per decoded document, never re-created.
type Receipt struct {
	ID         string
	EmailID    int
	Origin     string // gmail | imap | file
	VendorID   string // vendor profile id, empty when undetected
	VendorName string

	Total           *util.Cents
	Subtotal        *util.Cents
	Tax             *util.Cents
	Shipping        *util.Cents
	TransactionDate *string
	OrderNumber     *string
	InvoiceNumber   *string
	PONumber        *string
	CardLast4       *string
	PaymentMethod   *string
	Items           []LineItem
	Confidence      Confidence

	JobName     string
	Category    string
	Attachments []string

	LedgerVendorID   *string
	LedgerCustomerID *string
	LedgerAccountID  *string
	LedgerTxnID      *string

	Status    SyncStatus
	SyncError *string
	Notes     []string
}

// Advance moves the sync status forward. Transitions out of pending are the
// only legal ones; anything else is refused so a status never reverts.
func (r *Receipt) Advance(next SyncStatus) bool {
	if r.Status != SyncPending || next == SyncPending {
		return false
	}
	r.Status = next
	return true
}

// AddNote appends to the receipt's processing log. Order is preserved.
func (r *Receipt) AddNote(note string) {
	r.Notes = append(r.Notes, note)
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// ReceiptExportRow is one line of the reconciliation report.
type ReceiptExportRow struct {
	ReceiptID       string
	VendorName      string
	TransactionDate *string
	Total           *util.Cents
	Subtotal        *util.Cents
	Tax             *util.Cents
	OrderNumber     *string
	CardLast4       *string
	JobName         string
	Confidence      string
	Status          string
	LedgerTxnID     *string
	SyncError       *string
	EmailSubject    string
	ReceivedAt      string
}
