package ledger

import "receiptsync/internal/util"

// Entity is a named ledger object: a vendor, a customer (job), or an
// expense account.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// TxnLine is one expense line on a purchase transaction.
type TxnLine struct {
	Description string     `json:"description"`
	Amount      util.Cents `json:"amount"`
	AccountID   string     `json:"accountId,omitempty"`
	CustomerID  string     `json:"customerId,omitempty"`
	Billable    bool       `json:"billable,omitempty"`
}

// Transaction is a purchase on the ledger side, the candidate pool for
// receipt matching.
type Transaction struct {
	ID         string     `json:"id"`
	Date       string     `json:"date"` // YYYY-MM-DD
	Total      util.Cents `json:"total"`
	VendorID   *string    `json:"vendorId,omitempty"`
	VendorName *string    `json:"vendorName,omitempty"`
	CardLast4  *string    `json:"cardLast4,omitempty"`
	Memo       *string    `json:"memo,omitempty"`
	Lines      []TxnLine  `json:"lines,omitempty"`
}

// PurchaseUpsert is the write shape for creating or updating a purchase.
type PurchaseUpsert struct {
	Date       string    `json:"date"`
	VendorID   string    `json:"vendorId"`
	CustomerID string    `json:"customerId,omitempty"`
	AccountID  string    `json:"accountId"`
	Memo       string    `json:"memo,omitempty"`
	Lines      []TxnLine `json:"lines"`
}
