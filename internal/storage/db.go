// Package storage is the one-file sqlite layer: fetched mail, receipts and
// their reconciliation state, run traces, and key/value metadata.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS receipts (
  id TEXT PRIMARY KEY,
  emailId INTEGER NOT NULL,
  origin TEXT NOT NULL,
  vendorId TEXT,
  vendorName TEXT,
  total INTEGER,
  subtotal INTEGER,
  tax INTEGER,
  shipping INTEGER,
  transactionDate TEXT,
  orderNumber TEXT,
  invoiceNumber TEXT,
  poNumber TEXT,
  cardLast4 TEXT,
  paymentMethod TEXT,
  itemsJson TEXT NOT NULL DEFAULT '[]',
  confidence TEXT NOT NULL,
  jobName TEXT NOT NULL,
  category TEXT NOT NULL,
  attachmentsJson TEXT NOT NULL DEFAULT '[]',
  ledgerVendorId TEXT,
  ledgerCustomerId TEXT,
  ledgerAccountId TEXT,
  ledgerTxnId TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  syncError TEXT,
  notesJson TEXT NOT NULL DEFAULT '[]',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(emailId),
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_receipts_status ON receipts(status);
CREATE INDEX IF NOT EXISTS idx_receipts_vendorId ON receipts(vendorId);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE id = ?
`, id).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

// SaveReceipt writes the full receipt row, insert or replace-by-email. One
// receipt per email: reprocessing an email overwrites its previous parse
// instead of creating a duplicate.
func (d *DB) SaveReceipt(r *internal.Receipt) error {
	itemsJSON, _ := json.Marshal(r.Items)
	attachmentsJSON, _ := json.Marshal(r.Attachments)
	notesJSON, _ := json.Marshal(r.Notes)

	_, err := d.conn.Exec(`
INSERT INTO receipts (
  id, emailId, origin, vendorId, vendorName,
  total, subtotal, tax, shipping, transactionDate,
  orderNumber, invoiceNumber, poNumber, cardLast4, paymentMethod,
  itemsJson, confidence, jobName, category, attachmentsJson,
  ledgerVendorId, ledgerCustomerId, ledgerAccountId, ledgerTxnId,
  status, syncError, notesJson
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(emailId) DO UPDATE SET
  vendorId=excluded.vendorId,
  vendorName=excluded.vendorName,
  total=excluded.total,
  subtotal=excluded.subtotal,
  tax=excluded.tax,
  shipping=excluded.shipping,
  transactionDate=excluded.transactionDate,
  orderNumber=excluded.orderNumber,
  invoiceNumber=excluded.invoiceNumber,
  poNumber=excluded.poNumber,
  cardLast4=excluded.cardLast4,
  paymentMethod=excluded.paymentMethod,
  itemsJson=excluded.itemsJson,
  confidence=excluded.confidence,
  jobName=excluded.jobName,
  category=excluded.category,
  attachmentsJson=excluded.attachmentsJson,
  ledgerVendorId=excluded.ledgerVendorId,
  ledgerCustomerId=excluded.ledgerCustomerId,
  ledgerAccountId=excluded.ledgerAccountId,
  ledgerTxnId=excluded.ledgerTxnId,
  status=excluded.status,
  syncError=excluded.syncError,
  notesJson=excluded.notesJson,
  updatedAt=CURRENT_TIMESTAMP
`,
		r.ID, r.EmailID, r.Origin, r.VendorID, r.VendorName,
		centsColumn(r.Total), centsColumn(r.Subtotal), centsColumn(r.Tax), centsColumn(r.Shipping), r.TransactionDate,
		r.OrderNumber, r.InvoiceNumber, r.PONumber, r.CardLast4, r.PaymentMethod,
		string(itemsJSON), string(r.Confidence), r.JobName, r.Category, string(attachmentsJSON),
		r.LedgerVendorID, r.LedgerCustomerID, r.LedgerAccountID, r.LedgerTxnID,
		string(r.Status), r.SyncError, string(notesJSON),
	)
	return err
}

func (d *DB) GetReceiptByEmailID(emailID int) (*internal.Receipt, error) {
	row := d.conn.QueryRow(receiptSelect+` WHERE emailId = ?`, emailID)
	return scanReceipt(row)
}

func (d *DB) GetReceiptByID(id string) (*internal.Receipt, error) {
	row := d.conn.QueryRow(receiptSelect+` WHERE id = ?`, id)
	return scanReceipt(row)
}

func (d *DB) ListReceiptsByStatus(status internal.SyncStatus, limit int) ([]internal.Receipt, error) {
	rows, err := d.conn.Query(receiptSelect+` WHERE status = ? ORDER BY createdAt ASC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

const receiptSelect = `
SELECT id, emailId, origin, vendorId, vendorName,
       total, subtotal, tax, shipping, transactionDate,
       orderNumber, invoiceNumber, poNumber, cardLast4, paymentMethod,
       itemsJson, confidence, jobName, category, attachmentsJson,
       ledgerVendorId, ledgerCustomerId, ledgerAccountId, ledgerTxnId,
       status, syncError, notesJson
FROM receipts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*internal.Receipt, error) {
	var r internal.Receipt
	var vendorID, vendorName sql.NullString
	var total, subtotal, tax, shipping sql.NullInt64
	var itemsJSON, confidence, attachmentsJSON, status, notesJSON string

	err := row.Scan(
		&r.ID, &r.EmailID, &r.Origin, &vendorID, &vendorName,
		&total, &subtotal, &tax, &shipping, &r.TransactionDate,
		&r.OrderNumber, &r.InvoiceNumber, &r.PONumber, &r.CardLast4, &r.PaymentMethod,
		&itemsJSON, &confidence, &r.JobName, &r.Category, &attachmentsJSON,
		&r.LedgerVendorID, &r.LedgerCustomerID, &r.LedgerAccountID, &r.LedgerTxnID,
		&status, &r.SyncError, &notesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.VendorID = vendorID.String
	r.VendorName = vendorName.String
	r.Total = centsValue(total)
	r.Subtotal = centsValue(subtotal)
	r.Tax = centsValue(tax)
	r.Shipping = centsValue(shipping)
	r.Confidence = internal.Confidence(confidence)
	r.Status = internal.SyncStatus(status)
	_ = json.Unmarshal([]byte(itemsJSON), &r.Items)
	_ = json.Unmarshal([]byte(attachmentsJSON), &r.Attachments)
	_ = json.Unmarshal([]byte(notesJSON), &r.Notes)
	return &r, nil
}

func centsColumn(c *util.Cents) any {
	if c == nil {
		return nil
	}
	return int64(*c)
}

func centsValue(v sql.NullInt64) *util.Cents {
	if !v.Valid {
		return nil
	}
	c := util.Cents(v.Int64)
	return &c
}

func (d *DB) InsertRun(traceID string, emailID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetExportRows returns every receipt joined with its source email, ordered
// for the reconciliation report: problems first, then by receipt date.
func (d *DB) GetExportRows() ([]internal.ReceiptExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  r.id,
  r.vendorName,
  r.transactionDate,
  r.total,
  r.subtotal,
  r.tax,
  r.orderNumber,
  r.cardLast4,
  r.jobName,
  r.confidence,
  r.status,
  r.ledgerTxnId,
  r.syncError,
  e.subject,
  e.receivedAt
FROM receipts r
JOIN emails e ON e.id = r.emailId
ORDER BY
  CASE r.status WHEN 'error' THEN 1 WHEN 'pending' THEN 2 ELSE 3 END,
  r.transactionDate ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReceiptExportRow
	for rows.Next() {
		var row internal.ReceiptExportRow
		var vendorName sql.NullString
		var total, subtotal, tax sql.NullInt64
		if err := rows.Scan(
			&row.ReceiptID,
			&vendorName,
			&row.TransactionDate,
			&total,
			&subtotal,
			&tax,
			&row.OrderNumber,
			&row.CardLast4,
			&row.JobName,
			&row.Confidence,
			&row.Status,
			&row.LedgerTxnID,
			&row.SyncError,
			&row.EmailSubject,
			&row.ReceivedAt,
		); err != nil {
			return nil, err
		}
		row.VendorName = vendorName.String
		row.Total = centsValue(total)
		row.Subtotal = centsValue(subtotal)
		row.Tax = centsValue(tax)
		out = append(out, row)
	}

	return out, rows.Err()
}
