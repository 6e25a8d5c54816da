package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"receiptsync/internal"
	"receiptsync/internal/config"
	"receiptsync/internal/storage"
)

// fakeLedger is an httptest handler covering the endpoints one processing
// cycle touches.
func fakeLedger(t *testing.T, candidates []map[string]any) http.Handler {
	reply := func(w http.ResponseWriter, data any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		switch {
		case r.Method == http.MethodGet && (path == "vendors" || path == "customers"):
			reply(w, []map[string]any{})
		case r.Method == http.MethodPost && path == "vendors":
			reply(w, map[string]any{"id": "v1", "name": "The Home Depot"})
		case r.Method == http.MethodPost && path == "customers":
			reply(w, map[string]any{"id": "c1", "name": "Smith Remodel"})
		case r.Method == http.MethodGet && path == "accounts":
			reply(w, []map[string]any{{"id": "a1", "name": "Job Materials", "type": "expense"}})
		case r.Method == http.MethodGet && path == "purchases":
			reply(w, candidates)
		case r.Method == http.MethodPost && path == "purchases":
			reply(w, map[string]any{"id": "txn-new"})
		case r.Method == http.MethodPost && strings.HasPrefix(path, "purchases/"):
			reply(w, map[string]any{})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func newTestService(t *testing.T, ledgerURL string) (*ProcessingService, *storage.DB, config.Config) {
	t.Helper()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg, _ := config.Load()
	cfg.DBPath = filepath.Join(tmp, "app.db")
	cfg.OutputDir = tmp
	cfg.OCREnabled = false
	cfg.LedgerAPIBaseURL = ledgerURL + "/api/v1"
	cfg.LedgerAPIToken = "test"
	cfg.LedgerRateLimitRPS = 1000

	return NewProcessingService(db, cfg, zerolog.Nop()), db, cfg
}

func storeFixture(t *testing.T, db *storage.DB, name, messageID, subject, sender string) internal.EmailRow {
	t.Helper()
	blob, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	rawPath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(rawPath, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	email, err := db.UpsertEmail("gmail", messageID, subject, sender, "2025-11-23T15:00:00Z", "hash-"+messageID, rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}
	return email
}

func TestSmokeEmailToMatchedReceipt(t *testing.T) {
	server := httptest.NewServer(fakeLedger(t, []map[string]any{
		{"id": "txn-77", "date": "2025-11-23", "total": 11976, "cardLast4": "1234"},
	}))
	defer server.Close()

	svc, db, _ := newTestService(t, server.URL)
	defer svc.Close()
	email := storeFixture(t, db, "homedepot_order.eml", "<fixture-hd-1@example.com>", "Your Home Depot Order", "receipts@homedepot.com")

	summary, err := svc.ProcessPending(context.Background(), 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Emails != 1 || summary.Receipts != 1 || summary.Matched != 1 {
		t.Fatalf("summary=%+v", summary)
	}

	receipt, err := db.GetReceiptByEmailID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if receipt == nil {
		t.Fatal("receipt not stored")
	}
	if receipt.Status != internal.SyncMatched {
		t.Fatalf("status=%s", receipt.Status)
	}
	if receipt.VendorID != "homedepot" || receipt.JobName != "Smith Remodel" {
		t.Fatalf("receipt=%+v", receipt)
	}
	if receipt.Total == nil || *receipt.Total != 11976 {
		t.Fatalf("total=%v", receipt.Total)
	}
	if receipt.TransactionDate == nil || *receipt.TransactionDate != "2025-11-23" {
		t.Fatalf("date=%v", receipt.TransactionDate)
	}
	if receipt.LedgerTxnID == nil || *receipt.LedgerTxnID != "txn-77" {
		t.Fatalf("txn=%v", receipt.LedgerTxnID)
	}
	if len(receipt.Items) != 2 {
		t.Fatalf("items=%+v", receipt.Items)
	}

	row, err := db.GetEmailByID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != "processed" {
		t.Fatalf("email status=%s", row.Status)
	}

	rows, err := db.GetExportRows()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d", len(rows))
	}
	out := filepath.Join(t.TempDir(), "report.xlsx")
	if err := ExportReceiptsToXLSX(rows, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestSmokeEmailCreatesWhenNoCandidate(t *testing.T) {
	server := httptest.NewServer(fakeLedger(t, nil))
	defer server.Close()

	svc, db, _ := newTestService(t, server.URL)
	defer svc.Close()
	email := storeFixture(t, db, "homedepot_order.eml", "<fixture-hd-2@example.com>", "Your Home Depot Order", "receipts@homedepot.com")

	summary, err := svc.ProcessPending(context.Background(), 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Synced != 1 {
		t.Fatalf("summary=%+v", summary)
	}

	receipt, err := db.GetReceiptByEmailID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != internal.SyncSynced || receipt.LedgerTxnID == nil || *receipt.LedgerTxnID != "txn-new" {
		t.Fatalf("receipt=%+v", receipt)
	}
}

func TestNonReceiptMailSkipped(t *testing.T) {
	server := httptest.NewServer(fakeLedger(t, nil))
	defer server.Close()

	svc, db, _ := newTestService(t, server.URL)
	defer svc.Close()
	email := storeFixture(t, db, "newsletter.eml", "<fixture-news-1@example.com>", "Weekly specials", "news@example.com")

	summary, err := svc.ProcessPending(context.Background(), 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Receipts != 0 {
		t.Fatalf("summary=%+v", summary)
	}

	row, err := db.GetEmailByID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != "skipped" {
		t.Fatalf("email status=%s", row.Status)
	}
	receipt, err := db.GetReceiptByEmailID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if receipt != nil {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestMalformedAttachmentLeftForRetry(t *testing.T) {
	server := httptest.NewServer(fakeLedger(t, nil))
	defer server.Close()

	svc, db, _ := newTestService(t, server.URL)
	defer svc.Close()
	email := storeFixture(t, db, "broken_attachment.eml", "<fixture-ul-1@example.com>", "Your Uline order 8812345", "shipping@uline.com")

	summary, err := svc.ProcessPending(context.Background(), 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Retried != 1 || summary.Receipts != 0 || summary.Errors != 0 {
		t.Fatalf("summary=%+v", summary)
	}

	// The email stays fetched so the next cycle gets another try, and no
	// receipt row was created for it.
	row, err := db.GetEmailByID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != "fetched" {
		t.Fatalf("email status=%s", row.Status)
	}
	receipt, err := db.GetReceiptByEmailID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if receipt != nil {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestTotalOnlyReceiptPostsOnArrivalDate(t *testing.T) {
	server := httptest.NewServer(fakeLedger(t, nil))
	defer server.Close()

	svc, db, _ := newTestService(t, server.URL)
	defer svc.Close()
	email := storeFixture(t, db, "payment_nodate.eml", "<fixture-acme-1@example.com>", "Payment received", "billing@acme-tools.example")

	summary, err := svc.ProcessPending(context.Background(), 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Synced != 1 || summary.Errors != 0 {
		t.Fatalf("summary=%+v", summary)
	}

	receipt, err := db.GetReceiptByEmailID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if receipt == nil || receipt.Status != internal.SyncSynced {
		t.Fatalf("receipt=%+v", receipt)
	}
	if receipt.Total == nil || *receipt.Total != 4500 {
		t.Fatalf("total=%v", receipt.Total)
	}
	if receipt.TransactionDate == nil || *receipt.TransactionDate != "2025-11-23" {
		t.Fatalf("date=%v", receipt.TransactionDate)
	}
}

func TestProcessBusyGuard(t *testing.T) {
	svc, _, _ := newTestService(t, "http://ledger.invalid")
	defer svc.Close()

	svc.busy.Store(true)
	if _, err := svc.ProcessPending(context.Background(), 10, ""); err != ErrBusy {
		t.Fatalf("err=%v", err)
	}
	svc.busy.Store(false)
}

func TestLedgerAuthFailureAbortsBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer server.Close()

	svc, db, _ := newTestService(t, server.URL)
	defer svc.Close()
	storeFixture(t, db, "homedepot_order.eml", "<fixture-hd-3@example.com>", "Your Home Depot Order", "receipts@homedepot.com")
	storeFixture(t, db, "homedepot_order.eml", "<fixture-hd-4@example.com>", "Your Home Depot Order", "receipts@homedepot.com")

	_, err := svc.ProcessPending(context.Background(), 10, "")
	if err == nil {
		t.Fatal("expected auth error")
	}

	// Both emails stay fetched: the receipts are pending and retried once
	// credentials are fixed.
	fetched, err := db.ListEmailsByStatus("fetched", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(fetched) != 2 {
		t.Fatalf("fetched=%d", len(fetched))
	}
}

func TestParseFileOneShot(t *testing.T) {
	svc, _, _ := newTestService(t, "http://ledger.invalid")
	defer svc.Close()

	path := filepath.Join(t.TempDir(), "receipt.txt")
	text := "Lowe's Invoice\nInvoice # 123456\nInvoice Date: 11/22/2025\nInvoice Total: $88.40\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := svc.ParseFile(path, "lowes", "")
	if err != nil {
		t.Fatal(err)
	}
	if r.VendorID != "lowes" || r.Total == nil || *r.Total != 8840 {
		t.Fatalf("receipt=%+v", r)
	}
	if r.Origin != "file" || r.Status != internal.SyncPending {
		t.Fatalf("receipt=%+v", r)
	}

	// Explicit --type style override ignores the extension.
	odd := filepath.Join(t.TempDir(), "receipt.bin")
	if err := os.WriteFile(odd, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	r2, err := svc.ParseFile(odd, "lowes", "text")
	if err != nil {
		t.Fatal(err)
	}
	if r2.Total == nil || *r2.Total != 8840 {
		t.Fatalf("receipt=%+v", r2)
	}
}
