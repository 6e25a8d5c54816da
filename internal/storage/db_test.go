package storage

import (
	"path/filepath"
	"testing"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertEmailIdempotent(t *testing.T) {
	db := openTestDB(t)

	first, err := db.UpsertEmail("gmail", "msg-1", "Your order", "auto-confirm@amazon.com", "2025-11-23T10:00:00Z", "abc", "raw/abc.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.UpsertEmail("gmail", "msg-1", "Your order (updated)", "auto-confirm@amazon.com", "2025-11-23T10:00:00Z", "abc", "raw/abc.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %d vs %d", first.ID, second.ID)
	}
	if second.Subject != "Your order (updated)" {
		t.Fatalf("subject=%s", second.Subject)
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	db := openTestDB(t)
	email, err := db.UpsertEmail("gmail", "msg-2", "Receipt", "orders@homedepot.com", "2025-11-23T10:00:00Z", "def", "raw/def.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}

	total := util.Cents(11976)
	date := "2025-11-23"
	order := "W912345678"
	r := &internal.Receipt{
		ID:              "r-abc",
		EmailID:         email.ID,
		Origin:          "gmail",
		VendorID:        "homedepot",
		VendorName:      "The Home Depot",
		Total:           &total,
		TransactionDate: &date,
		OrderNumber:     &order,
		Items: []internal.LineItem{
			{Description: "2x4 Lumber Stud", Quantity: 12, TotalPrice: 5976},
		},
		Confidence: internal.ConfidenceHigh,
		JobName:    "Smith Remodel",
		Category:   "Job Materials",
		Status:     internal.SyncPending,
		Notes:      []string{"parsed from text body"},
	}
	if err := db.SaveReceipt(r); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetReceiptByEmailID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("receipt not found")
	}
	if got.ID != "r-abc" || got.VendorID != "homedepot" {
		t.Fatalf("got %+v", got)
	}
	if got.Total == nil || *got.Total != 11976 {
		t.Fatalf("total=%v", got.Total)
	}
	if got.Subtotal != nil {
		t.Fatalf("subtotal=%v", got.Subtotal)
	}
	if len(got.Items) != 1 || got.Items[0].TotalPrice != 5976 {
		t.Fatalf("items=%+v", got.Items)
	}
	if got.Status != internal.SyncPending || len(got.Notes) != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestSaveReceiptReplacesByEmail(t *testing.T) {
	db := openTestDB(t)
	email, err := db.UpsertEmail("imap", "msg-3", "Receipt", "x@y.z", "2025-11-23T10:00:00Z", "ghi", "raw/ghi.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}

	r := &internal.Receipt{ID: "r-1", EmailID: email.ID, Origin: "imap", Confidence: internal.ConfidenceLow, JobName: "Unassigned", Category: "Job Materials", Status: internal.SyncPending}
	if err := db.SaveReceipt(r); err != nil {
		t.Fatal(err)
	}

	r.Advance(internal.SyncSynced)
	txn := "txn-7"
	r.LedgerTxnID = &txn
	if err := db.SaveReceipt(r); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetReceiptByEmailID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != internal.SyncSynced || got.LedgerTxnID == nil || *got.LedgerTxnID != "txn-7" {
		t.Fatalf("got %+v", got)
	}

	pending, err := db.ListReceiptsByStatus(internal.SyncPending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending=%+v", pending)
	}
}

func TestGetExportRowsOrdersProblemsFirst(t *testing.T) {
	db := openTestDB(t)

	okEmail, _ := db.UpsertEmail("gmail", "ok", "ok receipt", "a@b.c", "2025-11-23T10:00:00Z", "h1", "raw/1.eml", "processed")
	badEmail, _ := db.UpsertEmail("gmail", "bad", "bad receipt", "a@b.c", "2025-11-23T11:00:00Z", "h2", "raw/2.eml", "processed")

	okDate := "2025-11-20"
	okTotal := util.Cents(5000)
	synced := &internal.Receipt{ID: "r-ok", EmailID: okEmail.ID, Origin: "gmail", Total: &okTotal, TransactionDate: &okDate, Confidence: internal.ConfidenceHigh, JobName: "J", Category: "C", Status: internal.SyncSynced}
	if err := db.SaveReceipt(synced); err != nil {
		t.Fatal(err)
	}

	msg := "no amount to post"
	failed := &internal.Receipt{ID: "r-bad", EmailID: badEmail.ID, Origin: "gmail", Confidence: internal.ConfidenceLow, JobName: "J", Category: "C", Status: internal.SyncError, SyncError: &msg}
	if err := db.SaveReceipt(failed); err != nil {
		t.Fatal(err)
	}

	rows, err := db.GetExportRows()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	if rows[0].ReceiptID != "r-bad" || rows[0].SyncError == nil {
		t.Fatalf("rows[0]=%+v", rows[0])
	}
	if rows[1].ReceiptID != "r-ok" || rows[1].Total == nil || *rows[1].Total != 5000 {
		t.Fatalf("rows[1]=%+v", rows[1])
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if v, err := db.GetMetadata("missing"); err != nil || v != nil {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if err := db.SetMetadata("mail.last_fetch", "2025-11-23T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("mail.last_fetch", "2025-11-24T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMetadata("mail.last_fetch")
	if err != nil || v == nil || *v != "2025-11-24T10:00:00Z" {
		t.Fatalf("v=%v err=%v", v, err)
	}
}
