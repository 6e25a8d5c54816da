package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

// ExportReceiptsToXLSX writes the reconciliation report: one row per
// receipt, problems sorted to the top by the query that feeds it.
func ExportReceiptsToXLSX(rows []internal.ReceiptExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"receipt_id", "vendor", "transaction_date", "total", "subtotal", "tax",
		"order_number", "card_last4", "job", "confidence", "status",
		"ledger_txn_id", "sync_error", "email_subject", "received_at",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.ReceiptID)
		set(2, row.VendorName)
		set(3, derefString(row.TransactionDate))
		set(4, derefCents(row.Total))
		set(5, derefCents(row.Subtotal))
		set(6, derefCents(row.Tax))
		set(7, derefString(row.OrderNumber))
		set(8, derefString(row.CardLast4))
		set(9, row.JobName)
		set(10, row.Confidence)
		set(11, row.Status)
		set(12, derefString(row.LedgerTxnID))
		set(13, derefString(row.SyncError))
		set(14, row.EmailSubject)
		set(15, row.ReceivedAt)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefCents(v *util.Cents) any {
	if v == nil {
		return ""
	}
	return v.Dollars()
}
