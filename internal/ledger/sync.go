package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"receiptsync/internal"
	"receiptsync/internal/config"
)

// SyncService reconciles receipts against the ledger: match an existing
// purchase when one is close enough, create one otherwise. Build one service
// per processing run; it owns the run's resolver caches.
type SyncService struct {
	client   *Client
	resolver *Resolver
	cfg      config.Config
}

func NewSyncService(client *Client, cfg config.Config) *SyncService {
	return &SyncService{client: client, resolver: NewResolver(client), cfg: cfg}
}

// Sync pushes one receipt to the ledger and advances its status to matched,
// synced or error. Attachments are uploaded after the transaction write and
// never fail the sync. On a credential failure the receipt is left pending
// so the next run retries it, and ErrAuth propagates to abort the batch.
func (s *SyncService) Sync(ctx context.Context, r *internal.Receipt, attachments map[string][]byte) error {
	if err := s.sync(ctx, r); err != nil {
		if errors.Is(err, ErrAuth) {
			return err
		}
		msg := err.Error()
		r.SyncError = &msg
		r.Advance(internal.SyncError)
		r.AddNote("sync failed: " + msg)
		return err
	}

	if r.LedgerTxnID != nil {
		for name, blob := range attachments {
			if err := s.client.UploadAttachment(ctx, *r.LedgerTxnID, name, blob); err != nil {
				r.AddNote("attachment upload failed: " + name)
			}
		}
	}
	return nil
}

func (s *SyncService) sync(ctx context.Context, r *internal.Receipt) error {
	vendorName := strings.TrimSpace(r.VendorName)
	if vendorName == "" {
		vendorName = "Unknown Vendor"
	}
	vendor, err := s.resolver.Vendor(ctx, vendorName)
	if err != nil {
		return fmt.Errorf("resolve vendor: %w", err)
	}
	r.LedgerVendorID = &vendor.ID

	customer, err := s.resolver.Customer(ctx, r.JobName)
	if err != nil {
		return fmt.Errorf("resolve job: %w", err)
	}
	r.LedgerCustomerID = &customer.ID

	category := r.Category
	if category == "" {
		category = s.cfg.DefaultCategory
	}
	account, err := s.resolver.Account(ctx, category, s.cfg.DefaultAccountName)
	if err != nil {
		return fmt.Errorf("resolve account: %w", err)
	}
	r.LedgerAccountID = &account.ID

	if r.TransactionDate != nil {
		matched, err := s.tryMatch(ctx, r, customer)
		if err != nil {
			return err
		}
		if matched {
			return nil
		}
	}
	return s.create(ctx, r, vendor, customer, account)
}

func (s *SyncService) tryMatch(ctx context.Context, r *internal.Receipt, customer Entity) (bool, error) {
	from, to, ok := DateWindow(*r.TransactionDate, s.cfg.MatchWindowDays)
	if !ok {
		return false, nil
	}
	candidates, err := s.client.QueryPurchases(ctx, from, to)
	if err != nil {
		return false, fmt.Errorf("query purchases: %w", err)
	}

	best, score := BestMatch(r, candidates, s.cfg.MatchMinScore)
	if best == nil {
		return false, nil
	}

	upsert := matchedUpdate(best, customer, r)
	if err := s.client.UpdatePurchase(ctx, best.ID, upsert); err != nil {
		return false, fmt.Errorf("update purchase %s: %w", best.ID, err)
	}

	r.LedgerTxnID = &best.ID
	r.Advance(internal.SyncMatched)
	r.AddNote(fmt.Sprintf("matched ledger txn %s (score %d)", best.ID, score))
	return true, nil
}

// matchedUpdate builds the write for a matched transaction. The ledger's
// amounts, date and vendor stay authoritative: the update only marks the
// existing lines billable to the receipt's customer and appends the receipt
// provenance to the memo.
func matchedUpdate(txn *Transaction, customer Entity, r *internal.Receipt) PurchaseUpsert {
	upsert := PurchaseUpsert{
		Date:       txn.Date,
		CustomerID: customer.ID,
		Memo:       appendMemo(txn.Memo, buildMemo(r)),
	}
	if txn.VendorID != nil {
		upsert.VendorID = *txn.VendorID
	}

	for _, line := range txn.Lines {
		line.CustomerID = customer.ID
		line.Billable = true
		upsert.Lines = append(upsert.Lines, line)
	}
	if len(upsert.Lines) == 0 {
		upsert.Lines = append(upsert.Lines, TxnLine{
			Description: "Purchase",
			Amount:      txn.Total,
			CustomerID:  customer.ID,
			Billable:    true,
		})
	}
	return upsert
}

func appendMemo(existing *string, note string) string {
	if existing != nil && strings.TrimSpace(*existing) != "" {
		return *existing + "; " + note
	}
	return note
}

func (s *SyncService) create(ctx context.Context, r *internal.Receipt, vendor, customer, account Entity) error {
	upsert := s.buildPurchase(r, vendor, customer, account)
	if len(upsert.Lines) == 0 {
		return errors.New("no amount to post")
	}
	if upsert.Date == "" {
		return errors.New("no transaction date to post")
	}

	txnID, err := s.client.CreatePurchase(ctx, upsert)
	if err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}

	r.LedgerTxnID = &txnID
	r.Advance(internal.SyncSynced)
	r.AddNote("created ledger txn " + txnID)
	return nil
}

// buildPurchase converts a receipt into the ledger write shape: one line per
// parsed item, or a single summary line when the receipt only carries a
// total.
func (s *SyncService) buildPurchase(r *internal.Receipt, vendor, customer, account Entity) PurchaseUpsert {
	upsert := PurchaseUpsert{
		VendorID:   vendor.ID,
		CustomerID: customer.ID,
		AccountID:  account.ID,
		Memo:       buildMemo(r),
	}
	if r.TransactionDate != nil {
		upsert.Date = *r.TransactionDate
	}

	for _, item := range r.Items {
		upsert.Lines = append(upsert.Lines, TxnLine{
			Description: item.Description,
			Amount:      item.TotalPrice,
			AccountID:   account.ID,
			CustomerID:  customer.ID,
		})
	}
	if len(upsert.Lines) == 0 && r.Total != nil {
		upsert.Lines = append(upsert.Lines, TxnLine{
			Description: summaryLineDescription(r),
			Amount:      *r.Total,
			AccountID:   account.ID,
			CustomerID:  customer.ID,
		})
	}
	return upsert
}

func buildMemo(r *internal.Receipt) string {
	parts := []string{"Receipt " + r.ID}
	if r.OrderNumber != nil {
		parts = append(parts, "order "+*r.OrderNumber)
	}
	if r.InvoiceNumber != nil {
		parts = append(parts, "invoice "+*r.InvoiceNumber)
	}
	if r.PONumber != nil {
		parts = append(parts, "PO "+*r.PONumber)
	}
	return strings.Join(parts, ", ")
}

func summaryLineDescription(r *internal.Receipt) string {
	desc := "Receipt total"
	if r.VendorName != "" {
		desc = r.VendorName + " receipt total"
	}
	if r.Total != nil {
		desc += " $" + r.Total.String()
	}
	return desc
}
