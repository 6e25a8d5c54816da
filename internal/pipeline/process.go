// Package pipeline drives an email from raw bytes to a reconciled receipt:
// decode the envelope, detect the vendor, extract fields from the best
// available document, persist the receipt and push it to the ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"receiptsync/internal"
	"receiptsync/internal/config"
	"receiptsync/internal/decode"
	"receiptsync/internal/ledger"
	"receiptsync/internal/parse"
	"receiptsync/internal/storage"
	"receiptsync/internal/util"
	"receiptsync/internal/vendors"
)

// ErrBusy is returned when a processing cycle is already running. Cycles
// never queue: the listener's next tick picks the work up instead.
var ErrBusy = errors.New("processing cycle already running")

type ProcessingService struct {
	db   *storage.DB
	cfg  config.Config
	log  zerolog.Logger
	ocr  *decode.OCREngine
	busy atomic.Bool
}

func NewProcessingService(db *storage.DB, cfg config.Config, log zerolog.Logger) *ProcessingService {
	svc := &ProcessingService{db: db, cfg: cfg, log: log}
	if cfg.OCREnabled {
		svc.ocr = decode.NewOCREngine(cfg.OCRLanguage)
	}
	return svc
}

// Close releases the OCR handle. Call once at shutdown.
func (s *ProcessingService) Close() {
	if s.ocr != nil {
		s.ocr.Close()
	}
}

type ProcessSummary struct {
	Emails   int // emails examined
	Receipts int // receipts created or refreshed
	Matched  int
	Synced   int
	Skipped  int // not a receipt, marked skipped
	Retried  int // undecodable this cycle, left for the next one
	Errors   int
}

// ProcessPending runs one processing cycle over fetched emails. Only one
// cycle runs at a time; a concurrent call collapses into ErrBusy. A ledger
// credential failure aborts the remaining batch since every later sync would
// fail identically.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (ProcessSummary, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return ProcessSummary{}, ErrBusy
	}
	defer s.busy.Store(false)

	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return ProcessSummary{}, err
	}

	// One sync service per cycle: entity caches are scoped to the run.
	syncSvc := ledger.NewSyncService(ledger.NewClient(s.cfg), s.cfg)

	summary := ProcessSummary{}
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		summary.Emails++
		if err := s.processEmail(ctx, syncSvc, email, &summary); err != nil {
			if errors.Is(err, ledger.ErrAuth) {
				s.log.Error().Err(err).Msg("ledger auth failed, aborting batch")
				return summary, err
			}
			summary.Errors++
			s.log.Error().Err(err).Int("emailId", email.ID).Msg("process email")
		}
	}
	return summary, nil
}

// ProcessByProviderMessageID reprocesses one specific email regardless of
// its current status.
func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessSummary, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessSummary{}, err
	}
	syncSvc := ledger.NewSyncService(ledger.NewClient(s.cfg), s.cfg)
	summary := ProcessSummary{Emails: 1}
	if err := s.processEmail(ctx, syncSvc, email, &summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *ProcessingService) processEmail(ctx context.Context, syncSvc *ledger.SyncService, email internal.EmailRow, summary *ProcessSummary) error {
	start := time.Now()
	trace := uuid.NewString()
	log := s.log.With().Str("trace", trace).Int("emailId", email.ID).Logger()

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return fmt.Errorf("read raw mail: %w", err)
	}

	content, err := ReadEmailRaw(raw)
	if err != nil {
		// Envelope unreadable: leave the email at fetched so the next
		// cycle retries it.
		summary.Retried++
		log.Warn().Err(err).Msg("envelope undecodable, will retry")
		s.insertRun(trace, email.ID, start, map[string]int{"retried": 1})
		return nil
	}

	subject := firstNonEmpty(content.Subject, email.Subject)
	profile := vendors.Detect(firstNonEmpty(content.From, email.Sender), subject, snippet(content.Text))

	art, parsed, decodeFailures := s.extractBest(content, profile, log)
	if parsed == nil {
		if art == nil && decodeFailures > 0 {
			// Every candidate document failed to decode. Transient
			// enough to be worth another cycle.
			summary.Retried++
			log.Warn().Int("decodeFailures", decodeFailures).Msg("no decodable document, will retry")
			s.insertRun(trace, email.ID, start, map[string]int{"retried": 1, "decodeFailures": decodeFailures})
			return nil
		}
		summary.Skipped++
		log.Info().Msg("no receipt content, skipping")
		if err := s.db.UpdateEmailStatus(email.ID, "skipped"); err != nil {
			return err
		}
		s.insertRun(trace, email.ID, start, map[string]int{"skipped": 1})
		return nil
	}

	receipt := s.buildReceipt(trace, email, subject, profile, art, parsed)
	for _, doc := range content.Documents {
		receipt.Attachments = append(receipt.Attachments, doc.Name)
	}
	if err := s.db.SaveReceipt(receipt); err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	summary.Receipts++

	syncErr := syncSvc.Sync(ctx, receipt, attachmentBlobs(content))
	if err := s.db.SaveReceipt(receipt); err != nil {
		return fmt.Errorf("save receipt after sync: %w", err)
	}
	if errors.Is(syncErr, ledger.ErrAuth) {
		// Email stays at fetched: the receipt is still pending and the
		// next cycle retries the sync once credentials are fixed.
		return syncErr
	}

	if err := s.db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		// The receipt is saved; a failed status flip only risks a
		// harmless reprocess next cycle.
		log.Warn().Err(err).Msg("mark email processed")
	}

	counts := map[string]int{"receipts": 1, "items": len(receipt.Items)}
	switch receipt.Status {
	case internal.SyncMatched:
		summary.Matched++
		counts["matched"] = 1
	case internal.SyncSynced:
		summary.Synced++
		counts["synced"] = 1
	case internal.SyncError:
		summary.Errors++
		counts["errors"] = 1
	}
	s.insertRun(trace, email.ID, start, counts)

	log.Info().
		Str("receiptId", receipt.ID).
		Str("vendor", receipt.VendorName).
		Str("status", string(receipt.Status)).
		Str("confidence", string(receipt.Confidence)).
		Msg("email processed")

	if syncErr != nil {
		return nil // recorded on the receipt, not a pipeline failure
	}
	return nil
}

// extractBest decodes candidate documents in preference order and returns
// the first artifact whose parse yields a total or a date. A parse with
// neither is no better than no parse.
func (s *ProcessingService) extractBest(content *EmailContent, profile *vendors.Profile, log zerolog.Logger) (*decode.Artifact, *internal.ParsedReceipt, int) {
	decodeFailures := 0
	var firstArt *decode.Artifact

	for _, cand := range s.candidates(content, profile) {
		art, err := cand.decode()
		if err != nil {
			if errors.Is(err, decode.ErrUnreadable) {
				decodeFailures++
				log.Debug().Str("candidate", cand.name).Err(err).Msg("candidate undecodable")
				continue
			}
			log.Warn().Str("candidate", cand.name).Err(err).Msg("decode failed")
			continue
		}
		if art == nil || art.Empty() {
			continue
		}
		if firstArt == nil {
			firstArt = art
		}

		parsed := parse.Parse(art, profile)
		if parsed == nil {
			continue
		}
		if parsed.Total == nil && parsed.TransactionDate == nil {
			continue
		}
		return art, parsed, decodeFailures
	}

	return firstArt, nil, decodeFailures
}

type candidate struct {
	name   string
	decode func() (*decode.Artifact, error)
}

// candidates orders the email's documents by the vendor's preferred format
// first, then the rest: attachments carry the itemized receipt for PDF
// vendors, the HTML body for storefront mail, the text body as a last
// resort.
func (s *ProcessingService) candidates(content *EmailContent, profile *vendors.Profile) []candidate {
	var pdfs, images, htmls, texts []candidate

	for _, doc := range content.Documents {
		doc := doc
		switch doc.Kind {
		case internal.FormatPDF:
			pdfs = append(pdfs, candidate{name: doc.Name, decode: func() (*decode.Artifact, error) {
				return decode.PDF(doc.Blob, s.cfg.PDFMaxPages)
			}})
		case internal.FormatImage:
			if s.ocr != nil {
				images = append(images, candidate{name: doc.Name, decode: func() (*decode.Artifact, error) {
					return s.ocr.Recognize(doc.Blob)
				}})
			}
		case internal.FormatHTML:
			htmls = append(htmls, candidate{name: doc.Name, decode: func() (*decode.Artifact, error) {
				return decode.HTML(string(doc.Blob))
			}})
		case internal.FormatText:
			texts = append(texts, candidate{name: doc.Name, decode: func() (*decode.Artifact, error) {
				return decode.Text(string(doc.Blob)), nil
			}})
		}
	}

	if content.HTML != "" {
		htmls = append(htmls, candidate{name: "body.html", decode: func() (*decode.Artifact, error) {
			return decode.HTML(content.HTML)
		}})
	}
	if content.Text != "" {
		texts = append(texts, candidate{name: "body.txt", decode: func() (*decode.Artifact, error) {
			return decode.Text(content.Text), nil
		}})
	}

	groups := [][]candidate{pdfs, htmls, texts, images}
	if profile != nil {
		switch profile.Format {
		case internal.FormatHTML:
			groups = [][]candidate{htmls, pdfs, texts, images}
		case internal.FormatText:
			groups = [][]candidate{texts, pdfs, htmls, images}
		case internal.FormatImage:
			groups = [][]candidate{images, pdfs, htmls, texts}
		}
	}

	var out []candidate
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Job tags in the subject line: "job: Smith Remodel" or a letters-only
// hashtag like "#Smith-Remodel". Digits are excluded from the hashtag form
// so "Order #W912345678" never becomes a job.
var (
	jobTag     = regexp.MustCompile(`(?i)\bjob[:#]\s*([^|;\n\r]+)`)
	jobHashTag = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z-]{2,})\b`)
)

func (s *ProcessingService) buildReceipt(trace string, email internal.EmailRow, subject string, profile *vendors.Profile, art *decode.Artifact, parsed *internal.ParsedReceipt) *internal.Receipt {
	r := &internal.Receipt{
		ID:      uuid.NewString(),
		EmailID: email.ID,
		Origin:  email.Provider,

		Total:           parsed.Total,
		Subtotal:        parsed.Subtotal,
		Tax:             parsed.Tax,
		Shipping:        parsed.Shipping,
		TransactionDate: parsed.TransactionDate,
		OrderNumber:     parsed.OrderNumber,
		InvoiceNumber:   parsed.InvoiceNumber,
		PONumber:        parsed.PONumber,
		CardLast4:       parsed.CardLast4,
		PaymentMethod:   parsed.PaymentMethod,
		Items:           parsed.Items,
		Confidence:      parsed.Confidence,

		JobName:  s.cfg.DefaultJobName,
		Category: s.cfg.DefaultCategory,
		Status:   internal.SyncPending,
	}

	if profile != nil {
		r.VendorID = profile.ID
		r.VendorName = profile.LedgerName
		if profile.Category != "" {
			r.Category = profile.Category
		}
	}

	if m := jobTag.FindStringSubmatch(subject); len(m) > 1 {
		if job := strings.TrimSpace(m[1]); job != "" {
			r.JobName = job
		}
	} else if m := jobHashTag.FindStringSubmatch(subject); len(m) > 1 {
		r.JobName = m[1]
	}

	// A receipt with a total but no printed date still gets posted: mail
	// arrival is close enough for the matching window and the ledger date.
	if r.TransactionDate == nil {
		if iso, ok := receivedDate(email.ReceivedAt); ok {
			r.TransactionDate = &iso
			r.AddNote("transaction date assumed from mail arrival " + iso)
		}
	}

	r.AddNote(fmt.Sprintf("parsed from %s (trace %s)", art.Source, trace))
	if art.Source == internal.FormatImage {
		r.AddNote(fmt.Sprintf("ocr confidence %.2f", art.OCRConfidence))
	}
	return r
}

func attachmentBlobs(content *EmailContent) map[string][]byte {
	if len(content.Documents) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(content.Documents))
	for _, doc := range content.Documents {
		out[doc.Name] = doc.Blob
	}
	return out
}

func (s *ProcessingService) insertRun(trace string, emailID int, start time.Time, counts map[string]int) {
	timings := map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}
	if err := s.db.InsertRun(trace, emailID, timings, counts); err != nil {
		s.log.Warn().Err(err).Msg("record run")
	}
}

func receivedDate(receivedAt string) (string, bool) {
	if t, err := time.Parse(time.RFC3339, receivedAt); err == nil {
		return t.UTC().Format("2006-01-02"), true
	}
	return util.NormalizeDate(receivedAt)
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 500 {
		text = text[:500]
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
