package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"receiptsync/internal"
	"receiptsync/internal/decode"
	"receiptsync/internal/parse"
	"receiptsync/internal/vendors"
)

// ParseFile runs the extraction half of the pipeline over a local file,
// without mail or ledger involvement. vendorID may be empty; when set it
// must name a known vendor profile. kind overrides extension-based format
// detection ("pdf", "html", "text", "image", empty to infer).
func (s *ProcessingService) ParseFile(path, vendorID, kind string) (*internal.Receipt, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profile *vendors.Profile
	if vendorID != "" {
		profile = vendors.ByID(vendorID)
		if profile == nil {
			return nil, fmt.Errorf("unknown vendor: %s", vendorID)
		}
	} else {
		profile = vendors.Detect("", filepath.Base(path), "")
	}

	art, err := s.decodeFile(path, blob, kind)
	if err != nil {
		return nil, err
	}

	parsed := parse.Parse(art, profile)
	if parsed == nil || (parsed.Total == nil && parsed.TransactionDate == nil) {
		return nil, fmt.Errorf("no receipt content in %s", path)
	}

	r := &internal.Receipt{
		ID:     uuid.NewString(),
		Origin: "file",

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

		JobName:     s.cfg.DefaultJobName,
		Category:    s.cfg.DefaultCategory,
		Attachments: []string{filepath.Base(path)},
		Status:      internal.SyncPending,
	}
	if profile != nil {
		r.VendorID = profile.ID
		r.VendorName = profile.LedgerName
		if profile.Category != "" {
			r.Category = profile.Category
		}
	}
	return r, nil
}

func (s *ProcessingService) decodeFile(path string, blob []byte, kind string) (*decode.Artifact, error) {
	selector := strings.ToLower(strings.TrimSpace(kind))
	if selector == "" {
		selector = strings.ToLower(filepath.Ext(path))
	}
	switch selector {
	case "pdf", ".pdf":
		return decode.PDF(blob, s.cfg.PDFMaxPages)
	case "html", ".html", ".htm":
		return decode.HTML(string(blob))
	case "image", ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp":
		if s.ocr == nil {
			return nil, fmt.Errorf("ocr disabled, cannot read %s", path)
		}
		return s.ocr.Recognize(blob)
	case "text", ".txt":
		return decode.Text(string(blob)), nil
	case ".eml":
		content, err := ReadEmailRaw(blob)
		if err != nil {
			return nil, err
		}
		if content.HTML != "" {
			return decode.HTML(content.HTML)
		}
		return decode.Text(content.Text), nil
	default:
		return decode.Text(string(blob)), nil
	}
}
