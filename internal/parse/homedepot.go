package parse

import (
	"receiptsync/internal"
	"receiptsync/internal/decode"
	"receiptsync/internal/util"
)

// homeDepotParser handles Home Depot order confirmations and in-store
// e-receipts (plain text layouts).
type homeDepotParser struct{}

var (
	hdTotalPatterns = compile(
		`(?i)order total[:\s]*\$?\s*([\d,]+\.\d{2})`,
		`(?i)total[:\s]*\$?\s*([\d,]+\.\d{2})`,
	)
	hdSubtotalPatterns = compile(`(?i)subtotal[:\s]*\$?\s*([\d,]+\.\d{2})`)
	hdTaxPatterns      = compile(`(?i)sales tax[:\s]*\$?\s*([\d,]+\.\d{2})`, `(?i)tax[:\s]*\$?\s*([\d,]+\.\d{2})`)
	hdShippingPatterns = compile(`(?i)(?:shipping|delivery)[:\s]*\$?\s*([\d,]+\.\d{2})`)
	hdOrderPatterns    = compile(`(?i)order\s*(?:number|no\.?)?\s*#?[:\s]*((?:W[A-Z]?)?\d{8,10})`)
	hdPOPatterns       = compile(`(?i)\bp\.?o\.?\s*(?:number|no\.?)?\s*#?[:\s]*([A-Z0-9-]{2,})`)
	hdDatePatterns     = compile(
		`(?i)order date[:\s]*(\d{1,2}/\d{1,2}/\d{2,4})`,
		`(?i)order date[:\s]*([A-Za-z]+ \d{1,2}, \d{4})`,
		`(?i)date[:\s]*(\d{1,2}/\d{1,2}/\d{2,4})`,
	)
)

func (homeDepotParser) Parse(text string) *internal.ParsedReceipt {
	p := &internal.ParsedReceipt{}
	p.Total = firstCents(text, hdTotalPatterns)
	p.Subtotal = firstCents(text, hdSubtotalPatterns)
	p.Tax = firstCents(text, hdTaxPatterns)
	p.Shipping = firstCents(text, hdShippingPatterns)
	p.OrderNumber = firstString(text, hdOrderPatterns)
	p.PONumber = firstString(text, hdPOPatterns)
	p.TransactionDate = firstDate(text, hdDatePatterns)
	p.CardLast4 = util.FindCardLast4(text)
	p.PaymentMethod = util.FindPaymentMethod(text)
	p.Items = ExtractLineItems(text)

	if p.Total == nil && len(p.Items) == 0 {
		return nil
	}
	p.Confidence = Derive(p)
	return p
}

func (h homeDepotParser) ParseHTML(_ string, art *decode.Artifact) *internal.ParsedReceipt {
	return h.Parse(art.Text)
}
