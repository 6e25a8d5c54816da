package parse

import (
	"receiptsync/internal"
	"receiptsync/internal/decode"
	"receiptsync/internal/util"
)

// amazonParser handles Amazon order confirmations and invoices. Amazon mail
// is HTML-first; the text cascade covers forwarded/plain copies.
type amazonParser struct{}

var (
	amazonTotalPatterns = compile(
		`(?i)order total[:\s]*\$?\s*([\d,]+\.\d{2})`,
		`(?i)grand total[:\s]*\$?\s*([\d,]+\.\d{2})`,
		`(?i)total for this order[:\s]*\$?\s*([\d,]+\.\d{2})`,
	)
	amazonSubtotalPatterns = compile(`(?i)item(?:s)?\s+subtotal[:\s]*\$?\s*([\d,]+\.\d{2})`, `(?i)subtotal[:\s]*\$?\s*([\d,]+\.\d{2})`)
	amazonTaxPatterns      = compile(`(?i)estimated tax[:\s]*\$?\s*([\d,]+\.\d{2})`, `(?i)tax[:\s]*\$?\s*([\d,]+\.\d{2})`)
	amazonShippingPatterns = compile(`(?i)shipping\s*&\s*handling[:\s]*\$?\s*([\d,]+\.\d{2})`)
	amazonOrderPatterns    = compile(`(?i)order\s*#?\s*(\d{3}-\d{7}-\d{7})`)
	amazonDatePatterns     = compile(
		`(?i)order placed[:\s]*([A-Za-z]+ \d{1,2}, \d{4})`,
		`(?i)order date[:\s]*([A-Za-z0-9,/ ]+\d{4})`,
	)
)

func (amazonParser) Parse(text string) *internal.ParsedReceipt {
	p := &internal.ParsedReceipt{}
	p.Total = firstCents(text, amazonTotalPatterns)
	p.Subtotal = firstCents(text, amazonSubtotalPatterns)
	p.Tax = firstCents(text, amazonTaxPatterns)
	p.Shipping = firstCents(text, amazonShippingPatterns)
	p.OrderNumber = firstString(text, amazonOrderPatterns)
	p.TransactionDate = firstDate(text, amazonDatePatterns)
	if p.TransactionDate == nil {
		p.TransactionDate = mostRecentDate(util.FindDates(text))
	}
	p.CardLast4 = util.FindCardLast4(text)
	p.PaymentMethod = util.FindPaymentMethod(text)
	p.Items = ExtractLineItems(text)

	if p.Total == nil && len(p.Items) == 0 {
		return nil
	}
	p.Confidence = Derive(p)
	return p
}

func (a amazonParser) ParseHTML(markup string, art *decode.Artifact) *internal.ParsedReceipt {
	p := a.Parse(art.Text)
	if p == nil {
		return nil
	}
	// Structured extraction beats text scanning where the artifact has it.
	if c := artifactAmount(art, "total"); c != nil {
		p.Total = c
	}
	if c := artifactAmount(art, "subtotal"); c != nil {
		p.Subtotal = c
	}
	if c := artifactAmount(art, "tax"); c != nil {
		p.Tax = c
	}
	if p.OrderNumber == nil {
		p.OrderNumber = art.OrderNumber
	}
	if p.CardLast4 == nil {
		p.CardLast4 = art.CardLast4
	}
	if items := tableLineItems(art.Tables); len(items) > 0 {
		p.Items = items
	}
	p.Confidence = Derive(p)
	return p
}
