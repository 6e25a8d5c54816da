package parse

import (
	"receiptsync/internal"
	"receiptsync/internal/decode"
	"receiptsync/internal/util"
)

// lowesParser handles Lowe's invoices, usually PDF attachments.
type lowesParser struct{}

var (
	lowesTotalPatterns = compile(
		`(?i)invoice total[:\s]*\$?\s*([\d,]+\.\d{2})`,
		`(?i)balance due[:\s]*\$?\s*([\d,]+\.\d{2})`,
		`(?i)total[:\s]*\$?\s*([\d,]+\.\d{2})`,
	)
	lowesSubtotalPatterns = compile(`(?i)subtotal[:\s]*\$?\s*([\d,]+\.\d{2})`)
	lowesTaxPatterns      = compile(`(?i)tax[:\s]*\$?\s*([\d,]+\.\d{2})`)
	lowesInvoicePatterns  = compile(`(?i)invoice\s*(?:number|no\.?)?\s*#?[:\s]*(\d{5,10})`, `(?i)sales\s*#\s*(\d{5,12})`)
	lowesDatePatterns     = compile(
		`(?i)invoice date[:\s]*(\d{1,2}/\d{1,2}/\d{2,4})`,
		`(?i)date[:\s]*(\d{1,2}/\d{1,2}/\d{2,4})`,
	)
)

func (lowesParser) Parse(text string) *internal.ParsedReceipt {
	p := &internal.ParsedReceipt{}
	p.Total = firstCents(text, lowesTotalPatterns)
	p.Subtotal = firstCents(text, lowesSubtotalPatterns)
	p.Tax = firstCents(text, lowesTaxPatterns)
	p.InvoiceNumber = firstString(text, lowesInvoicePatterns)
	p.TransactionDate = firstDate(text, lowesDatePatterns)
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

func (l lowesParser) ParseHTML(_ string, art *decode.Artifact) *internal.ParsedReceipt {
	return l.Parse(art.Text)
}
