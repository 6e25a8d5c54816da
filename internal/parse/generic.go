package parse

import (
	"regexp"
	"strconv"
	"strings"

	"receiptsync/internal"
	"receiptsync/internal/decode"
	"receiptsync/internal/util"
	"receiptsync/internal/vendors"
)

// Vendor-agnostic default cascades, labeled patterns first.
var (
	genericTotalPatterns = compile(
		`(?i)\b(?:order total|grand total|invoice total|amount charged|total due)[:\s]*\$?\s*([\d,]+\.\d{2})`,
		`(?i)\btotal[:\s]*\$?\s*([\d,]+\.\d{2})`,
	)
	genericSubtotalPatterns = compile(`(?i)\bsub\s?total[:\s]*\$?\s*([\d,]+\.\d{2})`)
	genericTaxPatterns      = compile(`(?i)\b(?:sales\s+)?tax[:\s]*\$?\s*([\d,]+\.\d{2})`)
	genericShippingPatterns = compile(`(?i)\b(?:shipping(?:\s*&\s*handling)?|delivery)[:\s]*\$?\s*([\d,]+\.\d{2})`)
	genericDatePatterns     = compile(
		`(?i)\b(?:order|purchase|transaction|invoice)\s+date[:\s]*([A-Za-z0-9,/ -]+\d{2,4})`,
	)
	genericOrderPatterns   = compile(`(?i)\border\s*(?:number|no\.?)?\s*#?[:\s]*(\d[A-Z0-9-]{4,})`)
	genericInvoicePatterns = compile(`(?i)\binvoice\s*(?:number|no\.?)?\s*#?[:\s]*(\d[A-Z0-9-]{3,})`)
	genericPOPatterns      = compile(`(?i)\bp\.?o\.?\s*(?:number|no\.?)?\s*#?[:\s]*([A-Z0-9-]{2,})`)
)

// Generic is the fallback parser: vendor hint patterns first, then default
// patterns, then the named heuristics. The HTML variant prefers the decoded
// artifact's labeled amounts and tables over re-scanning raw text.
func Generic(art *decode.Artifact, profile *vendors.Profile) *internal.ParsedReceipt {
	text := art.Text
	p := &internal.ParsedReceipt{}

	p.Total = artifactAmount(art, "total")
	if p.Total == nil {
		p.Total = firstCents(text, compileHints(profile, "total"))
	}
	if p.Total == nil {
		p.Total = firstCents(text, genericTotalPatterns)
	}
	if p.Total == nil {
		p.Total = largestAmount(text)
	}

	p.Subtotal = artifactAmount(art, "subtotal")
	if p.Subtotal == nil {
		p.Subtotal = firstCents(text, genericSubtotalPatterns)
	}
	p.Tax = artifactAmount(art, "tax")
	if p.Tax == nil {
		p.Tax = firstCents(text, genericTaxPatterns)
	}
	p.Shipping = artifactAmount(art, "shipping")
	if p.Shipping == nil {
		p.Shipping = firstCents(text, genericShippingPatterns)
	}

	p.TransactionDate = firstDate(text, compileHints(profile, "date"))
	if p.TransactionDate == nil {
		p.TransactionDate = firstDate(text, genericDatePatterns)
	}
	if p.TransactionDate == nil {
		dates := art.Dates
		if len(dates) == 0 {
			dates = util.FindDates(text)
		}
		p.TransactionDate = mostRecentDate(dates)
	}

	p.OrderNumber = art.OrderNumber
	if p.OrderNumber == nil {
		p.OrderNumber = firstString(text, compileHints(profile, "order"))
	}
	if p.OrderNumber == nil {
		p.OrderNumber = firstString(text, genericOrderPatterns)
	}
	p.InvoiceNumber = art.InvoiceNumber
	if p.InvoiceNumber == nil {
		p.InvoiceNumber = firstString(text, compileHints(profile, "invoice"))
	}
	if p.InvoiceNumber == nil {
		p.InvoiceNumber = firstString(text, genericInvoicePatterns)
	}
	p.PONumber = firstString(text, genericPOPatterns)

	p.CardLast4 = art.CardLast4
	if p.CardLast4 == nil {
		p.CardLast4 = util.FindCardLast4(text)
	}
	p.PaymentMethod = util.FindPaymentMethod(text)

	p.Items = tableLineItems(art.Tables)
	if len(p.Items) == 0 {
		p.Items = ExtractLineItems(text)
	}

	if p.Total == nil && len(p.Items) == 0 {
		return nil
	}
	p.Confidence = Score(p)
	return p
}

// largestAmount is the grand-total heuristic: the largest well-formed
// currency substring in the text. The grand total is numerically dominant
// in virtually all receipt layouts.
func largestAmount(text string) *util.Cents {
	amounts := util.FindAmounts(text)
	if len(amounts) == 0 {
		return nil
	}
	max := amounts[0]
	for _, a := range amounts[1:] {
		if a > max {
			max = a
		}
	}
	return &max
}

// mostRecentDate is the transaction-date heuristic: receipts print order,
// ship and delivery dates; the transaction date is typically the latest.
func mostRecentDate(dates []string) *string {
	if len(dates) == 0 {
		return nil
	}
	latest := dates[0]
	for _, d := range dates[1:] {
		if d > latest {
			latest = d
		}
	}
	return &latest
}

func artifactAmount(art *decode.Artifact, label string) *util.Cents {
	if art.Amounts == nil {
		return nil
	}
	if c, ok := art.Amounts[label]; ok {
		return &c
	}
	return nil
}

// tableLineItems reads purchase rows from decoded HTML tables. Column roles
// are inferred from the header row; tables without a recognizable item
// column are ignored.
func tableLineItems(tables []decode.Table) []internal.LineItem {
	out := []internal.LineItem{}
	for _, table := range tables {
		if len(table) < 2 {
			continue
		}
		header := make([]string, len(table[0]))
		for i, cell := range table[0] {
			header[i] = strings.ToLower(cell)
		}
		descIdx := findColumn(header, "item", "description", "product")
		qtyIdx := findColumn(header, "qty", "quantity")
		priceIdx := findColumn(header, "total", "amount", "price")
		if descIdx < 0 || priceIdx < 0 {
			continue
		}
		for _, row := range table[1:] {
			if descIdx >= len(row) || priceIdx >= len(row) {
				continue
			}
			desc := strings.TrimSpace(row[descIdx])
			price, ok := util.ParseCents(row[priceIdx])
			if desc == "" || !ok || !hasLetter.MatchString(desc) {
				continue
			}
			item := internal.LineItem{Description: desc, Quantity: 1, TotalPrice: price}
			if qtyIdx >= 0 && qtyIdx < len(row) {
				if qty, err := strconv.ParseFloat(strings.TrimSpace(row[qtyIdx]), 64); err == nil && qty > 0 {
					item.Quantity = qty
				}
			}
			out = append(out, item)
		}
	}
	return out
}

func findColumn(header []string, probes ...string) int {
	for i, h := range header {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}
