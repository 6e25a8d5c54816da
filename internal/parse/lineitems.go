package parse

import (
	"regexp"
	"strconv"
	"strings"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

// Row shapes tried against each line independently, most structured first:
// SKU + description + qty + unit price + extended price, then
// description + qty + price, then bare description + price.
var (
	skuRow  = regexp.MustCompile(`^(\d{6,14})\s+(.+?)\s+(\d{1,4}(?:\.\d+)?)\s+@?\s*\$?([\d,]+\.\d{2})\s+\$?([\d,]+\.\d{2})$`)
	qtyRow  = regexp.MustCompile(`^(.+?)\s+(?:qty[:\s]*)?(\d{1,4})\s*(?:x|@)\s*\$?([\d,]+\.\d{2})$|^(.+?)\s+(\d{1,4})\s+\$?([\d,]+\.\d{2})$`)
	bareRow = regexp.MustCompile(`^(.+?)\s+\$?([\d,]+\.\d{2})$`)

	hasLetter = regexp.MustCompile(`[A-Za-z]`)
)

var summaryKeywords = []string{"subtotal", "total", "tax", "shipping", "discount"}

// ExtractLineItems pulls purchase lines out of receipt text, in document
// order. Summary lines (subtotal/total/tax/shipping/discount) are skipped so
// the grand total never doubles as a line item.
func ExtractLineItems(text string) []internal.LineItem {
	out := []internal.LineItem{}
	for _, line := range util.SplitLines(text) {
		line = util.NormalizeSpaces(line)
		if isSummaryLine(line) {
			continue
		}
		if item := lineToItem(line); item != nil {
			out = append(out, *item)
		}
	}
	return out
}

func lineToItem(line string) *internal.LineItem {
	if m := skuRow.FindStringSubmatch(line); m != nil {
		qty, _ := strconv.ParseFloat(m[3], 64)
		unit, okUnit := util.ParseCents(m[4])
		ext, okExt := util.ParseCents(m[5])
		if okExt && hasLetter.MatchString(m[2]) {
			item := &internal.LineItem{SKU: util.StringPtr(m[1]), Description: m[2], Quantity: qty, TotalPrice: ext}
			if okUnit {
				item.UnitPrice = &unit
			}
			return item
		}
	}
	if m := qtyRow.FindStringSubmatch(line); m != nil {
		desc, qtyRaw, priceRaw := m[1], m[2], m[3]
		if desc == "" {
			desc, qtyRaw, priceRaw = m[4], m[5], m[6]
		}
		qty, _ := strconv.ParseFloat(qtyRaw, 64)
		if price, ok := util.ParseCents(priceRaw); ok && qty > 0 && hasLetter.MatchString(desc) {
			return &internal.LineItem{Description: desc, Quantity: qty, TotalPrice: price}
		}
	}
	if m := bareRow.FindStringSubmatch(line); m != nil {
		if price, ok := util.ParseCents(m[2]); ok && hasLetter.MatchString(m[1]) {
			return &internal.LineItem{Description: m[1], Quantity: 1, TotalPrice: price}
		}
	}
	return nil
}

// isSummaryLine checks the line's leading token (allowing one qualifier such
// as "order" or "sales") against the summary keywords.
func isSummaryLine(line string) bool {
	tokens := strings.Fields(strings.ToLower(line))
	if len(tokens) == 0 {
		return true
	}
	lead := strings.Trim(tokens[0], ":#.$")
	switch lead {
	case "order", "grand", "invoice", "sales", "amount", "estimated":
		if len(tokens) > 1 {
			lead = strings.Trim(tokens[1], ":#.$")
		}
	}
	for _, kw := range summaryKeywords {
		if lead == kw {
			return true
		}
	}
	return false
}
