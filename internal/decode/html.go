package decode

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

var (
	blockBreaks = regexp.MustCompile(`(?i)</(?:tr|p|div|li|h\d|table)>|<br\s*/?>`)
	cellBreaks  = regexp.MustCompile(`(?i)</t[dh]>`)

	// Labeled amount scan, most specific label first within each group.
	labelPatterns = []struct {
		label   string
		pattern *regexp.Regexp
	}{
		{"total", regexp.MustCompile(`(?i)\b(?:order total|grand total|invoice total|amount charged|total)[:\s]*\$?\s*([\d,]+\.\d{2})`)},
		{"subtotal", regexp.MustCompile(`(?i)\bsub\s?total[:\s]*\$?\s*([\d,]+\.\d{2})`)},
		{"tax", regexp.MustCompile(`(?i)\b(?:sales\s+)?tax[:\s]*\$?\s*([\d,]+\.\d{2})`)},
		{"shipping", regexp.MustCompile(`(?i)\b(?:shipping|shipping & handling|delivery)[:\s]*\$?\s*([\d,]+\.\d{2})`)},
	}

	orderRef   = regexp.MustCompile(`(?i)\border\s*(?:number|no\.?)?\s*#?[:\s]*(\d[A-Z0-9-]{4,})`)
	invoiceRef = regexp.MustCompile(`(?i)\binvoice\s*(?:number|no\.?)?\s*#?[:\s]*(\d[A-Z0-9-]{3,})`)
)

// HTML decodes receipt markup: script/style-free plain text, every table as
// rows of cell text, labeled monetary values, reference numbers, a card
// suffix, and all normalizable dates in source order.
func HTML(markup string) (*Artifact, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	doc.Find("script,style").Remove()

	tables := extractTables(doc)
	text := plainText(markup)

	art := &Artifact{
		Source:  internal.FormatHTML,
		Text:    text,
		HTML:    markup,
		Tables:  tables,
		Amounts: map[string]util.Cents{},
		Dates:   util.FindDates(text),
	}

	for _, lp := range labelPatterns {
		if _, done := art.Amounts[lp.label]; done {
			continue
		}
		if m := lp.pattern.FindStringSubmatch(text); len(m) > 1 {
			if c, ok := util.ParseCents(m[1]); ok {
				art.Amounts[lp.label] = c
			}
		}
	}

	if m := orderRef.FindStringSubmatch(text); len(m) > 1 {
		art.OrderNumber = util.StringPtr(m[1])
	}
	if m := invoiceRef.FindStringSubmatch(text); len(m) > 1 {
		art.InvoiceNumber = util.StringPtr(m[1])
	}
	art.CardLast4 = util.FindCardLast4(text)

	return art, nil
}

func extractTables(doc *goquery.Document) []Table {
	tables := []Table{}
	doc.Find("table").Each(func(_ int, sel *goquery.Selection) {
		table := Table{}
		sel.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if len(cells) > 0 {
				table = append(table, cells)
			}
		})
		if len(table) > 0 {
			tables = append(tables, table)
		}
	})
	return tables
}

// plainText derives line-oriented text from markup. Closing block tags are
// turned into line breaks first so labels and their amounts stay on one line
// per table row.
func plainText(markup string) string {
	augmented := cellBreaks.ReplaceAllString(markup, "$0 ")
	augmented = blockBreaks.ReplaceAllString(augmented, "$0\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(augmented))
	if err != nil {
		return ""
	}
	doc.Find("script,style").Remove()
	lines := util.SplitLines(doc.Text())
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, util.NormalizeSpaces(line))
	}
	return strings.Join(out, "\n")
}
