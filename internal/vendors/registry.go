package vendors

import (
	"strings"

	"receiptsync/internal"
)

// Profile is the static configuration for one known merchant: how to detect
// its mail and how to pull fields out of its receipts. Profiles are defined
// at process start and never mutated.
type Profile struct {
	ID             string
	DisplayName    string
	DetectPatterns []string // lower-case substrings, tried in order
	Format         internal.ReceiptFormat
	FieldPatterns  map[string][]string // field -> ordered regex cascade
	LedgerName     string              // vendor display name on the ledger side
	Category       string              // expense category
}

// registry order is a deliberate priority list: detection tries profiles in
// declaration order and the first match wins.
var registry = []Profile{
	{
		ID:             "amazon",
		DisplayName:    "Amazon",
		DetectPatterns: []string{"amazon.com", "auto-confirm@amazon", "your amazon order"},
		Format:         internal.FormatHTML,
		FieldPatterns: map[string][]string{
			"total": {`(?i)order total[:\s]*\$?([\d,]+\.\d{2})`, `(?i)grand total[:\s]*\$?([\d,]+\.\d{2})`},
			"order": {`(?i)order\s*#?\s*(\d{3}-\d{7}-\d{7})`},
			"date":  {`(?i)order placed[:\s]*([A-Za-z]+ \d{1,2}, \d{4})`},
		},
		LedgerName: "Amazon",
		Category:   "Job Materials",
	},
	{
		ID:             "homedepot",
		DisplayName:    "The Home Depot",
		DetectPatterns: []string{"homedepot.com", "home depot", "homedepotreceipt"},
		Format:         internal.FormatText,
		FieldPatterns: map[string][]string{
			"total": {`(?i)order total[:\s]*\$?([\d,]+\.\d{2})`, `(?i)total[:\s]*\$?([\d,]+\.\d{2})`},
			"order": {`(?i)order\s*#?\s*((?:W[A-Z]?)?\d{8,10})`},
			"date":  {`(?i)order date[:\s]*(\d{1,2}/\d{1,2}/\d{2,4})`},
		},
		LedgerName: "The Home Depot",
		Category:   "Job Materials",
	},
	{
		ID:             "lowes",
		DisplayName:    "Lowe's",
		DetectPatterns: []string{"lowes.com", "lowe's", "lowes receipt"},
		Format:         internal.FormatPDF,
		FieldPatterns: map[string][]string{
			"total":   {`(?i)invoice total[:\s]*\$?([\d,]+\.\d{2})`, `(?i)total[:\s]*\$?([\d,]+\.\d{2})`},
			"invoice": {`(?i)invoice\s*#?\s*(\d{5,10})`},
			"date":    {`(?i)invoice date[:\s]*(\d{1,2}/\d{1,2}/\d{2,4})`},
		},
		LedgerName: "Lowe's",
		Category:   "Job Materials",
	},
	{
		// Patterns only, no dedicated parser: the router falls through to
		// the generic parser with these as hints.
		ID:             "uline",
		DisplayName:    "Uline",
		DetectPatterns: []string{"uline.com", "uline order"},
		Format:         internal.FormatPDF,
		FieldPatterns: map[string][]string{
			"total": {`(?i)order total[:\s]*\$?([\d,]+\.\d{2})`},
			"order": {`(?i)order\s*(?:no\.?|#)\s*(\d{6,10})`},
		},
		LedgerName: "Uline",
		Category:   "Shop Supplies",
	},
}

// All returns the registry in priority order.
func All() []Profile {
	return registry
}

// ByID looks a profile up by identifier.
func ByID(id string) *Profile {
	for i := range registry {
		if registry[i].ID == id {
			return &registry[i]
		}
	}
	return nil
}

// SenderDomains returns the known merchant mail domains, in registry order.
// A detection substring counts as a domain when it looks like one: contains
// a dot, no spaces, no mailbox part.
func SenderDomains() []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range registry {
		for _, pat := range p.DetectPatterns {
			if !strings.Contains(pat, ".") || strings.ContainsAny(pat, " @'") {
				continue
			}
			if seen[pat] {
				continue
			}
			seen[pat] = true
			out = append(out, pat)
		}
	}
	return out
}
