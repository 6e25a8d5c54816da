package parse

import "receiptsync/internal"

// Derive is the deterministic vendor-parser confidence rule: high needs
// total + date + a reference number, medium needs total + date.
func Derive(p *internal.ParsedReceipt) internal.Confidence {
	switch {
	case p.Total != nil && p.TransactionDate != nil && p.HasReference():
		return internal.ConfidenceHigh
	case p.Total != nil && p.TransactionDate != nil:
		return internal.ConfidenceMedium
	default:
		return internal.ConfidenceLow
	}
}

// Score is the point-based generic confidence: +2 total, +2 date, +1 any
// reference number, +1 card suffix, +1 any line item. The weighting is
// fixed so labels stay comparable with vendor-specific results.
func Score(p *internal.ParsedReceipt) internal.Confidence {
	points := 0
	if p.Total != nil {
		points += 2
	}
	if p.TransactionDate != nil {
		points += 2
	}
	if p.HasReference() {
		points++
	}
	if p.CardLast4 != nil {
		points++
	}
	if len(p.Items) > 0 {
		points++
	}
	switch {
	case points >= 5:
		return internal.ConfidenceHigh
	case points >= 3:
		return internal.ConfidenceMedium
	default:
		return internal.ConfidenceLow
	}
}
