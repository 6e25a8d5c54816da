package ledger

import (
	"time"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

// Scoring weights. A match is accepted only at or above the configured
// minimum (default 80), so a lone date hit can never claim a transaction.
const (
	amountExactScore  = 100
	amountCloseScore  = 80 // within 10 cents
	amountNearScore   = 50 // within a dollar
	amountLooseScore  = 20 // within five dollars
	dateExactScore    = 30
	dateAdjacentScore = 20 // one day off
	cardScore         = 50
)

// DateWindow returns the inclusive [from, to] range of dates to query around
// a receipt's transaction date.
func DateWindow(date string, days int) (string, string, bool) {
	t, err := time.Parse(util.ISODate, date)
	if err != nil {
		return "", "", false
	}
	from := t.AddDate(0, 0, -days).Format(util.ISODate)
	to := t.AddDate(0, 0, days).Format(util.ISODate)
	return from, to, true
}

// ScoreMatch rates how well a ledger transaction matches a receipt. Pure
// function of its inputs.
func ScoreMatch(r *internal.Receipt, txn *Transaction) int {
	score := 0
	if r.Total != nil {
		score += amountScore(*r.Total, txn.Total)
	}
	if r.TransactionDate != nil {
		score += dateScore(*r.TransactionDate, txn.Date)
	}
	if r.CardLast4 != nil && txn.CardLast4 != nil && *r.CardLast4 == *txn.CardLast4 {
		score += cardScore
	}
	return score
}

// BestMatch picks the highest-scoring candidate at or above minScore.
// Candidates are evaluated in the order given; on a tie the first seen wins,
// so a stable query order gives deterministic results.
func BestMatch(r *internal.Receipt, candidates []Transaction, minScore int) (*Transaction, int) {
	var best *Transaction
	bestScore := 0
	for i := range candidates {
		score := ScoreMatch(r, &candidates[i])
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	if best == nil || bestScore < minScore {
		return nil, bestScore
	}
	return best, bestScore
}

func amountScore(a, b util.Cents) int {
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta == 0:
		return amountExactScore
	case delta < 10:
		return amountCloseScore
	case delta < 100:
		return amountNearScore
	case delta < 500:
		return amountLooseScore
	default:
		return 0
	}
}

func dateScore(a, b string) int {
	if a == b {
		return dateExactScore
	}
	ta, errA := time.Parse(util.ISODate, a)
	tb, errB := time.Parse(util.ISODate, b)
	if errA != nil || errB != nil {
		return 0
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	if diff <= 24*time.Hour {
		return dateAdjacentScore
	}
	return 0
}
