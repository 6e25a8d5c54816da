package parse

import (
	"testing"

	"receiptsync/internal"
	"receiptsync/internal/decode"
	"receiptsync/internal/util"
	"receiptsync/internal/vendors"
)

func TestGenericHeuristics(t *testing.T) {
	text := "Thanks for your purchase\nWidget A 45.00\nWidget B 119.76\nordered 11/20/2025 shipped 11/23/2025\n"
	art := decode.Text(text)
	p := Generic(art, nil)
	if p == nil {
		t.Fatal("nil parse")
	}
	if p.Total == nil || *p.Total != 11976 {
		t.Fatalf("total=%v", p.Total)
	}
	if p.TransactionDate == nil || *p.TransactionDate != "2025-11-23" {
		t.Fatalf("date=%v", p.TransactionDate)
	}
}

func TestGenericLabeledBeatsLargest(t *testing.T) {
	// A labeled total below the largest raw amount must still win.
	text := "Item: Generator 999.00\nDiscount: 900.00\nTotal: 99.00\nDate: 11/23/2025"
	p := Generic(decode.Text(text), nil)
	if p == nil || p.Total == nil || *p.Total != 9900 {
		t.Fatalf("got %+v", p)
	}
}

func TestGenericRejectsNoSignal(t *testing.T) {
	if p := Generic(decode.Text("hello there, see you tomorrow"), nil); p != nil {
		t.Fatalf("expected nil, got %+v", p)
	}
}

func TestRouterEmptyArtifact(t *testing.T) {
	if p := Parse(decode.Text("   \n  "), nil); p != nil {
		t.Fatalf("expected nil, got %+v", p)
	}
}

func TestRouterFallthroughMatchesGeneric(t *testing.T) {
	// Uline has a profile but no dedicated parser: the router must produce
	// the same result as calling Generic directly with the profile hints.
	profile := vendors.ByID("uline")
	if profile == nil {
		t.Fatal("uline profile missing")
	}
	text := "Uline Order No. 8812345\nOrder Total: $240.50\nShip Date: 11/21/2025\nBubble Wrap Roll 2 $60.25\n"
	art := decode.Text(text)

	routed := Parse(art, profile)
	direct := Generic(art, profile)
	if routed == nil || direct == nil {
		t.Fatal("nil parse")
	}
	if *routed.Total != *direct.Total || routed.Confidence != direct.Confidence {
		t.Fatalf("routed=%+v direct=%+v", routed, direct)
	}
	if routed.OrderNumber == nil || *routed.OrderNumber != "8812345" {
		t.Fatalf("order=%v", routed.OrderNumber)
	}
}

func TestGenericHTMLPrefersArtifactAmounts(t *testing.T) {
	art := &decode.Artifact{
		Source:  internal.FormatHTML,
		Text:    "Total: 999.99",
		Amounts: map[string]util.Cents{"total": 11976, "tax": 977},
		Dates:   []string{"2025-11-23"},
	}
	p := Generic(art, nil)
	if p == nil || p.Total == nil || *p.Total != 11976 {
		t.Fatalf("got %+v", p)
	}
	if p.Tax == nil || *p.Tax != 977 {
		t.Fatalf("tax=%v", p.Tax)
	}
}

func TestConfidenceMonotonicity(t *testing.T) {
	rank := map[internal.Confidence]int{
		internal.ConfidenceLow:    0,
		internal.ConfidenceMedium: 1,
		internal.ConfidenceHigh:   2,
	}

	base := internal.ParsedReceipt{}
	additions := []func(*internal.ParsedReceipt){
		func(p *internal.ParsedReceipt) { p.Total = util.CentsPtr(11976) },
		func(p *internal.ParsedReceipt) { p.TransactionDate = util.StringPtr("2025-11-23") },
		func(p *internal.ParsedReceipt) { p.OrderNumber = util.StringPtr("W912345678") },
		func(p *internal.ParsedReceipt) { p.CardLast4 = util.StringPtr("1234") },
		func(p *internal.ParsedReceipt) { p.Items = []internal.LineItem{{Description: "stud", Quantity: 1, TotalPrice: 498}} },
	}

	current := base
	prev := Score(&current)
	for i, add := range additions {
		next := current
		add(&next)
		got := Score(&next)
		if rank[got] < rank[prev] {
			t.Fatalf("addition %d decreased confidence %s -> %s", i, prev, got)
		}
		current = next
		prev = got
	}
	if prev != internal.ConfidenceHigh {
		t.Fatalf("fully populated parse scored %s", prev)
	}
}
