package parse

import "testing"

func TestExtractLineItemsShapes(t *testing.T) {
	text := `1001234567 2x4 Lumber Stud 12 @ $4.98 $59.76
Paint Roller 2 x $8.99
Drop Cloth $12.50
Subtotal: $109.99
Order Total: $119.76
Estimated Tax: $9.77
Thank you for shopping
`
	items := ExtractLineItems(text)
	if len(items) != 3 {
		t.Fatalf("got %d items: %+v", len(items), items)
	}

	if items[0].SKU == nil || *items[0].SKU != "1001234567" {
		t.Fatalf("sku=%v", items[0].SKU)
	}
	if items[0].Description != "2x4 Lumber Stud" || items[0].Quantity != 12 {
		t.Fatalf("item=%+v", items[0])
	}
	if items[0].UnitPrice == nil || *items[0].UnitPrice != 498 || items[0].TotalPrice != 5976 {
		t.Fatalf("prices=%+v", items[0])
	}

	if items[1].Description != "Paint Roller" || items[1].Quantity != 2 || items[1].TotalPrice != 899 {
		t.Fatalf("item=%+v", items[1])
	}

	if items[2].Description != "Drop Cloth" || items[2].Quantity != 1 || items[2].TotalPrice != 1250 {
		t.Fatalf("item=%+v", items[2])
	}
}

func TestIsSummaryLine(t *testing.T) {
	cases := map[string]bool{
		"Subtotal: $109.99":     true,
		"Order Total: $119.76":  true,
		"Grand Total $119.76":   true,
		"Sales Tax: $9.77":      true,
		"Estimated Tax: $9.77":  true,
		"Shipping: $5.00":       true,
		"Laser Level $450.00":   false,
		"Drop Cloth $12.50":     false,
	}
	for line, want := range cases {
		if got := isSummaryLine(line); got != want {
			t.Errorf("isSummaryLine(%q)=%v want %v", line, got, want)
		}
	}
}
