package decode

import (
	"strings"
	"testing"
)

const sampleMarkup = `<html><body>
<p>Thanks for your order!</p>
<p>Order #112-7736299-1234567 placed Nov 20, 2025</p>
<table>
<tr><th>Item</th><th>Qty</th><th>Price</th></tr>
<tr><td>2x4 Lumber Stud</td><td>12</td><td>$4.98</td></tr>
</table>
<table>
<tr><td>Subtotal</td><td>$109.99</td></tr>
<tr><td>Sales Tax</td><td>$9.77</td></tr>
<tr><td>Order Total</td><td>$119.76</td></tr>
</table>
<p>Paid with VISA **** 1234 on 11/23/2025</p>
<script>tracking();</script>
</body></html>`

func TestHTMLTables(t *testing.T) {
	art, err := HTML(sampleMarkup)
	if err != nil {
		t.Fatal(err)
	}
	if len(art.Tables) != 2 {
		t.Fatalf("tables=%d", len(art.Tables))
	}
	if art.Tables[0][1][0] != "2x4 Lumber Stud" {
		t.Fatalf("cell=%q", art.Tables[0][1][0])
	}
}

func TestHTMLLabeledAmounts(t *testing.T) {
	art, err := HTML(sampleMarkup)
	if err != nil {
		t.Fatal(err)
	}
	if art.Amounts["total"] != 11976 {
		t.Fatalf("total=%d", art.Amounts["total"])
	}
	if art.Amounts["subtotal"] != 10999 {
		t.Fatalf("subtotal=%d", art.Amounts["subtotal"])
	}
	if art.Amounts["tax"] != 977 {
		t.Fatalf("tax=%d", art.Amounts["tax"])
	}
}

func TestHTMLReferencesAndDates(t *testing.T) {
	art, err := HTML(sampleMarkup)
	if err != nil {
		t.Fatal(err)
	}
	if art.OrderNumber == nil || *art.OrderNumber != "112-7736299-1234567" {
		t.Fatalf("order=%v", art.OrderNumber)
	}
	if art.CardLast4 == nil || *art.CardLast4 != "1234" {
		t.Fatalf("card=%v", art.CardLast4)
	}
	if len(art.Dates) != 2 || art.Dates[0] != "2025-11-20" || art.Dates[1] != "2025-11-23" {
		t.Fatalf("dates=%v", art.Dates)
	}
	if art.Empty() {
		t.Fatal("artifact reported empty")
	}
}

func TestHTMLStripsScript(t *testing.T) {
	art, err := HTML(sampleMarkup)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(art.Text, "tracking()") {
		t.Fatal("script leaked into text")
	}
}
