package gmail

import (
	"strings"
	"testing"
)

func TestSenderQueryTargetsMerchantDomains(t *testing.T) {
	q := senderQuery()
	if !strings.HasPrefix(q, "from:(") || !strings.HasSuffix(q, ")") {
		t.Fatalf("query=%q", q)
	}
	for _, domain := range []string{"amazon.com", "homedepot.com", "lowes.com", "uline.com"} {
		if !strings.Contains(q, domain) {
			t.Fatalf("query %q missing %s", q, domain)
		}
	}
	if strings.Contains(q, "your amazon order") || strings.Contains(q, "@") {
		t.Fatalf("query %q carries non-domain patterns", q)
	}
}
