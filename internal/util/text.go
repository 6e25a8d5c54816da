package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces    = regexp.MustCompile(`\s+`)
	cardPattern = regexp.MustCompile(`(?i)(?:\*{2,4}\s*|x{2,4}\s*|ending\s+in\s+|ending\s+)(\d{4})\b`)
	payMethods  = []string{"visa", "mastercard", "amex", "american express", "discover", "debit", "credit"}
)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// SplitLines splits text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FindCardLast4 extracts a masked card suffix ("VISA **** 1234",
// "xxxx1234", "ending in 1234") from text.
func FindCardLast4(text string) *string {
	m := cardPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	return StringPtr(m[1])
}

// FindPaymentMethod returns the first recognized card network or payment
// keyword in text, normalized to lower case.
func FindPaymentMethod(text string) *string {
	low := strings.ToLower(text)
	for _, method := range payMethods {
		if strings.Contains(low, method) {
			return StringPtr(method)
		}
	}
	return nil
}
