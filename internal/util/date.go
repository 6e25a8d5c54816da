package util

import (
	"regexp"
	"strings"
	"time"
)

const ISODate = "2006-01-02"

var dateLayouts = []string{
	ISODate,
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
	"2006/01/02",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
}

var (
	datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|(?i:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}\s+(?i:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}`)
	monthToken  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?`)
)

// NormalizeDate parses a date substring in any of the supported receipt
// layouts and returns it as YYYY-MM-DD.
func NormalizeDate(input string) (string, bool) {
	s := strings.Join(strings.Fields(strings.TrimSpace(input)), " ")
	s = monthToken.ReplaceAllStringFunc(s, func(m string) string {
		m = strings.TrimSuffix(m, ".")
		if len(m) > 3 {
			m = m[:3]
		}
		return strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
	})
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), true
		}
	}
	return "", false
}

// FindDates returns every normalizable date substring in text as YYYY-MM-DD,
// in source order with duplicates removed.
func FindDates(text string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, m := range datePattern.FindAllString(text, -1) {
		iso, ok := NormalizeDate(m)
		if !ok {
			continue
		}
		if _, dup := seen[iso]; dup {
			continue
		}
		seen[iso] = struct{}{}
		out = append(out, iso)
	}
	return out
}
