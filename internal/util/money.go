package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Cents is a fixed-point dollar amount in hundredths. All extracted amounts
// are normalized to Cents before comparison or storage.
type Cents int64

func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

var (
	amountPattern = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?|\d+\.\d{2})|(?:^|[\s:])(\d{1,3}(?:,\d{3})+\.\d{2}|\d+\.\d{2})`)
	numericToken  = regexp.MustCompile(`^-?\$?\s*\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?$|^-?\$?\s*\d+(?:\.\d{1,2})?$`)
)

// ParseCents parses a currency-shaped token ("$1,199.76", "119.76", "45")
// into cents. Thousands separators and a leading dollar sign are accepted.
func ParseCents(input string) (Cents, bool) {
	s := strings.TrimSpace(input)
	if s == "" || !numericToken.MatchString(s) {
		return 0, false
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	s = strings.ReplaceAll(s, ",", "")

	whole := s
	frac := "0"
	if i := strings.Index(s, "."); i >= 0 {
		whole = s[:i]
		frac = s[i+1:]
	}
	if len(frac) == 1 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, false
	}
	out := Cents(w*100 + f)
	if neg {
		out = -out
	}
	return out, true
}

// FindAmounts returns every well-formed currency-shaped substring in text,
// normalized to cents, in document order.
func FindAmounts(text string) []Cents {
	out := []Cents{}
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		token := m[1]
		if token == "" {
			token = m[2]
		}
		if c, ok := ParseCents(token); ok {
			out = append(out, c)
		}
	}
	return out
}

func CentsPtr(c Cents) *Cents { return &c }

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }
