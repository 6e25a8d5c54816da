// Package parse turns decoded receipt artifacts into normalized parsed
// receipts. Vendor-specific parsers are regex cascades tuned to one
// merchant's known layouts; the generic parser is the fallback for everyone
// else.
package parse

import (
	"regexp"

	"receiptsync/internal"
	"receiptsync/internal/decode"
	"receiptsync/internal/util"
	"receiptsync/internal/vendors"
)

// VendorParser is the per-vendor parsing capability. Text-only vendors
// implement ParseHTML by delegating to Parse on the decoded text.
type VendorParser interface {
	Parse(text string) *internal.ParsedReceipt
	ParseHTML(markup string, art *decode.Artifact) *internal.ParsedReceipt
}

// parsers maps vendor profile ids to their dedicated parser. Profiles
// without an entry (and undetected vendors) go through Generic.
var parsers = map[string]VendorParser{
	"amazon":    amazonParser{},
	"homedepot": homeDepotParser{},
	"lowes":     lowesParser{},
}

// Parse routes an artifact to the right parser. A vendor parser returning
// nil is a soft signal, not an error: the router falls through to the
// generic parser with the profile's extraction patterns as hints.
func Parse(art *decode.Artifact, profile *vendors.Profile) *internal.ParsedReceipt {
	if art.Empty() {
		return nil
	}
	if profile != nil {
		if parser, ok := parsers[profile.ID]; ok {
			var parsed *internal.ParsedReceipt
			if art.Source == internal.FormatHTML {
				parsed = parser.ParseHTML(art.HTML, art)
			} else {
				parsed = parser.Parse(art.Text)
			}
			if parsed != nil {
				return parsed
			}
		}
	}
	return Generic(art, profile)
}

// firstCents applies an ordered pattern cascade: the first pattern that
// matches and yields a parseable amount wins, remaining patterns are not
// tried.
func firstCents(text string, patterns []*regexp.Regexp) *util.Cents {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if c, ok := util.ParseCents(m[1]); ok {
			return &c
		}
	}
	return nil
}

// firstDate is the cascade counterpart for dates, normalized to YYYY-MM-DD.
func firstDate(text string, patterns []*regexp.Regexp) *string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if iso, ok := util.NormalizeDate(m[1]); ok {
			return &iso
		}
	}
	return nil
}

// firstString returns the first non-empty capture from the cascade.
func firstString(text string, patterns []*regexp.Regexp) *string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) > 1 && m[1] != "" {
			return util.StringPtr(m[1])
		}
	}
	return nil
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func compileHints(profile *vendors.Profile, field string) []*regexp.Regexp {
	if profile == nil {
		return nil
	}
	raw, ok := profile.FieldPatterns[field]
	if !ok {
		return nil
	}
	out := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}
