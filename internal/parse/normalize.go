// Package parse turns fetched HTML documents into product record fragments.
// Every field extractor is best-effort: it produces a value or omits the
// field, and one malformed subtree never aborts the rest of the document.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText strips bidirectional marks and other invisible control/format
// characters, collapses whitespace runs to single spaces and trims. Scraped
// text is full of U+200E/U+200F mojibake that would otherwise leak into the
// output.
func CleanText(s string) string {
	return cleanText(s, false)
}

// CleanTextKeepNewlines is CleanText for long-form fields where intentional
// line breaks carry meaning. Runs of spaces and tabs still collapse.
func CleanTextKeepNewlines(s string) string {
	return cleanText(s, true)
}

func cleanText(s string, keepNewlines bool) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\r':
			b.WriteRune(' ')
		case r == '\n':
			if keepNewlines {
				b.WriteRune('\n')
			} else {
				b.WriteRune(' ')
			}
		case unicode.IsControl(r), unicode.In(r, unicode.Cf, unicode.Co, unicode.Cs, unicode.Z):
			// dropped: format marks, separators, private use
		default:
			b.WriteRune(r)
		}
	}

	out := b.String()
	if keepNewlines {
		lines := strings.Split(out, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(out, " "))
}

var nonPrice = regexp.MustCompile(`[^\d.]`)

// ParsePrice strips currency symbols, thousands separators and anything else
// that is not a digit or decimal point. Returns nil when nothing numeric
// remains.
func ParsePrice(s string) *float64 {
	cleaned := nonPrice.ReplaceAllString(s, "")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

var nonDigit = regexp.MustCompile(`[^\d]`)

// ParseCount strips everything non-numeric ("3,714 global ratings" -> 3714).
func ParseCount(s string) (int, bool) {
	cleaned := nonDigit.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, false
	}
	return v, true
}

var leadingDecimal = regexp.MustCompile(`(\d+(\.\d+)?)`)

// ParseLeadingDecimal reads the first decimal number in the string
// ("4.3 out of 5 stars" -> 4.3).
func ParseLeadingDecimal(s string) (float64, bool) {
	m := leadingDecimal.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
