// Package textscan pulls structured fragments out of messy inline payloads:
// JSON stuffed into HTML attributes, script bodies with single-quoted keys,
// entity-escaped quoting. Everything here is best-effort and never panics.
package textscan

import (
	"html"
	"regexp"
	"strings"
)

// BalancedSpan locates anchor in text, then scans forward from the first
// open byte after it, counting open/close depth until the span balances.
// Quoted string literals are skipped (a quote enters literal mode until the
// same unescaped quote closes it; backslash escapes the following byte), so
// delimiters inside strings do not affect the count.
//
// Returns the span including both delimiters, or ("", false) when the anchor
// is absent or the input ends before the depth returns to zero.
func BalancedSpan(text, anchor string, open, close byte) (string, bool) {
	at := strings.Index(text, anchor)
	if at == -1 {
		return "", false
	}

	start := strings.IndexByte(text[at+len(anchor):], open)
	if start == -1 {
		return "", false
	}
	start += at + len(anchor)

	depth := 0
	var quote byte
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}

// QuotedAfter returns the double-quoted literal immediately following the
// anchor, e.g. the token in `CSRF_TOKEN : "abc123"`.
func QuotedAfter(text, anchor string) (string, bool) {
	at := strings.Index(text, anchor)
	if at == -1 {
		return "", false
	}
	rest := text[at+len(anchor):]

	open := strings.IndexByte(rest, '"')
	if open == -1 {
		return "", false
	}
	end := strings.IndexByte(rest[open+1:], '"')
	if end == -1 {
		return "", false
	}
	return rest[open+1 : open+1+end], true
}

// DecodeEntities resolves HTML entity escaping (&quot;, &amp;, ...) that
// attribute-embedded JSON carries before it can be unmarshalled.
func DecodeEntities(s string) string {
	return html.UnescapeString(s)
}

var trailingComma = regexp.MustCompile(`,\s*([\]}])`)

// NormalizeLooseJSON rewrites the almost-JSON found in inline scripts into
// something encoding/json accepts: single quotes become double quotes and
// trailing commas before a closing bracket are dropped.
func NormalizeLooseJSON(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)
	return trailingComma.ReplaceAllString(s, "$1")
}
