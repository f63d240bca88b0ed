package textscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancedSpan(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		anchor string
		open   byte
		close  byte
		want   string
		ok     bool
	}{
		{
			name:   "simple object",
			text:   `prefix data-modal='{"a":1}' suffix`,
			anchor: "data-modal=",
			open:   '{',
			close:  '}',
			want:   `{"a":1}`,
			ok:     true,
		},
		{
			name:   "nested objects",
			text:   `x={"a":{"b":{"c":3}},"d":4} tail`,
			anchor: "x=",
			open:   '{',
			close:  '}',
			want:   `{"a":{"b":{"c":3}},"d":4}`,
			ok:     true,
		},
		{
			name:   "braces inside string literals are ignored",
			text:   `cfg = {"url":"/a/{id}/b","n":1}`,
			anchor: "cfg",
			open:   '{',
			close:  '}',
			want:   `{"url":"/a/{id}/b","n":1}`,
			ok:     true,
		},
		{
			name:   "escaped quote does not close the literal",
			text:   `anchor{"a":"b\"}c"}`,
			anchor: "anchor",
			open:   '{',
			close:  '}',
			want:   `{"a":"b\"}c"}`,
			ok:     true,
		},
		{
			name:   "single quoted literals",
			text:   `'colorImages': { 'initial': [{'hiRes':'http://x/{1}.jpg'}]}`,
			anchor: "'initial':",
			open:   '[',
			close:  ']',
			want:   `[{'hiRes':'http://x/{1}.jpg'}]`,
			ok:     true,
		},
		{
			name:   "anchor missing",
			text:   `{"a":1}`,
			anchor: "nope",
			open:   '{',
			close:  '}',
			ok:     false,
		},
		{
			name:   "never balances",
			text:   `blob={"a":{"b":1}`,
			anchor: "blob=",
			open:   '{',
			close:  '}',
			ok:     false,
		},
		{
			name:   "no open delimiter after anchor",
			text:   `blob= nothing here`,
			anchor: "blob=",
			open:   '{',
			close:  '}',
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BalancedSpan(tt.text, tt.anchor, tt.open, tt.close)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuotedAfter(t *testing.T) {
	tok, ok := QuotedAfter(`var x; CSRF_TOKEN : "gPjps3fDWnEMv8S" ;`, "CSRF_TOKEN :")
	require.True(t, ok)
	assert.Equal(t, "gPjps3fDWnEMv8S", tok)

	_, ok = QuotedAfter("no token here", "CSRF_TOKEN :")
	assert.False(t, ok)

	_, ok = QuotedAfter(`CSRF_TOKEN : "unterminated`, "CSRF_TOKEN :")
	assert.False(t, ok)
}

func TestDecodeEntities(t *testing.T) {
	assert.Equal(t, `{"a":"b&c"}`, DecodeEntities("{&quot;a&quot;:&quot;b&amp;c&quot;}"))
}

func TestNormalizeLooseJSON(t *testing.T) {
	in := `[{'hiRes':'http://img/1.jpg','variant':'MAIN',},]`
	want := `[{"hiRes":"http://img/1.jpg","variant":"MAIN"}]`
	assert.Equal(t, want, NormalizeLooseJSON(in))
}
