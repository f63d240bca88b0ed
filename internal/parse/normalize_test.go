package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bidi marks stripped", "‎SanDisk‏ Extreme", "SanDisk Extreme"},
		{"whitespace collapsed", "  a \t b\r\n c  ", "a b c"},
		{"zero width space dropped", "128​GB", "128GB"},
		{"plain text untouched", "MicroSDXC UHS-I", "MicroSDXC UHS-I"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestCleanTextKeepNewlines(t *testing.T) {
	in := "line one  has   runs\nline\ttwo‎\n"
	assert.Equal(t, "line one has runs\nline two", CleanTextKeepNewlines(in))
}

func TestParsePrice(t *testing.T) {
	p := ParsePrice("1,299.00")
	require.NotNil(t, p)
	assert.Equal(t, 1299.0, *p)

	p = ParsePrice("$49.99")
	require.NotNil(t, p)
	assert.Equal(t, 49.99, *p)

	assert.Nil(t, ParsePrice("FREE"))
	assert.Nil(t, ParsePrice(""))
}

func TestParseCount(t *testing.T) {
	n, ok := ParseCount("3,714 global ratings")
	require.True(t, ok)
	assert.Equal(t, 3714, n)

	_, ok = ParseCount("no numbers")
	assert.False(t, ok)
}

func TestParseLeadingDecimal(t *testing.T) {
	v, ok := ParseLeadingDecimal("4.3 out of 5 stars")
	require.True(t, ok)
	assert.Equal(t, 4.3, v)

	v, ok = ParseLeadingDecimal("5 star")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	_, ok = ParseLeadingDecimal("stars")
	assert.False(t, ok)
}
