package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDocument(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"123.456.789-09", "12345678909"},
		{" 12345678909 ", "12345678909"},
		{"12.345.678/0001-95", "12345678000195"},
		{"012.345.678-90", "01234567890"}, // leading zero kept
		{"", ""},
		{"  .-/  ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeDocument(tc.in), "in=%q", tc.in)
	}
}

func TestDocumentsMatch(t *testing.T) {
	assert.True(t, DocumentsMatch("123.456.789-09", "12345678909"))
	assert.False(t, DocumentsMatch("123.456.789-09", "012.345.678-90"))

	// Missing identifiers are unknown ownership, never a match.
	assert.False(t, DocumentsMatch("", ""))
	assert.False(t, DocumentsMatch("12345678909", ""))
}

func TestOwnershipLabelFor(t *testing.T) {
	assert.Equal(t, OwnershipEqual, OwnershipLabelFor(true))
	assert.Equal(t, OwnershipDifferent, OwnershipLabelFor(false))
}

func TestTruthyFlag(t *testing.T) {
	for _, v := range []string{"true", "TRUE", " True ", "1", "t", "T"} {
		assert.True(t, TruthyFlag(v), "v=%q", v)
	}
	for _, v := range []string{"false", "0", "f", "", "yes", "nil"} {
		assert.False(t, TruthyFlag(v), "v=%q", v)
	}
}
