package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"punctuation and digits", "Hello, World! 123", []string{"hello", "world", "123"}},
		{"only separators", "  ,.;!? \t\n", []string{}},
		{"mixed case run", "PoSiTiOnAl", []string{"positional"}},
		{"alnum run", "abc123def 4x4", []string{"abc123def", "4x4"}},
		{"underscore separates", "snake_case", []string{"snake", "case"}},
		{"hyphen separates", "well-known", []string{"well", "known"}},
		{"non-ascii separates", "café naïve", []string{"caf", "na", "ve"}},
		{"non-ascii digits separate", "x٣y", []string{"x", "y"}},
		{"kelvin sign is not folded", "\u212Aey", []string{"ey"}},
		{"dotted capital i is not folded", "İstanbul", []string{"stanbul"}},
		{"repeated terms keep order", "a b a c a", []string{"a", "b", "a", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	text := strings.Repeat("Information retrieval: positional indexes, phrase queries & 42 proximity. ", 50)
	first := Tokenize(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Tokenize(text))
	}
}

func TestTokenizeOnlyLowercaseAlnum(t *testing.T) {
	for _, term := range Tokenize("MiXeD ÜNICODE, Tabs\tand 99 Problems!") {
		assert.NotEmpty(t, term)
		for _, r := range term {
			assert.True(t, (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'), "unexpected rune %q in %q", r, term)
		}
	}
}

func BenchmarkTokenize(b *testing.B) {
	text := strings.Repeat("Distributed search engines process queries across multiple shards. ", 100)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}
