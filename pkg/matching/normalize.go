package matching

import (
	"strings"
	"unicode"
)

// Tokenize lowercases a term, strips punctuation, and splits it into word
// tokens. "NIKE, Inc." -> ["nike", "inc"]. This is the shared normalization
// for both the scoring kernel and the prefilter index, so anything the
// kernel can match on a token basis is reachable through the index.
func Tokenize(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

// Normalized returns the canonical lowercase single-spaced form of a term.
func Normalized(s string) string {
	return strings.Join(Tokenize(s), " ")
}

// Initials returns the first letter of each token, e.g. "morgan stanley"
// -> "ms". Returns "" for empty input.
func Initials(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte(t[0])
	}
	return b.String()
}
