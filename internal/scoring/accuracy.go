// Package scoring grades spoken answers against reference sentences.
//
// Comparison is positional: token i of the transcript is compared with token i of the
// reference, with no alignment. A word inserted or dropped early shifts every later
// position and those all count as misses.
package scoring

import (
	"strings"
	"unicode"
)

// WordMatch annotates one reference word for display.
type WordMatch struct {
	Word    string `json:"word"`
	Matched bool   `json:"matched"`
}

// Accuracy returns the percentage, in [0,100], of positions where the normalized
// reference and spoken tokens are equal. The denominator is the longer token count and
// the result is rounded half up.
func Accuracy(reference, spoken string) int {
	ref := Tokens(reference)
	got := Tokens(spoken)

	n := max(len(ref), len(got))
	if n == 0 {
		return 0
	}

	matches := 0
	for i := 0; i < min(len(ref), len(got)); i++ {
		if ref[i] == got[i] {
			matches++
		}
	}
	// floor(matches*100/n + 0.5) in integer arithmetic
	return (matches*200 + n) / (2 * n)
}

// WordDiff marks each raw reference word as matched when the spoken word at the same
// position normalizes to the same token. The result has one entry per
// whitespace-separated reference word.
func WordDiff(reference, spoken string) []WordMatch {
	ref := strings.Fields(reference)
	got := strings.Fields(spoken)

	out := make([]WordMatch, len(ref))
	for i, word := range ref {
		matched := i < len(got) && normalizeWord(word) == normalizeWord(got[i])
		out[i] = WordMatch{Word: word, Matched: matched}
	}
	return out
}

// Tokens lowercases s, drops every rune that is neither a word character
// ([0-9A-Za-z_]) nor whitespace, and splits on whitespace.
func Tokens(s string) []string {
	return strings.Fields(normalize(s))
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if isWordRune(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeWord(s string) string {
	return strings.Join(Tokens(s), "")
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
