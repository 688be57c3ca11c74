package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	cases := []struct {
		name      string
		reference string
		spoken    string
		want      int
	}{
		{"identical", "the quick brown fox", "the quick brown fox", 100},
		{"one substitution", "the quick brown fox", "the slow brown fox", 75},
		{"empty spoken", "a b c d", "", 0},
		{"both empty", "", "", 0},
		{"punctuation and case ignored", "The quick, brown fox!", "the QUICK brown fox", 100},
		{"spoken longer", "cats are great", "cats are great indeed", 75},
		{"insertion cascades", "the quick brown fox", "so the quick brown fox", 0},
		{"rounds half up", "a b c d e f g h", "a x x x x x x x", 13},
		{"two of three", "one two three", "one two four", 67},
		{"punctuation only tokens dropped", "hello — world", "hello world", 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Accuracy(tc.reference, tc.spoken))
		})
	}
}

func TestAccuracySelfMatchIsFull(t *testing.T) {
	for _, s := range []string{
		"The quick brown fox jumps over the lazy dog in the sunny meadow.",
		"Data analysis reveals significant trends in consumer behavior and market preferences.",
		"it's 9 o'clock",
	} {
		require.Equal(t, 100, Accuracy(s, s), s)
		require.Equal(t, 0, Accuracy(s, ""), s)
	}
}

func TestWordDiff(t *testing.T) {
	got := WordDiff("The quick, brown fox.", "the slow brown")
	require.Equal(t, []WordMatch{
		{Word: "The", Matched: true},
		{Word: "quick,", Matched: false},
		{Word: "brown", Matched: true},
		{Word: "fox.", Matched: false},
	}, got)
}

func TestWordDiffLengthFollowsReference(t *testing.T) {
	cases := [][2]string{
		{"a b c", ""},
		{"a b c", "a b c d e f"},
		{"", "a b"},
		{"  spaced   out  words ", "spaced out"},
	}
	for _, tc := range cases {
		diff := WordDiff(tc[0], tc[1])
		require.Len(t, diff, len(Tokens(tc[0])), "reference %q", tc[0])
		require.Equal(t, diff, WordDiff(tc[0], tc[1]))
	}
}

func TestWordDiffPunctuationOnlyTokens(t *testing.T) {
	require.Equal(t, []WordMatch{{"hello", true}, {"-", true}, {"world", true}}, WordDiff("hello - world", "hello - world"))

	// both sides normalize to nothing
	diff := WordDiff("wait — what", "wait ! what")
	require.Equal(t, []bool{true, true, true}, []bool{diff[0].Matched, diff[1].Matched, diff[2].Matched})

	diff = WordDiff("wait — what", "wait")
	require.Equal(t, []bool{true, false, false}, []bool{diff[0].Matched, diff[1].Matched, diff[2].Matched})
}
