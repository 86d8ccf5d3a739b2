package recognize

import "strings"

// foldConfusables maps characters OCR commonly swaps onto one
// representative so "L1ghtning B0lt" compares equal to "Lightning Bolt".
var foldConfusables = strings.NewReplacer(
	"0", "o",
	"1", "l",
	"|", "l",
	"i", "l",
	"5", "s",
)

// foldName lowercases and confusable-folds a name for comparison.
func foldName(s string) string {
	return foldConfusables.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// NamesEqualFold reports whether two card names are equal under case and
// OCR-confusable folding.
func NamesEqualFold(a, b string) bool {
	return foldName(a) == foldName(b)
}

// Similarity returns a [0,1] similarity between two names based on edit
// distance over the folded forms.
func Similarity(a, b string) float64 {
	fa, fb := foldName(a), foldName(b)
	if fa == fb {
		return 1.0
	}
	maxLen := len(fa)
	if len(fb) > maxLen {
		maxLen = len(fb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(fa, fb))/float64(maxLen)
}

// levenshtein computes the edit distance between two strings using a
// two-row dynamic programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
