package recognize

import (
	"sort"
	"unicode"
)

// Card names are 2-40 characters of mostly letters; digit-heavy lines are
// cost or stats text, not names.
const (
	minNameLen = 2
	maxNameLen = 40
)

// Position weights for the first lines of the card; names sit at the top.
var lineWeights = []float64{1.0, 0.85, 0.7}

// GenerateNameCandidates scores each of the first maxLines lines as a
// card-name hypothesis and returns them best first. For non-empty input the
// result is never empty: implausible lines still come back with floor
// scores, leaving the no-match decision to the resolver.
func GenerateNameCandidates(text NormalizedText, maxLines int) []NameCandidate {
	if text.Empty() {
		return nil
	}
	if maxLines <= 0 {
		maxLines = defaultMaxNameLines
	}
	n := len(text.Lines)
	if n > maxLines {
		n = maxLines
	}
	cands := make([]NameCandidate, 0, n)
	for i := 0; i < n; i++ {
		line := text.Lines[i]
		cands = append(cands, NameCandidate{
			Text:  line.Text,
			Score: scoreNameLine(line.Text, i),
			Line:  line.Index,
		})
	}
	// Best first, original line order on ties so the ordering is stable
	// across runs.
	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].Score != cands[b].Score {
			return cands[a].Score > cands[b].Score
		}
		return cands[a].Line < cands[b].Line
	})
	return cands
}

// scoreNameLine combines length plausibility, character-class plausibility
// and line position into a single score in (0, 1].
func scoreNameLine(s string, position int) float64 {
	runes := []rune(s)

	length := 1.0
	switch {
	case len(runes) < minNameLen:
		length = 0.1
	case len(runes) > maxNameLen:
		length = 0.2
	case len(runes) < 4:
		length = 0.6
	}

	var letters, digits, other int
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r) || r == ' ' || r == '\'' || r == '-' || r == ',':
			letters++
		case unicode.IsDigit(r):
			digits++
		default:
			other++
		}
	}
	class := float64(letters) / float64(len(runes))
	if digits*2 > len(runes) {
		// mostly digits: almost certainly a collector number or mana cost
		class *= 0.25
	}
	if other*3 > len(runes) {
		class *= 0.5
	}

	weight := lineWeights[len(lineWeights)-1]
	if position < len(lineWeights) {
		weight = lineWeights[position]
	}

	score := length * class * weight
	if score < nameScoreFloor {
		score = nameScoreFloor
	}
	return score
}

// nameScoreFloor keeps even garbled lines in play as low-confidence
// candidates rather than producing an empty sequence.
const nameScoreFloor = 0.01
