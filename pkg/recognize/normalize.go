package recognize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// confusable characters OCR frequently swaps. They are left in place and the
// line is flagged instead, so fuzzy comparison can tolerate them.
const confusables = "0O1IlL5S"

// NormalizeText cleans a raw OCR text block into an ordered line sequence:
// lines are NFKC-normalized, trimmed, internal whitespace collapsed, and
// lines shorter than minLen runes dropped. Returns ErrEmptyInput when
// nothing usable remains; it never returns a silently empty result.
func NormalizeText(raw string, minLen int) (NormalizedText, error) {
	if minLen <= 0 {
		minLen = defaultMinLineLen
	}
	var out NormalizedText
	for _, rawLine := range strings.Split(raw, "\n") {
		line := norm.NFKC.String(rawLine)
		line = strings.Join(strings.Fields(line), " ")
		if len([]rune(line)) < minLen {
			continue
		}
		out.Lines = append(out.Lines, Line{
			Text:      line,
			Upper:     strings.ToUpper(line),
			Index:     len(out.Lines),
			Ambiguous: strings.ContainsAny(line, confusables),
		})
	}
	if out.Empty() {
		return NormalizedText{}, ErrEmptyInput
	}
	return out, nil
}
