package recognize

import (
	"regexp"
	"strings"
)

// Collector-line shapes: a 3-5 char alnum token next to "digits/digits" or
// "digits★". The code may sit before or after the number on the same line.
var (
	collectorNumRE = regexp.MustCompile(`(\d{1,4})\s*(?:/\s*\d{1,4}|★)`)
	setTokenRE     = regexp.MustCompile(`\b([A-Z][A-Z0-9]{2,4})\b`)
)

// Set-code confidence tiers: a token confirmed against the known-code
// alphabet ranks above a shape-only match.
const (
	confidenceKnownCode = 0.9
	confidenceShapeOnly = 0.5
)

// tokens that satisfy the shape but are common English words, skipped when
// no known-code alphabet is available to confirm against.
var setCodeStopwords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "YOU": true,
	"ART": true, "NOT": true, "ALL": true, "ANY": true,
}

// DetectSetCode scans lines bottom-up for a collector-line set code. Known
// is an optional alphabet of valid codes; when present it both confirms
// candidates (high confidence) and rejects tokens outside it. A nil return
// is a normal outcome, not an error.
func DetectSetCode(text NormalizedText, known map[string]bool) *SetCodeCandidate {
	var best *SetCodeCandidate
	for i := len(text.Lines) - 1; i >= 0; i-- {
		line := text.Lines[i]
		numM := collectorNumRE.FindStringSubmatchIndex(line.Upper)
		if numM == nil {
			continue
		}
		collector := strings.TrimLeft(line.Upper[numM[2]:numM[3]], "0")
		if collector == "" {
			collector = "0"
		}
		for _, tok := range setTokenRE.FindAllStringSubmatch(line.Upper, -1) {
			code := tok[1]
			conf := confidenceShapeOnly
			if known != nil {
				if !known[code] {
					continue
				}
				conf = confidenceKnownCode
			} else if setCodeStopwords[code] {
				continue
			}
			cand := &SetCodeCandidate{
				Code:            code,
				Confidence:      conf,
				Line:            line.Index,
				CollectorNumber: collector,
			}
			// Bottom-most wins; a more confident candidate on a higher
			// line only replaces a weaker one.
			if best == nil || cand.Confidence > best.Confidence {
				best = cand
			}
		}
		if best != nil && best.Confidence >= confidenceKnownCode {
			break
		}
	}
	return best
}
