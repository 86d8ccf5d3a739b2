package ocr

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// Result is the text read off a card photo. Text is a multi-line block with
// the title hypothesis first and the collector line last, ready for the
// identification pipeline. TitleLine and CollectorLine carry the targeted
// region reads on their own for callers that want them.
type Result struct {
	Text          string
	TitleLine     string
	CollectorLine string
}

// IsAvailable reports whether the Tesseract binary is installed.
func IsAvailable() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

// ExtractCardText OCRs a card photo in three passes: the full card for
// context, the title band for the name, and the bottom strip for the
// set code and collector number. The composed block keeps the most
// name-like line on top so downstream scoring favors it.
func ExtractCardText(path string) (Result, error) {
	passes, err := runCardPasses(path)
	if err != nil {
		return Result{}, fmt.Errorf("ocr passes: %w", err)
	}

	title := firstLine(passes.title)
	collector := collectorLine(passes.collector)

	var lines []string
	if title != "" {
		lines = append(lines, title)
	}
	for _, l := range strings.Split(passes.full, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || l == title || l == collector {
			continue
		}
		lines = append(lines, l)
	}
	if collector != "" {
		lines = append(lines, collector)
	}
	if len(lines) == 0 {
		return Result{}, ErrNoText
	}

	log.Printf("ocr %s: title=%q collector=%q lines=%d", path, title, collector, len(lines))
	return Result{
		Text:          strings.Join(lines, "\n"),
		TitleLine:     title,
		CollectorLine: collector,
	}, nil
}

// firstLine returns the first non-empty line of a pass output.
func firstLine(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

// collectorLine picks the line of the bottom-strip pass that looks most
// like "SET 123/281": the one with the most digits and a separator.
func collectorLine(s string) string {
	best := ""
	bestScore := 0
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		score := 0
		for _, r := range l {
			switch {
			case r >= '0' && r <= '9':
				score += 2
			case r == '/' || r == '★':
				score += 3
			}
		}
		if score > bestScore {
			best = l
			bestScore = score
		}
	}
	return best
}
