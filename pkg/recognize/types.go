package recognize

import "time"

// Method describes how a resolution was reached.
type Method string

const (
	MethodExact       Method = "EXACT"
	MethodFuzzy       Method = "FUZZY"
	MethodSetFiltered Method = "SET_FILTERED"
	MethodImage       Method = "IMAGE_DISAMBIGUATED"
	MethodUnresolved  Method = "UNRESOLVED"
)

// Line is one cleaned line of recognized card text. Upper is the upper-cased
// copy used for set-code scanning; Text preserves the original casing for
// name matching. Ambiguous marks lines containing characters OCR commonly
// confuses (0/O, 1/I/l, 5/S) so comparisons can fold them.
type Line struct {
	Text      string
	Upper     string
	Index     int
	Ambiguous bool
}

// NormalizedText is the cleaned, ordered line sequence produced from raw OCR
// output. Treat as read-only once built.
type NormalizedText struct {
	Lines []Line
}

// Empty reports whether no usable lines survived cleaning.
func (n NormalizedText) Empty() bool { return len(n.Lines) == 0 }

// SetCodeCandidate is a collector-line set code found in the text.
// CollectorNumber carries the adjacent collector number (e.g. "142" from
// "142/281") when one was part of the match; it is used to pin an exact
// printing within a set.
type SetCodeCandidate struct {
	Code            string
	Confidence      float64
	Line            int
	CollectorNumber string
}

// NameCandidate is a card-name hypothesis taken from one line of text.
// Scores are comparable only within a single run.
type NameCandidate struct {
	Text  string
	Score float64
	Line  int
}

// PrintingRecord is a single edition of a card as reported by the catalog.
type PrintingRecord struct {
	ID              string
	SetCode         string
	SetName         string
	CollectorNumber string
	Rarity          string
	ReleasedAt      time.Time
	ImageURL        string
}

// CardRecord is a catalog card identity. Printings, when populated, are
// ordered most recently released first (the catalog's default printing is
// Printings[0]).
type CardRecord struct {
	Name      string
	OracleID  string
	Printings []PrintingRecord
}

// ResolutionResult is the single output of one identification request.
// HashDistance is -1 unless the printing was chosen by image comparison.
type ResolutionResult struct {
	Matched           bool            `json:"matched"`
	Card              *CardRecord     `json:"card,omitempty"`
	Printing          *PrintingRecord `json:"printing,omitempty"`
	Confidence        float64         `json:"confidence"`
	Method            Method          `json:"method"`
	NameUsed          string          `json:"name_used,omitempty"`
	ExcludedPrintings int             `json:"excluded_printings,omitempty"`
	HashDistance      int             `json:"hash_distance,omitempty"`
}
