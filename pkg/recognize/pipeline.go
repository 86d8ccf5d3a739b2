package recognize

import (
	"context"
	"image"
	"time"
)

// Defaults for Config zero values.
const (
	defaultMinLineLen       = 2
	defaultMaxNameLines     = 3
	defaultFetchConcurrency = 8
	defaultFetchTimeout     = 10 * time.Second
	// 2% of the hash bit length
	defaultTieEpsilonBits = HashBits / 50
)

// Config carries all tunables for one pipeline instance. A zero Config is
// usable; DefaultConfig spells the defaults out.
type Config struct {
	// MinLineLen drops cleaned lines shorter than this many runes.
	MinLineLen int
	// MaxNameLines bounds how many leading lines become name hypotheses.
	MaxNameLines int
	// MaxAttempts caps catalog lookups across the candidate sequence;
	// 0 means try every candidate.
	MaxAttempts int
	// MinNameScore is the usability floor: fallback candidates scoring
	// below it are skipped during fuzzy search. The top candidate is
	// always tried.
	MinNameScore float64
	// TieEpsilonBits treats hash distances within this many bits as ties.
	TieEpsilonBits int
	// FetchConcurrency bounds parallel reference-image fetches.
	FetchConcurrency int
	// FetchTimeout applies independently to each reference-image fetch.
	FetchTimeout time.Duration
	// KnownSets, when non-nil, is the alphabet of valid set codes used to
	// confirm detector candidates.
	KnownSets map[string]bool
}

// DefaultConfig returns the standard pipeline tuning.
func DefaultConfig() Config {
	return Config{
		MinLineLen:       defaultMinLineLen,
		MaxNameLines:     defaultMaxNameLines,
		MinNameScore:     0.05,
		TieEpsilonBits:   defaultTieEpsilonBits,
		FetchConcurrency: defaultFetchConcurrency,
		FetchTimeout:     defaultFetchTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinLineLen <= 0 {
		c.MinLineLen = d.MinLineLen
	}
	if c.MaxNameLines <= 0 {
		c.MaxNameLines = d.MaxNameLines
	}
	if c.MinNameScore <= 0 {
		c.MinNameScore = d.MinNameScore
	}
	if c.TieEpsilonBits <= 0 {
		c.TieEpsilonBits = d.TieEpsilonBits
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = d.FetchConcurrency
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	return c
}

// Pipeline identifies a card's catalog record from raw OCR text and the
// uploaded photo. One instance is safe for concurrent use: it holds no
// per-request state, and everything shared within a request is read-only
// after creation.
type Pipeline struct {
	cfg     Config
	catalog Catalog
	fetcher ImageFetcher
}

// New builds a pipeline around the given collaborators. fetcher may be nil
// when no image disambiguation is wanted.
func New(catalog Catalog, fetcher ImageFetcher, cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg.withDefaults(), catalog: catalog, fetcher: fetcher}
}

// Identify runs the full pipeline: normalize, detect the set code, generate
// name hypotheses, resolve against the catalog, and disambiguate printings
// by image when needed. img may be nil when no photo is available. The only
// error is ErrEmptyInput; an unresolved card is a normal result, not an
// error.
func (p *Pipeline) Identify(ctx context.Context, rawText string, img image.Image) (ResolutionResult, error) {
	text, err := NormalizeText(rawText, p.cfg.MinLineLen)
	if err != nil {
		return ResolutionResult{}, err
	}
	setCand := DetectSetCode(text, p.cfg.KnownSets)
	names := GenerateNameCandidates(text, p.cfg.MaxNameLines)
	return p.resolve(ctx, names, setCand, img), nil
}

// IdentifyName resolves a card from an already-known name, optionally using
// an image to pick among printings.
func (p *Pipeline) IdentifyName(ctx context.Context, name string, img image.Image) ResolutionResult {
	names := []NameCandidate{{Text: name, Score: 1.0}}
	return p.resolve(ctx, names, nil, img)
}
