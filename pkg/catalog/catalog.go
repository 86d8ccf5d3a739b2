package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	scryfall "github.com/BlueMonday/go-scryfall"
	gocache "github.com/patrickmn/go-cache"

	"cardscan/pkg/recognize"
)

// Cache lifetimes. Set codes change a handful of times a year; card lookups
// only need to survive bursts of scans of the same card.
const (
	setCacheTTL   = time.Hour
	cardCacheTTL  = 10 * time.Minute
	cacheSweepTTL = 30 * time.Minute
)

const defaultHTTPTimeout = 15 * time.Second

// Client resolves card names and printings against the Scryfall API and
// implements recognize.Catalog. Responses are converted to typed records at
// this boundary; callers never see wire types.
type Client struct {
	sf    *scryfall.Client
	cache *gocache.Cache
}

// NewClient builds a catalog client with its own request timeout and cache.
func NewClient() (*Client, error) {
	sf, err := scryfall.NewClient(scryfall.WithHTTPClient(&http.Client{Timeout: defaultHTTPTimeout}))
	if err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	return &Client{
		sf:    sf,
		cache: gocache.New(cardCacheTTL, cacheSweepTTL),
	}, nil
}

// SearchByName runs a fuzzy name search and returns the matching cards
// without their printings. An unknown name is an empty result, not an
// error.
func (c *Client) SearchByName(ctx context.Context, name string) ([]recognize.CardRecord, error) {
	key := "name:" + strings.ToLower(name)
	if hit, ok := c.cache.Get(key); ok {
		return hit.([]recognize.CardRecord), nil
	}
	resp, err := c.sf.SearchCards(ctx, name, scryfall.SearchCardsOptions{
		Unique: scryfall.UniqueModeCards,
	})
	if err != nil {
		if isNotFound(err) {
			c.cache.Set(key, []recognize.CardRecord(nil), cardCacheTTL)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: search %q: %v", recognize.ErrFetch, name, err)
	}
	cards := make([]recognize.CardRecord, 0, len(resp.Cards))
	for i := range resp.Cards {
		cards = append(cards, cardRecord(&resp.Cards[i]))
	}
	c.cache.Set(key, cards, cardCacheTTL)
	return cards, nil
}

// SearchByNameAndSet asks for the card by exact-ish name within one set.
// A (nil, nil) return means the pair does not exist in the catalog; only
// transport-level trouble is an error.
func (c *Client) SearchByNameAndSet(ctx context.Context, name, setCode string) (*recognize.CardRecord, error) {
	key := "pair:" + strings.ToLower(setCode) + ":" + strings.ToLower(name)
	if hit, ok := c.cache.Get(key); ok {
		if hit == nil {
			return nil, nil
		}
		card := hit.(recognize.CardRecord)
		return &card, nil
	}
	sc, err := c.sf.GetCardByName(ctx, name, false, scryfall.GetCardByNameOptions{
		Set: strings.ToLower(setCode),
	})
	if err != nil {
		if isNotFound(err) {
			c.cache.Set(key, nil, cardCacheTTL)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: lookup %q in %s: %v", recognize.ErrFetch, name, setCode, err)
	}
	card := cardRecord(&sc)
	card.Printings = []recognize.PrintingRecord{printingRecord(&sc, c.setReleases(ctx))}
	c.cache.Set(key, card, cardCacheTTL)
	return &card, nil
}

// Printings lists every printing of a card, newest first.
func (c *Client) Printings(ctx context.Context, oracleID string) ([]recognize.PrintingRecord, error) {
	key := "prints:" + oracleID
	if hit, ok := c.cache.Get(key); ok {
		return hit.([]recognize.PrintingRecord), nil
	}
	released := c.setReleases(ctx)
	var out []recognize.PrintingRecord
	for page := 1; ; page++ {
		resp, err := c.sf.SearchCards(ctx, "oracleid:"+oracleID, scryfall.SearchCardsOptions{
			Unique: scryfall.UniqueModePrints,
			Order:  scryfall.OrderSet,
			Page:   page,
		})
		if err != nil {
			if isNotFound(err) {
				break
			}
			return nil, fmt.Errorf("%w: printings of %s: %v", recognize.ErrFetch, oracleID, err)
		}
		for i := range resp.Cards {
			out = append(out, printingRecord(&resp.Cards[i], released))
		}
		if !resp.HasMore {
			break
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].ReleasedAt.After(out[b].ReleasedAt)
	})
	c.cache.Set(key, out, cardCacheTTL)
	return out, nil
}

// setInfo is the cached shape of the set list: the code alphabet plus each
// set's release date, which also dates the printings in that set.
type setInfo struct {
	codes    map[string]bool
	released map[string]time.Time
}

func (c *Client) fetchSetInfo(ctx context.Context) (*setInfo, error) {
	const key = "sets"
	if hit, ok := c.cache.Get(key); ok {
		return hit.(*setInfo), nil
	}
	sets, err := c.sf.ListSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list sets: %v", recognize.ErrFetch, err)
	}
	info := &setInfo{
		codes:    make(map[string]bool, len(sets)),
		released: make(map[string]time.Time, len(sets)),
	}
	for _, s := range sets {
		code := strings.ToUpper(s.Code)
		info.codes[code] = true
		if s.ReleasedAt != nil {
			info.released[code] = s.ReleasedAt.Time
		}
	}
	c.cache.Set(key, info, setCacheTTL)
	return info, nil
}

// SetCodes returns the alphabet of known set codes, uppercased, cached for
// an hour.
func (c *Client) SetCodes(ctx context.Context) (map[string]bool, error) {
	info, err := c.fetchSetInfo(ctx)
	if err != nil {
		return nil, err
	}
	return info.codes, nil
}

// setReleases is best-effort: without the set list printings just carry
// zero release dates, which only weakens tie-breaking.
func (c *Client) setReleases(ctx context.Context) map[string]time.Time {
	info, err := c.fetchSetInfo(ctx)
	if err != nil {
		log.Printf("catalog: set release dates unavailable: %v", err)
		return nil
	}
	return info.released
}

// cardRecord converts a wire card without printings; those load lazily.
func cardRecord(sc *scryfall.Card) recognize.CardRecord {
	return recognize.CardRecord{
		Name:     sc.Name,
		OracleID: sc.OracleID,
	}
}

func printingRecord(sc *scryfall.Card, released map[string]time.Time) recognize.PrintingRecord {
	code := strings.ToUpper(sc.Set)
	return recognize.PrintingRecord{
		ID:              sc.ID,
		SetCode:         code,
		SetName:         sc.SetName,
		CollectorNumber: sc.CollectorNumber,
		Rarity:          sc.Rarity,
		ReleasedAt:      released[code],
		ImageURL:        imageURL(sc),
	}
}

// imageURL picks a reasonably sized face image; double-faced cards use the
// front face.
func imageURL(sc *scryfall.Card) string {
	var uris scryfall.ImageURIs
	switch {
	case sc.ImageURIs != nil:
		uris = *sc.ImageURIs
	case len(sc.CardFaces) > 0:
		uris = sc.CardFaces[0].ImageURIs
	default:
		return ""
	}
	if uris.Normal != "" {
		return uris.Normal
	}
	return uris.Small
}

func isNotFound(err error) bool {
	var se *scryfall.Error
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}
