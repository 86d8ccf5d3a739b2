package recognize

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

// fakeCatalog serves canned cards keyed by folded name. exactMiss forces
// SearchByNameAndSet to miss, failExact/failSearch simulate transient
// catalog failures.
type fakeCatalog struct {
	cards      map[string][]CardRecord
	printings  map[string][]PrintingRecord
	exactMiss  bool
	failExact  bool
	failSearch bool

	exactCalls  int
	searchCalls int
}

func (f *fakeCatalog) SearchByName(ctx context.Context, name string) ([]CardRecord, error) {
	f.searchCalls++
	if f.failSearch {
		return nil, fmt.Errorf("%w: catalog unavailable", ErrFetch)
	}
	return f.cards[foldName(name)], nil
}

func (f *fakeCatalog) SearchByNameAndSet(ctx context.Context, name, setCode string) (*CardRecord, error) {
	f.exactCalls++
	if f.failExact {
		return nil, fmt.Errorf("%w: catalog unavailable", ErrFetch)
	}
	if f.exactMiss {
		return nil, nil
	}
	for _, c := range f.cards[foldName(name)] {
		for i := range c.Printings {
			if strings.EqualFold(c.Printings[i].SetCode, setCode) {
				card := c
				card.Printings = []PrintingRecord{c.Printings[i]}
				return &card, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeCatalog) Printings(ctx context.Context, oracleID string) ([]PrintingRecord, error) {
	return f.printings[oracleID], nil
}

func day(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func boltCatalog() *fakeCatalog {
	printings := []PrintingRecord{
		{ID: "p3", SetCode: "STA", CollectorNumber: "42", ReleasedAt: day("2021-04-23"), ImageURL: "img://p3"},
		{ID: "p2", SetCode: "M11", CollectorNumber: "149", ReleasedAt: day("2010-07-16"), ImageURL: "img://p2"},
		{ID: "p1", SetCode: "LEA", CollectorNumber: "161", ReleasedAt: day("1993-08-05"), ImageURL: "img://p1"},
	}
	bolt := CardRecord{Name: "Lightning Bolt", OracleID: "oracle-bolt", Printings: printings}
	return &fakeCatalog{
		cards: map[string][]CardRecord{
			foldName("Lightning Bolt"): {bolt},
		},
		printings: map[string][]PrintingRecord{"oracle-bolt": printings},
	}
}

func TestResolveExactNameAndSet(t *testing.T) {
	cat := boltCatalog()
	p := New(cat, nil, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant\nSTA 42/63", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Matched || res.Method != MethodExact {
		t.Fatalf("expected exact match, got %+v", res)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("exact match confidence %v", res.Confidence)
	}
	if res.Printing == nil || res.Printing.ID != "p3" {
		t.Fatalf("expected printing p3, got %+v", res.Printing)
	}
	if res.NameUsed != "Lightning Bolt" {
		t.Fatalf("wrong name used: %q", res.NameUsed)
	}
}

func TestResolveFuzzySingleMatch(t *testing.T) {
	cat := boltCatalog()
	p := New(cat, nil, Config{})
	// no set line, one catalog hit: fuzzy match, newest printing default
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Matched || res.Method != MethodFuzzy {
		t.Fatalf("expected fuzzy match, got %+v", res)
	}
	if res.Printing == nil || res.Printing.ID != "p3" {
		t.Fatalf("expected default printing p3, got %+v", res.Printing)
	}
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", res.Confidence)
	}
}

func TestResolveUnknownSetCodeFallsThrough(t *testing.T) {
	cat := boltCatalog()
	cat.exactMiss = true
	p := New(cat, nil, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant\nZZZ 42/63", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.exactCalls != 1 {
		t.Fatalf("exact step not attempted")
	}
	if !res.Matched || res.Method != MethodFuzzy {
		t.Fatalf("expected fall-through to fuzzy, got %+v", res)
	}
}

func TestResolveExactErrorFallsThrough(t *testing.T) {
	cat := boltCatalog()
	cat.failExact = true
	p := New(cat, nil, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant\nSTA 42/63", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Matched {
		t.Fatalf("transient exact failure should not abort resolution: %+v", res)
	}
}

func TestResolveSetFilteredPrinting(t *testing.T) {
	cat := boltCatalog()
	cat.exactMiss = true
	p := New(cat, nil, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant\nM11 149/249", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodSetFiltered {
		t.Fatalf("expected set-filtered method, got %+v", res)
	}
	if res.Printing == nil || res.Printing.ID != "p2" {
		t.Fatalf("expected printing p2, got %+v", res.Printing)
	}
}

func TestResolveRetriesNextCandidate(t *testing.T) {
	cat := boltCatalog()
	p := New(cat, nil, Config{})
	// first line misses the catalog entirely, second line resolves
	res, err := p.Identify(context.Background(), "Mumbled Garbage Line\nLightning Bolt", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Matched {
		t.Fatalf("expected second candidate to resolve: %+v", res)
	}
	if res.NameUsed != "Lightning Bolt" {
		t.Fatalf("wrong candidate used: %q", res.NameUsed)
	}
	if cat.searchCalls < 2 {
		t.Fatalf("expected at least two search attempts, got %d", cat.searchCalls)
	}
}

func TestResolveAttachesLazyPrintings(t *testing.T) {
	cat := boltCatalog()
	// strip the search results down to bare cards so printings must be
	// fetched separately, as the live catalog serves them
	for k, cards := range cat.cards {
		for i := range cards {
			cards[i].Printings = nil
		}
		cat.cards[k] = cards
	}
	p := New(cat, nil, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Matched || res.Card == nil {
		t.Fatalf("expected a match, got %+v", res)
	}
	if len(res.Card.Printings) != 3 {
		t.Fatalf("expected card to carry its 3 printings, got %d", len(res.Card.Printings))
	}
	if res.Printing == nil || res.Printing.ID != "p3" {
		t.Fatalf("expected default printing p3, got %+v", res.Printing)
	}
}

func TestResolveSkipsCandidatesBelowFloor(t *testing.T) {
	cat := boltCatalog()
	p := New(cat, nil, Config{MinNameScore: 0.99})
	// with the floor this high only the top candidate is ever searched
	res, err := p.Identify(context.Background(), "Mumbled Garbage Line\nLightning Bolt", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Matched {
		t.Fatalf("expected unresolved, got %+v", res)
	}
	if cat.searchCalls != 1 {
		t.Fatalf("expected a single search attempt, got %d", cat.searchCalls)
	}
}

func TestResolveAmbiguousMultipleCards(t *testing.T) {
	cat := boltCatalog()
	fold := foldName("Lightning Bolt")
	cat.cards[fold] = append(cat.cards[fold],
		CardRecord{Name: "Lightning Bolt Sculpture", OracleID: "oracle-other"})
	p := New(cat, nil, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// two hits but only one exact fold-equal name: still decisive
	if !res.Matched || res.Card.OracleID != "oracle-bolt" {
		t.Fatalf("expected sole exact match to win: %+v", res)
	}
}

func TestResolveUnresolvedIsValueNotError(t *testing.T) {
	cat := &fakeCatalog{cards: map[string][]CardRecord{}}
	p := New(cat, nil, Config{})
	res, err := p.Identify(context.Background(), "q3$#fa\nzxlkj asdf", nil)
	if err != nil {
		t.Fatalf("unresolved must not be an error: %v", err)
	}
	if res.Matched || res.Method != MethodUnresolved {
		t.Fatalf("expected unresolved value, got %+v", res)
	}
	if res.Card != nil || res.Printing != nil {
		t.Fatalf("unresolved result carries card data: %+v", res)
	}
}

func TestResolveSearchFailureExhaustsToUnresolved(t *testing.T) {
	cat := boltCatalog()
	cat.failSearch = true
	p := New(cat, nil, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Matched || res.Method != MethodUnresolved {
		t.Fatalf("expected unresolved after transient failures, got %+v", res)
	}
}

func TestIdentifyEmptyInput(t *testing.T) {
	p := New(boltCatalog(), nil, Config{})
	_, err := p.Identify(context.Background(), "  \n \n", nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput got %v", err)
	}
}

func TestIdentifyDeterministic(t *testing.T) {
	raw := "Lightning Bolt\nInstant\nM11 149/249"
	first, err := New(boltCatalog(), nil, Config{}).Identify(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := New(boltCatalog(), nil, Config{}).Identify(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical runs diverged:\n%+v\n%+v", first, second)
	}
}

func TestIdentifyNameExactConfidence(t *testing.T) {
	p := New(boltCatalog(), nil, Config{})
	res := p.IdentifyName(context.Background(), "Lightning Bolt", nil)
	if !res.Matched || res.Confidence != 1.0 {
		t.Fatalf("expected full-confidence name match, got %+v", res)
	}
}
