package recognize

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeFetcher serves in-memory images by URL; URLs absent from the map fail
// with a transient error.
type fakeFetcher struct {
	images   map[string]image.Image
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	fetched  []string
}

func (f *fakeFetcher) FetchImage(ctx context.Context, url string) (image.Image, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()
	img, ok := f.images[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFetch, url)
	}
	return img, nil
}

func disambigCatalog(fetchURLs map[string]image.Image) (*fakeCatalog, *fakeFetcher) {
	return boltCatalog(), &fakeFetcher{images: fetchURLs}
}

func TestDisambiguatePicksClosestImage(t *testing.T) {
	photo := testImage(32)
	cat, fetcher := disambigCatalog(map[string]image.Image{
		"img://p1": testImage(8),
		"img://p2": testImage(56),
		"img://p3": testImage(32), // identical to the photo
	})
	p := New(cat, fetcher, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant", photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodImage {
		t.Fatalf("expected image disambiguation, got %+v", res)
	}
	if res.Printing == nil || res.Printing.ID != "p3" {
		t.Fatalf("expected printing p3, got %+v", res.Printing)
	}
	if res.HashDistance != 0 {
		t.Fatalf("expected zero hash distance, got %d", res.HashDistance)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("zero-distance confidence should be 1.0, got %v", res.Confidence)
	}
}

func TestDisambiguateExcludesFailedFetches(t *testing.T) {
	photo := testImage(32)
	// p3's reference image is unavailable; the next closest must win.
	cat, fetcher := disambigCatalog(map[string]image.Image{
		"img://p1": testImage(8),
		"img://p2": testImage(40),
	})
	p := New(cat, fetcher, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant", photo)
	if err != nil {
		t.Fatalf("a failed reference fetch must not fail resolution: %v", err)
	}
	if res.Method != MethodImage {
		t.Fatalf("expected image disambiguation, got %+v", res)
	}
	if res.ExcludedPrintings != 1 {
		t.Fatalf("expected 1 excluded printing, got %d", res.ExcludedPrintings)
	}
	if res.Printing == nil || res.Printing.ID != "p2" {
		t.Fatalf("expected printing p2, got %+v", res.Printing)
	}
}

func TestDisambiguateAllExcludedFallsBack(t *testing.T) {
	photo := testImage(32)
	cat, fetcher := disambigCatalog(nil) // every fetch fails
	p := New(cat, fetcher, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant", photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodFuzzy {
		t.Fatalf("fallback must keep the name-match method, got %v", res.Method)
	}
	if res.Printing == nil || res.Printing.ID != "p3" {
		t.Fatalf("expected catalog default p3, got %+v", res.Printing)
	}
	if res.ExcludedPrintings != 3 {
		t.Fatalf("expected 3 excluded printings, got %d", res.ExcludedPrintings)
	}
}

func TestDisambiguateTieBrokenByReleaseDate(t *testing.T) {
	photo := testImage(32)
	same := testImage(32)
	// p1 (1993) and p3 (2021) hash identically; the newer release wins.
	cat, fetcher := disambigCatalog(map[string]image.Image{
		"img://p1": same,
		"img://p3": same,
	})
	p := New(cat, fetcher, Config{})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant", photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Printing == nil || res.Printing.ID != "p3" {
		t.Fatalf("expected newest tied printing p3, got %+v", res.Printing)
	}
}

func TestDisambiguateTieBandAnchoredToMinimum(t *testing.T) {
	photo := testImage(32)
	// p1 (1993) matches exactly, p2 (2010) sits inside the tie band, and
	// p3 (2021) is a band further out. p3 must not win through a chain of
	// pairwise ties; the newest printing inside the band of the true
	// minimum does.
	cat, fetcher := disambigCatalog(map[string]image.Image{
		"img://p1": testImage(32),
		"img://p2": testImage(24),
		"img://p3": testImage(48),
	})
	p := New(cat, fetcher, Config{TieEpsilonBits: 10})
	res, err := p.Identify(context.Background(), "Lightning Bolt\nInstant", photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Printing == nil || res.Printing.ID != "p2" {
		t.Fatalf("expected p2 from the minimum's tie band, got %+v", res.Printing)
	}
	if res.HashDistance > 10 {
		t.Fatalf("winner outside the tie band of the minimum: distance %d", res.HashDistance)
	}
}

func TestDisambiguateTieBrokenByID(t *testing.T) {
	photo := testImage(32)
	same := testImage(32)
	sharedDay := day("2021-04-23")
	printings := []PrintingRecord{
		{ID: "zz-late", SetCode: "STA", ReleasedAt: sharedDay, ImageURL: "img://z"},
		{ID: "aa-early", SetCode: "STA", ReleasedAt: sharedDay, ImageURL: "img://a"},
	}
	card := CardRecord{Name: "Lightning Bolt", OracleID: "oracle-bolt", Printings: printings}
	cat := &fakeCatalog{cards: map[string][]CardRecord{foldName("Lightning Bolt"): {card}}}
	fetcher := &fakeFetcher{images: map[string]image.Image{"img://z": same, "img://a": same}}
	p := New(cat, fetcher, Config{})
	res := p.IdentifyName(context.Background(), "Lightning Bolt", photo)
	if res.Printing == nil || res.Printing.ID != "aa-early" {
		t.Fatalf("expected lexicographically smaller id, got %+v", res.Printing)
	}
}

func TestDisambiguateBoundsConcurrency(t *testing.T) {
	photo := testImage(32)
	printings := make([]PrintingRecord, 20)
	images := make(map[string]image.Image, 20)
	for i := range printings {
		url := fmt.Sprintf("img://bulk-%02d", i)
		printings[i] = PrintingRecord{
			ID:         fmt.Sprintf("bulk-%02d", i),
			SetCode:    "BLK",
			ReleasedAt: day("2020-01-01"),
			ImageURL:   url,
		}
		images[url] = testImage(32)
	}
	card := CardRecord{Name: "Bulk Card", OracleID: "oracle-bulk", Printings: printings}
	cat := &fakeCatalog{cards: map[string][]CardRecord{foldName("Bulk Card"): {card}}}
	fetcher := &fakeFetcher{images: images}
	p := New(cat, fetcher, Config{FetchConcurrency: 4})
	res := p.IdentifyName(context.Background(), "Bulk Card", photo)
	if !res.Matched || res.Printing == nil {
		t.Fatalf("expected a match, got %+v", res)
	}
	if max := fetcher.maxSeen.Load(); max > 4 {
		t.Fatalf("fetch concurrency exceeded bound: %d", max)
	}
	fetcher.mu.Lock()
	n := len(fetcher.fetched)
	fetcher.mu.Unlock()
	if n != 20 {
		t.Fatalf("expected every candidate fetched, got %d", n)
	}
}
