package recognize

import (
	"context"
	"image"
	"log"

	"golang.org/x/sync/errgroup"
)

// disambiguate picks the printing whose reference image is perceptually
// closest to the uploaded photo. Fetch-and-hash runs per candidate on a
// bounded pool; a failed or timed-out fetch excludes only that candidate.
// Returns (nil, 0, n) when all n candidates were excluded.
func (p *Pipeline) disambiguate(ctx context.Context, img image.Image, printings []PrintingRecord) (*PrintingRecord, int, int) {
	target := AverageHash(img)

	type outcome struct {
		dist     int
		excluded bool
	}
	results := make([]outcome, len(printings))

	g, gctx := errgroup.WithContext(ctx)
	limit := p.cfg.FetchConcurrency
	if len(printings) < limit {
		limit = len(printings)
	}
	g.SetLimit(limit)
	for i := range printings {
		i := i
		g.Go(func() error {
			pr := printings[i]
			if pr.ImageURL == "" {
				results[i] = outcome{excluded: true}
				return nil
			}
			fctx, cancel := context.WithTimeout(gctx, p.cfg.FetchTimeout)
			defer cancel()
			ref, err := p.fetcher.FetchImage(fctx, pr.ImageURL)
			if err != nil {
				log.Printf("disambiguate: fetch %s (%s) failed: %v", pr.ID, pr.SetCode, err)
				results[i] = outcome{excluded: true}
				return nil
			}
			results[i] = outcome{dist: target.Distance(AverageHash(ref))}
			return nil
		})
	}
	// goroutines never return errors; exclusion is per candidate
	_ = g.Wait()

	best := -1
	excluded := 0
	for i, r := range results {
		if r.excluded {
			excluded++
			continue
		}
		if best == -1 || r.dist < results[best].dist {
			best = i
		}
	}
	if best == -1 {
		return nil, 0, excluded
	}

	// Candidates within epsilon bits of the minimum distance count as
	// ties. Measuring against the minimum, not the running best, keeps
	// the winner inside one epsilon band regardless of scan order.
	min := results[best].dist
	for i, r := range results {
		if r.excluded || i == best {
			continue
		}
		if r.dist-min <= p.cfg.TieEpsilonBits && preferPrinting(printings[i], printings[best]) {
			best = i
		}
	}
	return &printings[best], results[best].dist, excluded
}

// preferPrinting reports whether tied candidate b should replace a: the
// more recent release wins, then the smaller printing id for determinism.
func preferPrinting(b, a PrintingRecord) bool {
	if !a.ReleasedAt.Equal(b.ReleasedAt) {
		return b.ReleasedAt.After(a.ReleasedAt)
	}
	return b.ID < a.ID
}
