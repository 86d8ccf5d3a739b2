package recognize

import (
	"context"
	"image"
	"log"
	"strings"
)

// resolve walks the fallback ladder: exact name+set lookup, then fuzzy name
// search across the candidate sequence, then printing selection with set
// filtering or image disambiguation. Every step is deterministic for a
// given candidate sequence and catalog responses, and no step fabricates a
// result: an unresolved card is a terminal value.
func (p *Pipeline) resolve(ctx context.Context, names []NameCandidate, set *SetCodeCandidate, img image.Image) ResolutionResult {
	if len(names) == 0 {
		return unresolved()
	}

	// Step 1: exact (name, set) pair. A miss here, including a detected
	// code the catalog has never heard of, just falls through the ladder.
	if set != nil {
		card, err := p.catalog.SearchByNameAndSet(ctx, names[0].Text, set.Code)
		switch {
		case err != nil:
			log.Printf("resolve: exact lookup %q/%s failed: %v", names[0].Text, set.Code, err)
		case card != nil:
			pr := pickPrinting(card.Printings, set.CollectorNumber)
			return ResolutionResult{
				Matched:      true,
				Card:         card,
				Printing:     pr,
				Confidence:   1.0,
				Method:       MethodExact,
				NameUsed:     names[0].Text,
				HashDistance: -1,
			}
		}
	}

	// Steps 2-3: fuzzy name search across the candidate sequence until one
	// name resolves to a single card.
	attempts := len(names)
	if p.cfg.MaxAttempts > 0 && p.cfg.MaxAttempts < attempts {
		attempts = p.cfg.MaxAttempts
	}
	var card *CardRecord
	var used NameCandidate
	for i := 0; i < attempts; i++ {
		if i > 0 && names[i].Score < p.cfg.MinNameScore {
			// below the usability floor; the top candidate is always tried
			continue
		}
		cards, err := p.catalog.SearchByName(ctx, names[i].Text)
		if err != nil {
			log.Printf("resolve: name search %q failed: %v", names[i].Text, err)
			continue
		}
		switch {
		case len(cards) == 1:
			card = &cards[0]
		case len(cards) > 1:
			// Multiple hits are only decisive when exactly one card name
			// equals the hypothesis under confusable folding.
			card = soleExactMatch(cards, names[i].Text)
		}
		if card != nil {
			used = names[i]
			break
		}
	}
	if card == nil {
		return unresolved()
	}

	res := ResolutionResult{
		Matched:      true,
		Card:         card,
		Confidence:   used.Score,
		Method:       MethodFuzzy,
		NameUsed:     used.Text,
		HashDistance: -1,
	}

	printings := card.Printings
	if len(printings) == 0 {
		prs, err := p.catalog.Printings(ctx, card.OracleID)
		if err != nil {
			// The card identity stands; only the printing is unknown.
			log.Printf("resolve: printings for %q failed: %v", card.Name, err)
			return res
		}
		printings = prs
		card.Printings = prs
	}
	if len(printings) == 0 {
		return res
	}

	// Step 4: narrow by set code if one was detected, otherwise hand off
	// to image disambiguation when several printings remain.
	setConfirmed := false
	if set != nil {
		if filtered := filterBySet(printings, set.Code); len(filtered) > 0 {
			printings = filtered
			setConfirmed = true
		}
	}
	switch {
	case setConfirmed:
		res.Method = MethodSetFiltered
		res.Printing = pickPrinting(printings, set.CollectorNumber)
	case len(printings) > 1 && img != nil && p.fetcher != nil:
		pr, dist, excluded := p.disambiguate(ctx, img, printings)
		res.ExcludedPrintings = excluded
		if pr != nil {
			res.Printing = pr
			res.HashDistance = dist
			res.Method = MethodImage
			res.Confidence = 1.0 - float64(dist)/float64(HashBits)
		} else {
			// every candidate image failed to fetch: fall back to the
			// catalog default, method unchanged
			res.Printing = &printings[0]
		}
	default:
		res.Printing = &printings[0]
	}
	return res
}

func unresolved() ResolutionResult {
	return ResolutionResult{Method: MethodUnresolved, HashDistance: -1}
}

// soleExactMatch returns the single card whose name equals the hypothesis
// under case/confusable folding, or nil when zero or several do.
func soleExactMatch(cards []CardRecord, name string) *CardRecord {
	var found *CardRecord
	for i := range cards {
		if NamesEqualFold(cards[i].Name, name) {
			if found != nil {
				return nil
			}
			found = &cards[i]
		}
	}
	return found
}

func filterBySet(printings []PrintingRecord, setCode string) []PrintingRecord {
	var out []PrintingRecord
	for _, pr := range printings {
		if strings.EqualFold(pr.SetCode, setCode) {
			out = append(out, pr)
		}
	}
	return out
}

// pickPrinting prefers the printing matching the detected collector number
// (leading zeros ignored), defaulting to the most recent one.
func pickPrinting(printings []PrintingRecord, collectorNumber string) *PrintingRecord {
	if len(printings) == 0 {
		return nil
	}
	if collectorNumber != "" {
		want := strings.TrimLeft(collectorNumber, "0")
		if want == "" {
			want = "0"
		}
		for i := range printings {
			have := strings.TrimLeft(printings[i].CollectorNumber, "0")
			if have == "" {
				have = "0"
			}
			if strings.EqualFold(have, want) {
				return &printings[i]
			}
		}
	}
	return &printings[0]
}
