package recognize

import (
	"context"
	"image"
)

// Catalog is the card-catalog collaborator. Implementations must return
// typed records validated at the boundary; a clean miss is (nil/empty, nil)
// while transport or malformed-response failures are errors wrapping
// ErrFetch. The pipeline never mutates returned records.
type Catalog interface {
	// SearchByName performs a fuzzy name search and returns the distinct
	// cards matching it, without printings populated.
	SearchByName(ctx context.Context, name string) ([]CardRecord, error)

	// SearchByNameAndSet looks up the exact (name, set code) pair. A nil
	// record with nil error means the pair does not exist.
	SearchByNameAndSet(ctx context.Context, name, setCode string) (*CardRecord, error)

	// Printings returns all printings of a card ordered most recent first.
	Printings(ctx context.Context, oracleID string) ([]PrintingRecord, error)
}

// ImageFetcher retrieves a printing's reference image for hash comparison.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (image.Image, error)
}
