package catalog

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"cardscan/pkg/recognize"
)

const imageCacheTTL = time.Hour

// ImageFetcher downloads reference card images over HTTP and caches decoded
// images by URL, so repeated disambiguations of the same card skip the
// network. It implements recognize.ImageFetcher.
type ImageFetcher struct {
	client *http.Client
	cache  *gocache.Cache
}

// NewImageFetcher returns a fetcher using the given HTTP client, or a
// default one when nil. Per-request deadlines come from the caller's
// context.
func NewImageFetcher(client *http.Client) *ImageFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &ImageFetcher{
		client: client,
		cache:  gocache.New(imageCacheTTL, cacheSweepTTL),
	}
}

func (f *ImageFetcher) FetchImage(ctx context.Context, url string) (image.Image, error) {
	if hit, ok := f.cache.Get(url); ok {
		return hit.(image.Image), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request %s: %v", recognize.ErrFetch, url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", recognize.ErrFetch, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get %s: status %d", recognize.ErrFetch, url, resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", recognize.ErrFetch, url, err)
	}
	f.cache.Set(url, img, imageCacheTTL)
	return img, nil
}
