package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"cardscan/pkg/catalog"
	"cardscan/pkg/recognize"
)

var pipe *recognize.Pipeline

// initPipeline wires the catalog client and image fetcher into the
// identification pipeline. The known set-code alphabet is fetched once at
// startup; when that fails the detector just runs shape-only.
func initPipeline() error {
	client, err := catalog.NewClient()
	if err != nil {
		return err
	}
	cfg := recognize.DefaultConfig()
	if v := os.Getenv("FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchConcurrency = n
		}
	}
	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchTimeout = time.Duration(n) * time.Second
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if codes, err := client.SetCodes(ctx); err != nil {
		log.Printf("set alphabet unavailable, detector runs shape-only: %v", err)
	} else {
		cfg.KnownSets = codes
		log.Printf("loaded %d set codes", len(codes))
	}

	pipe = recognize.New(client, catalog.NewImageFetcher(nil), cfg)
	return nil
}
