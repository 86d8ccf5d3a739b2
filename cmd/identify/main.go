package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/disintegration/imaging"

	"cardscan/pkg/catalog"
	"cardscan/pkg/ocr"
	"cardscan/pkg/recognize"
)

// identify resolves a card from a photo or a typed name and prints the
// result, no database involved.
func main() {
	imagePath := flag.String("image", "", "path to a card photo")
	name := flag.String("name", "", "card name to resolve instead of a photo")
	asJSON := flag.Bool("json", false, "print the result as JSON")
	allVersions := flag.Bool("all-versions", false, "list every printing of the matched card")
	flag.Parse()

	if (*imagePath == "") == (*name == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -image or -name is required")
		os.Exit(2)
	}

	client, err := catalog.NewClient()
	if err != nil {
		log.Fatalf("catalog client: %v", err)
	}
	cfg := recognize.DefaultConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if codes, err := client.SetCodes(ctx); err != nil {
		log.Printf("set alphabet unavailable, detector runs shape-only: %v", err)
	} else {
		cfg.KnownSets = codes
	}
	cancel()
	pipe := recognize.New(client, catalog.NewImageFetcher(nil), cfg)

	runCtx, runCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer runCancel()

	var res recognize.ResolutionResult
	if *name != "" {
		res = pipe.IdentifyName(runCtx, *name, nil)
	} else {
		text, err := ocr.ExtractCardText(*imagePath)
		if err != nil {
			log.Fatalf("ocr: %v", err)
		}
		img, err := imaging.Open(*imagePath)
		if err != nil {
			log.Fatalf("open image: %v", err)
		}
		res, err = pipe.Identify(runCtx, text.Text, img)
		if err != nil {
			log.Fatalf("identify: %v", err)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	if !res.Matched {
		fmt.Println("unresolved")
		os.Exit(1)
	}
	fmt.Printf("%s  (%s, confidence %.2f)\n", res.Card.Name, res.Method, res.Confidence)
	if res.Printing != nil {
		fmt.Printf("  printing: %s %s #%s (%s)\n",
			res.Printing.SetCode, res.Printing.SetName,
			res.Printing.CollectorNumber, res.Printing.ReleasedAt.Format("2006-01-02"))
	}
	if *allVersions {
		printings := res.Card.Printings
		if len(printings) == 0 {
			prs, err := client.Printings(runCtx, res.Card.OracleID)
			if err != nil {
				log.Fatalf("printings: %v", err)
			}
			printings = prs
		}
		fmt.Printf("  %d printings:\n", len(printings))
		for _, pr := range printings {
			fmt.Printf("    %s #%-6s %-10s %s\n",
				pr.SetCode, pr.CollectorNumber, pr.Rarity, pr.ReleasedAt.Format("2006-01-02"))
		}
	}
}
