package main

import (
	"flag"
	"fmt"
	"os"

	"cardscan/process/rescan"
)

func main() {
	base := flag.String("base", ".", "base directory containing the public/ uploads tree")
	dry := flag.Bool("dry-run", true, "dry-run: don't write to DB")
	minConf := flag.Float64("min-conf", 0.12, "minimum identification confidence to accept")
	flag.Parse()

	if os.Getenv("DB_DSN") == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export and retry")
		os.Exit(2)
	}

	if err := rescan.Run(*base, *dry, *minConf); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}
