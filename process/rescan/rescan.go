package rescan

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cardscan/models"
	"cardscan/pkg/catalog"
	"cardscan/pkg/ocr"
	"cardscan/pkg/recognize"
)

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return gdb
}

// Run re-identifies failed or unmatched scans whose files live under baseDir.
// If dry is true, only prints proposed changes.
func Run(baseDir string, dry bool, minConf float64) error {
	gdb := mustDBFromEnv()

	client, err := catalog.NewClient()
	if err != nil {
		return fmt.Errorf("catalog client: %w", err)
	}
	cfg := recognize.DefaultConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if codes, err := client.SetCodes(ctx); err == nil {
		cfg.KnownSets = codes
	}
	cancel()
	pipe := recognize.New(client, catalog.NewImageFetcher(nil), cfg)

	var scans []models.Scan
	if err := gdb.Where("matched = ? OR failed = ?", false, true).Find(&scans).Error; err != nil {
		return fmt.Errorf("load scans: %w", err)
	}
	log.Printf("rescanning %d unmatched/failed scans", len(scans))

	for i := range scans {
		scan := &scans[i]
		// StorePath is public-relative (public/cards/x.jpg); files live under baseDir
		rel := strings.TrimPrefix(scan.StorePath, "public/")
		full := filepath.Join(baseDir, rel)
		if _, err := os.Stat(full); err != nil {
			log.Printf("skip %s: file missing: %v", scan.FileName, err)
			continue
		}
		text, err := ocr.ExtractCardText(full)
		if err != nil {
			log.Printf("ocr error %s: %v", scan.FileName, err)
			continue
		}
		img, err := imaging.Open(full)
		if err != nil {
			img = nil
		}
		ictx, icancel := context.WithTimeout(context.Background(), 2*time.Minute)
		res, err := pipe.Identify(ictx, text.Text, img)
		icancel()
		if err != nil {
			log.Printf("identify error %s: %v", scan.FileName, err)
			continue
		}
		if !res.Matched || res.Confidence < minConf {
			log.Printf("still unresolved %s method=%s conf=%.2f", scan.FileName, res.Method, res.Confidence)
			continue
		}
		if dry {
			log.Printf("DRY would update scan id=%d -> %q (%s, conf=%.2f)",
				scan.ID, res.Card.Name, res.Method, res.Confidence)
			continue
		}
		scan.Matched = true
		scan.Failed = false
		scan.FailedReason = ""
		scan.Method = string(res.Method)
		scan.Confidence = res.Confidence
		scan.CardName = res.Card.Name
		scan.OracleID = res.Card.OracleID
		if res.Printing != nil {
			scan.PrintingID = res.Printing.ID
			scan.SetCode = res.Printing.SetCode
			scan.CollectorNumber = res.Printing.CollectorNumber
		}
		if err := gdb.Save(scan).Error; err != nil {
			log.Printf("save scan %d: %v", scan.ID, err)
			continue
		}
		log.Printf("updated scan id=%d -> %q (%s, conf=%.2f)",
			scan.ID, res.Card.Name, res.Method, res.Confidence)
	}
	return nil
}
