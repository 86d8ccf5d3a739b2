package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cardscan/models"
	"cardscan/pkg/catalog"
	"cardscan/pkg/ocr"
	"cardscan/pkg/recognize"
)

// Global DB handle for helper funcs
var db *gorm.DB

var pipe *recognize.Pipeline

// global flags (parsed in main)
var verbose bool

// MIME mapping to avoid opening files repeatedly
var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// preload caches
type preloadState struct {
	scansByFile map[string]*models.Scan // fileName -> scan
	mu          sync.RWMutex
}

func newPreloadState() *preloadState {
	return &preloadState{scansByFile: make(map[string]*models.Scan, 1024)}
}

func (ps *preloadState) getScan(name string) (*models.Scan, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	s, ok := ps.scansByFile[name]
	return s, ok
}
func (ps *preloadState) putScan(s *models.Scan) {
	ps.mu.Lock()
	ps.scansByFile[s.FileName] = s
	ps.mu.Unlock()
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

func mustInitPipeline() *recognize.Pipeline {
	client, err := catalog.NewClient()
	if err != nil {
		log.Fatalf("catalog client: %v", err)
	}
	cfg := recognize.DefaultConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if codes, err := client.SetCodes(ctx); err != nil {
		log.Printf("set alphabet unavailable, detector runs shape-only: %v", err)
	} else {
		cfg.KnownSets = codes
	}
	return recognize.New(client, catalog.NewImageFetcher(nil), cfg)
}

// Main: scans a directory of card photos, creates Scan rows, runs OCR and
// identification to fill them and link collection entries, optional watch mode.
func main() {
	dirFlag := flag.String("dir", "public/cards", "directory to scan for card photos")
	collectionID := flag.Uint("collection-id", 0, "Collection ID to assign scans to (if omitted attempts admin collection)")
	dryRun := flag.Bool("dry-run", false, "Skip all DB queries and writes; just list / optionally identify (see -simulate)")
	simulate := flag.Bool("simulate", false, "In dry-run: actually run OCR+identification to show results")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.Parse()

	if *dryRun {
		log.Printf("Dry-run: scanning %s (no DB interaction)", *dirFlag)
		files := listImageFiles(*dirFlag)
		log.Printf("Found %d candidate files", len(files))
		if *simulate {
			pipe = mustInitPipeline()
			for _, f := range files {
				full := filepath.Join(*dirFlag, f)
				res, err := identifyFile(full)
				if err != nil {
					logV("identify %s failed: %v", f, err)
					continue
				}
				logV("identify %s matched=%v method=%s name=%q conf=%.2f",
					f, res.Matched, res.Method, res.NameUsed, res.Confidence)
			}
		}
		return
	}

	db = mustInitDBFromEnv()
	pipe = mustInitPipeline()
	col := resolveCollection(*collectionID)
	ps := preloadAll(col)
	log.Printf("Preloaded: scans=%d", len(ps.scansByFile))

	files := listImageFiles(*dirFlag)
	log.Printf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, col, ps, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, col, ps, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// preloadAll fetches existing scans to minimize per-file queries.
func preloadAll(col models.Collection) *preloadState {
	ps := newPreloadState()
	var scans []models.Scan
	if err := db.Where("collection_id = ?", col.ID).Find(&scans).Error; err == nil {
		for i := range scans {
			s := scans[i]
			ps.scansByFile[s.FileName] = &s
		}
	}
	return ps
}

// resolveCollection finds the collection either by explicit id or by admin username.
func resolveCollection(id uint) models.Collection {
	var col models.Collection
	if id != 0 {
		if err := db.First(&col, id).Error; err != nil {
			log.Fatalf("failed to find collection id %d: %v", id, err)
		}
		return col
	}
	var admin models.User
	if err := db.Where("username = ?", "admin").First(&admin).Error; err != nil {
		log.Fatalf("no -collection-id provided and admin user not found: %v", err)
	}
	if err := db.Where("user_id = ?", admin.ID).First(&col).Error; err != nil {
		log.Fatalf("admin collection not found: %v", err)
	}
	return col
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func watchDirectory(dir string, col models.Collection, ps *preloadState, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	// Use worker pool for watch events too
	go runWorkerPool(dir, col, ps, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

func isSupportedExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := extMime[ext]
	return ok
}

func mimeFromExt(name string) string {
	return extMime[strings.ToLower(filepath.Ext(name))]
}

// worker pool orchestrator
func runWorkerPool(dir string, col models.Collection, ps *preloadState, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				processSingleFile(dir, name, col, ps)
			}
		}()
	}
	// feed initial
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		// also relay from extra channels if provided
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		// if no extraCh (scan only) close when done
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

// identifyFile runs OCR and the pipeline for one photo.
func identifyFile(path string) (recognize.ResolutionResult, error) {
	text, err := ocr.ExtractCardText(path)
	if err != nil {
		return recognize.ResolutionResult{}, err
	}
	img, err := imaging.Open(path)
	if err != nil {
		img = nil // text-only identification still possible
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return pipe.Identify(ctx, text.Text, img)
}

// processSingleFile processes a single filename using preloaded maps & minimal queries.
func processSingleFile(dir, name string, col models.Collection, ps *preloadState) {
	storePath := filepath.ToSlash(filepath.Join("public", filepath.Base(dir), name))
	filePath := filepath.Join(dir, name)

	if existing, ok := ps.getScan(name); ok && (existing.Matched || existing.Failed) {
		logV("SKIP scan already processed %s", name)
		return
	}

	scan := models.Scan{
		CollectionID: col.ID,
		FileName:     name,
		StorePath:    storePath,
		ContentType:  mimeFromExt(name),
	}
	res, err := identifyFile(filePath)
	switch {
	case err != nil:
		scan.Failed = true
		scan.FailedReason = err.Error()
	case res.Matched:
		scan.Matched = true
		scan.Method = string(res.Method)
		scan.Confidence = res.Confidence
		scan.CardName = res.Card.Name
		scan.OracleID = res.Card.OracleID
		if res.Printing != nil {
			scan.PrintingID = res.Printing.ID
			scan.SetCode = res.Printing.SetCode
			scan.CollectorNumber = res.Printing.CollectorNumber
		}
	default:
		scan.Method = string(res.Method)
	}

	if err := db.Create(&scan).Error; err != nil {
		log.Printf("ERROR create scan %s: %v", name, err)
		return
	}
	ps.putScan(&scan)
	log.Printf("NEW scan id=%d file=%s matched=%v method=%s card=%q",
		scan.ID, name, scan.Matched, scan.Method, scan.CardName)

	if !scan.Matched {
		return
	}
	// link collection entry, bumping quantity for repeats
	var entry models.CollectionEntry
	err = db.Where("collection_id = ? AND printing_id = ?", col.ID, scan.PrintingID).First(&entry).Error
	if err == nil {
		entry.Quantity++
		_ = db.Save(&entry).Error
	} else {
		entry = models.CollectionEntry{
			CollectionID:    col.ID,
			CardName:        scan.CardName,
			OracleID:        scan.OracleID,
			PrintingID:      scan.PrintingID,
			SetCode:         scan.SetCode,
			CollectorNumber: scan.CollectorNumber,
			Quantity:        1,
		}
		if err := db.Create(&entry).Error; err != nil {
			log.Printf("ERROR create entry %s: %v", scan.CardName, err)
			return
		}
	}
	scan.EntryID = &entry.ID
	_ = db.Save(&scan).Error
}
