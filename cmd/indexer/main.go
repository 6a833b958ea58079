package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fazalmittu/nfl-clip-coach/internal/config"
	database "github.com/fazalmittu/nfl-clip-coach/internal/db"
	"github.com/fazalmittu/nfl-clip-coach/internal/indexer"
	"github.com/fazalmittu/nfl-clip-coach/internal/oracle"
	"github.com/fazalmittu/nfl-clip-coach/internal/search"
	"github.com/fazalmittu/nfl-clip-coach/internal/storage"
)

func main() {
	// 1. Parse Flags
	// We add flags to override config.yaml values
	video := flag.String("video", "", "Storage key of the game film to index (required)")
	interval := flag.Float64("interval", 0, "Override coarse sweep sample interval in seconds")
	clear := flag.Bool("clear", false, "Wipe the existing index before discovery")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *video == "" {
		log.Fatal("❌ -video is required, e.g. -video film/2025/week3.mp4")
	}

	// 2. Load Config
	cfg := config.Load()

	sampleInterval := float64(cfg.Index.SampleInterval)
	if *interval > 0 {
		sampleInterval = *interval
	}

	// 3. Init Infrastructure
	store := storage.New(cfg)
	db := database.New(cfg)

	// 4. Run Migrations
	db.AutoMigrate()

	oracle.RegisterMetrics()
	search.RegisterMetrics()
	indexer.RegisterMetrics()

	// 5. Open the film. Ctrl-C stops the sweep; observations made so far stay
	// persisted and a rerun resumes from them.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	indexers := indexer.NewManager(cfg, db, store)
	ix, err := indexers.Get(*video)
	if err != nil {
		log.Fatalf("❌ Could not open %s: %v", *video, err)
	}

	if *clear {
		log.Printf("🧹 Clearing existing index for %s", *video)
		ix.Index().Clear()
	}

	// 6. Discover
	if err := ix.AutoIndex(ctx, sampleInterval); err != nil {
		log.Fatalf("❌ Indexing failed: %v", err)
	}

	log.Printf("✅ Indexing complete: %d quarters, %d observations, %d cached mappings",
		len(ix.Index().QuarterStarts()), ix.Index().ObservationCount(), ix.Index().MappingCount())
}
