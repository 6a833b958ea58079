package main

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fazalmittu/nfl-clip-coach/internal/clips"
	"github.com/fazalmittu/nfl-clip-coach/internal/config"
	database "github.com/fazalmittu/nfl-clip-coach/internal/db"
	"github.com/fazalmittu/nfl-clip-coach/internal/indexer"
	"github.com/fazalmittu/nfl-clip-coach/internal/oracle"
	"github.com/fazalmittu/nfl-clip-coach/internal/search"
	"github.com/fazalmittu/nfl-clip-coach/internal/storage"

	// Use an alias to prevent naming collisions with the 'server' variable
	apiserver "github.com/fazalmittu/nfl-clip-coach/internal/api/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Clip Coach API Server...")

	// 1. Setup Configuration
	cfg := config.Load()

	// 2. Initialize Infrastructure
	db := database.New(cfg)

	// 3. Run Database Migrations
	db.AutoMigrate()

	// 4. Storage
	store := storage.New(cfg)

	// 5. Clip duration rules (fallback table covers a missing file)
	if err := clips.LoadDurationRules(cfg.Clips.RulesPath); err != nil {
		log.Printf("⚠️ Clip rules not loaded (%v), using built-in durations", err)
	}

	// 6. Setup Metrics
	oracle.RegisterMetrics()
	search.RegisterMetrics()
	indexer.RegisterMetrics()
	go func() {
		http.Handle("/_metrics", promhttp.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️ Metrics server error: %v", err)
		}
	}()

	// 7. Start Server
	indexers := indexer.NewManager(cfg, db, store)
	srv := apiserver.New(cfg, indexers, store)

	log.Printf("🚀 API Server starting on %s", cfg.Server.Port)

	if err := srv.Start(cfg.Server.Port); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}
