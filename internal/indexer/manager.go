package indexer

import (
	"fmt"
	"log"
	"sync"

	"github.com/fazalmittu/nfl-clip-coach/internal/config"
	database "github.com/fazalmittu/nfl-clip-coach/internal/db"
	"github.com/fazalmittu/nfl-clip-coach/internal/oracle"
	"github.com/fazalmittu/nfl-clip-coach/internal/search"
	"github.com/fazalmittu/nfl-clip-coach/internal/storage"
	"github.com/fazalmittu/nfl-clip-coach/internal/timeline"
	"github.com/fazalmittu/nfl-clip-coach/internal/video"
	"github.com/fazalmittu/nfl-clip-coach/internal/vision"
)

// Manager hands out one Indexer per video key. All callers for the same video
// must share one Indexer (and therefore one timeline index), or concurrent
// searches would clobber each other's caches.
type Manager struct {
	cfg    *config.Config
	store  timeline.Store
	films  *storage.FilmCache
	vision *vision.Client

	mu   sync.Mutex
	open map[string]*Indexer
}

func NewManager(cfg *config.Config, db *database.Client, store *storage.Client) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  timeline.NewGormStore(db.DB),
		films:  storage.NewFilmCache(store, cfg.Server.TempDir),
		vision: vision.New(cfg),
		open:   make(map[string]*Indexer),
	}
}

// Get returns the shared Indexer for a video, opening it on first use. The
// first open downloads the film locally and probes it, which can take a
// while; later calls are a map lookup. Held under one lock so two callers
// can never end up with separate indexes for the same video.
func (m *Manager) Get(videoKey string) (*Indexer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ix, ok := m.open[videoKey]; ok {
		return ix, nil
	}

	localPath, err := m.films.LocalPath(videoKey)
	if err != nil {
		return nil, fmt.Errorf("fetching film %s: %w", videoKey, err)
	}

	file, err := video.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening film %s: %w", videoKey, err)
	}

	reader := oracle.NewReader(file, m.vision, m.cfg.Search.RetryStep)
	tuning := search.TuningFromConfig(m.cfg)

	ix, err := New(videoKey, reader, m.store, tuning, m.cfg.Index.QuarterSpan, m.cfg.Index.HalftimeGap)
	if err != nil {
		return nil, err
	}

	log.Printf("🎞️ Opened %s (%.1f min)", videoKey, file.Duration()/60)
	m.open[videoKey] = ix
	return ix, nil
}
