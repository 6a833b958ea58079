package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/fazalmittu/nfl-clip-coach/internal/clips"
	"github.com/fazalmittu/nfl-clip-coach/internal/config"
	"github.com/fazalmittu/nfl-clip-coach/internal/indexer"
	"github.com/fazalmittu/nfl-clip-coach/internal/storage"

	"github.com/fazalmittu/nfl-clip-coach/internal/api/handlers"
	"github.com/fazalmittu/nfl-clip-coach/internal/api/middleware"
)

type Server struct {
	cfg      *config.Config
	indexers *indexer.Manager
	storage  *storage.Client
	router   *gin.Engine
}

// managerSource adapts the concrete Manager to the resolver's interface.
type managerSource struct {
	m *indexer.Manager
}

func (s managerSource) Get(videoKey string) (clips.Finder, error) {
	return s.m.Get(videoKey)
}

func New(cfg *config.Config, indexers *indexer.Manager, store *storage.Client) *Server {
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode) // Set to Release for production
	}

	s := &Server{
		cfg:      cfg,
		indexers: indexers,
		storage:  store,
		router:   gin.Default(),
	}

	// Film keys contain slashes ("film/2025/week3.mp4"); clients URL-encode
	// them and we decode from the raw path.
	s.router.UseRawPath = true

	middleware.SetSecret(cfg.Server.JWTSecret)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// CORS Configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}

	// IMPORTANT: "Authorization" must be allowed so the frontend can send the JWT
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	// 1. Initialize Modular Handlers
	sampleInterval := float64(s.cfg.Index.SampleInterval)
	resolver := clips.NewResolver(managerSource{m: s.indexers}, s.cfg.Clips.PreRoll, sampleInterval)
	indexHandler := handlers.NewIndexHandler(s.indexers, sampleInterval)
	clipsHandler := handlers.NewClipsHandler(resolver)
	videosHandler := handlers.NewVideosHandler(s.storage)

	// Health Check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "clip-coach"})
	})

	// API Group
	v1 := s.router.Group("/api/v1")
	{
		// ==========================================
		// PUBLIC ROUTES (No Token Required)
		// ==========================================
		v1.GET("/videos", videosHandler.ListVideos)
		v1.GET("/videos/:key/index", indexHandler.GetIndex)

		// ==========================================
		// PROTECTED ROUTES (JWT Token Required)
		// ==========================================
		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth()) // Checks for valid JWT
		{
			// --- ANALYSTS (Film Room Staff) ---
			// Analysts run discovery and resolve clip batches for coaches.
			protected.POST("/videos/:key/index/auto", middleware.RequireRole("analyst"), indexHandler.AutoIndex)
			protected.POST("/videos/:key/index/manual", middleware.RequireRole("analyst"), indexHandler.ManualIndex)
			protected.POST("/clips/resolve", middleware.RequireRole("analyst"), clipsHandler.Resolve)

			// --- ADMIN ONLY ---
			// Clearing an index throws away hours of oracle work.
			protected.DELETE("/videos/:key/index", middleware.RequireRole("admin"), indexHandler.ClearIndex)
		}
	}
}

// Start runs the server on the configured port
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}
