package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fazalmittu/nfl-clip-coach/internal/indexer"
	"github.com/fazalmittu/nfl-clip-coach/internal/timeline"
)

// IndexHandler exposes per-video timeline index operations.
type IndexHandler struct {
	indexers       *indexer.Manager
	sampleInterval float64
}

func NewIndexHandler(indexers *indexer.Manager, sampleInterval float64) *IndexHandler {
	return &IndexHandler{indexers: indexers, sampleInterval: sampleInterval}
}

// GetIndex returns the index summary for a video: known quarter boundaries,
// cache sizes and dead zones.
func (h *IndexHandler) GetIndex(c *gin.Context) {
	key := c.Param("key")

	ix, err := h.indexers.Get(key)
	if err != nil {
		slog.Error("Failed to open video", "video", key, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not available"})
		return
	}

	idx := ix.Index()
	c.JSON(http.StatusOK, gin.H{
		"video_key":    key,
		"indexed":      idx.IsIndexed(),
		"quarters":     idx.QuarterStarts(),
		"observations": idx.ObservationCount(),
		"mappings":     idx.MappingCount(),
		"dead_zones":   idx.DeadZones(),
	})
}

type autoIndexRequest struct {
	SampleInterval float64 `json:"sample_interval_seconds"`
}

// AutoIndex runs boundary discovery. This blocks for many oracle calls on a
// fresh video; the request context cancels it cleanly if the caller hangs up.
func (h *IndexHandler) AutoIndex(c *gin.Context) {
	key := c.Param("key")

	var req autoIndexRequest
	_ = c.ShouldBindJSON(&req) // body optional
	interval := req.SampleInterval
	if interval <= 0 {
		interval = h.sampleInterval
	}

	ix, err := h.indexers.Get(key)
	if err != nil {
		slog.Error("Failed to open video", "video", key, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not available"})
		return
	}

	if err := ix.AutoIndex(c.Request.Context(), interval); err != nil {
		slog.Error("Auto-index failed", "video", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Auto-index failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"video_key": key, "quarters": ix.Index().QuarterStarts()})
}

type manualIndexRequest struct {
	QuarterStarts map[int]float64 `json:"quarter_starts" binding:"required"`
}

// ManualIndex refines operator-supplied rough quarter boundaries.
func (h *IndexHandler) ManualIndex(c *gin.Context) {
	key := c.Param("key")

	var req manualIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quarter_starts required"})
		return
	}

	ix, err := h.indexers.Get(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not available"})
		return
	}

	if err := ix.ManualIndex(c.Request.Context(), req.QuarterStarts); err != nil {
		slog.Error("Manual index failed", "video", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Manual index failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"video_key": key, "quarters": ix.Index().QuarterStarts()})
}

// ClearIndex empties every cached field for a video, forcing full
// re-discovery on next use. Destructive, hence admin-only in the router.
func (h *IndexHandler) ClearIndex(c *gin.Context) {
	key := c.Param("key")

	ix, err := h.indexers.Get(key)
	if err != nil {
		if errors.Is(err, timeline.ErrIndexCorrupt) {
			// A corrupt index is exactly what clear is for; surface it
			slog.Error("Clearing corrupt index", "video", key, "error", err)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not available"})
		return
	}

	ix.Index().Clear()
	c.JSON(http.StatusOK, gin.H{"video_key": key, "status": "cleared"})
}
