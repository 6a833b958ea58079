package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fazalmittu/nfl-clip-coach/internal/storage"
)

// VideosHandler lists game film available in the bucket.
type VideosHandler struct {
	store *storage.Client
}

func NewVideosHandler(store *storage.Client) *VideosHandler {
	return &VideosHandler{store: store}
}

// ListVideos returns film keys under an optional ?prefix=, e.g. "film/2025/".
func (h *VideosHandler) ListVideos(c *gin.Context) {
	prefix := c.Query("prefix")

	keys, err := h.store.ListFilms(prefix)
	if err != nil {
		slog.Error("Failed to list films", "prefix", prefix, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage listing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prefix": prefix,
		"videos": keys,
		"count":  len(keys),
	})
}
