package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fazalmittu/nfl-clip-coach/internal/clips"
	"github.com/fazalmittu/nfl-clip-coach/internal/models"
)

// ClipsHandler resolves batches of game timestamps into clip windows.
type ClipsHandler struct {
	resolver *clips.Resolver
}

func NewClipsHandler(resolver *clips.Resolver) *ClipsHandler {
	return &ClipsHandler{resolver: resolver}
}

type resolveRequest struct {
	VideoKey       string                    `json:"video_key" binding:"required"`
	Requests       []models.TimestampRequest `json:"requests" binding:"required"`
	TrailingBuffer float64                   `json:"trailing_buffer"`
}

// Resolve answers with one clip per request, in order. Items that could not
// be located come back with resolved=false and an error string instead of
// failing the whole batch.
func (h *ClipsHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_key and requests are required"})
		return
	}
	if len(req.Requests) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requests must not be empty"})
		return
	}

	for _, r := range req.Requests {
		if r.Quarter < 1 || r.Quarter > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quarter must be between 1 and 5"})
			return
		}
		if _, err := models.ParseClockTime(r.Time); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid clock time: " + r.Time})
			return
		}
	}

	result := h.resolver.Resolve(c.Request.Context(), req.VideoKey, req.Requests, req.TrailingBuffer)

	resolved := 0
	for _, clip := range result {
		if clip.Resolved {
			resolved++
		}
	}
	slog.Info("Batch resolved", "video", req.VideoKey, "requested", len(req.Requests), "resolved", resolved)

	c.JSON(http.StatusOK, gin.H{
		"video_key": req.VideoKey,
		"clips":     result,
	})
}
