package clips

import (
	"context"
	"log"
	"math"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
	"github.com/fazalmittu/nfl-clip-coach/internal/search"
)

// Finder is what the resolver needs from an indexer: boundary discovery and
// cached timestamp lookup for one video.
type Finder interface {
	IsIndexed() bool
	AutoIndex(ctx context.Context, sampleInterval float64) error
	FindTimestamp(ctx context.Context, quarter int, gameTime string) (*search.Result, error)
}

// IndexerSource hands out the shared Finder for a video key.
type IndexerSource interface {
	Get(videoKey string) (Finder, error)
}

// Resolver turns batches of game timestamps into VOD clip descriptors.
type Resolver struct {
	indexers       IndexerSource
	preRoll        float64
	sampleInterval float64
}

func NewResolver(indexers IndexerSource, preRoll, sampleInterval float64) *Resolver {
	if preRoll < 0 {
		preRoll = 0
	}
	return &Resolver{indexers: indexers, preRoll: preRoll, sampleInterval: sampleInterval}
}

// Resolve maps each request to a clip. One failed request never aborts the
// batch: it is reported in its slot and resolution moves on, because a coach
// asking for eight plays still wants the seven that worked.
func (r *Resolver) Resolve(ctx context.Context, videoKey string, requests []models.TimestampRequest, trailingBuffer float64) []models.Clip {
	clips := make([]models.Clip, 0, len(requests))

	finder, err := r.indexers.Get(videoKey)
	if err != nil {
		// Without the video nothing can resolve; still answer per-item so
		// the response shape matches the request batch.
		for _, req := range requests {
			clips = append(clips, failedClip(videoKey, req, err))
		}
		return clips
	}

	if !finder.IsIndexed() {
		log.Printf("📂 No index for %s, running auto-discovery first", videoKey)
		if err := finder.AutoIndex(ctx, r.sampleInterval); err != nil {
			for _, req := range requests {
				clips = append(clips, failedClip(videoKey, req, err))
			}
			return clips
		}
	}

	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			clips = append(clips, failedClip(videoKey, req, err))
			continue
		}

		res, err := finder.FindTimestamp(ctx, req.Quarter, req.Time)
		if err != nil {
			log.Printf("❌ Q%d %s unresolved: %v", req.Quarter, req.Time, err)
			clips = append(clips, failedClip(videoKey, req, err))
			continue
		}

		start := math.Max(0, res.Offset-r.preRoll)
		end := res.Offset + PlayDuration(req.Play) + trailingBuffer

		clips = append(clips, models.Clip{
			VideoKey: videoKey,
			Quarter:  req.Quarter,
			Time:     req.Time,
			Start:    start,
			End:      end,
			Exact:    res.Exact,
			Play:     req.Play,
			Resolved: true,
		})
	}

	return clips
}

func failedClip(videoKey string, req models.TimestampRequest, err error) models.Clip {
	return models.Clip{
		VideoKey: videoKey,
		Quarter:  req.Quarter,
		Time:     req.Time,
		Play:     req.Play,
		Resolved: false,
		Error:    err.Error(),
	}
}
