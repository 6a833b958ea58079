package indexer

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
	"github.com/fazalmittu/nfl-clip-coach/internal/search"
	"github.com/fazalmittu/nfl-clip-coach/internal/timeline"
)

// Metrics
var (
	mappingCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "coach_mapping_cache_hits_total", Help: "Lookups served from the resolved-mapping cache"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(mappingCacheHits)
}

const (
	// nearbyWindow is how far (game seconds) a cached mapping may sit from a
	// new target and still seed the search window.
	nearbyWindow = 120
	// seedMargin pads the window estimated from a nearby mapping.
	seedMargin = 90.0
	// refineMargin pads discovery search windows around rough estimates.
	refineMargin = 60.0
	// halftimeMargin keeps the recorded halftime dead zone clear of the last
	// and first plays around the break.
	halftimeMargin = 60.0
)

// Indexer owns one video's timeline index and the search that enriches it.
type Indexer struct {
	videoKey    string
	index       *timeline.Index
	reader      search.ClockReader
	searcher    *search.Searcher
	tuning      search.Tuning
	halftimeGap float64
}

// New loads (or initializes) the persisted index for a video and wires the
// search on top of it.
func New(videoKey string, reader search.ClockReader, store timeline.Store, tuning search.Tuning, fallbackSpan, halftimeGap float64) (*Indexer, error) {
	index, err := timeline.Load(store, videoKey, fallbackSpan)
	if err != nil {
		return nil, err
	}

	if halftimeGap <= 0 {
		halftimeGap = 300
	}

	return &Indexer{
		videoKey:    videoKey,
		index:       index,
		reader:      reader,
		searcher:    search.NewSearcher(reader, index, tuning),
		tuning:      tuning,
		halftimeGap: halftimeGap,
	}, nil
}

func (ix *Indexer) Index() *timeline.Index {
	return ix.index
}

func (ix *Indexer) IsIndexed() bool {
	return ix.index.IsIndexed()
}

// FindTimestamp resolves a game time to a VOD offset. Cached mappings are
// returned without any oracle call; otherwise the adaptive search runs inside
// the quarter's VOD range, tightened by any cached mapping nearby.
func (ix *Indexer) FindTimestamp(ctx context.Context, quarter int, gameTime string) (*search.Result, error) {
	if !ix.index.IsIndexed() {
		return nil, timeline.ErrNotIndexed
	}

	if m, ok := ix.index.GetMapping(quarter, gameTime); ok {
		mappingCacheHits.Inc()
		log.Printf("⚡ Cache hit: Q%d %s → VOD %.1fs", quarter, gameTime, m.Offset)
		return &search.Result{Offset: m.Offset, Exact: m.Exact}, nil
	}

	lo, hi, ok := ix.index.QuarterRange(quarter)
	if !ok {
		return nil, fmt.Errorf("%w: quarter %d has no boundary", timeline.ErrNotIndexed, quarter)
	}

	target, err := models.ParseClockTime(gameTime)
	if err != nil {
		return nil, err
	}

	// A resolved mapping near the target pins the local clock-to-VOD slope
	// far better than the quarter boundary does, so shrink the window.
	if nearby := ix.index.NearbyMappings(quarter, gameTime, nearbyWindow); len(nearby) > 0 {
		est := nearby[0].Offset + float64(nearby[0].Remaining-target)*ix.tuning.Ratio
		seedLo := math.Max(lo, est-seedMargin)
		seedHi := math.Min(hi, est+seedMargin)
		if seedLo < seedHi {
			log.Printf("🧭 Seeding window [%.0fs, %.0fs] from cached Q%d %s", seedLo, seedHi, quarter, nearby[0].Time)
			lo, hi = seedLo, seedHi
		}
	}

	log.Printf("🔍 Searching Q%d %s in VOD range [%.0fs, %.0fs]", quarter, gameTime, lo, hi)
	return ix.searcher.FindOffset(ctx, quarter, gameTime, lo, hi)
}

type sweepSample struct {
	offset float64
	clock  *models.GameClock
}

// AutoIndex discovers quarter boundaries for a never-seen video: a coarse
// sweep over the whole file, grouping by quarter, then a refinement search
// for each quarter's opening 15:00. Persisted observations from an earlier,
// interrupted sweep are reused instead of re-queried.
func (ix *Indexer) AutoIndex(ctx context.Context, sampleInterval float64) error {
	if sampleInterval <= 0 {
		sampleInterval = 300
	}

	duration := ix.reader.Duration()
	log.Printf("🎬 Auto-indexing %s (%.1f min, sampling every %.0fs)", ix.videoKey, duration/60, sampleInterval)

	// Phase 1: coarse sweep
	var samples []sweepSample
	for t := 0.0; t < duration; t += sampleInterval {
		if err := ctx.Err(); err != nil {
			return err
		}

		if obsOff, obs, ok := ix.index.NearestObservation(t); ok && math.Abs(obsOff-t) <= sampleInterval/2 {
			clock := obs
			samples = append(samples, sweepSample{offset: obsOff, clock: &clock})
			continue
		}

		clock, err := ix.reader.ReadClockNear(ctx, t, ix.tuning.ReadRetries)
		if err != nil {
			return err
		}
		if clock != nil {
			ix.index.AddObservation(t, *clock)
			log.Printf("📍 Sample %.1f min → %s", t/60, clock)
		} else {
			log.Printf("📍 Sample %.1f min → no clock", t/60)
		}
		samples = append(samples, sweepSample{offset: t, clock: clock})
	}

	// Phase 2: group by quarter; the rough start is the sample closest to the
	// quarter's opening clock value (largest remaining time).
	quarterSamples := make(map[int][]sweepSample)
	for _, s := range samples {
		if s.clock != nil {
			q := s.clock.Quarter
			quarterSamples[q] = append(quarterSamples[q], s)
		}
	}

	var quarters []int
	roughStarts := make(map[int]float64)
	for q, qs := range quarterSamples {
		if q < 1 || q > 5 {
			continue // a misread graphic, not a quarter
		}
		earliest := qs[0]
		for _, s := range qs[1:] {
			if s.clock.RemainingSeconds() > earliest.clock.RemainingSeconds() {
				earliest = s
			}
		}
		roughStarts[q] = earliest.offset
		quarters = append(quarters, q)
	}
	sort.Ints(quarters)
	log.Printf("🏈 Detected quarters: %v", quarters)

	ix.recordHalftime(quarterSamples)

	// Phase 3: refine each boundary to the exact 15:00
	for _, q := range quarters {
		rough := roughStarts[q]
		if err := ix.refineQuarter(ctx, q, rough, rough-sampleInterval-refineMargin, rough+refineMargin); err != nil {
			return err
		}
	}

	for _, q := range quarters {
		if start, ok := ix.index.QuarterStart(q); ok {
			log.Printf("✅ Q%d starts at VOD %.1fs (%.1f min)", q, start, start/60)
		}
	}
	return nil
}

// ManualIndex refines caller-supplied rough boundary estimates. Useful when
// an operator already knows roughly where each quarter begins.
func (ix *Indexer) ManualIndex(ctx context.Context, roughStarts map[int]float64) error {
	var quarters []int
	for q := range roughStarts {
		if q >= 1 && q <= 5 {
			quarters = append(quarters, q)
		}
	}
	sort.Ints(quarters)

	for _, q := range quarters {
		rough := roughStarts[q]
		// The true 15:00 sits before the estimate far more often than after
		if err := ix.refineQuarter(ctx, q, rough, rough-1500, rough+120); err != nil {
			return err
		}
	}
	return nil
}

// refineQuarter searches for a quarter's opening 15:00 inside [lo, hi] and
// records the boundary, falling back to the rough estimate when the search
// comes up empty.
func (ix *Indexer) refineQuarter(ctx context.Context, quarter int, rough, lo, hi float64) error {
	lo = math.Max(0, lo)
	log.Printf("🧮 Refining Q%d — searching 15:00 in VOD [%.0fs, %.0fs]", quarter, lo, hi)

	start := rough
	res, err := ix.searcher.FindOffset(ctx, quarter, "15:00", lo, hi)
	switch {
	case err == nil:
		start = res.Offset
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		log.Printf("⚠️ Q%d: exact start not found (%v), using rough estimate %.0fs", quarter, err, rough)
	}

	if err := ix.index.SetQuarterStart(quarter, start); err != nil {
		log.Printf("⚠️ Q%d boundary rejected: %v", quarter, err)
	}
	return nil
}

// recordHalftime turns a long sample gap between the last Q2 reading and the
// first Q3 reading into a dead zone, sparing later searches from probing the
// halftime show.
func (ix *Indexer) recordHalftime(quarterSamples map[int][]sweepSample) {
	q2, q3 := quarterSamples[2], quarterSamples[3]
	if len(q2) == 0 || len(q3) == 0 {
		return
	}

	lastQ2 := q2[0].offset
	for _, s := range q2 {
		if s.offset > lastQ2 {
			lastQ2 = s.offset
		}
	}
	firstQ3 := q3[0].offset
	for _, s := range q3 {
		if s.offset < firstQ3 {
			firstQ3 = s.offset
		}
	}

	if firstQ3-lastQ2 > ix.halftimeGap {
		start := lastQ2 + halftimeMargin
		end := firstQ3 - halftimeMargin
		if start < end {
			log.Printf("🛑 Recording halftime dead zone [%.0fs, %.0fs]", start, end)
			ix.index.AddDeadZone(start, end)
		}
	}
}
