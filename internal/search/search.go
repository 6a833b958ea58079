package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
	"github.com/fazalmittu/nfl-clip-coach/internal/timeline"
)

// ErrExhausted means the search ran out of iterations without finding even a
// relaxed best-match.
var ErrExhausted = errors.New("search exhausted without a match")

// Metrics
var (
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "coach_searches_total", Help: "Timestamp searches"},
		[]string{"outcome"},
	)
	searchIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coach_search_iterations",
			Help:    "Iterations per search",
			Buckets: []float64{1, 2, 4, 6, 8, 12, 16, 20},
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(searchesTotal, searchIterations)
}

// ClockReader is the expensive oracle the search economizes on. A nil reading
// with a nil error means no clock was visible near the offset.
type ClockReader interface {
	ReadClockNear(ctx context.Context, offset float64, retries int) (*models.GameClock, error)
	Duration() float64
}

// Result is a resolved timestamp. Exact is false when the search settled for
// a best-match within the relaxed tolerance.
type Result struct {
	Offset     float64
	Exact      bool
	Iterations int
	Readings   int
}

// reading is one session observation: where we looked and what the clock said.
type reading struct {
	offset    float64
	quarter   int
	remaining int
}

// Searcher converges on the VOD offset showing a target game time. It feeds
// every successful reading back into the shared index, so each search makes
// the next one cheaper.
type Searcher struct {
	reader ClockReader
	index  *timeline.Index
	tuning Tuning
}

func NewSearcher(reader ClockReader, index *timeline.Index, tuning Tuning) *Searcher {
	return &Searcher{reader: reader, index: index, tuning: tuning}
}

// FindOffset locates the VOD offset where the clock shows (quarter, gameTime),
// searching within [lo, hi]. Instead of bisecting, each reading is used to
// extrapolate where the target should be, which typically lands within
// tolerance in a handful of oracle calls.
func (s *Searcher) FindOffset(ctx context.Context, quarter int, gameTime string, lo, hi float64) (*Result, error) {
	target, err := models.ParseClockTime(gameTime)
	if err != nil {
		return nil, err
	}

	t := s.tuning
	duration := s.reader.Duration()

	// Starting point: extrapolate from the quarter boundary when we have one
	// (quarters open at 15:00 = 900s remaining), else the window midpoint.
	var pos float64
	if qStart, ok := s.index.QuarterStart(quarter); ok {
		gameElapsed := float64(900 - target)
		pos = clamp(qStart+gameElapsed*t.Ratio, lo, hi)
	} else {
		pos = (lo + hi) / 2
	}
	pos = clamp(pos, 0, duration)

	var session []reading
	bestDiff := math.MaxInt32
	bestMatch := -1.0
	iterations := 0

	for iterations < t.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations++

		// The per-iteration math may point outside [lo, hi]; follow it, but
		// never outside the file itself.
		pos = clamp(pos, 0, duration)

		if zone, ok := s.index.InDeadZone(pos); ok {
			pos = zone.End + t.DeadZoneMargin
		}

		clock, err := s.reader.ReadClockNear(ctx, pos, t.ReadRetries)
		if err != nil {
			return nil, err
		}

		if clock == nil {
			found := false
			for _, delta := range t.BlindProbes {
				alt := pos + delta
				if alt < 0 || alt > duration {
					continue
				}
				if _, dead := s.index.InDeadZone(alt); dead {
					continue
				}
				clock, err = s.reader.ReadClockNear(ctx, alt, 1)
				if err != nil {
					return nil, err
				}
				if clock != nil {
					pos = alt
					found = true
					break
				}
			}
			if !found {
				// Nothing readable anywhere nearby; walk forward and retry.
				// This consumed no reading, only patience.
				pos += t.BlindStep
				continue
			}
		}

		s.index.AddObservation(pos, *clock)
		remaining := clock.RemainingSeconds()
		session = append(session, reading{offset: pos, quarter: clock.Quarter, remaining: remaining})

		log.Printf("🔎 [iter %d/%d] VOD %.1fs → %s (target: Q%d %s)",
			iterations, t.MaxIterations, pos, clock, quarter, gameTime)

		if clock.Quarter == quarter {
			diff := absInt(remaining - target)
			if diff < bestDiff {
				bestDiff = diff
				bestMatch = pos
			}
			if float64(diff) <= t.Tolerance {
				s.index.SetMapping(quarter, gameTime, pos, true)
				searchesTotal.WithLabelValues("exact").Inc()
				searchIterations.Observe(float64(iterations))
				return &Result{Offset: pos, Exact: true, Iterations: iterations, Readings: len(session)}, nil
			}
		}

		next := s.nextPosition(pos, clock.Quarter, remaining, quarter, target)

		// Secant refinement: with two same-quarter readings the local
		// VOD-per-game-second slope beats the fixed ratio.
		if slopeNext, ok := secantEstimate(session, quarter, target); ok {
			next = slopeNext
		}

		// Damping: close to the target already, so don't let a long jump
		// overshoot and oscillate.
		if bestMatch >= 0 && float64(bestDiff) <= t.RelaxFactor*t.Tolerance &&
			math.Abs(next-pos) > t.DampThreshold {
			next = pos + (next-pos)*t.DampFactor
		}

		if done, stuck := s.stalled(session); done {
			if stuck {
				log.Printf("⚠️ Search stuck at %.1fs, giving up on refinement", pos)
				break
			}
			// Clustered around one spot: as converged as the overlay allows.
			log.Printf("🎯 Converged at ~%.1fs", pos)
			s.index.SetMapping(quarter, gameTime, pos, false)
			searchesTotal.WithLabelValues("converged").Inc()
			searchIterations.Observe(float64(iterations))
			return &Result{Offset: pos, Exact: false, Iterations: iterations, Readings: len(session)}, nil
		}

		pos = next
	}

	if bestMatch >= 0 && float64(bestDiff) <= t.RelaxFactor*t.Tolerance {
		// Cache the approximation too (marked inexact) so a repeated lookup
		// doesn't pay for the whole search again.
		s.index.SetMapping(quarter, gameTime, bestMatch, false)
		searchesTotal.WithLabelValues("relaxed").Inc()
		searchIterations.Observe(float64(iterations))
		return &Result{Offset: bestMatch, Exact: false, Iterations: iterations, Readings: len(session)}, nil
	}

	searchesTotal.WithLabelValues("exhausted").Inc()
	searchIterations.Observe(float64(iterations))
	return nil, fmt.Errorf("%w: Q%d %s after %d iterations", ErrExhausted, quarter, gameTime, iterations)
}

// nextPosition computes the linear jump from one reading toward the target.
func (s *Searcher) nextPosition(pos float64, readQuarter, remaining, targetQuarter, target int) float64 {
	t := s.tuning

	switch {
	case readQuarter == targetQuarter:
		// The clock counts down: a reading with MORE remaining time than the
		// target sits EARLIER in the game, so the target is later in the VOD.
		return pos + float64(remaining-target)*t.Ratio
	case readQuarter < targetQuarter:
		gap := float64(targetQuarter - readQuarter)
		return pos + gap*t.QuarterJump + float64(900-target)*t.CoarseRatio
	default:
		gap := float64(readQuarter - targetQuarter)
		return pos - gap*t.QuarterJump - float64(target)*t.CoarseRatio
	}
}

// secantEstimate extrapolates from the two most recent same-quarter readings.
func secantEstimate(session []reading, quarter, target int) (float64, bool) {
	var same []reading
	for _, r := range session {
		if r.quarter == quarter {
			same = append(same, r)
		}
	}
	if len(same) < 2 {
		return 0, false
	}

	r1, r2 := same[len(same)-2], same[len(same)-1]
	gameDiff := r1.remaining - r2.remaining // reversed: the clock counts down
	if gameDiff == 0 {
		return 0, false
	}

	slope := (r2.offset - r1.offset) / float64(gameDiff)
	return r2.offset + float64(r2.remaining-target)*slope, true
}

// stalled inspects the last StallWindow visited positions. done=true with
// stuck=false means the positions cluster tightly (converged); stuck=true
// means the search is pinned to a single spot and cannot progress.
func (s *Searcher) stalled(session []reading) (done, stuck bool) {
	w := s.tuning.StallWindow
	if len(session) < w {
		return false, false
	}

	last := session[len(session)-w:]
	unique := make(map[float64]struct{}, w)
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for _, r := range last {
		unique[math.Round(r.offset)] = struct{}{}
		lo = math.Min(lo, r.offset)
		hi = math.Max(hi, r.offset)
	}

	if len(unique) == 1 {
		return true, true
	}
	if len(unique) >= 3 && hi-lo < s.tuning.StallSpan {
		return true, false
	}
	return false, false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
