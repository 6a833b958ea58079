package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
	"github.com/fazalmittu/nfl-clip-coach/internal/timeline"
)

// scriptedReader is a deterministic stand-in for the vision oracle. Every
// probe is recorded so tests can assert how many (and which) frames a search
// paid for.
type scriptedReader struct {
	duration float64
	clockAt  func(offset float64) *models.GameClock
	probes   []float64
}

func (r *scriptedReader) ReadClockNear(ctx context.Context, offset float64, retries int) (*models.GameClock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.probes = append(r.probes, offset)
	return r.clockAt(offset), nil
}

func (r *scriptedReader) Duration() float64 { return r.duration }

// linearGame simulates a broadcast where each quarter runs at a fixed
// VOD-seconds-per-game-second rate from its start offset. Offsets between
// quarters (the clock has run out but the next one hasn't begun) show no clock.
func linearGame(starts map[int]float64, rate float64) func(float64) *models.GameClock {
	return func(offset float64) *models.GameClock {
		bestQ, bestStart := 0, -1.0
		for q, start := range starts {
			if offset >= start && start > bestStart {
				bestQ, bestStart = q, start
			}
		}
		if bestQ == 0 {
			return nil // pregame
		}
		remaining := int(math.Round(900 - (offset-bestStart)/rate))
		if remaining < 0 {
			return nil // between quarters
		}
		return &models.GameClock{Quarter: bestQ, Minutes: remaining / 60, Seconds: remaining % 60}
	}
}

func newTestIndex(t *testing.T) *timeline.Index {
	idx, err := timeline.Load(nil, "test/game.mp4", 0)
	if err != nil {
		t.Fatalf("Failed to build index: %v", err)
	}
	return idx
}

func TestFindOffsetFirstProbeHit(t *testing.T) {
	// Broadcast rate matches the tuning ratio exactly, so the extrapolation
	// from the quarter boundary lands on the money in one probe.
	reader := &scriptedReader{
		duration: 7200,
		clockAt:  linearGame(map[int]float64{2: 1500}, 1.3),
	}
	idx := newTestIndex(t)
	idx.SetQuarterStart(2, 1500)

	s := NewSearcher(reader, idx, DefaultTuning())
	res, err := s.FindOffset(context.Background(), 2, "8:34", 1500, 4200)
	if err != nil {
		t.Fatalf("FindOffset failed: %v", err)
	}

	if !res.Exact {
		t.Error("Expected an exact match")
	}
	if res.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", res.Iterations)
	}
	// Q2 8:34 = 514s remaining → 1500 + (900-514)*1.3 = 2001.8
	if math.Abs(res.Offset-2001.8) > 0.1 {
		t.Errorf("Offset = %.1f, want 2001.8", res.Offset)
	}

	// The answer must be cached for the next caller
	if m, ok := idx.GetMapping(2, "8:34"); !ok || !m.Exact {
		t.Errorf("Mapping not cached as exact: %v, %v", m, ok)
	}
}

func TestFindOffsetCorrectsFromFirstReading(t *testing.T) {
	// Broadcast runs a bit faster than assumed: the first probe at ≈2002
	// reads Q2 8:20 — the clock shows LESS time than the 8:34 target, so the
	// target moment is EARLIER in the VOD and the search must jump backward.
	rate := (2002.0 - 1500.0) / 400.0 // 8:20 = 500s remaining at offset 2002
	reader := &scriptedReader{
		duration: 7200,
		clockAt:  linearGame(map[int]float64{2: 1500}, rate),
	}
	idx := newTestIndex(t)
	idx.SetQuarterStart(2, 1500)

	s := NewSearcher(reader, idx, DefaultTuning())
	res, err := s.FindOffset(context.Background(), 2, "8:34", 1500, 4200)
	if err != nil {
		t.Fatalf("FindOffset failed: %v", err)
	}

	if math.Abs(reader.probes[0]-2001.8) > 0.1 {
		t.Errorf("First probe = %.1f, want 2001.8", reader.probes[0])
	}
	if len(reader.probes) < 2 || reader.probes[1] >= reader.probes[0] {
		t.Errorf("Probes = %v; second probe must move backward", reader.probes)
	}

	// True offset for 514s remaining: 1500 + 386*rate ≈ 1984.4
	want := 1500 + 386*rate
	if math.Abs(res.Offset-want) > 3*rate {
		t.Errorf("Offset = %.1f, want ≈%.1f", res.Offset, want)
	}
	if !res.Exact {
		t.Error("Expected an exact match")
	}
}

func TestFindOffsetSecantRefinement(t *testing.T) {
	// Broadcast runs slower than the assumed ratio (1.45 vs 1.3): the first
	// probe misses, and the secant slope from two readings corrects it.
	reader := &scriptedReader{
		duration: 7200,
		clockAt:  linearGame(map[int]float64{2: 1500}, 1.45),
	}
	idx := newTestIndex(t)
	idx.SetQuarterStart(2, 1500)

	tuning := DefaultTuning()
	s := NewSearcher(reader, idx, tuning)
	res, err := s.FindOffset(context.Background(), 2, "8:34", 1500, 4200)
	if err != nil {
		t.Fatalf("FindOffset failed: %v", err)
	}

	if !res.Exact {
		t.Error("Expected an exact match")
	}
	if res.Iterations > tuning.MaxIterations {
		t.Errorf("Iterations = %d, exceeds cap %d", res.Iterations, tuning.MaxIterations)
	}
	if res.Iterations > 5 {
		t.Errorf("Iterations = %d; the secant should converge in a handful", res.Iterations)
	}
	// True offset: 1500 + (900-514)*1.45 = 2059.7; exact means within
	// Tolerance game seconds, i.e. ±3*1.45 VOD seconds
	if math.Abs(res.Offset-2059.7) > 3*1.45 {
		t.Errorf("Offset = %.1f, want ≈2059.7", res.Offset)
	}
}

func TestFindOffsetCrossQuarterJump(t *testing.T) {
	// The target quarter's boundary is unknown and the window midpoint lands
	// in Q2, so the search must coarse-jump a whole quarter forward.
	starts := map[int]float64{1: 0, 2: 1300, 3: 4000}
	reader := &scriptedReader{
		duration: 9000,
		clockAt:  linearGame(starts, 1.3),
	}
	idx := newTestIndex(t)
	idx.SetQuarterStart(1, 0)
	idx.SetQuarterStart(2, 1300)

	s := NewSearcher(reader, idx, DefaultTuning())
	res, err := s.FindOffset(context.Background(), 3, "10:00", 500, 3500)
	if err != nil {
		t.Fatalf("FindOffset failed: %v", err)
	}

	if !res.Exact {
		t.Error("Expected an exact match")
	}
	// Q3 10:00 = 600s remaining → 4000 + 300*1.3 = 4390. The result sits
	// outside the initial window; only the file bounds constrain the jumps.
	if math.Abs(res.Offset-4390) > 3*1.3 {
		t.Errorf("Offset = %.1f, want ≈4390", res.Offset)
	}

	// The second probe is the coarse jump: midpoint 2000 reads Q2, so
	// 2000 + 1*QuarterJump + (900-600)*CoarseRatio = 4360
	if len(reader.probes) < 2 || math.Abs(reader.probes[1]-4360) > 0.1 {
		t.Errorf("Probes = %v, expected second probe at 4360", reader.probes)
	}
}

func TestFindOffsetAvoidsDeadZones(t *testing.T) {
	// The extrapolated start lands inside a known dead zone; the search must
	// hop past it and still converge without ever probing the zone.
	reader := &scriptedReader{
		duration: 7200,
		clockAt:  linearGame(map[int]float64{1: 0}, 1.5),
	}
	idx := newTestIndex(t)
	idx.SetQuarterStart(1, 0)
	idx.AddDeadZone(900, 950)

	s := NewSearcher(reader, idx, DefaultTuning())
	res, err := s.FindOffset(context.Background(), 1, "3:12", 0, 1400)
	if err != nil {
		t.Fatalf("FindOffset failed: %v", err)
	}

	// Q1 3:12 = 192s remaining → true offset (900-192)*1.5 = 1062
	if math.Abs(res.Offset-1062) > 3*1.5 {
		t.Errorf("Offset = %.1f, want ≈1062", res.Offset)
	}
	for _, p := range reader.probes {
		if p >= 900 && p <= 950 {
			t.Errorf("Probe at %.1f landed inside the dead zone", p)
		}
	}
}

func TestFindOffsetFrozenClock(t *testing.T) {
	// A frozen overlay (graphics glitch) pins every reading to the same
	// value. The search must detect it is stuck and give up instead of
	// looping forever.
	frozen := &models.GameClock{Quarter: 2, Minutes: 12, Seconds: 0}
	reader := &scriptedReader{
		duration: 3000,
		clockAt:  func(offset float64) *models.GameClock { return frozen },
	}
	idx := newTestIndex(t)
	idx.SetQuarterStart(2, 1500)

	tuning := DefaultTuning()
	s := NewSearcher(reader, idx, tuning)
	_, err := s.FindOffset(context.Background(), 2, "2:00", 1500, 3000)

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}
	if len(reader.probes) >= tuning.MaxIterations {
		t.Errorf("Stuck search burned %d probes; the stall detector should cut it short", len(reader.probes))
	}
}

func TestFindOffsetRelaxedBestMatch(t *testing.T) {
	// The overlay only updates every 10 game seconds, so no reading can get
	// within the 3s tolerance of a mid-step target. The search must settle
	// for the best match within the relaxed bound and mark it inexact.
	base := linearGame(map[int]float64{2: 1500}, 1.3)
	reader := &scriptedReader{
		duration: 7200,
		clockAt: func(offset float64) *models.GameClock {
			clock := base(offset)
			if clock == nil {
				return nil
			}
			rem := int(math.Round(float64(clock.RemainingSeconds())/10)) * 10
			return &models.GameClock{Quarter: clock.Quarter, Minutes: rem / 60, Seconds: rem % 60}
		},
	}
	idx := newTestIndex(t)
	idx.SetQuarterStart(2, 1500)

	tuning := DefaultTuning()
	tuning.MaxIterations = 6
	tuning.StallWindow = 100 // force the iteration cap, not the stall detector

	s := NewSearcher(reader, idx, tuning)
	res, err := s.FindOffset(context.Background(), 2, "8:35", 1500, 4200)
	if err != nil {
		t.Fatalf("Expected a relaxed best-match, got error: %v", err)
	}

	if res.Exact {
		t.Error("Quantized clock can never be exact for a mid-step target")
	}
	// Best possible reading is 5 game seconds off → within 2*3s relaxed bound
	if math.Abs(res.Offset-2000.5) > 15 {
		t.Errorf("Offset = %.1f, want near 2000.5", res.Offset)
	}

	// Cached, but marked inexact so callers can tell
	if m, ok := idx.GetMapping(2, "8:35"); !ok || m.Exact {
		t.Errorf("Expected cached inexact mapping, got %v, %v", m, ok)
	}
}

func TestFindOffsetCancelled(t *testing.T) {
	reader := &scriptedReader{
		duration: 7200,
		clockAt:  linearGame(map[int]float64{2: 1500}, 1.3),
	}
	idx := newTestIndex(t)
	idx.SetQuarterStart(2, 1500)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSearcher(reader, idx, DefaultTuning())
	if _, err := s.FindOffset(ctx, 2, "8:34", 1500, 4200); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
