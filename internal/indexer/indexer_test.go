package indexer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
	"github.com/fazalmittu/nfl-clip-coach/internal/search"
	"github.com/fazalmittu/nfl-clip-coach/internal/timeline"
)

// fakeBroadcast simulates a full game VOD: four quarters at a fixed rate with
// pregame, a halftime gap and postgame dead air. Oracle calls are counted so
// tests can assert what a lookup cost.
type fakeBroadcast struct {
	starts   map[int]float64
	rate     float64
	duration float64
	calls    int
}

func (b *fakeBroadcast) ReadClockNear(ctx context.Context, offset float64, retries int) (*models.GameClock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.calls++

	bestQ, bestStart := 0, -1.0
	for q, start := range b.starts {
		if offset >= start && start > bestStart {
			bestQ, bestStart = q, start
		}
	}
	if bestQ == 0 {
		return nil, nil // pregame
	}
	remaining := int(math.Round(900 - (offset-bestStart)/b.rate))
	if remaining < 0 {
		return nil, nil // break between quarters, or postgame
	}
	return &models.GameClock{Quarter: bestQ, Minutes: remaining / 60, Seconds: remaining % 60}, nil
}

func (b *fakeBroadcast) Duration() float64 { return b.duration }

// A typical game: quarters at 60, 1300, 3000 and 4240 with a long halftime
// between Q2 running out (~2470) and Q3 kicking off.
func newTestBroadcast() *fakeBroadcast {
	return &fakeBroadcast{
		starts:   map[int]float64{1: 60, 2: 1300, 3: 3000, 4: 4240},
		rate:     1.3,
		duration: 5700,
	}
}

func newTestIndexer(t *testing.T, reader search.ClockReader) *Indexer {
	ix, err := New("test/game.mp4", reader, nil, search.DefaultTuning(), 0, 300)
	if err != nil {
		t.Fatalf("Failed to build indexer: %v", err)
	}
	return ix
}

func TestAutoIndexDiscoversQuarters(t *testing.T) {
	broadcast := newTestBroadcast()
	ix := newTestIndexer(t, broadcast)

	if ix.IsIndexed() {
		t.Fatal("Fresh indexer should not report indexed")
	}

	if err := ix.AutoIndex(context.Background(), 300); err != nil {
		t.Fatalf("AutoIndex failed: %v", err)
	}

	if !ix.IsIndexed() {
		t.Fatal("Indexer should report indexed after discovery")
	}

	starts := ix.Index().QuarterStarts()
	if len(starts) != 4 {
		t.Fatalf("Discovered %d quarters, want 4: %v", len(starts), starts)
	}
	for q, want := range broadcast.starts {
		got, ok := starts[q]
		if !ok {
			t.Errorf("Q%d boundary missing", q)
			continue
		}
		if math.Abs(got-want) > 5 {
			t.Errorf("Q%d start = %.1f, want ≈%.1f", q, got, want)
		}
	}
}

func TestAutoIndexRecordsHalftime(t *testing.T) {
	ix := newTestIndexer(t, newTestBroadcast())

	if err := ix.AutoIndex(context.Background(), 300); err != nil {
		t.Fatalf("AutoIndex failed: %v", err)
	}

	zones := ix.Index().DeadZones()
	if len(zones) == 0 {
		t.Fatal("Expected a halftime dead zone")
	}

	// Last Q2 sweep sample is 2400, first Q3 sample is 3000; the zone sits
	// one margin inside each.
	zone := zones[0]
	if zone.Start != 2400+halftimeMargin || zone.End != 3000-halftimeMargin {
		t.Errorf("Halftime zone = [%.0f, %.0f], want [2460, 2940]", zone.Start, zone.End)
	}
}

func TestFindTimestampCachesResult(t *testing.T) {
	broadcast := newTestBroadcast()
	ix := newTestIndexer(t, broadcast)

	if err := ix.AutoIndex(context.Background(), 300); err != nil {
		t.Fatalf("AutoIndex failed: %v", err)
	}

	// 1. First lookup pays for oracle calls
	before := broadcast.calls
	res, err := ix.FindTimestamp(context.Background(), 2, "8:40")
	if err != nil {
		t.Fatalf("FindTimestamp failed: %v", err)
	}
	if broadcast.calls == before {
		t.Error("First lookup should have called the oracle")
	}

	// Q2 8:40 = 520s remaining → ≈1300 + 380*1.3 = 1794
	if math.Abs(res.Offset-1794) > 10 {
		t.Errorf("Offset = %.1f, want ≈1794", res.Offset)
	}

	// 2. Repeat lookup must be served from the mapping cache: same answer,
	// zero oracle calls
	before = broadcast.calls
	res2, err := ix.FindTimestamp(context.Background(), 2, "8:40")
	if err != nil {
		t.Fatalf("Cached FindTimestamp failed: %v", err)
	}
	if broadcast.calls != before {
		t.Errorf("Cached lookup made %d oracle calls, want 0", broadcast.calls-before)
	}
	if res2.Offset != res.Offset || res2.Exact != res.Exact {
		t.Errorf("Cached result %+v differs from original %+v", res2, res)
	}
}

func TestFindTimestampRequiresIndex(t *testing.T) {
	ix := newTestIndexer(t, newTestBroadcast())

	_, err := ix.FindTimestamp(context.Background(), 2, "8:40")
	if !errors.Is(err, timeline.ErrNotIndexed) {
		t.Errorf("Expected ErrNotIndexed, got %v", err)
	}

	// Unknown quarter after a partial index also refuses
	ix.Index().SetQuarterStart(1, 60)
	_, err = ix.FindTimestamp(context.Background(), 3, "10:00")
	if !errors.Is(err, timeline.ErrNotIndexed) {
		t.Errorf("Expected ErrNotIndexed for unknown quarter, got %v", err)
	}
}

func TestManualIndexRefinesRoughStarts(t *testing.T) {
	broadcast := newTestBroadcast()
	ix := newTestIndexer(t, broadcast)

	// Operator eyeballed the boundaries a few minutes off
	rough := map[int]float64{1: 250, 2: 1500, 3: 3200, 4: 4000}
	if err := ix.ManualIndex(context.Background(), rough); err != nil {
		t.Fatalf("ManualIndex failed: %v", err)
	}

	starts := ix.Index().QuarterStarts()
	for q, want := range broadcast.starts {
		got, ok := starts[q]
		if !ok {
			t.Errorf("Q%d boundary missing", q)
			continue
		}
		if math.Abs(got-want) > 5 {
			t.Errorf("Q%d start = %.1f, want ≈%.1f", q, got, want)
		}
	}

	// Out-of-range quarter numbers are ignored, not indexed
	ix2 := newTestIndexer(t, newTestBroadcast())
	if err := ix2.ManualIndex(context.Background(), map[int]float64{7: 100}); err != nil {
		t.Fatalf("ManualIndex failed: %v", err)
	}
	if ix2.IsIndexed() {
		t.Error("Quarter 7 should have been ignored")
	}
}

func TestAutoIndexCancellation(t *testing.T) {
	broadcast := newTestBroadcast()
	ix := newTestIndexer(t, broadcast)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ix.AutoIndex(ctx, 300); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if broadcast.calls != 0 {
		t.Errorf("Cancelled sweep made %d oracle calls, want 0", broadcast.calls)
	}
}
