package clips

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
	"github.com/fazalmittu/nfl-clip-coach/internal/search"
)

// fakeFinder answers lookups from a canned table keyed by "Q2 8:34" style
// strings; anything not in the table fails.
type fakeFinder struct {
	indexed     bool
	offsets     map[string]float64
	autoIndexed int
	lookups     int
}

func (f *fakeFinder) IsIndexed() bool { return f.indexed }

func (f *fakeFinder) AutoIndex(ctx context.Context, sampleInterval float64) error {
	f.autoIndexed++
	f.indexed = true
	return nil
}

func (f *fakeFinder) FindTimestamp(ctx context.Context, quarter int, gameTime string) (*search.Result, error) {
	f.lookups++
	key := fmt.Sprintf("Q%d %s", quarter, gameTime)
	off, ok := f.offsets[key]
	if !ok {
		return nil, errors.New("no clock match")
	}
	return &search.Result{Offset: off, Exact: true}, nil
}

type fakeSource struct {
	finder *fakeFinder
	err    error
}

func (s *fakeSource) Get(videoKey string) (Finder, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.finder, nil
}

func TestResolveBatch(t *testing.T) {
	// Known rules so the expected durations are stable
	rulesMu.Lock()
	currentRules = nil // fall back to the built-in table
	rulesMu.Unlock()

	finder := &fakeFinder{
		indexed: true,
		offsets: map[string]float64{
			"Q2 8:34": 2002,
			"Q1 14:55": 3, // right after kickoff; pre-roll must clamp at 0
		},
	}
	r := NewResolver(&fakeSource{finder: finder}, 5, 300)

	requests := []models.TimestampRequest{
		{Quarter: 2, Time: "8:34", Play: &models.PlayInfo{Type: "pass"}},
		{Quarter: 3, Time: "1:11"}, // not in the table → must fail alone
		{Quarter: 1, Time: "14:55", Play: &models.PlayInfo{Type: "kickoff"}},
	}

	clips := r.Resolve(context.Background(), "film/game.mp4", requests, 2)

	if len(clips) != 3 {
		t.Fatalf("Got %d clips, want 3 (one per request)", len(clips))
	}

	// 1. Resolved pass play: start = 2002-5, end = 2002 + 20 (pass) + 2 (buffer)
	first := clips[0]
	if !first.Resolved {
		t.Fatalf("First clip should resolve: %s", first.Error)
	}
	if first.Start != 1997 || first.End != 2024 {
		t.Errorf("First clip window = [%.1f, %.1f], want [1997, 2024]", first.Start, first.End)
	}
	if !first.Exact {
		t.Error("First clip should carry the exact marker")
	}

	// 2. The miss reports per-item and does not poison the batch
	if clips[1].Resolved {
		t.Error("Second clip should have failed")
	}
	if clips[1].Error == "" {
		t.Error("Failed clip should carry the error text")
	}
	if clips[1].Quarter != 3 || clips[1].Time != "1:11" {
		t.Errorf("Failed clip lost its request identity: %+v", clips[1])
	}

	// 3. Pre-roll never reaches before the start of the file
	third := clips[2]
	if !third.Resolved {
		t.Fatalf("Third clip should resolve: %s", third.Error)
	}
	if third.Start != 0 {
		t.Errorf("Start = %.1f, want 0 (clamped pre-roll)", third.Start)
	}
	if third.End != 3+25+2 { // kickoff 25s + buffer
		t.Errorf("End = %.1f, want 30", third.End)
	}
}

func TestResolveAutoIndexesOnDemand(t *testing.T) {
	finder := &fakeFinder{
		indexed: false,
		offsets: map[string]float64{"Q2 8:34": 2002},
	}
	r := NewResolver(&fakeSource{finder: finder}, 5, 300)

	clips := r.Resolve(context.Background(), "film/game.mp4",
		[]models.TimestampRequest{{Quarter: 2, Time: "8:34"}}, 0)

	if finder.autoIndexed != 1 {
		t.Errorf("AutoIndex ran %d times, want 1", finder.autoIndexed)
	}
	if len(clips) != 1 || !clips[0].Resolved {
		t.Fatalf("Expected one resolved clip, got %+v", clips)
	}

	// Already indexed → no second discovery
	r.Resolve(context.Background(), "film/game.mp4",
		[]models.TimestampRequest{{Quarter: 2, Time: "8:34"}}, 0)
	if finder.autoIndexed != 1 {
		t.Errorf("AutoIndex ran again on an indexed video")
	}
}

func TestResolveVideoUnavailable(t *testing.T) {
	r := NewResolver(&fakeSource{err: errors.New("no such film")}, 5, 300)

	requests := []models.TimestampRequest{
		{Quarter: 1, Time: "10:00"},
		{Quarter: 2, Time: "5:00"},
	}
	clips := r.Resolve(context.Background(), "film/missing.mp4", requests, 0)

	// Response shape still matches the request batch
	if len(clips) != 2 {
		t.Fatalf("Got %d clips, want 2", len(clips))
	}
	for i, clip := range clips {
		if clip.Resolved || clip.Error == "" {
			t.Errorf("Clip %d should report the failure: %+v", i, clip)
		}
	}
}
