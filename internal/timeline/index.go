package timeline

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
)

var (
	// ErrNotIndexed means a lookup was attempted before quarter boundaries
	// were discovered. Callers must run discovery first; the search layer
	// never auto-recovers from this.
	ErrNotIndexed = errors.New("video has no quarter index")

	// ErrIndexCorrupt means the persisted index could not be decoded. We fail
	// fast instead of silently rebuilding, so data loss never goes unnoticed.
	ErrIndexCorrupt = errors.New("persisted index is corrupt")
)

// mergeGap is how close two dead zones may sit (seconds) before they merge.
const mergeGap = 10.0

// DeadZone is a closed VOD interval where no game clock is ever visible
// (commercial break, halftime show, replay without overlay).
type DeadZone struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ResolvedMapping is a cached game-time → VOD-offset answer. Exact is false
// when the search settled for a relaxed best-match, so later callers can tell
// a tolerance hit from an approximation.
type ResolvedMapping struct {
	Offset float64 `json:"offset"`
	Exact  bool    `json:"exact"`
}

// NearbyMapping is a cached mapping close to a lookup target, used to seed
// tighter search windows for repeated lookups in the same stretch of game.
type NearbyMapping struct {
	Time      string
	Remaining int
	Offset    float64
	Exact     bool
}

// Snapshot is the full persisted state of one video's index.
type Snapshot struct {
	Quarters  map[int]float64
	Mappings  map[string]ResolvedMapping
	Readings  map[string]models.GameClock
	DeadZones []DeadZone
}

// Store persists index snapshots. Save must replace the whole record
// atomically; Load reports found=false for a never-seen video.
type Store interface {
	Load(videoKey string) (*Snapshot, bool, error)
	Save(videoKey string, snap *Snapshot) error
}

// Index is the shared working memory for one video: quarter boundaries,
// every clock reading any search has ever made, known dead zones, and
// resolved lookups. All access is serialized through one mutex because
// concurrent searches feed the same caches.
type Index struct {
	videoKey     string
	store        Store
	fallbackSpan float64

	mu        sync.Mutex
	quarters  map[int]float64
	mappings  map[string]ResolvedMapping
	readings  map[string]models.GameClock
	deadZones []DeadZone
}

// Load builds the index for a video, restoring persisted state if any exists.
// A nil store keeps the index memory-only (used by tests and dry runs).
func Load(store Store, videoKey string, fallbackSpan float64) (*Index, error) {
	if fallbackSpan <= 0 {
		fallbackSpan = 2700 // 45 min of VOD for the last known quarter
	}

	idx := &Index{
		videoKey:     videoKey,
		store:        store,
		fallbackSpan: fallbackSpan,
		quarters:     make(map[int]float64),
		mappings:     make(map[string]ResolvedMapping),
		readings:     make(map[string]models.GameClock),
	}

	if store != nil {
		snap, found, err := store.Load(videoKey)
		if err != nil {
			return nil, err
		}
		if found {
			idx.quarters = snap.Quarters
			idx.mappings = snap.Mappings
			idx.readings = snap.Readings
			idx.deadZones = snap.DeadZones
		}
	}

	return idx, nil
}

func (ix *Index) VideoKey() string {
	return ix.videoKey
}

// persistLocked writes the full state through the store. Callers hold ix.mu.
// A failed save is logged, not fatal: the in-memory index stays correct and
// the next mutation retries the write.
func (ix *Index) persistLocked() {
	if ix.store == nil {
		return
	}
	snap := &Snapshot{
		Quarters:  ix.quarters,
		Mappings:  ix.mappings,
		Readings:  ix.readings,
		DeadZones: ix.deadZones,
	}
	if err := ix.store.Save(ix.videoKey, snap); err != nil {
		log.Printf("⚠️ Failed to persist index for %s: %v", ix.videoKey, err)
	}
}

// IsIndexed reports whether at least one quarter boundary is known.
func (ix *Index) IsIndexed() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.quarters) > 0
}

// SetQuarterStart records a quarter boundary. Inserts that would break the
// "later quarter starts later in the VOD" ordering are rejected — discovery
// occasionally misreads a replay graphic, and a bad boundary poisons every
// search that extrapolates from it.
func (ix *Index) SetQuarterStart(quarter int, offset float64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for q, off := range ix.quarters {
		if q == quarter {
			continue
		}
		if q < quarter && off >= offset {
			return fmt.Errorf("Q%d start %.1fs not after Q%d start %.1fs", quarter, offset, q, off)
		}
		if q > quarter && off <= offset {
			return fmt.Errorf("Q%d start %.1fs not before Q%d start %.1fs", quarter, offset, q, off)
		}
	}

	ix.quarters[quarter] = offset
	ix.persistLocked()
	return nil
}

// QuarterStart returns the VOD offset where a quarter begins.
func (ix *Index) QuarterStart(quarter int) (float64, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	off, ok := ix.quarters[quarter]
	return off, ok
}

// QuarterStarts returns a copy of all known boundaries.
func (ix *Index) QuarterStarts() map[int]float64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make(map[int]float64, len(ix.quarters))
	for q, off := range ix.quarters {
		out[q] = off
	}
	return out
}

// QuarterRange returns the VOD span of a quarter: from its start to the next
// known quarter's start, or start + fallbackSpan when it is the last one.
func (ix *Index) QuarterRange(quarter int) (float64, float64, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start, ok := ix.quarters[quarter]
	if !ok {
		return 0, 0, false
	}

	end := start + ix.fallbackSpan
	for q, off := range ix.quarters {
		if q > quarter && off > start && off < end {
			end = off
		}
	}
	return start, end, true
}

// AddObservation records a successful clock reading into the shared cache.
// Offsets are rounded to 0.1s so re-reads of the same frame collapse.
func (ix *Index) AddObservation(offset float64, clock models.GameClock) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.readings[obsKey(offset)] = clock
	ix.persistLocked()
}

// NearestObservation finds the cached reading closest to an offset. Linear
// scan: the cache stays small because every entry cost an oracle call.
func (ix *Index) NearestObservation(offset float64) (float64, models.GameClock, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	best := math.MaxFloat64
	var bestOff float64
	var bestClock models.GameClock
	found := false

	for key, clock := range ix.readings {
		off, err := strconv.ParseFloat(key, 64)
		if err != nil {
			continue
		}
		if d := math.Abs(off - offset); d < best {
			best = d
			bestOff = off
			bestClock = clock
			found = true
		}
	}

	return bestOff, bestClock, found
}

// ObservationCount reports how many readings the shared cache holds.
func (ix *Index) ObservationCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.readings)
}

// AddDeadZone records a VOD interval with no visible clock, merging with any
// existing zone within mergeGap seconds. The set stays sorted by start.
func (ix *Index) AddDeadZone(start, end float64) {
	if end < start {
		start, end = end, start
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	newZone := DeadZone{Start: start, End: end}
	var merged []DeadZone
	for _, zone := range ix.deadZones {
		if zone.End < newZone.Start-mergeGap || zone.Start > newZone.End+mergeGap {
			merged = append(merged, zone)
		} else {
			newZone.Start = math.Min(zone.Start, newZone.Start)
			newZone.End = math.Max(zone.End, newZone.End)
		}
	}
	merged = append(merged, newZone)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })

	ix.deadZones = merged
	ix.persistLocked()
}

// InDeadZone reports whether an offset falls inside a known dead zone and
// returns the zone so the caller can skip past its end.
func (ix *Index) InDeadZone(offset float64) (DeadZone, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, zone := range ix.deadZones {
		if offset >= zone.Start && offset <= zone.End {
			return zone, true
		}
	}
	return DeadZone{}, false
}

// DeadZones returns a copy of the zone set, sorted by start.
func (ix *Index) DeadZones() []DeadZone {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]DeadZone, len(ix.deadZones))
	copy(out, ix.deadZones)
	return out
}

// GetMapping is a pure cache lookup for a previously resolved game time.
func (ix *Index) GetMapping(quarter int, gameTime string) (ResolvedMapping, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	m, ok := ix.mappings[mappingKey(quarter, gameTime)]
	return m, ok
}

// SetMapping caches a resolved lookup and persists immediately.
func (ix *Index) SetMapping(quarter int, gameTime string, offset float64, exact bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.mappings[mappingKey(quarter, gameTime)] = ResolvedMapping{Offset: offset, Exact: exact}
	ix.persistLocked()
}

// MappingCount reports how many resolved lookups are cached.
func (ix *Index) MappingCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.mappings)
}

// NearbyMappings returns cached mappings in the same quarter whose game time
// is within tolerance seconds of the target, nearest first.
func (ix *Index) NearbyMappings(quarter int, gameTime string, tolerance int) []NearbyMapping {
	target, err := models.ParseClockTime(gameTime)
	if err != nil {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	prefix := fmt.Sprintf("Q%d_", quarter)
	var nearby []NearbyMapping
	for key, m := range ix.mappings {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		cachedTime := key[len(prefix):]
		remaining, err := models.ParseClockTime(cachedTime)
		if err != nil {
			continue
		}
		if abs(remaining-target) <= tolerance {
			nearby = append(nearby, NearbyMapping{
				Time:      cachedTime,
				Remaining: remaining,
				Offset:    m.Offset,
				Exact:     m.Exact,
			})
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		return abs(nearby[i].Remaining-target) < abs(nearby[j].Remaining-target)
	})
	return nearby
}

// Clear empties all four index fields and persists the empty state, forcing
// full re-discovery on next use.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.quarters = make(map[int]float64)
	ix.mappings = make(map[string]ResolvedMapping)
	ix.readings = make(map[string]models.GameClock)
	ix.deadZones = nil
	ix.persistLocked()
}

func mappingKey(quarter int, gameTime string) string {
	return fmt.Sprintf("Q%d_%s", quarter, gameTime)
}

func obsKey(offset float64) string {
	return strconv.FormatFloat(math.Round(offset*10)/10, 'f', 1, 64)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
