package search

import (
	"github.com/fazalmittu/nfl-clip-coach/internal/config"
)

// Tuning names every constant the adaptive search uses. Pulling these out of
// the loop makes the search independently testable against synthetic oracles.
type Tuning struct {
	// Ratio is the default conversion from game seconds to VOD seconds.
	// Broadcasts run slower than the game clock (play stoppages, replays),
	// so one game second is roughly 1.3 VOD seconds.
	Ratio float64

	// Tolerance is the maximum game-second difference for an exact match.
	Tolerance float64

	// RelaxFactor widens Tolerance when deciding whether a best-effort
	// result is worth returning (and caching) at all.
	RelaxFactor float64

	// MaxIterations caps the search loop; the only bound on a runaway search.
	MaxIterations int

	// ReadRetries is the per-position attempt budget for the clock reader.
	ReadRetries int

	// QuarterJump is the VOD distance covered per quarter of game distance
	// during the coarse phase, before any same-quarter reading exists.
	QuarterJump float64

	// CoarseRatio adjusts a quarter jump by the target's position within the
	// destination quarter.
	CoarseRatio float64

	// BlindProbes are the offsets tried when the current position has no
	// visible clock anywhere within the retry budget.
	BlindProbes []float64

	// BlindStep is the forward advance when even the blind probes fail.
	BlindStep float64

	// DeadZoneMargin is how far past a dead zone's end to land.
	DeadZoneMargin float64

	// DampThreshold / DampFactor: once a best-match within
	// RelaxFactor*Tolerance exists, jumps longer than DampThreshold are
	// scaled by DampFactor to stop the search oscillating over the target.
	DampThreshold float64
	DampFactor    float64

	// StallWindow / StallSpan: when the last StallWindow positions cluster
	// inside StallSpan seconds with at least 3 distinct values, the search
	// has converged as tightly as the clock overlay allows.
	StallWindow int
	StallSpan   float64
}

// DefaultTuning returns values that converge in a handful of oracle calls on
// a typical 3-hour broadcast.
func DefaultTuning() Tuning {
	return Tuning{
		Ratio:          1.3,
		Tolerance:      3,
		RelaxFactor:    2,
		MaxIterations:  20,
		ReadRetries:    2,
		QuarterJump:    2000,
		CoarseRatio:    1.2,
		BlindProbes:    []float64{10, -10, 20, -20, 30, -30},
		BlindStep:      30,
		DeadZoneMargin: 5,
		DampThreshold:  100,
		DampFactor:     0.5,
		StallWindow:    4,
		StallSpan:      15,
	}
}

// TuningFromConfig builds a Tuning from the loaded configuration, falling
// back to defaults for anything unset.
func TuningFromConfig(cfg *config.Config) Tuning {
	t := DefaultTuning()

	if cfg.Search.Ratio > 0 {
		t.Ratio = cfg.Search.Ratio
	}
	if cfg.Search.Tolerance > 0 {
		t.Tolerance = cfg.Search.Tolerance
	}
	if cfg.Search.RelaxFactor > 0 {
		t.RelaxFactor = cfg.Search.RelaxFactor
	}
	if cfg.Search.MaxIterations > 0 {
		t.MaxIterations = cfg.Search.MaxIterations
	}
	if cfg.Search.ReadRetries > 0 {
		t.ReadRetries = cfg.Search.ReadRetries
	}
	if cfg.Search.QuarterJump > 0 {
		t.QuarterJump = cfg.Search.QuarterJump
	}
	if cfg.Search.CoarseRatio > 0 {
		t.CoarseRatio = cfg.Search.CoarseRatio
	}
	if cfg.Search.BlindStep > 0 {
		t.BlindStep = cfg.Search.BlindStep
	}
	if cfg.Search.DeadZoneMargin > 0 {
		t.DeadZoneMargin = cfg.Search.DeadZoneMargin
	}
	if cfg.Search.DampThreshold > 0 {
		t.DampThreshold = cfg.Search.DampThreshold
	}
	if cfg.Search.DampFactor > 0 {
		t.DampFactor = cfg.Search.DampFactor
	}
	if cfg.Search.StallSpan > 0 {
		t.StallSpan = cfg.Search.StallSpan
	}

	return t
}
