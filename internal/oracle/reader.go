package oracle

import (
	"context"
	"errors"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
	"github.com/fazalmittu/nfl-clip-coach/internal/video"
)

// Metrics
var (
	oracleCalls = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "coach_oracle_calls_total", Help: "Vision model invocations"},
	)
	oracleMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "coach_oracle_misses_total", Help: "Frames with no readable clock"},
	)
	oracleErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "coach_oracle_errors_total", Help: "Frame extraction or vision API failures"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(oracleCalls, oracleMisses, oracleErrors)
}

// FrameSource extracts one scoreboard frame at a VOD offset.
type FrameSource interface {
	ExtractFrame(ctx context.Context, offset float64) ([]byte, error)
	Duration() float64
}

// ClockModel reads a game clock from a frame. Nil reading + nil error = no
// clock visible.
type ClockModel interface {
	ReadGameClock(ctx context.Context, frame []byte) (*models.GameClock, error)
}

// Reader wraps frame extraction + the vision model with a bounded retry policy
// over nearby offsets. This is the only place the rest of the system talks to
// the oracle from.
type Reader struct {
	frames    FrameSource
	model     ClockModel
	retryStep float64
}

func NewReader(frames FrameSource, model ClockModel, retryStep float64) *Reader {
	if retryStep <= 0 {
		retryStep = 2
	}
	return &Reader{frames: frames, model: model, retryStep: retryStep}
}

// Duration reports the length of the underlying video in seconds.
func (r *Reader) Duration() float64 {
	return r.frames.Duration()
}

// ReadClockNear tries the oracle at offset, then at offset ± step, ± 2*step...
// up to retries total attempts. Returns the first successful reading, or nil
// if every nearby frame is blind. Transient failures burn an attempt and are
// treated like a blind frame once the budget is spent.
func (r *Reader) ReadClockNear(ctx context.Context, offset float64, retries int) (*models.GameClock, error) {
	if retries < 1 {
		retries = 1
	}

	offsets := []float64{0}
	for i := 1; i < retries; i++ {
		step := float64(i) * r.retryStep
		offsets = append(offsets, step, -step)
	}

	duration := r.frames.Duration()

	for _, delta := range offsets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tryAt := offset + delta
		if tryAt < 0 || tryAt > duration {
			continue
		}

		frame, err := r.frames.ExtractFrame(ctx, tryAt)
		if err != nil {
			if errors.Is(err, video.ErrOutOfRange) {
				continue // never retry past the end of the file
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			oracleErrors.Inc()
			log.Printf("⚠️ Frame read failed at %.1fs: %v", tryAt, err)
			continue
		}

		oracleCalls.Inc()
		clock, err := r.model.ReadGameClock(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			oracleErrors.Inc()
			log.Printf("⚠️ Clock read failed at %.1fs: %v", tryAt, err)
			continue
		}
		if clock != nil {
			return clock, nil
		}
		oracleMisses.Inc()
	}

	return nil, nil
}
