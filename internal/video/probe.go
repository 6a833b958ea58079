package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrOutOfRange means the requested offset is beyond the end of the video.
// Callers skip these offsets instead of retrying them.
var ErrOutOfRange = errors.New("offset outside video bounds")

// File is a local broadcast recording opened for frame extraction.
type File struct {
	Path     string
	duration float64
}

// Open probes the file with ffprobe and caches its duration.
func Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video file missing: %w", err)
	}

	// Reading the duration also doubles as an integrity check: a truncated
	// download makes ffprobe return a non-zero status.
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return nil, fmt.Errorf("ffprobe returned bad duration %q: %w", out, err)
	}

	return &File{Path: path, duration: dur}, nil
}

// Duration is the total length of the video in seconds.
func (f *File) Duration() float64 {
	return f.duration
}

// ExtractFrame grabs one JPEG at the given offset, cropped to the bottom
// quarter of the picture where the scoreboard overlay lives. Sending the
// vision model the full frame wastes tokens and hurts clock-read accuracy.
func (f *File) ExtractFrame(ctx context.Context, offset float64) ([]byte, error) {
	if offset < 0 || offset > f.duration {
		return nil, ErrOutOfRange
	}

	// -ss before -i seeks on keyframes, which is what makes a single frame
	// pull cheap even deep into a 3-hour broadcast.
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.2f", offset),
		"-i", f.Path,
		"-frames:v", "1",
		"-vf", "crop=iw:ih/4:0:3*ih/4",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"pipe:1")

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("frame extraction at %.1fs failed: %w", offset, err)
	}
	if len(out) == 0 {
		return nil, ErrOutOfRange
	}

	return out, nil
}
