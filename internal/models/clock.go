package models

import (
	"fmt"
	"strconv"
	"strings"
)

// GameClock is a scoreboard reading from a single broadcast frame.
type GameClock struct {
	Quarter int `json:"quarter"` // 1-4, 5 for OT
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// RemainingSeconds is the time left in the quarter.
// The clock counts DOWN, so a larger value means an earlier VOD offset.
func (g GameClock) RemainingSeconds() int {
	return g.Minutes*60 + g.Seconds
}

// TimeStr renders the clock as "8:34".
func (g GameClock) TimeStr() string {
	return fmt.Sprintf("%d:%02d", g.Minutes, g.Seconds)
}

func (g GameClock) String() string {
	if g.Quarter <= 4 {
		return fmt.Sprintf("Q%d %s", g.Quarter, g.TimeStr())
	}
	return fmt.Sprintf("OT %s", g.TimeStr())
}

// ParseClockTime converts a "M:SS" game clock string into remaining seconds.
func ParseClockTime(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid game clock %q (want M:SS)", s)
	}
	mins, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid game clock %q: %v", s, err)
	}
	secs, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid game clock %q: %v", s, err)
	}
	if mins < 0 || secs < 0 || secs > 59 {
		return 0, fmt.Errorf("game clock %q out of range", s)
	}
	return mins*60 + secs, nil
}
