package clips

import (
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
)

// DurationRules controls how long a clip runs for each kind of play, before
// situational bonuses and the caller's trailing buffer.
type DurationRules struct {
	Base          float64            `yaml:"base"`
	ByType        map[string]float64 `yaml:"by_type"`
	ScoreBonus    float64            `yaml:"score_bonus"`
	TurnoverBonus float64            `yaml:"turnover_bonus"`
}

var (
	currentRules *DurationRules
	rulesMu      sync.RWMutex
	// Fallback if the rules file is missing or broken
	fallbackRules = DurationRules{
		Base: 15,
		ByType: map[string]float64{
			"pass":       20,
			"run":        15,
			"punt":       25,
			"kickoff":    25,
			"field_goal": 20,
		},
		ScoreBonus:    25,
		TurnoverBonus: 15,
	}
)

// LoadDurationRules reads the clip-length table from YAML. Safe to call again
// at runtime to pick up edits.
func LoadDurationRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var rules DurationRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return err
	}
	if rules.Base <= 0 {
		rules.Base = fallbackRules.Base
	}

	rulesMu.Lock()
	currentRules = &rules
	rulesMu.Unlock()

	log.Printf("📏 Clip duration rules loaded: %d play types", len(rules.ByType))
	return nil
}

// PlayDuration computes the clip length for a play: base by play type, plus
// bonuses for scores (the celebration is the point) and turnovers (the
// scramble after the ball matters as much as the play).
func PlayDuration(play *models.PlayInfo) float64 {
	rulesMu.RLock()
	rules := currentRules
	rulesMu.RUnlock()

	if rules == nil {
		rules = &fallbackRules
	}

	dur := rules.Base
	if play == nil {
		return dur
	}

	if byType, ok := rules.ByType[strings.ToLower(play.Type)]; ok {
		dur = byType
	}
	if play.IsScore {
		dur += rules.ScoreBonus
	}
	if play.IsTurnover {
		dur += rules.TurnoverBonus
	}
	return dur
}
