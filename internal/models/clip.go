package models

// PlayInfo is pass-through metadata supplied by the play-by-play query layer.
// The resolver only inspects Type, IsScore and IsTurnover to size the clip.
type PlayInfo struct {
	Type        string `json:"play_type"` // pass, run, punt, kickoff, field_goal, ...
	Description string `json:"description,omitempty"`
	IsScore     bool   `json:"is_score,omitempty"`
	IsTurnover  bool   `json:"is_turnover,omitempty"`
}

// TimestampRequest asks for the moment a game clock showed a specific time.
type TimestampRequest struct {
	Quarter int       `json:"quarter"` // 1-4, 5 for OT
	Time    string    `json:"time"`    // "8:34", counts down
	Play    *PlayInfo `json:"play,omitempty"`
}

// Clip is one resolved (or failed) entry of a batch. A failed entry keeps its
// slot so callers can line results up with their requests.
type Clip struct {
	VideoKey string    `json:"video_key"`
	Quarter  int       `json:"quarter"`
	Time     string    `json:"time"`
	Start    float64   `json:"start_seconds"`
	End      float64   `json:"end_seconds"`
	Exact    bool      `json:"exact"` // false when resolved via a relaxed best-match
	Play     *PlayInfo `json:"play,omitempty"`
	Resolved bool      `json:"resolved"`
	Error    string    `json:"error,omitempty"`
}
