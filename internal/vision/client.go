package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fazalmittu/nfl-clip-coach/internal/config"
	"github.com/fazalmittu/nfl-clip-coach/internal/models"
)

// Each call costs seconds of latency and real money; everything upstream is
// built around calling this as rarely as possible.
const clockPrompt = `Look at this NFL game broadcast frame.

Your task: Find and read the game clock display.

The game clock typically shows:
- The quarter (1st, 2nd, 3rd, 4th, or OT)
- The time remaining in the quarter (MM:SS format, counting down from 15:00)

If you can clearly see the game clock, respond with ONLY this exact format:
QUARTER: <number 1-4, or 5 for overtime>
TIME: <minutes>:<seconds>

If the game clock is NOT visible (commercial, replay without clock, halftime show, etc.), respond with:
NO_CLOCK_VISIBLE

Be precise. Only report what you can clearly read.`

var (
	quarterRe = regexp.MustCompile(`QUARTER:\s*(\d+)`)
	timeRe    = regexp.MustCompile(`TIME:\s*(\d+):(\d+)`)
)

// Client reads game clocks from scoreboard frames via the Gemini REST API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

func New(cfg *config.Config) *Client {
	return &Client{
		apiKey:   cfg.Vision.APIKey,
		model:    cfg.Vision.Model,
		endpoint: strings.TrimRight(cfg.Vision.Endpoint, "/"),
		http: &http.Client{
			Timeout: time.Duration(cfg.Vision.TimeoutSeconds) * time.Second,
		},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ReadGameClock sends one cropped frame to the model. A nil reading with a nil
// error means the model saw no clock (commercial, replay, halftime) — that is
// an expected outcome, not a failure.
func (c *Client) ReadGameClock(ctx context.Context, frame []byte) (*models.GameClock, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(frame),
				}},
				{Text: clockPrompt},
			},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision API status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("vision API returned no candidates")
	}

	return parseClockText(result.Candidates[0].Content.Parts[0].Text), nil
}

// parseClockText extracts a reading from the model's response text, or nil if
// no clock was visible or the response doesn't match the expected format.
func parseClockText(text string) *models.GameClock {
	text = strings.TrimSpace(text)

	if strings.Contains(text, "NO_CLOCK_VISIBLE") {
		return nil
	}

	qm := quarterRe.FindStringSubmatch(text)
	tm := timeRe.FindStringSubmatch(text)
	if qm == nil || tm == nil {
		return nil
	}

	quarter, _ := strconv.Atoi(qm[1])
	minutes, _ := strconv.Atoi(tm[1])
	seconds, _ := strconv.Atoi(tm[2])

	if quarter < 1 || quarter > 5 || seconds > 59 {
		return nil
	}

	return &models.GameClock{Quarter: quarter, Minutes: minutes, Seconds: seconds}
}
