// Package llm adjudicates candidate threat/suspicious boxes through a
// vision-capable chat-completion model, gated by a two-level cooldown so
// a persistent detection doesn't spam the API every frame (spec.md §4.5).
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
)

type Config struct {
	APIKey           string
	Model            string // defaults to gpt-4o-mini
	BaseURL          string // defaults to the OpenAI chat-completions endpoint; overridable in tests
	Cooldown         time.Duration
	PerTrackCooldown time.Duration // defaults to Cooldown when zero (LLM_PER_TRACK_COOLDOWN_SECONDS)
	AutoOnThreat     bool          // run without an explicit per-request opt-in
}

// Verdict is the adjudicator's opinion on a single candidate box.
type Verdict struct {
	Triggered      bool
	FalsePositive  bool
	Confidence     *float64
	Reason         string
	Model          string
	Error          string // non-empty on cooldown-skip or call failure; Reason still set for UI display
}

type Adjudicator struct {
	cfg      Config
	cooldown *Cooldown
	http     *http.Client
}

func NewAdjudicator(cfg Config) *Adjudicator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adjudicator{
		cfg:      cfg,
		cooldown: NewCooldown(cfg.Cooldown, cfg.PerTrackCooldown),
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

// HasAPIKey reports whether a credential is configured at all; callers use
// this to decide whether attempting adjudication is even possible before
// doing the (comparatively expensive) crop/encode work.
func (a *Adjudicator) HasAPIKey() bool {
	return a.cfg.APIKey != ""
}

// ShouldAutoTrigger reports whether a call should be attempted for this
// frame: a key must be configured, and either auto-mode is on or the
// caller's request opted in (spec.md §4.5 trigger condition).
func (a *Adjudicator) ShouldAutoTrigger(requestOptIn bool) bool {
	return a.HasAPIKey() && (a.cfg.AutoOnThreat || requestOptIn)
}

// Candidate is the single box picked for adjudication: the caller
// (pipeline.pickCandidate) already prefers boxes associated with a
// track and picks the largest by area among them, before this package
// ever sees it. Summary is
// the "top three detections with confidences" text the caller has
// already built from this frame's boxes; it's surfaced as Reason when
// the cooldown gate blocks the call so the UI still has context.
type Candidate struct {
	Label    string
	TrackID  *int
	StreamID string
	FullJPEG []byte
	CropJPEG []byte
	Summary  string
}

// Adjudicate runs the cooldown gate and, if it passes, calls the
// configured model. A cooldown refusal is not an error: it returns a
// Verdict with Triggered=false, Reason set to the candidate's summary
// (falling back to a generic label), and Error set to
// "cooldown active: Ns remaining" per spec.md §4.5.
func (a *Adjudicator) Adjudicate(ctx context.Context, c Candidate) Verdict {
	if a.cfg.APIKey == "" {
		return Verdict{Reason: "LLM adjudication disabled: no API key configured"}
	}

	ok, remaining := a.cooldown.Allow(c.StreamID, c.TrackID)
	if !ok {
		reason := c.Summary
		if reason == "" {
			reason = fmt.Sprintf("detected %s", c.Label)
		}
		return Verdict{
			Reason: reason,
			Error:  fmt.Sprintf("cooldown active: %ds remaining", int(remaining.Round(time.Second).Seconds())),
		}
	}

	verdict, err := a.call(ctx, c)
	if err != nil {
		return Verdict{Triggered: true, Model: a.cfg.Model, Error: err.Error(), Reason: err.Error()}
	}
	verdict.Triggered = true
	verdict.Model = a.cfg.Model
	return verdict
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	MaxTokens int `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type verdictPayload struct {
	FalsePositive bool     `json:"false_positive"`
	Confidence    *float64 `json:"confidence"`
	Reason        string   `json:"reason"`
}

func (a *Adjudicator) call(ctx context.Context, c Candidate) (Verdict, error) {
	prompt := fmt.Sprintf(
		"You are a security assistant. A vision model flagged a potential threat or suspicious object/person.\n"+
			"Vision label: %s.\n"+
			"Provide a binary decision ONLY. Respond strictly as JSON with: "+
			"false_positive (boolean), reason (string).\n"+
			"Rules for reason: keep it to one short sentence (<= 18 words), "+
			"be specific about what is seen (e.g., 'metallic knife-like object', 'toy gun', 'cell phone'), "+
			"and include minimal context if obvious (e.g., 'in hand', 'on table', 'reflection').",
		c.Label,
	)

	req := chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an expert security analyst helping filter false positives."},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL(c.FullJPEG)}},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL(c.CropJPEG)}},
			}},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	}
	req.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(req)
	if err != nil {
		return Verdict{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return Verdict{}, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("llm API error: HTTP %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil || len(cr.Choices) == 0 {
		return Verdict{}, fmt.Errorf("llm response decode failed: %w", err)
	}

	var vp verdictPayload
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &vp); err != nil {
		return Verdict{Reason: "LLM returned non-JSON content", Error: "LLM returned non-JSON content"}, nil
	}

	return Verdict{
		FalsePositive: vp.FalsePositive,
		Confidence:    vp.Confidence,
		Reason:        vp.Reason,
	}, nil
}

func dataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}
