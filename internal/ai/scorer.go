package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TKamote/tbsnews/internal/models"
)

const scoringPromptFormat = `You are a BS detector for Tesla and Elon Musk news.
Analyze this news claim and score its "ridiculousness" or "absurdity" on a scale of 1-10.
1 = Boring, factual, verified corporate news.
5 = Sensationalized, clickbaity, or exaggerated.
10 = Completely absurd, false, or wildly speculative bullshit.

Title: %q
Snippet: %q

Respond ONLY with valid JSON in this exact format (no markdown, no code blocks):
{
  "bullshitScore": <number 1-10>,
  "reasoning": "<1-2 sentence explanation of why it is ridiculous or not>",
  "tags": ["<tag1>", "<tag2>"]
}

Limit tags to 2-3 items like: cybertruck, stock, fsd, elon, spacex, starlink, model3, modely, autopilot, etc.`

const scoringTimeout = 30 * time.Second

// Scorer rates an item's absurdity 1-10. Every failure path still
// yields a usable ScoringResult: a sentinel score of 5 tagged
// "unscored" (no key) or "error" (call failed), alongside the error so
// callers can tell a sentinel from a genuine middle score.
type Scorer struct {
	ai  *Client
	log *slog.Logger
}

// NewScorer wires the Gemini client.
func NewScorer(client *Client, log *slog.Logger) *Scorer {
	return &Scorer{ai: client, log: log}
}

// Score asks Gemini for a structured verdict on one item.
func (s *Scorer) Score(ctx context.Context, title, snippet string) (models.ScoringResult, error) {
	if !s.ai.Configured() {
		return models.ScoringResult{
			Score:     5,
			Reasoning: "AI scoring unavailable (API key missing)",
			Tags:      []string{"unscored"},
		}, ErrNotConfigured
	}

	prompt := fmt.Sprintf(scoringPromptFormat, title, snippet)
	raw, err := s.ai.Generate(ctx, prompt, GenerateOptions{
		Temperature:  0.3,
		ResponseJSON: true,
		Timeout:      scoringTimeout,
	})
	if err != nil {
		return errorResult(err), err
	}

	parsed, err := parseScoringResponse(raw)
	if err != nil {
		return errorResult(err), err
	}

	return parsed, nil
}

func errorResult(err error) models.ScoringResult {
	return models.ScoringResult{
		Score:     5,
		Reasoning: fmt.Sprintf("Error analyzing with AI: %v", err),
		Tags:      []string{"error"},
	}
}

// parseScoringResponse handles fence-wrapped output and fills defaults
// for missing fields. The score is clamped to [1,10]; absent or zero
// scores become 5.
func parseScoringResponse(raw string) (models.ScoringResult, error) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var payload struct {
		Score     float64  `json:"bullshitScore"`
		Reasoning string   `json:"reasoning"`
		Tags      []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return models.ScoringResult{}, fmt.Errorf("parse scoring response: %w", err)
	}

	score := int(payload.Score)
	if score == 0 {
		score = 5
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	reasoning := payload.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided."
	}

	tags := payload.Tags
	if tags == nil {
		tags = []string{}
	}

	return models.ScoringResult{Score: score, Reasoning: reasoning, Tags: tags}, nil
}
