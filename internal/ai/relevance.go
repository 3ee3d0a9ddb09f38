package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// relevanceKeywords catch the overwhelming majority of on-topic items
// without spending an API call.
var relevanceKeywords = []string{
	"tesla", "elon", "musk", "cybertruck",
	"model 3", "model y", "model s", "model x",
	"fsd", "full self driving",
	"spacex", "starlink", "neuralink", "boring company",
	"tesla stock", "tsla",
}

const relevancePromptFormat = `Is this news article directly related to Tesla, Elon Musk, SpaceX, or their companies? Answer with only "yes" or "no".

Title: %q
Description: %q`

// RelevanceChecker decides whether an item belongs on the feed at all.
// Keyword match first; the AI fallback only runs for ambiguous phrasing
// and fails closed.
type RelevanceChecker struct {
	ai  *Client
	log *slog.Logger
}

// NewRelevanceChecker wires the optional Gemini fallback.
func NewRelevanceChecker(client *Client, log *slog.Logger) *RelevanceChecker {
	return &RelevanceChecker{ai: client, log: log}
}

// IsRelevant runs the two-stage check.
func (r *RelevanceChecker) IsRelevant(ctx context.Context, title, description string) bool {
	text := strings.ToLower(title + " " + description)
	for _, keyword := range relevanceKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}

	if !r.ai.Configured() {
		return false
	}

	prompt := fmt.Sprintf(relevancePromptFormat, title, description)
	answer, err := r.ai.Generate(ctx, prompt, GenerateOptions{
		Temperature:     0.1,
		MaxOutputTokens: 10,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		r.log.Warn("relevance check failed, treating as not relevant", "title", title, "err", err)
		return false
	}

	return strings.Contains(strings.ToLower(strings.TrimSpace(answer)), "yes")
}
