// Package pipeline orchestrates one fetch cycle: fan-out fetch from
// every source, then a sequential per-item dedup -> relevance ->
// scoring -> persistence fold, closed out by one audit record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TKamote/tbsnews/internal/dedupe"
	"github.com/TKamote/tbsnews/internal/models"
	"github.com/TKamote/tbsnews/internal/sources"
)

// persistThreshold is the minimum absurdity score a claim needs to be
// worth showing on the feed. Note that sentinel scores (5) pass it, so
// failed-to-score items are persisted as if legitimately scored.
const persistThreshold = 3

// ErrStoreUnavailable aborts a cycle before any fetch happens.
var ErrStoreUnavailable = errors.New("claims store not configured")

// ClaimStore is the slice of the document store the cycle needs.
type ClaimStore interface {
	ClaimExists(ctx context.Context, url string) (bool, error)
	IndexClaim(ctx context.Context, claim models.Claim) error
	AppendRunLog(ctx context.Context, runLog models.RunLog) error
}

// RelevanceChecker decides whether an item is on topic.
type RelevanceChecker interface {
	IsRelevant(ctx context.Context, title, description string) bool
}

// Scorer rates an item's absurdity. A non-nil error means the result
// is a sentinel, which still flows through the persistence threshold.
type Scorer interface {
	Score(ctx context.Context, title, snippet string) (models.ScoringResult, error)
}

// Publisher announces persisted claims. May be nil.
type Publisher interface {
	Publish(ctx context.Context, claim models.Claim) error
}

// Summary is what a cycle reports back to its trigger.
type Summary struct {
	Fetched    int      `json:"fetched"`
	Processed  int      `json:"processed"`
	DurationMs int64    `json:"duration"`
	Errors     []string `json:"errors,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// RunnerDeps wires every collaborator into the cycle runner.
type RunnerDeps struct {
	Store     ClaimStore
	Sources   []sources.Source
	Relevance RelevanceChecker
	Scorer    Scorer
	Publisher Publisher
	Cache     *dedupe.Cache
	Logger    *slog.Logger
}

// Runner executes fetch cycles. Safe to call Run repeatedly; each
// cycle is self-contained and holds no state beyond the dedupe cache.
type Runner struct {
	store     ClaimStore
	sources   []sources.Source
	relevance RelevanceChecker
	scorer    Scorer
	publisher Publisher
	cache     *dedupe.Cache
	log       *slog.Logger
}

// NewRunner constructs the orchestrator.
func NewRunner(deps RunnerDeps) *Runner {
	return &Runner{
		store:     deps.Store,
		sources:   deps.Sources,
		relevance: deps.Relevance,
		scorer:    deps.Scorer,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		log:       deps.Logger,
	}
}

// Run performs one full cycle. Per-item failures are collected into
// the summary's error list; only a missing store or a failed run-log
// write abort with an error (no RunLog is written in either case).
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	if r.store == nil {
		return Summary{}, ErrStoreUnavailable
	}

	items := r.fetchAll(ctx)

	summary := Summary{Fetched: len(items)}
	if len(items) == 0 {
		summary.Message = "no items found"
		summary.DurationMs = time.Since(start).Milliseconds()
		return summary, nil
	}

	for _, item := range items {
		persisted, err := r.processItem(ctx, item)
		if err != nil {
			r.log.Warn("item failed", "title", item.Title, "err", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", item.Title, err))
			continue
		}
		if persisted {
			summary.Processed++
		}
	}

	summary.DurationMs = time.Since(start).Milliseconds()

	runLog := models.RunLog{
		Timestamp:      time.Now().UTC(),
		ItemsFetched:   summary.Fetched,
		ItemsProcessed: summary.Processed,
		Errors:         summary.Errors,
		DurationMs:     summary.DurationMs,
	}
	if err := r.store.AppendRunLog(ctx, runLog); err != nil {
		return summary, fmt.Errorf("append run log: %w", err)
	}

	r.log.Info("cycle completed",
		slog.Int("fetched", summary.Fetched),
		slog.Int("processed", summary.Processed),
		slog.Int("errors", len(summary.Errors)),
		slog.Int64("duration_ms", summary.DurationMs),
	)

	return summary, nil
}

// fetchAll queries every source concurrently and concatenates the
// results in source order. A failing source contributes nothing and
// never fails the cycle.
func (r *Runner) fetchAll(ctx context.Context) []models.RawItem {
	results := make([][]models.RawItem, len(r.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range r.sources {
		i, src := i, src
		g.Go(func() error {
			items, err := src.Fetch(gctx)
			if err != nil {
				r.log.Warn("source fetch failed", "source", src.Name(), "err", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	var merged []models.RawItem
	for _, items := range results {
		merged = append(merged, items...)
	}
	return merged
}

// processItem runs one item through the gate sequence. It reports
// whether a claim was written; an error means the item was skipped for
// a reason worth surfacing (dedup query or write failure), while
// dedup hits, irrelevant items, and low scores skip silently.
func (r *Runner) processItem(ctx context.Context, item models.RawItem) (bool, error) {
	if r.cache != nil && r.cache.IsSeen(item.URL) {
		r.log.Debug("duplicate claim (cached)", "url", item.URL)
		return false, nil
	}

	exists, err := r.store.ClaimExists(ctx, item.URL)
	if err != nil {
		// Cannot prove uniqueness; do not risk a duplicate write.
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if exists {
		if r.cache != nil {
			r.cache.MarkSeen(item.URL)
		}
		r.log.Debug("duplicate claim", "url", item.URL)
		return false, nil
	}

	if !r.relevance.IsRelevant(ctx, item.Title, item.Description) {
		r.log.Debug("not relevant", "title", item.Title)
		return false, nil
	}

	scoring, err := r.scorer.Score(ctx, item.Title, item.Description)
	if err != nil {
		r.log.Warn("scoring failed, keeping sentinel result", "title", item.Title, "err", err)
	}

	if scoring.Score < persistThreshold {
		return false, nil
	}

	claim := models.Claim{
		Title:       item.Title,
		Description: item.Description,
		URL:         item.URL,
		Source:      item.Origin,
		SourceName:  item.SourceName,
		Score:       scoring.Score,
		Reasoning:   scoring.Reasoning,
		Tags:        scoring.Tags,
		PublishedAt: item.PublishedAt,
		FetchedAt:   time.Now().UTC(),
	}

	if err := r.store.IndexClaim(ctx, claim); err != nil {
		return false, fmt.Errorf("persist claim: %w", err)
	}

	if r.cache != nil {
		r.cache.MarkSeen(item.URL)
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, claim); err != nil {
			r.log.Warn("claim event publish failed", "url", claim.URL, "err", err)
		}
	}

	return true, nil
}
