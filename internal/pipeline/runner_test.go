package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TKamote/tbsnews/internal/dedupe"
	"github.com/TKamote/tbsnews/internal/models"
	"github.com/TKamote/tbsnews/internal/sources"
)

type stubStore struct {
	existing    map[string]bool
	existsErr   error
	indexErr    error
	runLogErr   error
	claims      []models.Claim
	runLogs     []models.RunLog
	existsCalls int
}

func (s *stubStore) ClaimExists(_ context.Context, url string) (bool, error) {
	s.existsCalls++
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.existing[url], nil
}

func (s *stubStore) IndexClaim(_ context.Context, claim models.Claim) error {
	if s.indexErr != nil {
		return s.indexErr
	}
	s.claims = append(s.claims, claim)
	return nil
}

func (s *stubStore) AppendRunLog(_ context.Context, runLog models.RunLog) error {
	if s.runLogErr != nil {
		return s.runLogErr
	}
	s.runLogs = append(s.runLogs, runLog)
	return nil
}

type stubSource struct {
	name  string
	items []models.RawItem
	err   error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) ([]models.RawItem, error) {
	return s.items, s.err
}

type stubRelevance struct{ relevant bool }

func (s stubRelevance) IsRelevant(context.Context, string, string) bool { return s.relevant }

type stubScorer struct {
	result models.ScoringResult
	err    error
}

func (s stubScorer) Score(context.Context, string, string) (models.ScoringResult, error) {
	return s.result, s.err
}

type stubPublisher struct {
	published []models.Claim
	err       error
}

func (s *stubPublisher) Publish(_ context.Context, claim models.Claim) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, claim)
	return nil
}

func item(url, title string) models.RawItem {
	return models.RawItem{
		Title:       title,
		Description: "...",
		URL:         url,
		SourceName:  "Reuters",
		PublishedAt: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
		Origin:      models.OriginNews,
	}
}

func newRunner(store ClaimStore, srcs []sources.Source, relevant bool, scorer Scorer, pub Publisher, cache *dedupe.Cache) *Runner {
	return NewRunner(RunnerDeps{
		Store:     store,
		Sources:   srcs,
		Relevance: stubRelevance{relevant: relevant},
		Scorer:    scorer,
		Publisher: pub,
		Cache:     cache,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRunPersistsQualifyingClaim(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}}
	pub := &stubPublisher{}
	scorer := stubScorer{result: models.ScoringResult{Score: 9, Reasoning: "It cannot float.", Tags: []string{"cybertruck"}}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}

	runner := newRunner(store, []sources.Source{src}, true, scorer, pub, nil)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Fetched)
	require.Equal(t, 1, summary.Processed)
	require.Empty(t, summary.Errors)

	require.Len(t, store.claims, 1)
	claim := store.claims[0]
	require.Equal(t, "Tesla truck floats", claim.Title)
	require.Equal(t, 9, claim.Score)
	require.Equal(t, []string{"cybertruck"}, claim.Tags)
	require.Equal(t, models.OriginNews, claim.Source)
	require.WithinDuration(t, time.Now().UTC(), claim.FetchedAt, time.Minute)

	require.Len(t, store.runLogs, 1)
	require.Equal(t, 1, store.runLogs[0].ItemsFetched)
	require.Equal(t, 1, store.runLogs[0].ItemsProcessed)
	require.Empty(t, store.runLogs[0].Errors)

	require.Len(t, pub.published, 1)
}

func TestRunSkipsDuplicateSilently(t *testing.T) {
	store := &stubStore{existing: map[string]bool{"https://x.com/1": true}}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}

	summary, err := newRunner(store, []sources.Source{src}, true, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Fetched)
	require.Equal(t, 0, summary.Processed)
	require.Empty(t, summary.Errors)
	require.Empty(t, store.claims)
	require.Len(t, store.runLogs, 1)
}

func TestRunSkipsIrrelevantSilently(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://example.com/evs", "Generic EV news")}}

	summary, err := newRunner(store, []sources.Source{src}, false, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, summary.Processed)
	require.Empty(t, summary.Errors)
	require.Empty(t, store.claims)
}

func TestRunDropsBelowThreshold(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}}
	scorer := stubScorer{result: models.ScoringResult{Score: 2, Reasoning: "verified corporate news"}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://example.com/boring", "Tesla files 10-K")}}

	summary, err := newRunner(store, []sources.Source{src}, true, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, summary.Processed)
	require.Empty(t, summary.Errors)
	require.Empty(t, store.claims)
}

func TestRunPersistsSentinelScore(t *testing.T) {
	// A scoring failure yields score 5, which clears the threshold of
	// 3: the item is persisted as if legitimately scored.
	store := &stubStore{existing: map[string]bool{}}
	scorer := stubScorer{
		result: models.ScoringResult{Score: 5, Reasoning: "Error analyzing with AI: timeout", Tags: []string{"error"}},
		err:    errors.New("timeout"),
	}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}

	summary, err := newRunner(store, []sources.Source{src}, true, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Processed)
	require.Empty(t, summary.Errors)
	require.Len(t, store.claims, 1)
	require.Equal(t, 5, store.claims[0].Score)
	require.Equal(t, []string{"error"}, store.claims[0].Tags)
}

func TestRunRecordsDedupQueryFailure(t *testing.T) {
	store := &stubStore{existsErr: errors.New("cluster red")}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}

	summary, err := newRunner(store, []sources.Source{src}, true, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, summary.Processed)
	require.Len(t, summary.Errors, 1)
	require.Contains(t, summary.Errors[0], "Tesla truck floats")
	require.Contains(t, summary.Errors[0], "dedup check")
	require.Empty(t, store.claims)

	require.Len(t, store.runLogs, 1)
	require.Len(t, store.runLogs[0].Errors, 1)
}

func TestRunRecordsPersistFailure(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}, indexErr: errors.New("index closed")}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}

	summary, err := newRunner(store, []sources.Source{src}, true, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, summary.Processed)
	require.Len(t, summary.Errors, 1)
	require.Contains(t, summary.Errors[0], "persist claim")
}

func TestRunZeroFetchedSkipsRunLog(t *testing.T) {
	store := &stubStore{}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	src := &stubSource{name: "newsapi"}

	summary, err := newRunner(store, []sources.Source{src}, true, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, summary.Fetched)
	require.Equal(t, "no items found", summary.Message)
	require.Empty(t, store.runLogs)
}

func TestRunNilStore(t *testing.T) {
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	runner := newRunner(nil, nil, true, scorer, nil, nil)

	_, err := runner.Run(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRunRunLogWriteFailureIsFatal(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}, runLogErr: errors.New("index closed")}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}

	summary, err := newRunner(store, []sources.Source{src}, true, scorer, nil, nil).Run(context.Background())
	require.Error(t, err)

	// Partial counts survive the fatal path.
	require.Equal(t, 1, summary.Fetched)
	require.Equal(t, 1, summary.Processed)
}

func TestRunAbsorbsSourceFailure(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	good := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}
	bad := &stubSource{name: "x", err: errors.New("rate limited")}

	summary, err := newRunner(store, []sources.Source{bad, good}, true, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Fetched)
	require.Equal(t, 1, summary.Processed)
	require.Empty(t, summary.Errors)
}

func TestRunPreservesSourceOrder(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	first := &stubSource{name: "newsapi", items: []models.RawItem{item("https://a.com/1", "A"), item("https://a.com/2", "B")}}
	second := &stubSource{name: "reddit", items: []models.RawItem{item("https://b.com/1", "C")}}

	summary, err := newRunner(store, []sources.Source{first, second}, true, scorer, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Fetched)

	require.Len(t, store.claims, 3)
	require.Equal(t, "A", store.claims[0].Title)
	require.Equal(t, "B", store.claims[1].Title)
	require.Equal(t, "C", store.claims[2].Title)
}

func TestRunCacheShortCircuitsStoreQuery(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}
	cache := dedupe.NewCache(10, time.Hour)

	runner := newRunner(store, []sources.Source{src}, true, scorer, nil, cache)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.existsCalls)
	require.Len(t, store.claims, 1)

	// Second cycle hits the cache, not the store.
	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.existsCalls)
	require.Len(t, store.claims, 1)
}

func TestRunPublishFailureIsNotFatal(t *testing.T) {
	store := &stubStore{existing: map[string]bool{}}
	scorer := stubScorer{result: models.ScoringResult{Score: 9}}
	src := &stubSource{name: "newsapi", items: []models.RawItem{item("https://x.com/1", "Tesla truck floats")}}
	pub := &stubPublisher{err: errors.New("broker down")}

	summary, err := newRunner(store, []sources.Source{src}, true, scorer, pub, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Empty(t, summary.Errors)
	require.Len(t, store.claims, 1)
}
