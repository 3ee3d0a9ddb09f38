package models

import "time"

// Origin identifies which kind of upstream a raw item came from.
type Origin string

const (
	OriginNews   Origin = "news"
	OriginX      Origin = "x"
	OriginReddit Origin = "reddit"
)

// RawItem is the normalized output of a source adapter. It lives only
// for the duration of one fetch cycle.
type RawItem struct {
	Title       string
	Description string
	URL         string
	SourceName  string
	PublishedAt time.Time
	Origin      Origin
}

// ScoringResult is what the AI scorer produces for a single item.
type ScoringResult struct {
	Score     int      `json:"bullshitScore"`
	Reasoning string   `json:"reasoning"`
	Tags      []string `json:"tags"`
}

// Claim is the persisted entity shown on the public feed: a raw item
// that survived dedup and relevance checks and scored above threshold.
type Claim struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      Origin    `json:"source"`
	SourceName  string    `json:"sourceName"`
	Score       int       `json:"bullshitScore"`
	Reasoning   string    `json:"aiReasoning"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"publishedAt"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// RunLog records the aggregate outcome of one fetch cycle. Written
// once per cycle, never updated.
type RunLog struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ItemsFetched   int       `json:"itemsFetched"`
	ItemsProcessed int       `json:"itemsProcessed"`
	Errors         []string  `json:"errors"`
	DurationMs     int64     `json:"duration"`
}
