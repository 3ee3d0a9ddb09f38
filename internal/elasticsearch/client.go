package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/TKamote/tbsnews/internal/models"
)

// Client wraps go-elasticsearch with helpers for the claims feed and
// the append-only fetch-log collection.
type Client struct {
	es          *elasticsearch.Client
	claimsIndex string
	logsIndex   string
	log         *slog.Logger
}

// ClaimSearchParams narrow the feed query.
type ClaimSearchParams struct {
	MinScore int
	Source   string
	Size     int
	Sort     string
}

// ClaimSearchResult bundles hits and total count.
type ClaimSearchResult struct {
	Total int64          `json:"total"`
	Items []models.Claim `json:"items"`
}

// New instantiates the Elasticsearch client.
func New(addr, claimsIndex, logsIndex string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, claimsIndex: claimsIndex, logsIndex: logsIndex, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health pings the cluster to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// IndexClaim writes one claim document. The ID is assigned here when
// empty; uniqueness per URL is the dedup gate's job, not the store's.
func (c *Client) IndexClaim(ctx context.Context, claim models.Claim) error {
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}

	payload, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.claimsIndex,
		DocumentID: claim.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index claim: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index claim failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// ClaimExists reports whether a claim with exactly this URL is already
// stored. Used as the pre-write dedup check.
func (c *Client) ClaimExists(ctx context.Context, url string) (bool, error) {
	body := map[string]any{
		"size": 1,
		"query": map[string]any{
			"term": map[string]any{
				"url.keyword": url,
			},
		},
		"_source": false,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("marshal exists body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.claimsIndex),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return false, fmt.Errorf("search claim by url: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return false, fmt.Errorf("search claim by url failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []json.RawMessage `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode exists response: %w", err)
	}

	return len(parsed.Hits.Hits) > 0, nil
}

// SearchClaims executes the feed query: score range, optional source
// filter, sorted by fetch time or score.
func (c *Client) SearchClaims(ctx context.Context, params ClaimSearchParams) (*ClaimSearchResult, error) {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}

	filters := make([]map[string]any, 0, 2)

	if params.MinScore > 0 {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"bullshitScore": map[string]any{"gte": params.MinScore},
			},
		})
	}

	if params.Source != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{
				"source.keyword": params.Source,
			},
		})
	}

	boolQuery := map[string]any{}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	} else {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	body := map[string]any{
		"size":             params.Size,
		"track_total_hits": true,
		"query": map[string]any{
			"bool": boolQuery,
		},
	}

	sortField := params.Sort
	if sortField == "" {
		sortField = "fetchedAt:desc"
	}

	parts := strings.Split(sortField, ":")
	field := parts[0]
	if field == "" {
		field = "fetchedAt"
	}
	order := "desc"
	if len(parts) > 1 && parts[1] != "" {
		order = parts[1]
	}
	body["sort"] = []map[string]any{
		{field: map[string]any{"order": order}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.claimsIndex),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search claims: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search claims failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Claim `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.Claim, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}

	return &ClaimSearchResult{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}

// AppendRunLog writes one audit record for a completed fetch cycle.
func (c *Client) AppendRunLog(ctx context.Context, runLog models.RunLog) error {
	if runLog.ID == "" {
		runLog.ID = uuid.NewString()
	}
	if runLog.Errors == nil {
		runLog.Errors = []string{}
	}

	payload, err := json.Marshal(runLog)
	if err != nil {
		return fmt.Errorf("marshal run log: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.logsIndex,
		DocumentID: runLog.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index run log: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index run log failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// RecentRunLogs returns the latest cycle records, newest first.
func (c *Client) RecentRunLogs(ctx context.Context, size int) ([]models.RunLog, error) {
	if size <= 0 {
		size = 20
	}

	body := map[string]any{
		"size": size,
		"query": map[string]any{
			"match_all": map[string]any{},
		},
		"sort": []map[string]any{
			{"timestamp": map[string]any{"order": "desc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal logs body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.logsIndex),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search run logs: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search run logs failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.RunLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode logs response: %w", err)
	}

	logs := make([]models.RunLog, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		logs = append(logs, hit.Source)
	}

	return logs, nil
}

// DeleteLogsOlderThan removes fetch-log documents older than maxAge
// using batched delete-by-query. It loops until a batch deletes fewer
// documents than the requested batchSize.
func (c *Client) DeleteLogsOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"timestamp": map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.logsIndex},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}
