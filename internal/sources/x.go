package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TKamote/tbsnews/internal/models"
	"github.com/TKamote/tbsnews/internal/processing"
)

const xQuery = `(Tesla OR Elon OR Musk OR Cybertruck) -is:retweet lang:en`

// XSearch fetches recent posts from the X recent-search endpoint.
// Engagement fields are requested for display but do not gate the
// results here.
type XSearch struct {
	baseURL     string
	bearerToken string
	maxResults  int
	client      *http.Client
	log         *slog.Logger
}

var _ Source = (*XSearch)(nil)

// NewXSearch builds the adapter. An empty bearer token produces a
// disabled adapter that yields nothing.
func NewXSearch(bearerToken string, log *slog.Logger) *XSearch {
	return &XSearch{
		baseURL:     "https://api.twitter.com",
		bearerToken: bearerToken,
		maxResults:  10,
		client:      newHTTPClient(),
		log:         log,
	}
}

// Name identifies the adapter in logs.
func (x *XSearch) Name() string { return "x" }

// Fetch queries /2/tweets/search/recent.
func (x *XSearch) Fetch(ctx context.Context) ([]models.RawItem, error) {
	if x.bearerToken == "" {
		x.log.Warn("X_BEARER_TOKEN is missing, skipping X fetch")
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", xQuery)
	params.Set("max_results", fmt.Sprintf("%d", x.maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,author_id")

	endpoint := x.baseURL + "/2/tweets/search/recent?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+x.bearerToken)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch x posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("x api error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			CreatedAt string `json:"created_at"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode x response: %w", err)
	}

	items := make([]models.RawItem, 0, len(parsed.Data))
	for _, tweet := range parsed.Data {
		publishedAt, _ := time.Parse(time.RFC3339, tweet.CreatedAt)
		items = append(items, models.RawItem{
			Title:       processing.TruncateTitle(tweet.Text, 100),
			Description: tweet.Text,
			URL:         "https://x.com/user/status/" + tweet.ID,
			SourceName:  "X (Twitter)",
			PublishedAt: publishedAt,
			Origin:      models.OriginX,
		})
	}

	return items, nil
}
