package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TKamote/tbsnews/internal/models"
	"github.com/TKamote/tbsnews/internal/processing"
)

const redditUserAgent = "Mozilla/5.0 (BullshitDetector/1.0)"

// Reddit fetches the hot listing of each configured subreddit. No
// credential is needed, only a stable User-Agent.
type Reddit struct {
	baseURL    string
	subreddits []string
	perSub     int
	client     *http.Client
	log        *slog.Logger
}

var _ Source = (*Reddit)(nil)

// NewReddit builds the adapter over the public JSON listings.
func NewReddit(subreddits []string, log *slog.Logger) *Reddit {
	return &Reddit{
		baseURL:    "https://www.reddit.com",
		subreddits: subreddits,
		perSub:     5,
		client:     newHTTPClient(),
		log:        log,
	}
}

// Name identifies the adapter in logs.
func (r *Reddit) Name() string { return "reddit" }

// Fetch pulls hot posts from every configured subreddit in order. Any
// failing subreddit fails the whole adapter; the cycle absorbs that as
// an empty contribution.
func (r *Reddit) Fetch(ctx context.Context) ([]models.RawItem, error) {
	var items []models.RawItem

	for _, sub := range r.subreddits {
		posts, err := r.fetchSubreddit(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("subreddit %s: %w", sub, err)
		}
		items = append(items, posts...)
	}

	return items, nil
}

func (r *Reddit) fetchSubreddit(ctx context.Context, sub string) ([]models.RawItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", r.baseURL, sub, r.perSub)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", redditUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch hot listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("reddit error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Data struct {
			Children []struct {
				Data struct {
					Title      string  `json:"title"`
					Selftext   string  `json:"selftext"`
					Permalink  string  `json:"permalink"`
					CreatedUTC float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	items := make([]models.RawItem, 0, len(parsed.Data.Children))
	for _, child := range parsed.Data.Children {
		post := child.Data

		description := processing.StripHTML(post.Selftext)
		if description == "" {
			description = post.Title
		}

		items = append(items, models.RawItem{
			Title:       post.Title,
			Description: description,
			URL:         "https://reddit.com" + post.Permalink,
			SourceName:  "r/" + sub,
			PublishedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
			Origin:      models.OriginReddit,
		})
	}

	return items, nil
}
