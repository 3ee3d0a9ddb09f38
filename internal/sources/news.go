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

const newsQuery = `Tesla OR "Elon Musk" OR Cybertruck`

// NewsAPI fetches recent articles from newsapi.org. The page size is
// kept small to stay inside the free tier across the 8h cycle.
type NewsAPI struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
	log      *slog.Logger
}

var _ Source = (*NewsAPI)(nil)

// NewNewsAPI builds the adapter. An empty apiKey produces a disabled
// adapter that yields nothing.
func NewNewsAPI(apiKey string, log *slog.Logger) *NewsAPI {
	return &NewsAPI{
		baseURL:  "https://newsapi.org",
		apiKey:   apiKey,
		pageSize: 10,
		client:   newHTTPClient(),
		log:      log,
	}
}

// Name identifies the adapter in logs.
func (n *NewsAPI) Name() string { return "newsapi" }

// Fetch queries /v2/everything sorted by publish time.
func (n *NewsAPI) Fetch(ctx context.Context) ([]models.RawItem, error) {
	if n.apiKey == "" {
		n.log.Warn("NEWS_API_KEY is missing, skipping news fetch")
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", newsQuery)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprintf("%d", n.pageSize))
	params.Set("apiKey", n.apiKey)

	endpoint := n.baseURL + "/v2/everything?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("newsapi error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Articles []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}

	items := make([]models.RawItem, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		description := processing.StripHTML(a.Description)
		if description == "" {
			description = a.Title
		}

		publishedAt, _ := time.Parse(time.RFC3339, a.PublishedAt)
		items = append(items, models.RawItem{
			Title:       a.Title,
			Description: description,
			URL:         a.URL,
			SourceName:  a.Source.Name,
			PublishedAt: publishedAt,
			Origin:      models.OriginNews,
		})
	}

	return items, nil
}
