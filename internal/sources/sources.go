// Package sources contains the upstream adapters feeding the fetch
// cycle. Each adapter performs one outbound request (or one per
// subreddit), normalizes the response into models.RawItem, and never
// takes down the cycle: a missing credential yields an empty result,
// a transport failure is returned for the caller to absorb.
package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/TKamote/tbsnews/internal/models"
)

// Source pulls fresh items from one upstream provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawItem, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
