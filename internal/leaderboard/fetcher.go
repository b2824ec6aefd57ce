// Package leaderboard wraps the upstream paginated leaderboard listing API.
//
// The upstream only supports bulk listing — GET .../leaderboard/<guild> with
// limit and page query parameters — which is exactly why this service keeps a
// local cache at all. The fetcher's one job is to return a single page in
// upstream order (descending by experience; rank assignment depends on that
// ordering) or a transient error. It never retries: the sync loop's next tick
// is the retry policy.
package leaderboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/sakif/levelboard/internal/model"
)

// DefaultBaseURL is the upstream leveling API root.
const DefaultBaseURL = "https://mee6.xyz/api/plugins/levels"

// Client fetches leaderboard pages from the upstream API.
//
// RATE LIMITING:
// The upstream is a third party with its own patience. A token-bucket limiter
// (golang.org/x/time/rate) caps our request rate regardless of how fast the
// sync interval is configured — Wait blocks the calling tick rather than
// letting a misconfigured interval hammer the API.
type Client struct {
	http    *http.Client
	baseURL string
	guildID string
	limiter *rate.Limiter
}

// New creates a Client for the given guild's leaderboard.
//
// The explicit 10-second HTTP timeout is deliberate: the transport default is
// no timeout at all, and a hung upstream call would otherwise stall the sync
// loop indefinitely.
func New(baseURL, guildID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		guildID: guildID,
		// One request per second, small burst. The sync loop asks for at most
		// one page per tick anyway; this is a backstop, not a throttle.
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// FetchPage returns one page of the upstream listing, in upstream order.
//
// page is 0-based; pageSize is the upstream "limit" parameter. Any failure —
// transport, non-200 status, malformed body — is returned to the caller, who
// decides what a failed page means (the reconciler logs it and moves on).
func (c *Client) FetchPage(ctx context.Context, page int64, pageSize int) ([]model.RawPlayer, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("leaderboard: waiting for rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/leaderboard/%s?limit=%d&page=%d", c.baseURL, c.guildID, pageSize, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: building request for page %d: %w", page, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: fetching page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard: page %d returned status %d", page, resp.StatusCode)
	}

	var body model.PlayerPage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("leaderboard: decoding page %d: %w", page, err)
	}

	return body.Players, nil
}
