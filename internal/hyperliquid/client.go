// Package hyperliquid implements the REST adapter for the Hyperliquid info
// and stats endpoints.
package hyperliquid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/hyperwatch/errs"
	"github.com/coachpo/hyperwatch/internal/schema"
)

const venue = "hyperliquid"

// Client talks to the Hyperliquid REST surfaces. The info endpoint serves
// fills, positions and open orders; the stats endpoint serves the leaderboard.
type Client struct {
	http     *http.Client
	infoURL  string
	statsURL string
	clock    func() time.Time
}

// NewClient constructs a client with the provided base URLs and HTTP timeout.
func NewClient(infoURL, statsURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := new(http.Client)
	client.Timeout = timeout
	return &Client{
		http:     client,
		infoURL:  strings.TrimRight(infoURL, "/"),
		statsURL: strings.TrimRight(statsURL, "/"),
		clock:    time.Now,
	}
}

// WithClock overrides the internal clock, primarily for testing.
func (c *Client) WithClock(clock func() time.Time) *Client {
	if clock != nil {
		c.clock = clock
	}
	return c
}

// FillsSince fetches derivatives fill events for the address with
// time > since, aggregated by time bucket. Spot entries are excluded and
// records that fail to decode are dropped individually.
func (c *Client) FillsSince(ctx context.Context, address string, since time.Time) ([]schema.FillEvent, error) {
	payload := map[string]any{
		"type":            "userFillsByTime",
		"user":            address,
		"startTime":       since.Unix() * 1000,
		"endTime":         c.clock().Unix() * 1000,
		"aggregateByTime": true,
	}
	body, err := c.postInfo(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("fetch fills: %w", err)
	}
	return parseFills(body)
}

// Positions fetches the authoritative clearinghouse position snapshot for the
// address. Only one-way mode entries are returned.
func (c *Client) Positions(ctx context.Context, address string) ([]schema.PositionSnapshot, error) {
	body, err := c.postInfo(ctx, map[string]any{"type": "clearinghouseState", "user": address})
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	return parsePositions(body)
}

// OpenOrders fetches the raw resting orders for the address.
func (c *Client) OpenOrders(ctx context.Context, address string) ([]schema.OpenOrder, error) {
	body, err := c.postInfo(ctx, map[string]any{"type": "frontendOpenOrders", "user": address})
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}
	return parseOpenOrders(body)
}

// Leaderboard fetches the full leaderboard with per-timeframe performance.
// Filtering and ranking happen in the leaderboard package.
func (c *Client) Leaderboard(ctx context.Context) ([]schema.LeaderboardRow, error) {
	url := c.statsURL + "/leaderboard"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create leaderboard request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	return parseLeaderboard(body)
}

func (c *Client) postInfo(ctx context.Context, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.New(venue, errs.CodeInvalid, errs.WithCause(err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.infoURL+"/info", bytes.NewReader(encoded))
	if err != nil {
		return nil, errs.New(venue, errs.CodeInvalid, errs.WithCause(err))
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.New(venue, errs.CodeNetwork, errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(venue, errs.CodeRateLimited,
			errs.WithHTTP(resp.StatusCode),
			errs.WithRetryAfter(retryAfter(resp.Header.Get("Retry-After"))))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(venue, errs.CodeExchange, errs.WithHTTP(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(venue, errs.CodeNetwork, errs.WithCause(err))
	}
	return body, nil
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}
