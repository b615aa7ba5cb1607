// Package markets talks to the external market-data provider. The engine
// only ever asks two things of it: does a market exist, and what markets
// are currently open (for auto-picks).
package markets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUpstreamUnavailable means the provider could not be reached or
// answered with a server error. It is retryable and must never be
// conflated with "market not found".
var ErrUpstreamUnavailable = errors.New("market-data provider unavailable")

// Market is the slice of provider metadata the engine cares about.
type Market struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Status   string `json:"status"`
}

type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// Exists reports whether the provider knows the market. A 404 is a clean
// "no"; transport failures and 5xx responses surface as
// ErrUpstreamUnavailable so callers can retry.
func (c *Client) Exists(ctx context.Context, marketID string) (bool, error) {
	endpoint := "/markets/" + url.PathEscape(marketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("lookup market %s: %v: %w", marketID, err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("provider returned status %d: %w", resp.StatusCode, ErrUpstreamUnavailable)
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}
}

// ListOpen fetches currently open markets, up to limit.
func (c *Client) ListOpen(ctx context.Context, limit int) ([]Market, error) {
	endpoint := "/markets?status=open&limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list open markets: %v: %w", err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("provider returned status %d: %w", resp.StatusCode, ErrUpstreamUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var markets []Market
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("decode markets response: %w", err)
	}
	return markets, nil
}
