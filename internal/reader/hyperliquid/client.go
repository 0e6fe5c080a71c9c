// Package hyperliquid reads leaderboard, clearinghouse and market data from
// the Hyperliquid public API.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"whaleflow/config"
	"whaleflow/logger"
)

const (
	defaultInfoURL  = "https://api.hyperliquid.xyz/info"
	defaultStatsURL = "https://stats-data.hyperliquid.xyz/Mainnet/leaderboard"
	defaultWsURL    = "wss://api.hyperliquid.xyz/ws"
)

// Client performs one-shot REST calls against the Hyperliquid info endpoint.
// Every call has the reader timeout attached and is never retried.
type Client struct {
	cfg      config.HyperliquidSourceConfig
	client   *http.Client
	infoURL  string
	statsURL string
	log      *logger.Log
}

// NewClient builds a client with a tuned connection pool, mirroring the
// other exchange readers.
func NewClient(cfg *config.Config) *Client {
	pool := cfg.Source.Hyperliquid.ConnectionPool
	transport := &http.Transport{
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
		DisableCompression:  false,
	}

	infoURL := cfg.Source.Hyperliquid.InfoURL
	if infoURL == "" {
		infoURL = defaultInfoURL
	}
	statsURL := cfg.Source.Hyperliquid.StatsURL
	if statsURL == "" {
		statsURL = defaultStatsURL
	}

	return &Client{
		cfg: cfg.Source.Hyperliquid,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Reader.Timeout,
		},
		infoURL:  infoURL,
		statsURL: statsURL,
		log:      logger.GetLogger(),
	}
}

// postInfo sends a typed request body to the info endpoint and decodes the
// response into dest. Non-2xx statuses are errors; the body is drained so
// connections can be reused.
func (c *Client) postInfo(ctx context.Context, request any, dest any) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode info request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.infoURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("info endpoint returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode info response: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
