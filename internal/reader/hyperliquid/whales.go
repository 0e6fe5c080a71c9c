package hyperliquid

import (
	"context"
	"fmt"

	"whaleflow/internal/models"
	"whaleflow/logger"
)

type leaderboardResponse struct {
	LeaderboardRows []models.LeaderboardRow `json:"leaderboardRows"`
}

// Leaderboard fetches the full mainnet leaderboard from the stats host.
// The response is large (tens of thousands of rows); filtering down to
// whale-sized accounts is the caller's job.
func (c *Client) Leaderboard(ctx context.Context) ([]models.LeaderboardRow, error) {
	var resp leaderboardResponse
	if err := c.getJSON(ctx, c.statsURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	if len(resp.LeaderboardRows) == 0 {
		return nil, fmt.Errorf("leaderboard response contained no rows")
	}

	c.log.WithComponent("hyperliquid_reader").WithFields(logger.Fields{
		"rows": len(resp.LeaderboardRows),
	}).Debug("Fetched leaderboard")
	return resp.LeaderboardRows, nil
}

type clearinghouseRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// ClearinghouseState fetches the open positions and margin summary for a
// single account. Unknown addresses come back as a valid state with zero
// balances, not as an error.
func (c *Client) ClearinghouseState(ctx context.Context, address string) (*models.RawClearinghouseState, error) {
	var state models.RawClearinghouseState
	req := clearinghouseRequest{Type: "clearinghouseState", User: address}
	if err := c.postInfo(ctx, req, &state); err != nil {
		return nil, fmt.Errorf("fetch clearinghouse state for %s: %w", address, err)
	}
	return &state, nil
}
