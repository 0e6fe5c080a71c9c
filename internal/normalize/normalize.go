// Package normalize maps raw upstream payloads into canonical records. All
// functions are pure; records that fail the admission thresholds come back
// nil and are dropped by the caller.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"whaleflow/internal/models"
)

const (
	// MinAccountValue excludes accounts too small to matter; anything under
	// this is noise for a whale dashboard.
	MinAccountValue = 1000.0
	// DustPositionValue excludes positions whose notional is dust.
	DustPositionValue = 100.0
)

// parseFloat parses leniently: malformed or missing numerics become 0 so one
// bad field never poisons a whole record. Fields that must suppress the
// record on absence are checked explicitly by the callers.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// Position converts one raw asset position. It returns nil for dust
// positions and for entries without a coin. Size is the absolute value of
// the signed raw size; the sign becomes the side.
func Position(raw models.RawAssetPosition) *models.Position {
	p := raw.Position
	if p.Coin == "" {
		return nil
	}

	szi := parseFloat(p.Szi)
	side := models.SideLong
	if szi < 0 {
		side = models.SideShort
		szi = -szi
	}

	value := parseFloat(p.PositionValue)
	if value <= DustPositionValue {
		return nil
	}

	leverage := p.Leverage.Value
	if leverage < 1 {
		leverage = 1
	}

	return &models.Position{
		Coin:             p.Coin,
		Side:             side,
		Size:             szi,
		EntryPrice:       parseFloat(p.EntryPx),
		PositionValue:    value,
		UnrealizedPnl:    parseFloat(p.UnrealizedPnl),
		Roe:              parseFloat(p.ReturnOnEquity),
		Leverage:         leverage,
		LiquidationPrice: parseFloat(p.LiquidationPx),
		MarginUsed:       parseFloat(p.MarginUsed),
		CumFunding:       parseFloat(p.CumFunding.AllTime),
	}
}

// Whale builds the canonical account record from a leaderboard row and its
// clearinghouse state. It returns nil when the account value is missing or
// below MinAccountValue: such records must disappear entirely rather than
// zero-fill.
func Whale(row models.LeaderboardRow, state *models.RawClearinghouseState, now time.Time) *models.WhaleAccount {
	if state == nil || row.EthAddress == "" {
		return nil
	}

	accountValue, err := strconv.ParseFloat(strings.TrimSpace(state.MarginSummary.AccountValue), 64)
	if err != nil || accountValue < MinAccountValue {
		return nil
	}

	positions := make([]models.Position, 0, len(state.AssetPositions))
	for _, raw := range state.AssetPositions {
		if p := Position(raw); p != nil {
			positions = append(positions, *p)
		}
	}

	lastUpdated := now
	if state.Time > 0 {
		lastUpdated = time.UnixMilli(state.Time).UTC()
	}

	return &models.WhaleAccount{
		Address:       strings.ToLower(row.EthAddress),
		Label:         row.DisplayName,
		AccountValue:  accountValue,
		TotalNotional: parseFloat(state.MarginSummary.TotalNtlPos),
		MarginUsed:    parseFloat(state.MarginSummary.TotalMarginUsed),
		Withdrawable:  parseFloat(state.Withdrawable),
		Positions:     positions,
		Performance:   performance(row.WindowPerformances),
		LastUpdated:   lastUpdated,
	}
}

// LeaderboardValue parses the account value of a leaderboard row. The second
// return is false when the field is absent or unparseable, which must drop
// the row instead of treating it as zero.
func LeaderboardValue(row models.LeaderboardRow) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(row.AccountValue), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

type rawWindowPerformance struct {
	Pnl string `json:"pnl"`
	Roi string `json:"roi"`
	Vlm string `json:"vlm"`
}

// performance decodes the [["day", {...}], ["week", {...}]] pairs of a
// leaderboard row. Malformed entries are skipped.
func performance(raw [][]json.RawMessage) map[string]models.PerformanceWindow {
	if len(raw) == 0 {
		return nil
	}

	out := make(map[string]models.PerformanceWindow, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		var window string
		if err := json.Unmarshal(pair[0], &window); err != nil || window == "" {
			continue
		}
		var perf rawWindowPerformance
		if err := json.Unmarshal(pair[1], &perf); err != nil {
			continue
		}
		out[window] = models.PerformanceWindow{
			Pnl: parseFloat(perf.Pnl),
			Roi: parseFloat(perf.Roi),
			Vlm: parseFloat(perf.Vlm),
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
