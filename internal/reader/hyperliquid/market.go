package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"whaleflow/internal/models"
)

type metaResponse struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

type assetContext struct {
	Funding      string `json:"funding"`
	OpenInterest string `json:"openInterest"`
	MarkPx       string `json:"markPx"`
	DayNtlVlm    string `json:"dayNtlVlm"`
	PrevDayPx    string `json:"prevDayPx"`
}

// MidProvider supplies live mid prices, typically from the websocket
// stream. A nil provider is valid; mark prices are used as-is.
type MidProvider interface {
	Mid(coin string) (float64, bool)
}

// MarketSource turns the metaAndAssetCtxs snapshot into per-coin tickers.
type MarketSource struct {
	client *Client
	mids   MidProvider
}

func NewMarketSource(client *Client, mids MidProvider) *MarketSource {
	return &MarketSource{client: client, mids: mids}
}

func (s *MarketSource) Name() string { return "hyperliquid" }

// Fetch returns one ticker per listed perp. Hyperliquid reports open
// interest in coin units, so it is converted to USD with the mark price.
// When the mids stream has a fresher price it overrides the snapshot.
func (s *MarketSource) Fetch(ctx context.Context) ([]models.SymbolTicker, error) {
	var parts []json.RawMessage
	if err := s.client.postInfo(ctx, map[string]string{"type": "metaAndAssetCtxs"}, &parts); err != nil {
		return nil, fmt.Errorf("fetch asset contexts: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("asset context response had %d parts, expected 2", len(parts))
	}

	var meta metaResponse
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}
	var ctxs []assetContext
	if err := json.Unmarshal(parts[1], &ctxs); err != nil {
		return nil, fmt.Errorf("decode asset contexts: %w", err)
	}
	if len(ctxs) < len(meta.Universe) {
		return nil, fmt.Errorf("universe lists %d assets but %d contexts returned", len(meta.Universe), len(ctxs))
	}

	now := time.Now().UTC()
	tickers := make([]models.SymbolTicker, 0, len(meta.Universe))
	for i, asset := range meta.Universe {
		ac := ctxs[i]
		price := parseFloat(ac.MarkPx)
		if s.mids != nil {
			if mid, ok := s.mids.Mid(asset.Name); ok && mid > 0 {
				price = mid
			}
		}

		var change float64
		if prev := parseFloat(ac.PrevDayPx); prev > 0 && price > 0 {
			change = (price - prev) / prev * 100
		}

		tickers = append(tickers, models.SymbolTicker{
			Exchange:        s.Name(),
			Symbol:          asset.Name,
			Price:           price,
			Change24h:       change,
			VolumeUSD:       parseFloat(ac.DayNtlVlm),
			FundingRate:     parseFloat(ac.Funding),
			OpenInterestUSD: parseFloat(ac.OpenInterest) * price,
			Timestamp:       now,
		})
	}
	return tickers, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
