// Package bybit reads linear perp tickers from the Bybit v5 market API.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"whaleflow/config"
	"whaleflow/internal/models"
	"whaleflow/logger"

	bybit "github.com/bybit-exchange/bybit.go.api"
)

// MarketReader snapshots every linear ticker in one call. Bybit reports
// open interest in USD directly and the 24h change as a fraction.
type MarketReader struct {
	cfg    config.BybitSourceConfig
	client *bybit.Client
	log    *logger.Log
}

type tickerList struct {
	Category string `json:"category"`
	List     []struct {
		Symbol            string `json:"symbol"`
		LastPrice         string `json:"lastPrice"`
		Price24hPcnt      string `json:"price24hPcnt"`
		FundingRate       string `json:"fundingRate"`
		OpenInterestValue string `json:"openInterestValue"`
		Turnover24h       string `json:"turnover24h"`
	} `json:"list"`
}

func NewMarketReader(cfg *config.Config) *MarketReader {
	httpClient := &http.Client{Timeout: cfg.Reader.Timeout}

	base := strings.TrimSpace(cfg.Source.Bybit.URL)
	var client *bybit.Client
	if base != "" {
		client = bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	} else {
		client = bybit.NewBybitHttpClient("", "")
	}
	client.HTTPClient = httpClient

	return &MarketReader{
		cfg:    cfg.Source.Bybit,
		client: client,
		log:    logger.GetLogger(),
	}
}

func (r *MarketReader) Name() string { return "bybit" }

func (r *MarketReader) Fetch(ctx context.Context) ([]models.SymbolTicker, error) {
	params := map[string]interface{}{
		"category": "linear",
	}

	start := time.Now()
	resp, err := r.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	logger.LogPerformanceEntry(r.log.WithComponent("bybit_reader"), "bybit_reader", "fetch_tickers", time.Since(start), nil)

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal ticker result: %w", err)
	}
	var result tickerList
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode ticker result: %w", err)
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("ticker response contained no symbols")
	}

	now := time.Now().UTC()
	tickers := make([]models.SymbolTicker, 0, len(result.List))
	for _, item := range result.List {
		tickers = append(tickers, models.SymbolTicker{
			Exchange:        r.Name(),
			Symbol:          item.Symbol,
			Price:           parseFloat(item.LastPrice),
			Change24h:       parseFloat(item.Price24hPcnt) * 100,
			VolumeUSD:       parseFloat(item.Turnover24h),
			FundingRate:     parseFloat(item.FundingRate),
			OpenInterestUSD: parseFloat(item.OpenInterestValue),
			Timestamp:       now,
		})
	}

	r.log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"symbols": len(tickers),
	}).Debug("Fetched linear tickers")
	return tickers, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
