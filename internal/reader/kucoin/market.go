// Package kucoin polls contract details and premium index from the KuCoin
// futures REST API.
package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"whaleflow/config"
	"whaleflow/internal/models"
	"whaleflow/logger"

	sdkapi "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	futuresmarket "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/futures/market"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"
	"golang.org/x/time/rate"
)

// MarketReader polls the configured contracts one by one. KuCoin has no
// bulk endpoint that carries funding and open interest together, so each
// symbol costs a contract-detail call plus a premium-index call, both
// behind the shared rate limiter.
type MarketReader struct {
	cfg       config.KucoinSourceConfig
	marketAPI futuresmarket.MarketAPI
	limiter   *rate.Limiter
	log       *logger.Log
}

// contractDetail picks out the contract fields we chart. Open interest is
// reported in lots; multiplier converts lots to coin units.
type contractDetail struct {
	Symbol         string  `json:"symbol"`
	LastTradePrice float64 `json:"lastTradePrice"`
	MarkPrice      float64 `json:"markPrice"`
	PriceChgPct    float64 `json:"priceChgPct"`
	TurnoverOf24h  float64 `json:"turnoverOf24h"`
	OpenInterest   string  `json:"openInterest"`
	FundingFeeRate float64 `json:"fundingFeeRate"`
	Multiplier     float64 `json:"multiplier"`
}

func NewMarketReader(cfg *config.Config) *MarketReader {
	baseURL := strings.TrimSpace(cfg.Source.Kucoin.URL)
	if baseURL == "" {
		baseURL = "https://api-futures.kucoin.com"
	}

	transportOpt := sdktype.NewTransportOptionBuilder().
		SetMaxIdleConns(cfg.Source.Kucoin.ConnectionPool.MaxIdleConns).
		SetMaxIdleConnsPerHost(cfg.Source.Kucoin.ConnectionPool.MaxIdleConns).
		SetMaxConnsPerHost(cfg.Source.Kucoin.ConnectionPool.MaxConnsPerHost).
		SetIdleConnTimeout(cfg.Source.Kucoin.ConnectionPool.IdleConnTimeout).
		SetTimeout(cfg.Reader.Timeout).
		Build()

	option := sdktype.NewClientOptionBuilder().
		WithFuturesEndpoint(baseURL).
		WithTransportOption(transportOpt).
		Build()

	client := sdkapi.NewClient(option)
	marketAPI := client.RestService().GetFuturesService().GetMarketAPI()

	rl := cfg.Reader.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &MarketReader{
		cfg:       cfg.Source.Kucoin,
		marketAPI: marketAPI,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		log:       logger.GetLogger(),
	}
}

func (r *MarketReader) Name() string { return "kucoin" }

func (r *MarketReader) Fetch(ctx context.Context) ([]models.SymbolTicker, error) {
	if len(r.cfg.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}

	log := r.log.WithComponent("kucoin_reader")
	now := time.Now().UTC()
	tickers := make([]models.SymbolTicker, 0, len(r.cfg.Symbols))
	for _, raw := range r.cfg.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		ticker, err := r.fetchSymbol(ctx, symbol, now)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithFields(logger.Fields{"symbol": symbol}).WithError(err).Warn("contract fetch failed, skipping")
			continue
		}
		tickers = append(tickers, *ticker)
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("all configured symbols failed")
	}
	return tickers, nil
}

func (r *MarketReader) fetchSymbol(ctx context.Context, symbol string, now time.Time) (*models.SymbolTicker, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := futuresmarket.NewGetSymbolReqBuilder().SetSymbol(symbol).Build()
	resp, err := r.marketAPI.GetSymbol(req, ctx)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response for symbol %s", symbol)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal contract detail: %w", err)
	}
	var detail contractDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("decode contract detail: %w", err)
	}

	openInterestUSD := parseFloat(detail.OpenInterest) * detail.Multiplier * detail.MarkPrice

	funding := detail.FundingFeeRate
	if v, ok := r.premiumIndex(ctx, symbol); ok {
		funding = v
	}

	return &models.SymbolTicker{
		Exchange:        r.Name(),
		Symbol:          symbol,
		Price:           detail.LastTradePrice,
		Change24h:       detail.PriceChgPct * 100,
		VolumeUSD:       detail.TurnoverOf24h,
		FundingRate:     funding,
		OpenInterestUSD: openInterestUSD,
		Timestamp:       now,
	}, nil
}

// premiumIndex returns the freshest premium index value for a contract.
// The contract detail already carries a funding rate, so failures here only
// cost precision, not the ticker.
func (r *MarketReader) premiumIndex(ctx context.Context, symbol string) (float64, bool) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, false
	}

	req := futuresmarket.NewGetPremiumIndexReqBuilder().SetSymbol(symbol).SetMaxCount(1).Build()
	resp, err := r.marketAPI.GetPremiumIndex(req, ctx)
	if err != nil || resp == nil || len(resp.DataList) == 0 {
		return 0, false
	}
	return resp.DataList[0].Value, true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
