// Package binance reads funding, open interest and 24h ticker stats from
// Binance USD-M futures.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"whaleflow/config"
	"whaleflow/internal/models"
	"whaleflow/logger"

	futures "github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"
)

// MarketReader snapshots the configured symbols via the futures REST API.
// Funding and mark price come from the premium index, price/volume from the
// 24h stats, and open interest from one extra call per symbol behind a rate
// limiter.
type MarketReader struct {
	cfg     config.BinanceSourceConfig
	client  *futures.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewMarketReader(cfg *config.Config) *MarketReader {
	pool := cfg.Source.Binance.ConnectionPool
	httpClient := &http.Client{
		Timeout: cfg.Reader.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        pool.MaxIdleConns,
			MaxIdleConnsPerHost: pool.MaxIdleConns,
			MaxConnsPerHost:     pool.MaxConnsPerHost,
			IdleConnTimeout:     pool.IdleConnTimeout,
		},
	}

	client := futures.NewClient("", "")
	client.HTTPClient = httpClient
	if url := strings.TrimSpace(cfg.Source.Binance.URL); url != "" {
		client.SetApiEndpoint(url)
	}

	rps := cfg.Reader.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Reader.RateLimit.BurstSize
	if burst <= 0 {
		burst = rps
	}

	return &MarketReader{
		cfg:     cfg.Source.Binance,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

func (r *MarketReader) Name() string { return "binance" }

// Fetch returns one ticker per configured symbol. Symbols missing from
// either bulk endpoint are skipped; a failed open-interest call zeroes that
// field rather than failing the snapshot.
func (r *MarketReader) Fetch(ctx context.Context) ([]models.SymbolTicker, error) {
	premiums, err := r.client.NewPremiumIndexService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch premium index: %w", err)
	}
	stats, err := r.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch 24h stats: %w", err)
	}

	premiumBySymbol := make(map[string]*futures.PremiumIndex, len(premiums))
	for _, p := range premiums {
		premiumBySymbol[p.Symbol] = p
	}
	statsBySymbol := make(map[string]*futures.PriceChangeStats, len(stats))
	for _, s := range stats {
		statsBySymbol[s.Symbol] = s
	}

	log := r.log.WithComponent("binance_reader")
	now := time.Now().UTC()
	tickers := make([]models.SymbolTicker, 0, len(r.cfg.Symbols))
	for _, raw := range r.cfg.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		premium, ok := premiumBySymbol[symbol]
		if !ok {
			log.WithFields(logger.Fields{"symbol": symbol}).Warn("symbol missing from premium index, skipping")
			continue
		}
		stat, ok := statsBySymbol[symbol]
		if !ok {
			log.WithFields(logger.Fields{"symbol": symbol}).Warn("symbol missing from 24h stats, skipping")
			continue
		}

		markPrice := parseFloat(premium.MarkPrice)
		ticker := models.SymbolTicker{
			Exchange:    r.Name(),
			Symbol:      symbol,
			Price:       parseFloat(stat.LastPrice),
			Change24h:   parseFloat(stat.PriceChangePercent),
			VolumeUSD:   parseFloat(stat.QuoteVolume),
			FundingRate: parseFloat(premium.LastFundingRate),
			Timestamp:   now,
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		oi, err := r.client.NewGetOpenInterestService().Symbol(symbol).Do(ctx)
		if err != nil {
			log.WithFields(logger.Fields{"symbol": symbol}).WithError(err).Warn("open interest fetch failed")
		} else {
			ticker.OpenInterestUSD = parseFloat(oi.OpenInterest) * markPrice
		}

		tickers = append(tickers, ticker)
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("no configured symbols resolved")
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
