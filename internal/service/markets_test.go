package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"whaleflow/internal/models"
)

type stubSource struct {
	mu      sync.Mutex
	name    string
	tickers []models.SymbolTicker
	err     error
	calls   int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]models.SymbolTicker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.tickers, nil
}

func marketTicker(exchange, symbol string, oi float64) models.SymbolTicker {
	return models.SymbolTicker{
		Exchange:        exchange,
		Symbol:          symbol,
		Price:           100,
		VolumeUSD:       1000,
		FundingRate:     0.0001,
		OpenInterestUSD: oi,
		Timestamp:       time.Now().UTC(),
	}
}

func TestMarketListAggregatesAcrossSources(t *testing.T) {
	a := &stubSource{name: "binance", tickers: []models.SymbolTicker{marketTicker("binance", "BTCUSDT", 100)}}
	b := &stubSource{name: "bybit", tickers: []models.SymbolTicker{marketTicker("bybit", "BTCUSDT", 250)}}
	s := NewMarketService([]MarketSource{a, b}, nil)

	symbols, _, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(symbols) != 1 {
		t.Fatalf("expected 1 symbol, got %d", len(symbols))
	}
	if symbols[0].Symbol != "BTC" {
		t.Errorf("symbol = %q", symbols[0].Symbol)
	}
	if symbols[0].TotalOpenInterest != 350 {
		t.Errorf("totalOI = %v", symbols[0].TotalOpenInterest)
	}
}

func TestMarketListToleratesPartialFailure(t *testing.T) {
	ok := &stubSource{name: "binance", tickers: []models.SymbolTicker{marketTicker("binance", "ETHUSDT", 100)}}
	down := &stubSource{name: "okx", err: errors.New("timeout")}
	s := NewMarketService([]MarketSource{ok, down}, nil)

	symbols, _, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(symbols) != 1 || symbols[0].Symbol != "ETH" {
		t.Errorf("unexpected symbols: %+v", symbols)
	}
}

func TestMarketListCachedWithinTTL(t *testing.T) {
	src := &stubSource{name: "binance", tickers: []models.SymbolTicker{marketTicker("binance", "BTCUSDT", 100)}}
	s := NewMarketService([]MarketSource{src}, nil)

	_, firstTime, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("first List failed: %v", err)
	}
	_, secondTime, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("second List failed: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", src.calls)
	}
	if !secondTime.Equal(firstTime) {
		t.Errorf("timestamps differ: %v vs %v", firstTime, secondTime)
	}
}

func TestMarketListStaleServe(t *testing.T) {
	src := &stubSource{name: "binance", tickers: []models.SymbolTicker{marketTicker("binance", "BTCUSDT", 100)}}
	s := NewMarketService([]MarketSource{src}, nil)

	_, primedTime, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("priming List failed: %v", err)
	}

	s.Cache().Memory().SetClock(func() time.Time { return primedTime.Add(marketMemTTL + time.Second) })
	src.mu.Lock()
	src.err = errors.New("exchange down")
	src.mu.Unlock()

	symbols, servedTime, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("expected stale serve, got error: %v", err)
	}
	if !servedTime.Equal(primedTime) {
		t.Errorf("stale serve changed timestamp")
	}
	if len(symbols) != 1 {
		t.Errorf("unexpected stale payload: %+v", symbols)
	}
}

func TestMarketListNoSources(t *testing.T) {
	s := NewMarketService(nil, nil)
	_, _, err := s.List(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
