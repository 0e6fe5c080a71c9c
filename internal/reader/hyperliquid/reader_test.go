package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whaleflow/config"
)

func testConfig(infoURL, statsURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Reader.Timeout = 5 * time.Second
	cfg.Source.Hyperliquid.Enabled = true
	cfg.Source.Hyperliquid.InfoURL = infoURL
	cfg.Source.Hyperliquid.StatsURL = statsURL
	return cfg
}

func TestLeaderboard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("leaderboard used method %s", r.Method)
		}
		w.Write([]byte(`{"leaderboardRows":[
			{"ethAddress":"0xAbC","accountValue":"2500000.5","displayName":"fund"},
			{"ethAddress":"0xdef","accountValue":"90000"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, srv.URL))
	rows, err := c.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].EthAddress != "0xAbC" || rows[0].AccountValue != "2500000.5" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"leaderboardRows":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, srv.URL))
	if _, err := c.Leaderboard(context.Background()); err == nil {
		t.Fatal("expected error for empty leaderboard")
	}
}

func TestClearinghouseState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req clearinghouseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Type != "clearinghouseState" || req.User != "0xabc" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{
			"assetPositions":[{"type":"oneWay","position":{"coin":"ETH","szi":"-12.5","entryPx":"3100","positionValue":"38750","unrealizedPnl":"-120.5","leverage":{"type":"cross","value":5}}}],
			"marginSummary":{"accountValue":"125000","totalNtlPos":"38750","totalMarginUsed":"7750"},
			"withdrawable":"90000",
			"time":1724800000000
		}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, srv.URL))
	state, err := c.ClearinghouseState(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("ClearinghouseState failed: %v", err)
	}
	if len(state.AssetPositions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(state.AssetPositions))
	}
	if state.AssetPositions[0].Position.Coin != "ETH" {
		t.Errorf("coin = %q", state.AssetPositions[0].Position.Coin)
	}
	if state.MarginSummary.AccountValue != "125000" {
		t.Errorf("accountValue = %q", state.MarginSummary.AccountValue)
	}
	if state.Time != 1724800000000 {
		t.Errorf("time = %d", state.Time)
	}
}

func TestClearinghouseStateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busted", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, srv.URL))
	if _, err := c.ClearinghouseState(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected error on 502")
	}
}

type staticMids map[string]float64

func (m staticMids) Mid(coin string) (float64, bool) {
	v, ok := m[coin]
	return v, ok
}

func TestMarketSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"universe":[{"name":"BTC"},{"name":"PEPE"}]},
			[
				{"funding":"0.0000125","openInterest":"1000","markPx":"50000","dayNtlVlm":"2000000000","prevDayPx":"48000"},
				{"funding":"-0.0002","openInterest":"900000000","markPx":"0.00001","dayNtlVlm":"5000000","prevDayPx":"0.00001"}
			]
		]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, srv.URL))
	src := NewMarketSource(c, staticMids{"BTC": 50500})

	tickers, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(tickers) != 2 {
		t.Fatalf("expected 2 tickers, got %d", len(tickers))
	}

	btc := tickers[0]
	if btc.Symbol != "BTC" || btc.Exchange != "hyperliquid" {
		t.Errorf("unexpected ticker identity: %+v", btc)
	}
	if btc.Price != 50500 {
		t.Errorf("mid override not applied, price = %v", btc.Price)
	}
	if got, want := btc.OpenInterestUSD, 1000*50500.0; got != want {
		t.Errorf("open interest = %v, want %v", got, want)
	}
	if btc.FundingRate != 0.0000125 {
		t.Errorf("funding = %v", btc.FundingRate)
	}

	pepe := tickers[1]
	if pepe.Price != 0.00001 {
		t.Errorf("pepe price = %v", pepe.Price)
	}
	if pepe.VolumeUSD != 5000000 {
		t.Errorf("pepe volume = %v", pepe.VolumeUSD)
	}
}

func TestMarketSourceTruncatedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"universe":[{"name":"BTC"}]}]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, srv.URL))
	src := NewMarketSource(c, nil)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for truncated response")
	}
}
