package bybit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whaleflow/config"
)

func testConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Reader.Timeout = 5 * time.Second
	cfg.Source.Bybit.Enabled = true
	cfg.Source.Bybit.URL = url
	return cfg
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/tickers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "linear" {
			t.Errorf("category = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[
			{"symbol":"BTCUSDT","lastPrice":"50200","price24hPcnt":"0.025","fundingRate":"0.0001","openInterestValue":"4000000000","turnover24h":"9000000000"},
			{"symbol":"1000PEPEUSDT","lastPrice":"0.0102","price24hPcnt":"-0.01","fundingRate":"-0.0003","openInterestValue":"15000000","turnover24h":"4000000"}
		]},"retExtInfo":{},"time":1724800000000}`))
	}))
	defer srv.Close()

	r := NewMarketReader(testConfig(srv.URL))
	tickers, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(tickers) != 2 {
		t.Fatalf("expected 2 tickers, got %d", len(tickers))
	}

	btc := tickers[0]
	if btc.Exchange != "bybit" || btc.Symbol != "BTCUSDT" {
		t.Errorf("unexpected ticker identity: %+v", btc)
	}
	if btc.Price != 50200 {
		t.Errorf("price = %v", btc.Price)
	}
	if btc.Change24h != 2.5 {
		t.Errorf("change = %v, want percent not fraction", btc.Change24h)
	}
	if btc.OpenInterestUSD != 4000000000 {
		t.Errorf("open interest = %v", btc.OpenInterestUSD)
	}
	if btc.VolumeUSD != 9000000000 {
		t.Errorf("volume = %v", btc.VolumeUSD)
	}
}

func TestFetchEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[]},"time":1}`))
	}))
	defer srv.Close()

	r := NewMarketReader(testConfig(srv.URL))
	if _, err := r.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for empty ticker list")
	}
}
