// Package okx reads swap tickers, open interest and funding from the OKX
// v5 public REST API.
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"whaleflow/config"
	"whaleflow/internal/models"
	"whaleflow/logger"

	"golang.org/x/time/rate"
)

const defaultRestURL = "https://www.okx.com"

// userAgentTransport sets a browser-style User-Agent on outgoing requests.
// OKX rejects requests with the default Go agent from some regions.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent != "" {
		req.Header.Set("User-Agent", t.agent)
	}
	if t.base != nil {
		return t.base.RoundTrip(req)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// MarketReader bulk-fetches swap tickers and open interest, then resolves
// funding per configured instrument behind the rate limiter.
type MarketReader struct {
	cfg     config.OkxSourceConfig
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	log     *logger.Log
}

type okxTicker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	Open24h   string `json:"open24h"`
	VolCcy24h string `json:"volCcy24h"`
}

type okxOpenInterest struct {
	InstID string `json:"instId"`
	OiCcy  string `json:"oiCcy"`
	OiUsd  string `json:"oiUsd"`
}

type okxFundingRate struct {
	InstID      string `json:"instId"`
	FundingRate string `json:"fundingRate"`
}

func NewMarketReader(cfg *config.Config) *MarketReader {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Source.Okx.URL), "/")
	if baseURL == "" {
		baseURL = defaultRestURL
	}
	if parsed, err := url.Parse(baseURL); err == nil && parsed.Host != "" {
		baseURL = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}

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
		cfg: cfg.Source.Okx,
		client: &http.Client{
			Timeout: cfg.Reader.Timeout,
			Transport: userAgentTransport{
				agent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
			},
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

func (r *MarketReader) Name() string { return "okx" }

func (r *MarketReader) Fetch(ctx context.Context) ([]models.SymbolTicker, error) {
	var tickerData []okxTicker
	if err := r.get(ctx, "/api/v5/market/tickers", map[string]string{"instType": "SWAP"}, &tickerData); err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	var oiData []okxOpenInterest
	if err := r.get(ctx, "/api/v5/public/open-interest", map[string]string{"instType": "SWAP"}, &oiData); err != nil {
		return nil, fmt.Errorf("fetch open interest: %w", err)
	}

	tickerByInst := make(map[string]okxTicker, len(tickerData))
	for _, t := range tickerData {
		tickerByInst[t.InstID] = t
	}
	oiByInst := make(map[string]okxOpenInterest, len(oiData))
	for _, oi := range oiData {
		oiByInst[oi.InstID] = oi
	}

	log := r.log.WithComponent("okx_reader")
	now := time.Now().UTC()
	tickers := make([]models.SymbolTicker, 0, len(r.cfg.Symbols))
	for _, raw := range r.cfg.Symbols {
		instID := strings.ToUpper(strings.TrimSpace(raw))
		src, ok := tickerByInst[instID]
		if !ok {
			log.WithFields(logger.Fields{"instId": instID}).Warn("instrument missing from tickers, skipping")
			continue
		}

		last := parseFloat(src.Last)
		var change float64
		if open := parseFloat(src.Open24h); open > 0 && last > 0 {
			change = (last - open) / open * 100
		}

		var openInterestUSD float64
		if oi, ok := oiByInst[instID]; ok {
			openInterestUSD = parseFloat(oi.OiUsd)
			if openInterestUSD == 0 {
				openInterestUSD = parseFloat(oi.OiCcy) * last
			}
		}

		tickers = append(tickers, models.SymbolTicker{
			Exchange:        r.Name(),
			Symbol:          instID,
			Price:           last,
			Change24h:       change,
			VolumeUSD:       parseFloat(src.VolCcy24h) * last,
			FundingRate:     r.fundingRate(ctx, instID),
			OpenInterestUSD: openInterestUSD,
			Timestamp:       now,
		})
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("no configured instruments resolved")
	}
	return tickers, nil
}

// fundingRate costs one extra call per instrument. Failures zero the field
// rather than failing the snapshot.
func (r *MarketReader) fundingRate(ctx context.Context, instID string) float64 {
	var data []okxFundingRate
	if err := r.get(ctx, "/api/v5/public/funding-rate", map[string]string{"instId": instID}, &data); err != nil {
		r.log.WithComponent("okx_reader").WithFields(logger.Fields{"instId": instID}).WithError(err).Warn("funding rate fetch failed")
		return 0
	}
	if len(data) == 0 {
		return 0
	}
	return parseFloat(data[0].FundingRate)
}

func (r *MarketReader) get(ctx context.Context, path string, params map[string]string, dest any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	endpoint := fmt.Sprintf("%s%s?%s", r.baseURL, path, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("status %d from %s", resp.StatusCode, path)
	}

	var envelope struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Code != "0" {
		return fmt.Errorf("okx error %s: %s", envelope.Code, envelope.Msg)
	}
	return json.Unmarshal(envelope.Data, dest)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
