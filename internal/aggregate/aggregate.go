// Package aggregate merges normalized per-source readings into the records
// served by the API. All functions are pure.
package aggregate

import (
	"sort"

	"whaleflow/internal/models"
	"whaleflow/internal/symbols"
)

type symbolGroup struct {
	symbol     string
	bestVolume float64
	price      float64
	change24h  float64
	volume     float64
	oi         float64
	funding    []models.ExchangeReading
	oiReadings []models.ExchangeReading
}

// Symbols groups tickers by folded symbol and merges them: price and 24h
// change are taken from the highest-volume source (thin markets quote
// noisily), funding is averaged and open interest and volume are summed.
// The result is sorted by total open interest descending, ties by symbol.
func Symbols(ticks []models.SymbolTicker) []models.AggregatedSymbol {
	groups := make(map[string]*symbolGroup)
	order := make([]string, 0)

	for _, tick := range ticks {
		key := symbols.Fold(tick.Symbol)
		if key == "" {
			continue
		}

		g, ok := groups[key]
		if !ok {
			g = &symbolGroup{symbol: key, bestVolume: -1}
			groups[key] = g
			order = append(order, key)
		}

		if tick.VolumeUSD > g.bestVolume {
			g.bestVolume = tick.VolumeUSD
			g.price = tick.Price
			g.change24h = tick.Change24h
		}
		g.volume += tick.VolumeUSD
		g.oi += tick.OpenInterestUSD

		g.funding = append(g.funding, models.ExchangeReading{Exchange: tick.Exchange, Value: tick.FundingRate})
		if tick.OpenInterestUSD > 0 {
			g.oiReadings = append(g.oiReadings, models.ExchangeReading{Exchange: tick.Exchange, Value: tick.OpenInterestUSD})
		}
	}

	out := make([]models.AggregatedSymbol, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		out = append(out, models.AggregatedSymbol{
			Symbol:            g.symbol,
			Price:             g.price,
			Change24h:         g.change24h,
			TotalVolumeUSD:    g.volume,
			AvgFunding:        meanReading(g.funding),
			TotalOpenInterest: g.oi,
			FundingByExchange: g.funding,
			OIByExchange:      g.oiReadings,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalOpenInterest != out[j].TotalOpenInterest {
			return out[i].TotalOpenInterest > out[j].TotalOpenInterest
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func meanReading(readings []models.ExchangeReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range readings {
		sum += r.Value
	}
	return sum / float64(len(readings))
}

// Whales orders accounts by account value descending. The input slice is not
// modified.
func Whales(accounts []models.WhaleAccount) []models.WhaleAccount {
	out := make([]models.WhaleAccount, len(accounts))
	copy(out, accounts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AccountValue > out[j].AccountValue
	})
	return out
}
