package models

import "time"

// SymbolTicker is one source's reading for one instrument. Symbol keeps the
// exchange-native spelling; folding to a canonical key happens during
// aggregation.
type SymbolTicker struct {
	Exchange        string    `json:"exchange"`
	Symbol          string    `json:"symbol"`
	Price           float64   `json:"price"`
	Change24h       float64   `json:"change24h"`
	VolumeUSD       float64   `json:"volumeUSD"`
	FundingRate     float64   `json:"fundingRate"`
	OpenInterestUSD float64   `json:"openInterestUSD"`
	Timestamp       time.Time `json:"timestamp"`
}

// ExchangeReading attributes a single numeric reading to its source.
type ExchangeReading struct {
	Exchange string  `json:"exchange"`
	Value    float64 `json:"value"`
}

// AggregatedSymbol merges all source readings for one canonical symbol.
// Price and Change24h come from the most liquid contributing source, funding
// is averaged and open interest and volume are summed.
type AggregatedSymbol struct {
	Symbol            string            `json:"symbol"`
	Price             float64           `json:"price"`
	Change24h         float64           `json:"change24h"`
	TotalVolumeUSD    float64           `json:"totalVolumeUSD"`
	AvgFunding        float64           `json:"avgFunding"`
	TotalOpenInterest float64           `json:"totalOpenInterest"`
	FundingByExchange []ExchangeReading `json:"fundingByExchange"`
	OIByExchange      []ExchangeReading `json:"oiByExchange"`
}
