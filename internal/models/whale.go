package models

import (
	"encoding/json"
	"time"
)

// Position is the canonical representation of a single perp position held by
// a tracked account. Size is always non-negative; direction lives in Side.
type Position struct {
	Coin             string  `json:"coin"`
	Side             string  `json:"side"`
	Size             float64 `json:"size"`
	EntryPrice       float64 `json:"entryPrice"`
	PositionValue    float64 `json:"positionValue"`
	UnrealizedPnl    float64 `json:"unrealizedPnl"`
	Roe              float64 `json:"roe"`
	Leverage         float64 `json:"leverage"`
	LiquidationPrice float64 `json:"liquidationPrice,omitempty"`
	MarginUsed       float64 `json:"marginUsed"`
	CumFunding       float64 `json:"cumulativeFunding"`
}

const (
	SideLong  = "long"
	SideShort = "short"
)

// PerformanceWindow holds pnl/roi for one leaderboard window (day, week,
// month, allTime).
type PerformanceWindow struct {
	Pnl float64 `json:"pnl"`
	Roi float64 `json:"roi"`
	Vlm float64 `json:"vlm"`
}

// WhaleAccount is the aggregated view of one tracked address.
type WhaleAccount struct {
	Address       string                       `json:"address"`
	Label         string                       `json:"label,omitempty"`
	AccountValue  float64                      `json:"accountValue"`
	TotalNotional float64                      `json:"totalNotional"`
	MarginUsed    float64                      `json:"marginUsed"`
	Withdrawable  float64                      `json:"withdrawable"`
	Positions     []Position                   `json:"positions"`
	Performance   map[string]PerformanceWindow `json:"performance,omitempty"`
	LastUpdated   time.Time                    `json:"lastUpdated"`
}

// LeaderboardRow mirrors one row of the upstream leaderboard payload. Numeric
// fields arrive as strings and are parsed during normalization.
type LeaderboardRow struct {
	EthAddress         string              `json:"ethAddress"`
	AccountValue       string              `json:"accountValue"`
	DisplayName        string              `json:"displayName"`
	Prize              float64             `json:"prize"`
	WindowPerformances [][]json.RawMessage `json:"windowPerformances"`
}

// RawLeverage is the nested leverage descriptor on an upstream position.
type RawLeverage struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// RawCumFunding carries cumulative funding figures per window.
type RawCumFunding struct {
	AllTime     string `json:"allTime"`
	SinceOpen   string `json:"sinceOpen"`
	SinceChange string `json:"sinceChange"`
}

// RawPosition mirrors the upstream clearinghouse position shape. Szi is a
// signed size: negative means short.
type RawPosition struct {
	Coin           string        `json:"coin"`
	Szi            string        `json:"szi"`
	EntryPx        string        `json:"entryPx"`
	PositionValue  string        `json:"positionValue"`
	UnrealizedPnl  string        `json:"unrealizedPnl"`
	ReturnOnEquity string        `json:"returnOnEquity"`
	Leverage       RawLeverage   `json:"leverage"`
	LiquidationPx  string        `json:"liquidationPx"`
	MarginUsed     string        `json:"marginUsed"`
	CumFunding     RawCumFunding `json:"cumFunding"`
}

// RawAssetPosition wraps a position with its margin type.
type RawAssetPosition struct {
	Type     string      `json:"type"`
	Position RawPosition `json:"position"`
}

// RawMarginSummary mirrors the upstream margin summary block.
type RawMarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// RawClearinghouseState mirrors the per-address position-state response.
type RawClearinghouseState struct {
	AssetPositions []RawAssetPosition `json:"assetPositions"`
	MarginSummary  RawMarginSummary   `json:"marginSummary"`
	Withdrawable   string             `json:"withdrawable"`
	Time           int64              `json:"time"`
}
