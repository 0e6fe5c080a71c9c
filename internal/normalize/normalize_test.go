package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"whaleflow/internal/models"
)

func rawPosition(coin, szi, value string) models.RawAssetPosition {
	return models.RawAssetPosition{
		Type: "oneWay",
		Position: models.RawPosition{
			Coin:           coin,
			Szi:            szi,
			EntryPx:        "100.5",
			PositionValue:  value,
			UnrealizedPnl:  "250",
			ReturnOnEquity: "0.12",
			Leverage:       models.RawLeverage{Type: "cross", Value: 10},
			LiquidationPx:  "80.1",
			MarginUsed:     "500",
			CumFunding:     models.RawCumFunding{AllTime: "12.5"},
		},
	}
}

func TestPositionSideFromSign(t *testing.T) {
	long := Position(rawPosition("ETH", "1.5", "5000"))
	if long == nil {
		t.Fatal("expected position, got nil")
	}
	if long.Side != models.SideLong || long.Size != 1.5 {
		t.Errorf("unexpected long: side=%s size=%f", long.Side, long.Size)
	}

	short := Position(rawPosition("ETH", "-1.5", "5000"))
	if short == nil {
		t.Fatal("expected position, got nil")
	}
	if short.Side != models.SideShort {
		t.Errorf("unexpected side: %s", short.Side)
	}
	if short.Size != 1.5 {
		t.Errorf("size must be absolute, got %f", short.Size)
	}
}

func TestPositionDropsDust(t *testing.T) {
	if p := Position(rawPosition("DOGE", "100", "100")); p != nil {
		t.Errorf("position at dust threshold must be dropped, got %+v", p)
	}
	if p := Position(rawPosition("DOGE", "100", "100.01")); p == nil {
		t.Error("position just above dust threshold must be kept")
	}
}

func TestPositionLeverageFloor(t *testing.T) {
	raw := rawPosition("BTC", "2", "120000")
	raw.Position.Leverage.Value = 0
	p := Position(raw)
	if p == nil {
		t.Fatal("expected position, got nil")
	}
	if p.Leverage != 1 {
		t.Errorf("leverage floor not applied: %f", p.Leverage)
	}
}

func TestPositionLenientParsing(t *testing.T) {
	raw := rawPosition("BTC", "1", "200000")
	raw.Position.LiquidationPx = ""
	raw.Position.UnrealizedPnl = "garbage"
	p := Position(raw)
	if p == nil {
		t.Fatal("expected position, got nil")
	}
	if p.LiquidationPrice != 0 || p.UnrealizedPnl != 0 {
		t.Errorf("unparseable numerics must default to zero: %+v", p)
	}
}

func whaleState(accountValue string) *models.RawClearinghouseState {
	return &models.RawClearinghouseState{
		AssetPositions: []models.RawAssetPosition{
			rawPosition("BTC", "-3", "200000"),
			rawPosition("SHIB", "1000", "50"), // dust, must vanish
		},
		MarginSummary: models.RawMarginSummary{
			AccountValue:    accountValue,
			TotalNtlPos:     "200050",
			TotalMarginUsed: "20000",
		},
		Withdrawable: "30000",
		Time:         1700000000000,
	}
}

func TestWhaleExcludesSmallAccounts(t *testing.T) {
	row := models.LeaderboardRow{EthAddress: "0xABC", AccountValue: "999"}
	if w := Whale(row, whaleState("999"), time.Now()); w != nil {
		t.Errorf("account below threshold must be excluded, got %+v", w)
	}
	if w := Whale(row, whaleState("1000"), time.Now()); w == nil {
		t.Error("account at threshold must be kept")
	}
}

func TestWhaleDropsUnparseableAccountValue(t *testing.T) {
	row := models.LeaderboardRow{EthAddress: "0xABC"}
	if w := Whale(row, whaleState(""), time.Now()); w != nil {
		t.Errorf("missing account value must drop the record, got %+v", w)
	}
}

func TestWhaleFiltersDustPositions(t *testing.T) {
	row := models.LeaderboardRow{EthAddress: "0xAbCd", DisplayName: "whale one"}
	w := Whale(row, whaleState("5000000"), time.Now())
	if w == nil {
		t.Fatal("expected whale, got nil")
	}
	if len(w.Positions) != 1 {
		t.Fatalf("dust position not filtered: %+v", w.Positions)
	}
	if w.Positions[0].Coin != "BTC" || w.Positions[0].Side != models.SideShort {
		t.Errorf("unexpected surviving position: %+v", w.Positions[0])
	}
	if w.Address != "0xabcd" {
		t.Errorf("address must be lowercased: %s", w.Address)
	}
	if w.LastUpdated != time.UnixMilli(1700000000000).UTC() {
		t.Errorf("lastUpdated must come from state time: %s", w.LastUpdated)
	}
}

func TestWhalePerformanceWindows(t *testing.T) {
	row := models.LeaderboardRow{
		EthAddress:   "0xABC",
		AccountValue: "2000000",
		WindowPerformances: [][]json.RawMessage{
			{json.RawMessage(`"day"`), json.RawMessage(`{"pnl":"1500.5","roi":"0.03","vlm":"9000000"}`)},
			{json.RawMessage(`"allTime"`), json.RawMessage(`{"pnl":"-20000","roi":"-0.1","vlm":"1"}`)},
			{json.RawMessage(`"broken"`)},
		},
	}
	w := Whale(row, whaleState("2000000"), time.Now())
	if w == nil {
		t.Fatal("expected whale, got nil")
	}
	if len(w.Performance) != 2 {
		t.Fatalf("unexpected performance windows: %+v", w.Performance)
	}
	if w.Performance["day"].Pnl != 1500.5 {
		t.Errorf("unexpected day pnl: %f", w.Performance["day"].Pnl)
	}
	if w.Performance["allTime"].Roi != -0.1 {
		t.Errorf("unexpected allTime roi: %f", w.Performance["allTime"].Roi)
	}
}

func TestLeaderboardValue(t *testing.T) {
	if v, ok := LeaderboardValue(models.LeaderboardRow{AccountValue: "50000"}); !ok || v != 50000 {
		t.Errorf("unexpected parse: %f %v", v, ok)
	}
	if _, ok := LeaderboardValue(models.LeaderboardRow{}); ok {
		t.Error("missing account value must not parse")
	}
}
