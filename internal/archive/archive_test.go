package archive

import (
	"strings"
	"testing"
	"time"

	"whaleflow/config"
	"whaleflow/internal/models"
)

func TestGenerateS3Key(t *testing.T) {
	a := &Archiver{cfg: config.S3Config{Bucket: "whale-archive"}}
	snapshotTime := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)

	key := a.generateS3Key(snapshotTime)
	if !strings.HasPrefix(key, "whales/date=2026-08-30/20260830123000") {
		t.Errorf("unexpected key layout: %s", key)
	}
	if !strings.HasSuffix(key, "_whales.parquet") {
		t.Errorf("unexpected key suffix: %s", key)
	}

	// uuid suffix keeps keys for the same second distinct
	if other := a.generateS3Key(snapshotTime); other == key {
		t.Error("keys for the same snapshot time collide")
	}
}

func TestCreateParquet(t *testing.T) {
	a := &Archiver{cfg: config.S3Config{Compression: "snappy"}}
	whales := []models.WhaleAccount{
		{
			Address:       "0xabc",
			AccountValue:  125000,
			TotalNotional: 38750,
			Positions:     []models.Position{{Coin: "ETH", Side: models.SideShort, Size: 12.5}},
		},
		{
			Address:      "0xdef",
			AccountValue: 2000000,
		},
	}

	data, err := a.createParquet(whales, time.Now().UTC())
	if err != nil {
		t.Fatalf("createParquet failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty parquet output")
	}
	// PAR1 magic at both ends of the file
	if !strings.HasPrefix(string(data), "PAR1") || !strings.HasSuffix(string(data), "PAR1") {
		t.Error("output is not a parquet file")
	}
}
