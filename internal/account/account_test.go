package account

import (
	"testing"

	"hl-delta-bot/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]*catalog.Instrument{
		{
			Symbol: "BTC",
			Spot:   &catalog.SpotMarket{Name: "UBTC", Pair: "UBTC/USDC", PairIndex: 140, SzDecimals: 5, TickSize: 1},
			Perp:   &catalog.PerpMarket{Name: "BTC", Index: 0, SzDecimals: 5, TickSize: 1},
		},
		{
			Symbol: "ETH",
			Spot:   &catalog.SpotMarket{Name: "UETH", Pair: "UETH/USDC", PairIndex: 151, SzDecimals: 4, TickSize: 0.1},
			Perp:   &catalog.PerpMarket{Name: "ETH", Index: 4, SzDecimals: 4, TickSize: 0.1},
		},
	})
}

func TestParseMarginSummary(t *testing.T) {
	payload := map[string]any{
		"marginSummary": map[string]any{
			"accountValue":    "1520.25",
			"totalMarginUsed": "310.4",
			"totalRawUsd":     "1500",
		},
		"withdrawable": "1100.1",
	}
	summary := parseMarginSummary(payload)
	if summary.AccountValue != 1520.25 {
		t.Fatalf("expected account value 1520.25, got %f", summary.AccountValue)
	}
	if summary.TotalMarginUsed != 310.4 {
		t.Fatalf("expected margin used 310.4, got %f", summary.TotalMarginUsed)
	}
	if summary.TotalRawUSD != 1500 {
		t.Fatalf("expected total raw usd 1500, got %f", summary.TotalRawUSD)
	}
	if summary.Withdrawable != 1100.1 {
		t.Fatalf("expected withdrawable 1100.1, got %f", summary.Withdrawable)
	}
}

func TestApplyPerpPositions(t *testing.T) {
	cat := testCatalog()
	payload := map[string]any{
		"assetPositions": []any{
			map[string]any{
				"position": map[string]any{
					"coin":          "BTC",
					"szi":           "-0.015",
					"entryPx":       "64000",
					"positionValue": "960",
					"unrealizedPnl": "-3.2",
					"liquidationPx": "120000",
					"marginUsed":    "480",
					"leverage":      map[string]any{"type": "cross", "value": float64(2)},
				},
			},
			map[string]any{
				"position": map[string]any{"coin": "ETH", "szi": "0"},
			},
			map[string]any{
				"position": map[string]any{"coin": "SOL", "szi": "1"},
			},
		},
	}
	applyPerpPositions(payload, cat)

	btc, _ := cat.Get("BTC")
	pos := btc.Perp.Position
	if pos == nil {
		t.Fatalf("expected BTC perp position")
	}
	if pos.Size != -0.015 {
		t.Fatalf("expected size -0.015, got %f", pos.Size)
	}
	if pos.EntryPrice != 64000 || pos.PositionValue != 960 {
		t.Fatalf("unexpected entry/value: %+v", pos)
	}
	if pos.Leverage != 2 {
		t.Fatalf("expected leverage 2, got %f", pos.Leverage)
	}
	eth, _ := cat.Get("ETH")
	if eth.Perp.Position != nil {
		t.Fatalf("expected zero-size ETH position to stay nil")
	}
}

func TestApplySpotBalances(t *testing.T) {
	cat := testCatalog()
	payload := map[string]any{
		"balances": []any{
			map[string]any{"coin": "USDC", "total": "1200.5", "hold": "50"},
			map[string]any{"coin": "UBTC", "total": "0.015", "hold": "0.001", "entryNtl": "960"},
			map[string]any{"coin": "UETH", "total": "0"},
			map[string]any{"coin": "PURR", "total": "10"},
		},
	}
	usdc, hold := applySpotBalances(payload, cat)
	if usdc != 1200.5 || hold != 50 {
		t.Fatalf("expected usdc 1200.5/50, got %f/%f", usdc, hold)
	}

	btc, _ := cat.Get("BTC")
	pos := btc.Spot.Position
	if pos == nil {
		t.Fatalf("expected BTC spot position via UBTC alias")
	}
	if pos.Total != 0.015 || pos.Hold != 0.001 || pos.EntryNotional != 960 {
		t.Fatalf("unexpected spot position: %+v", pos)
	}
	eth, _ := cat.Get("ETH")
	if eth.Spot.Position != nil {
		t.Fatalf("expected zero-balance UETH to stay nil")
	}
}

func TestBalanceEntriesTolerantShapes(t *testing.T) {
	if entries := balanceEntries(nil); entries != nil {
		t.Fatalf("expected nil entries for nil payload")
	}
	payload := map[string]any{
		"balances": []any{
			map[string]any{"coin": "USDC", "total": "1"},
			"garbage",
		},
	}
	entries := balanceEntries(payload)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}
