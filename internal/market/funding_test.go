package market

import (
	"math"
	"testing"
)

func TestAnnualize(t *testing.T) {
	got := Annualize(0.0000125)
	want := 0.0000125 * 24 * 365 * 100
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestParseFundingRatesPrefersVenueRate(t *testing.T) {
	payload := []any{
		[]any{"BTC", []any{
			[]any{"BinPerp", map[string]any{"fundingRate": "0.0001", "fundingIntervalHours": float64(8)}},
			[]any{"HlPerp", map[string]any{"fundingRate": "0.0000125", "fundingIntervalHours": float64(1)}},
		}},
	}
	rates := parseFundingRates(payload)
	rate, ok := rates["BTC"]
	if !ok {
		t.Fatalf("expected BTC rate")
	}
	if rate.Source != "HlPerp" {
		t.Fatalf("expected HlPerp source, got %s", rate.Source)
	}
	if math.Abs(rate.Hourly-0.0000125) > 1e-12 {
		t.Fatalf("expected hourly 0.0000125, got %g", rate.Hourly)
	}
	if math.Abs(rate.YearlyPct-Annualize(0.0000125)) > 1e-9 {
		t.Fatalf("expected yearly %g, got %g", Annualize(0.0000125), rate.YearlyPct)
	}
}

func TestParseFundingRatesNormalizesInterval(t *testing.T) {
	payload := []any{
		[]any{"ETH", []any{
			[]any{"BinPerp", map[string]any{"fundingRate": "0.0008", "fundingIntervalHours": float64(8)}},
		}},
	}
	rates := parseFundingRates(payload)
	rate, ok := rates["ETH"]
	if !ok {
		t.Fatalf("expected ETH rate from fallback provider")
	}
	if math.Abs(rate.Hourly-0.0001) > 1e-12 {
		t.Fatalf("expected hourly 0.0001, got %g", rate.Hourly)
	}
	if rate.Source != "BinPerp" {
		t.Fatalf("expected BinPerp source, got %s", rate.Source)
	}
}

func TestParseFundingRatesWrappedPayload(t *testing.T) {
	inner := []any{
		[]any{"HYPE", []any{
			[]any{"HlPerp", map[string]any{"fundingRate": float64(0.00005)}},
		}},
	}
	rates := parseFundingRates(map[string]any{"data": inner})
	if _, ok := rates["HYPE"]; !ok {
		t.Fatalf("expected HYPE rate from wrapped payload, got %v", rates)
	}
}

func TestParseFundingRatesSkipsMalformedEntries(t *testing.T) {
	payload := []any{
		"garbage",
		[]any{"BTC"},
		[]any{"", []any{}},
		[]any{"ETH", []any{
			[]any{"HlPerp", map[string]any{"note": "no rate"}},
		}},
	}
	if rates := parseFundingRates(payload); rates != nil {
		t.Fatalf("expected no rates, got %v", rates)
	}
}
