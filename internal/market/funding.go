package market

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"hl-delta-bot/internal/hl/rest"
)

const hoursPerYear = 24 * 365

// FundingRate is the predicted funding for one perp, normalized to an
// hourly rate. YearlyPct is the annualized rate expressed in percent.
type FundingRate struct {
	Hourly    float64
	YearlyPct float64
	Source    string
}

// Annualize converts an hourly funding rate to a yearly percentage.
func Annualize(hourly float64) float64 {
	return hourly * hoursPerYear * 100
}

// FundingRates fetches predicted fundings for all perps. Hyperliquid nests
// the payload as [[coin, [[source, {fundingRate, ...}], ...]], ...]; the
// venue's own prediction is preferred over external providers.
func (d *Data) FundingRates(ctx context.Context) (map[string]FundingRate, error) {
	if d.rest == nil {
		return nil, errors.New("rest client is required")
	}
	payload, err := d.rest.InfoAny(ctx, rest.InfoRequest{Type: "predictedFundings"})
	if err != nil {
		return nil, err
	}
	rates := parseFundingRates(payload)
	if len(rates) == 0 {
		return nil, errors.New("predicted fundings missing")
	}
	return rates, nil
}

func parseFundingRates(payload any) map[string]FundingRate {
	entries, ok := payload.([]any)
	if !ok {
		if wrapped, ok := payload.(map[string]any); ok {
			if nested, ok := wrapped["predictedFundings"]; ok {
				return parseFundingRates(nested)
			}
			if nested, ok := wrapped["data"]; ok {
				return parseFundingRates(nested)
			}
		}
		return nil
	}
	out := make(map[string]FundingRate, len(entries))
	for _, item := range entries {
		entry, ok := item.([]any)
		if !ok || len(entry) < 2 {
			continue
		}
		coin := stringFromAny(entry[0])
		if coin == "" {
			continue
		}
		providers, ok := entry[1].([]any)
		if !ok {
			continue
		}
		if rate, ok := rateFromProviders(providers); ok {
			out[coin] = rate
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func rateFromProviders(providers []any) (FundingRate, bool) {
	var fallback *FundingRate
	for _, provider := range providers {
		pair, ok := provider.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		source := stringFromAny(pair[0])
		data, ok := pair[1].(map[string]any)
		if !ok {
			continue
		}
		raw, ok := floatFromAny(data["fundingRate"])
		if !ok {
			continue
		}
		hourly := raw
		if interval, ok := floatFromAny(data["fundingIntervalHours"]); ok && interval > 0 {
			hourly = raw / interval
		}
		rate := FundingRate{Hourly: hourly, YearlyPct: Annualize(hourly), Source: source}
		if strings.EqualFold(source, "HlPerp") {
			return rate, true
		}
		if fallback == nil {
			fallback = &rate
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return FundingRate{}, false
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func floatFromAny(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
