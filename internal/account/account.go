package account

import (
	"context"
	"errors"
	"strings"

	"hl-delta-bot/internal/catalog"
	"hl-delta-bot/internal/hl/rest"

	"go.uber.org/zap"
)

// Summary is the margin-level view of the perp account plus the spot USDC
// balance, captured at refresh time.
type Summary struct {
	AccountValue    float64
	TotalMarginUsed float64
	TotalRawUSD     float64
	Withdrawable    float64
	SpotUSDC        float64
	SpotUSDCHold    float64
}

type Client struct {
	rest *rest.Client
	log  *zap.Logger
	user string
}

func New(restClient *rest.Client, log *zap.Logger, user string) *Client {
	return &Client{rest: restClient, log: log, user: strings.TrimSpace(user)}
}

// Refresh pulls the perp and spot clearinghouse states and rebuilds the
// position records on the catalog's instruments. Records are replaced
// wholesale: an instrument with no live balance or perp position ends up
// with nil Position fields.
func (c *Client) Refresh(ctx context.Context, cat *catalog.Catalog) (Summary, error) {
	if c.rest == nil {
		return Summary{}, errors.New("rest client is required")
	}
	if c.user == "" {
		return Summary{}, errors.New("account user is required")
	}
	perp, err := c.rest.Info(ctx, rest.InfoRequest{Type: "clearinghouseState", User: c.user})
	if err != nil {
		return Summary{}, err
	}
	spot, err := c.rest.Info(ctx, rest.InfoRequest{Type: "spotClearinghouseState", User: c.user})
	if err != nil {
		return Summary{}, err
	}
	for _, symbol := range cat.Symbols() {
		inst, _ := cat.Get(symbol)
		if inst == nil {
			continue
		}
		if inst.Spot != nil {
			inst.Spot.Position = nil
		}
		if inst.Perp != nil {
			inst.Perp.Position = nil
		}
	}
	summary := parseMarginSummary(perp)
	applyPerpPositions(perp, cat)
	summary.SpotUSDC, summary.SpotUSDCHold = applySpotBalances(spot, cat)
	return summary, nil
}

// SpotUSDC returns the free USDC quote balance without touching position
// records.
func (c *Client) SpotUSDC(ctx context.Context) (float64, error) {
	if c.rest == nil {
		return 0, errors.New("rest client is required")
	}
	spot, err := c.rest.Info(ctx, rest.InfoRequest{Type: "spotClearinghouseState", User: c.user})
	if err != nil {
		return 0, err
	}
	for _, entry := range balanceEntries(spot) {
		if stringFromAny(entry["coin"]) == "USDC" {
			return floatFromMap(entry, "total"), nil
		}
	}
	return 0, nil
}

func parseMarginSummary(payload map[string]any) Summary {
	var out Summary
	if payload == nil {
		return out
	}
	if margin, ok := payload["marginSummary"].(map[string]any); ok {
		out.AccountValue = floatFromMap(margin, "accountValue")
		out.TotalMarginUsed = floatFromMap(margin, "totalMarginUsed")
		out.TotalRawUSD = floatFromMap(margin, "totalRawUsd")
	}
	out.Withdrawable = floatFromMap(payload, "withdrawable")
	return out
}

func applyPerpPositions(payload map[string]any, cat *catalog.Catalog) {
	if payload == nil {
		return
	}
	raw, ok := payload["assetPositions"].([]any)
	if !ok {
		return
	}
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pos := entry
		if nested, ok := entry["position"].(map[string]any); ok {
			pos = nested
		}
		coin := stringFromAny(pos["coin"])
		if coin == "" {
			continue
		}
		inst, ok := cat.Get(coin)
		if !ok || inst.Perp == nil {
			continue
		}
		size := floatFromMap(pos, "szi", "size")
		if size == 0 {
			continue
		}
		record := &catalog.PerpPosition{
			Size:             size,
			EntryPrice:       floatFromMap(pos, "entryPx"),
			PositionValue:    floatFromMap(pos, "positionValue"),
			UnrealizedPnl:    floatFromMap(pos, "unrealizedPnl"),
			LiquidationPrice: floatFromMap(pos, "liquidationPx"),
			MarginUsed:       floatFromMap(pos, "marginUsed"),
		}
		if lev, ok := pos["leverage"].(map[string]any); ok {
			record.Leverage = floatFromMap(lev, "value")
		}
		inst.Perp.Position = record
	}
}

func applySpotBalances(payload map[string]any, cat *catalog.Catalog) (usdcTotal, usdcHold float64) {
	for _, entry := range balanceEntries(payload) {
		coin := stringFromAny(entry["coin"])
		if coin == "" {
			coin = stringFromAny(entry["token"])
		}
		if coin == "" {
			continue
		}
		total := floatFromMap(entry, "total")
		hold := floatFromMap(entry, "hold")
		if coin == "USDC" {
			usdcTotal = total
			usdcHold = hold
			continue
		}
		inst, ok := cat.Get(coin)
		if !ok || inst.Spot == nil {
			continue
		}
		if total == 0 {
			continue
		}
		inst.Spot.Position = &catalog.SpotPosition{
			Total:         total,
			Hold:          hold,
			EntryNotional: floatFromMap(entry, "entryNtl"),
		}
	}
	return usdcTotal, usdcHold
}

func balanceEntries(payload map[string]any) []map[string]any {
	if payload == nil {
		return nil
	}
	raw, ok := payload["balances"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			out = append(out, entry)
		}
	}
	return out
}
