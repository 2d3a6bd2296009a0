package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"hl-delta-bot/internal/account"
	"hl-delta-bot/internal/catalog"
	"hl-delta-bot/internal/config"
	"hl-delta-bot/internal/logging"
	"hl-delta-bot/internal/hl/rest"
	"hl-delta-bot/internal/market"
	"hl-delta-bot/internal/strategy"

	"go.uber.org/zap"
)

// inspect prints the resolved catalog, predicted funding rates, and the
// current account positions without placing any orders.
func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	restClient := rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, log)
	cat, err := catalog.Load(ctx, restClient, cfg.Strategy.Instruments, cfg.Strategy.Overrides, log)
	if err != nil {
		log.Error("catalog load failed", zap.Error(err))
		os.Exit(1)
	}

	marketData := market.New(restClient, nil, log)
	rates, err := marketData.FundingRates(ctx)
	if err != nil {
		log.Warn("funding rates unavailable", zap.Error(err))
	}

	user := os.Getenv("HL_ACCOUNT_ADDRESS")
	if user != "" {
		accountClient := account.New(restClient, log, user)
		if _, err := accountClient.Refresh(ctx, cat); err != nil {
			log.Warn("account refresh failed", zap.Error(err))
		}
	}

	for _, symbol := range cat.Symbols() {
		inst, _ := cat.Get(symbol)
		if !inst.Tradable() {
			fmt.Printf("%-6s unresolved (spot=%v perp=%v)\n", symbol, inst.Spot != nil, inst.Perp != nil)
			continue
		}
		fmt.Printf("%-6s spot=%s (asset %d, szDec %d, tick %g)  perp asset %d (szDec %d, maxLev %d)\n",
			symbol, inst.Spot.Pair, inst.SpotAssetID(), inst.Spot.SzDecimals, inst.Spot.TickSize,
			inst.PerpAssetID(), inst.Perp.SzDecimals, inst.Perp.MaxLeverage)
		if rate, ok := rates[symbol]; ok {
			fmt.Printf("       funding %.6f%%/h  %.2f%%/yr (%s)\n", rate.Hourly*100, rate.YearlyPct, rate.Source)
		}
		if user != "" {
			delta := strategy.EvaluateDelta(inst, cfg.Strategy.DeltaErrorMargin)
			if delta.SpotSize != 0 || delta.PerpSize != 0 {
				fmt.Printf("       position spot=%g perp=%g diff=%.3f%% neutral=%v\n",
					delta.SpotSize, delta.PerpSize, delta.DiffPct, delta.Neutral)
			}
		}
	}
}
