package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hl-delta-bot/internal/account"
	"hl-delta-bot/internal/alerts"
	"hl-delta-bot/internal/api"
	"hl-delta-bot/internal/catalog"
	"hl-delta-bot/internal/config"
	"hl-delta-bot/internal/engine"
	"hl-delta-bot/internal/history"
	"hl-delta-bot/internal/hl/exchange"
	"hl-delta-bot/internal/hl/rest"
	"hl-delta-bot/internal/hl/ws"
	"hl-delta-bot/internal/logging"
	"hl-delta-bot/internal/market"
	"hl-delta-bot/internal/metrics"
	"hl-delta-bot/internal/state/sqlite"

	"go.uber.org/zap"
)

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
	log.Info("config loaded", zap.String("path", *configPath))

	privateKey, address, err := credentials()
	if err != nil {
		log.Error("invalid credentials", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restClient := rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, log)
	wsClient := ws.New(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, log)

	signer, err := exchange.NewSigner(privateKey, isMainnet(cfg.REST.BaseURL))
	if err != nil {
		log.Error("failed to initialize signer", zap.Error(err))
		os.Exit(1)
	}
	exchangeClient, err := exchange.NewClient(cfg.REST.BaseURL, cfg.REST.Timeout, signer, "")
	if err != nil {
		log.Error("failed to initialize exchange client", zap.Error(err))
		os.Exit(1)
	}
	exchangeClient.SetLogger(log)

	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		log.Error("failed to open state store", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()
	if err := exchangeClient.InitNonceStore(ctx, store); err != nil {
		log.Error("failed to initialize nonce store", zap.Error(err))
		os.Exit(1)
	}

	cat, err := catalog.Load(ctx, restClient, cfg.Strategy.Instruments, cfg.Strategy.Overrides, log)
	if err != nil {
		log.Error("failed to load market catalog", zap.Error(err))
		os.Exit(1)
	}

	marketData := market.New(restClient, wsClient, log)
	if err := marketData.Start(ctx); err != nil {
		log.Error("failed to start market data", zap.Error(err))
		os.Exit(1)
	}
	accountClient := account.New(restClient, log, address)

	prom := metrics.NewPrometheus()
	telegram := alerts.NewTelegram(cfg.Telegram, log)

	historyWriter, err := history.New(cfg.History, log)
	if err != nil {
		log.Error("failed to initialize history writer", zap.Error(err))
		os.Exit(1)
	}
	if historyWriter != nil {
		historyWriter.Start(ctx)
		defer historyWriter.Close()
	}

	eng := engine.New(cfg, log, engine.Deps{
		Catalog:  cat,
		Market:   marketData,
		Account:  accountClient,
		Venue:    engine.NewVenue(exchangeClient, restClient, address),
		Leverage: exchangeClient,
		Store:    store,
		Metrics:  prom.Metrics,
		Alerts:   telegram,
		History:  historyWriter,
	})

	server := api.NewServer(cfg.API.ListenAddr, eng, prom.Handler(), log)
	server.Start(ctx)

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("engine terminated", zap.Error(err))
		os.Exit(1)
	}
}

func credentials() (privateKey, address string, err error) {
	privateKey = strings.TrimSpace(os.Getenv("HL_PRIVATE_KEY"))
	address = strings.TrimSpace(os.Getenv("HL_ACCOUNT_ADDRESS"))
	if privateKey == "" || address == "" {
		return "", "", errors.New("HL_PRIVATE_KEY and HL_ACCOUNT_ADDRESS are required")
	}
	if strings.Contains(privateKey, "your_") || strings.Contains(address, "your_") {
		return "", "", errors.New("credentials still hold placeholder values")
	}
	return privateKey, address, nil
}

func isMainnet(baseURL string) bool {
	return !strings.Contains(baseURL, "testnet")
}
