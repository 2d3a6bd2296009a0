package market

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"hl-delta-bot/internal/hl/rest"
	"hl-delta-bot/internal/hl/ws"

	"go.uber.org/zap"
)

// Data caches mid prices from the allMids websocket stream and falls back
// to the /info endpoint when a price has not been seen yet.
type Data struct {
	rest *rest.Client
	ws   *ws.Client
	log  *zap.Logger

	mu   sync.RWMutex
	mids map[string]float64
}

func New(restClient *rest.Client, wsClient *ws.Client, log *zap.Logger) *Data {
	return &Data{
		rest: restClient,
		ws:   wsClient,
		log:  log,
		mids: make(map[string]float64),
	}
}

func (d *Data) Start(ctx context.Context) error {
	if d.ws == nil {
		return nil
	}
	sub := map[string]any{"method": "subscribe", "subscription": map[string]any{"type": "allMids"}}
	if err := d.ws.Connect(ctx); err != nil {
		return err
	}
	if err := d.ws.Subscribe(ctx, sub); err != nil {
		return err
	}
	go func() {
		_ = d.ws.Run(ctx, d.handleMessage)
	}()
	return nil
}

// Mid returns the mid price for a coin, refreshing from REST when the
// stream has not delivered one yet.
func (d *Data) Mid(ctx context.Context, coin string) (float64, error) {
	d.mu.RLock()
	price, ok := d.mids[coin]
	d.mu.RUnlock()
	if ok && price > 0 {
		return price, nil
	}
	if d.rest == nil {
		return 0, errors.New("mid price not found")
	}
	resp, err := d.rest.Info(ctx, rest.InfoRequest{Type: "allMids"})
	if err != nil {
		return 0, err
	}
	d.updateMids(resp)
	d.mu.RLock()
	price, ok = d.mids[coin]
	d.mu.RUnlock()
	if !ok || price <= 0 {
		return 0, errors.New("mid price not found")
	}
	return price, nil
}

func (d *Data) handleMessage(msg json.RawMessage) {
	var payload map[string]any
	if err := json.Unmarshal(msg, &payload); err != nil {
		if d.log != nil {
			d.log.Debug("ws decode error", zap.Error(err))
		}
		return
	}
	d.updateMids(payload)
}

func (d *Data) updateMids(payload map[string]any) {
	var mids map[string]any
	if data, ok := payload["data"].(map[string]any); ok {
		if raw, ok := data["mids"].(map[string]any); ok {
			mids = raw
		}
	}
	if mids == nil {
		if raw, ok := payload["mids"].(map[string]any); ok {
			mids = raw
		}
	}
	if mids == nil {
		// /info allMids returns a flat map of coin -> mid.
		if _, hasData := payload["data"]; !hasData {
			mids = payload
		}
	}
	if mids == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for coin, v := range mids {
		if f, ok := floatFromAny(v); ok {
			d.mids[coin] = f
		}
	}
}
