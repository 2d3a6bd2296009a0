package engine

import (
	"context"
	"fmt"
	"time"

	"hl-delta-bot/internal/strategy"

	"go.uber.org/zap"
)

// PositionStatus is the per-instrument slice of a status report.
type PositionStatus struct {
	Symbol           string  `json:"symbol"`
	Tradable         bool    `json:"tradable"`
	Neutral          bool    `json:"neutral"`
	SpotSize         float64 `json:"spot_size"`
	PerpSize         float64 `json:"perp_size"`
	DiffPct          float64 `json:"diff_pct"`
	FundingYearlyPct float64 `json:"funding_yearly_pct"`
	PendingOrders    bool    `json:"pending_orders"`
}

type Status struct {
	Running       bool             `json:"running"`
	AccountValue  float64          `json:"account_value"`
	SpotUSDC      float64          `json:"spot_usdc"`
	PendingOrders int              `json:"pending_orders"`
	Positions     []PositionStatus `json:"positions"`
}

// Start enables trading decisions. Reconciliation of in-flight orders runs
// regardless of the running flag.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.log.Info("trading started")
}

// Stop disables trading decisions and closes every neutral position.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.running = false
		e.log.Info("trading stopped")
	}
	return e.closeAllNeutral(ctx)
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Open establishes a delta-neutral position on one tracked instrument.
func (e *Engine) Open(ctx context.Context, coin string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.cat.Get(coin)
	if !ok {
		return fmt.Errorf("unknown instrument %q", coin)
	}
	if e.recon.HasPending(inst.Symbol, false) {
		return fmt.Errorf("orders already pending for %s", inst.Symbol)
	}
	if summary, err := e.account.Refresh(ctx, e.cat); err != nil {
		return fmt.Errorf("account refresh: %w", err)
	} else {
		e.summary = summary
	}
	e.ensureLeverage(ctx, inst)
	pending, err := e.orch.Open(ctx, inst)
	if err != nil {
		return err
	}
	if pending != nil {
		e.recon.Track(ctx, pending)
	}
	return nil
}

// Close unwinds the delta-neutral position on one tracked instrument.
func (e *Engine) Close(ctx context.Context, coin string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.cat.Get(coin)
	if !ok {
		return fmt.Errorf("unknown instrument %q", coin)
	}
	if e.recon.HasPending(inst.Symbol, false) {
		return fmt.Errorf("orders already pending for %s", inst.Symbol)
	}
	if summary, err := e.account.Refresh(ctx, e.cat); err != nil {
		return fmt.Errorf("account refresh: %w", err)
	} else {
		e.summary = summary
	}
	pending, err := e.orch.Close(ctx, inst)
	if err != nil {
		return err
	}
	if pending != nil {
		e.recon.Track(ctx, pending)
	}
	return nil
}

// Status reports the current positions. The snapshot is refreshed
// best-effort; on error the last known records are reported.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if summary, err := e.account.Refresh(ctx, e.cat); err != nil {
		e.log.Warn("status refresh failed", zap.Error(err))
	} else {
		e.summary = summary
	}
	status := Status{
		Running:       e.running,
		AccountValue:  e.summary.AccountValue,
		SpotUSDC:      e.summary.SpotUSDC,
		PendingOrders: e.recon.Pending(),
	}
	for _, symbol := range e.cat.Symbols() {
		inst, _ := e.cat.Get(symbol)
		if inst == nil {
			continue
		}
		pos := PositionStatus{
			Symbol:        symbol,
			Tradable:      inst.Tradable(),
			PendingOrders: e.recon.HasPending(symbol, false),
		}
		if inst.Tradable() {
			delta := strategy.EvaluateDelta(inst, e.cfg.Strategy.DeltaErrorMargin)
			pos.Neutral = delta.Neutral
			pos.SpotSize = delta.SpotSize
			pos.PerpSize = delta.PerpSize
			pos.DiffPct = delta.DiffPct
			pos.FundingYearlyPct = inst.Perp.FundingYearlyPct
		}
		status.Positions = append(status.Positions, pos)
	}
	return status
}

// closeAllNeutral submits closes for every neutral instrument and drives
// the reconciler until they settle or the settle budget elapses. Caller
// holds the engine mutex.
func (e *Engine) closeAllNeutral(ctx context.Context) error {
	if _, err := e.account.Refresh(ctx, e.cat); err != nil {
		return fmt.Errorf("account refresh: %w", err)
	}
	closing := 0
	for _, inst := range e.cat.Tradable() {
		if !strategy.EvaluateDelta(inst, e.cfg.Strategy.DeltaErrorMargin).Neutral {
			continue
		}
		pending, err := e.orch.Close(ctx, inst)
		if err != nil {
			e.log.Error("close failed", zap.String("symbol", inst.Symbol), zap.Error(err))
			continue
		}
		if pending != nil {
			e.recon.Track(ctx, pending)
			closing++
		}
	}
	if closing == 0 {
		return nil
	}
	deadline := time.Now().Add(e.cfg.Strategy.CloseSettleTimeout)
	for e.recon.Pending() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(closeSettlePoll):
		}
		e.handleResolutions(ctx, e.recon.Tick(ctx, time.Now().UTC()))
	}
	if e.recon.Pending() > 0 {
		e.log.Warn("close orders still pending after settle budget", zap.Int("pending", e.recon.Pending()))
	}
	return nil
}
