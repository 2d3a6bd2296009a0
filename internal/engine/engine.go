package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hl-delta-bot/internal/account"
	"hl-delta-bot/internal/alerts"
	"hl-delta-bot/internal/catalog"
	"hl-delta-bot/internal/config"
	"hl-delta-bot/internal/exec"
	"hl-delta-bot/internal/history"
	"hl-delta-bot/internal/market"
	"hl-delta-bot/internal/metrics"
	"hl-delta-bot/internal/state"
	"hl-delta-bot/internal/strategy"

	"go.uber.org/zap"
)

const closeSettlePoll = 10 * time.Second

// MarketData is the market surface the engine reads: mid prices for the
// orchestrator and predicted funding for rotation.
type MarketData interface {
	Mid(ctx context.Context, coin string) (float64, error)
	FundingRates(ctx context.Context) (map[string]market.FundingRate, error)
}

// AccountData refreshes the catalog's position records and reports the free
// quote balance.
type AccountData interface {
	Refresh(ctx context.Context, cat *catalog.Catalog) (account.Summary, error)
	SpotUSDC(ctx context.Context) (float64, error)
}

// LeverageSetter applies the configured perp leverage before an open.
type LeverageSetter interface {
	UpdateLeverage(ctx context.Context, asset, leverage int, isCross bool) error
}

// Deps are the collaborators the engine drives. History and Alerts may be
// nil / disabled.
type Deps struct {
	Catalog  *catalog.Catalog
	Market   MarketData
	Account  AccountData
	Venue    exec.Venue
	Leverage LeverageSetter
	Store    state.Store
	Metrics  *metrics.Metrics
	Alerts   *alerts.Telegram
	History  *history.Writer
}

// Engine runs the single control loop: every tick it reconciles pending
// orders, and inside the pre-hour window it refreshes funding rates,
// rotates the position to the best-paying instrument, and checks the
// capital allocation. All live trading state is owned by the loop; the
// control surface serializes through the engine mutex.
type Engine struct {
	cfg     *config.Config
	log     *zap.Logger
	cat     *catalog.Catalog
	market  MarketData
	account AccountData
	orch    *exec.Orchestrator
	recon   *exec.Reconciler
	lev     LeverageSetter
	metrics *metrics.Metrics
	alerts  *alerts.Telegram
	history *history.Writer

	mu           sync.Mutex
	running      bool
	summary      account.Summary
	lastRotation time.Time
	leverageSet  map[string]bool
}

func New(cfg *config.Config, log *zap.Logger, deps Deps) *Engine {
	m := deps.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	orch := exec.NewOrchestrator(deps.Venue, deps.Market, deps.Account, exec.OrchestratorConfig{
		BalanceFraction:  cfg.Strategy.BalanceFraction,
		MinNotionalUSD:   cfg.Strategy.MinNotionalUSD,
		DeltaErrorMargin: cfg.Strategy.DeltaErrorMargin,
		PendingMaxWait:   cfg.Strategy.PendingMaxWait,
	}, log, m)
	recon := exec.NewReconciler(deps.Venue, deps.Store, cfg.Strategy.PendingCheckInterval, log, m)
	return &Engine{
		cfg:         cfg,
		log:         log,
		cat:         deps.Catalog,
		market:      deps.Market,
		account:     deps.Account,
		orch:        orch,
		recon:       recon,
		lev:         deps.Leverage,
		metrics:     m,
		alerts:      deps.Alerts,
		history:     deps.History,
		leverageSet: make(map[string]bool),
	}
}

// Run blocks until ctx is cancelled, then closes all neutral positions.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.recon.Restore(ctx); err != nil {
		e.log.Warn("pending order restore failed", zap.Error(err))
	}
	if e.cfg.Strategy.Autostart {
		e.Start()
	}
	ticker := time.NewTicker(e.cfg.Strategy.RefreshInterval)
	defer ticker.Stop()
	e.log.Info("engine loop started",
		zap.Duration("refresh_interval", e.cfg.Strategy.RefreshInterval),
		zap.Bool("autostart", e.cfg.Strategy.Autostart))
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now().UTC()
	e.handleResolutions(ctx, e.recon.Tick(ctx, now))
	if !e.running {
		return
	}
	summary, err := e.account.Refresh(ctx, e.cat)
	if err != nil {
		e.log.Warn("account refresh failed", zap.Error(err))
	} else {
		e.summary = summary
	}
	e.recordSnapshots(now)
	if strategy.InRotationWindow(now) {
		hour := now.Truncate(time.Hour)
		if !e.lastRotation.Equal(hour) {
			e.lastRotation = hour
			e.rotate(ctx, now)
			e.checkAllocation(ctx)
		}
	}
}

// handleResolutions reacts to entries leaving the reconciler: a timed-out
// opening attempt is retried while trading is enabled, a timed-out close is
// left for the operator. Cancellation of the stale legs already happened
// inside the reconciler regardless of the running flag.
func (e *Engine) handleResolutions(ctx context.Context, resolutions []exec.Resolution) {
	for _, res := range resolutions {
		if res.Outcome != exec.OutcomeTimedOut {
			continue
		}
		entry := res.Entry
		if entry.Closing {
			e.notify(ctx, fmt.Sprintf("close of %s timed out with legs spot=%v perp=%v", entry.Symbol, entry.SpotFilled, entry.PerpFilled))
			continue
		}
		if !e.running {
			e.log.Info("open timed out, not retrying while stopped", zap.String("symbol", entry.Symbol))
			e.notify(ctx, fmt.Sprintf("open of %s timed out", entry.Symbol))
			continue
		}
		e.notify(ctx, fmt.Sprintf("open of %s timed out, retrying", entry.Symbol))
		inst, ok := e.cat.Get(entry.Symbol)
		if !ok {
			continue
		}
		if _, err := e.account.Refresh(ctx, e.cat); err != nil {
			e.log.Warn("account refresh before retry failed", zap.Error(err))
			continue
		}
		pending, err := e.orch.Open(ctx, inst)
		if err != nil {
			e.log.Error("re-open after timeout failed", zap.String("symbol", entry.Symbol), zap.Error(err))
			continue
		}
		if pending != nil {
			e.recon.Track(ctx, pending)
		}
	}
}

func (e *Engine) rotate(ctx context.Context, now time.Time) {
	rates, err := e.market.FundingRates(ctx)
	if err != nil {
		e.log.Warn("funding refresh failed", zap.Error(err))
		return
	}
	e.applyFunding(rates, now)
	if e.recon.Pending() > 0 {
		e.log.Info("skipping rotation, orders still pending", zap.Int("pending", e.recon.Pending()))
		return
	}
	current := e.currentNeutral()
	candidate, ok := strategy.BestFundingCandidate(e.cat.Tradable())
	if !ok {
		e.log.Info("no funding candidate above zero")
		return
	}
	if !strategy.ShouldRotate(current, candidate, e.cfg.Strategy.MinYearlyFundingPct) {
		if current != nil {
			e.log.Info("holding position",
				zap.String("symbol", current.Symbol),
				zap.Float64("yearly_pct", current.Perp.FundingYearlyPct))
		}
		return
	}
	if current != nil {
		if !e.closeAndWait(ctx, current) {
			return
		}
	}
	e.log.Info("rotating into instrument",
		zap.String("symbol", candidate.Symbol),
		zap.Float64("yearly_pct", candidate.Perp.FundingYearlyPct))
	if e.openInstrument(ctx, candidate) {
		e.metrics.Rotations.Inc()
		e.notify(ctx, fmt.Sprintf("rotated into %s at %.2f%% yearly funding", candidate.Symbol, candidate.Perp.FundingYearlyPct))
	}
}

func (e *Engine) applyFunding(rates map[string]market.FundingRate, now time.Time) {
	for _, symbol := range e.cat.Symbols() {
		inst, _ := e.cat.Get(symbol)
		if inst == nil || inst.Perp == nil {
			continue
		}
		rate, ok := rates[symbol]
		if !ok {
			continue
		}
		inst.Perp.FundingHourly = rate.Hourly
		inst.Perp.FundingYearlyPct = rate.YearlyPct
		e.history.EnqueueFunding(history.FundingObservation{
			Time:      now,
			Coin:      symbol,
			Hourly:    rate.Hourly,
			YearlyPct: rate.YearlyPct,
			Source:    rate.Source,
		})
	}
}

func (e *Engine) currentNeutral() *catalog.Instrument {
	for _, inst := range e.cat.Tradable() {
		if strategy.EvaluateDelta(inst, e.cfg.Strategy.DeltaErrorMargin).Neutral {
			return inst
		}
	}
	return nil
}

// closeAndWait submits the close and polls the reconciler until the legs
// settle or the settle budget runs out. On timeout the rotation proceeds
// anyway; the stale legs stay tracked.
func (e *Engine) closeAndWait(ctx context.Context, inst *catalog.Instrument) bool {
	pending, err := e.orch.Close(ctx, inst)
	if err != nil {
		e.log.Error("rotation close failed", zap.String("symbol", inst.Symbol), zap.Error(err))
		return false
	}
	if pending != nil {
		e.recon.Track(ctx, pending)
	}
	deadline := time.Now().Add(e.cfg.Strategy.CloseSettleTimeout)
	for e.recon.HasPending(inst.Symbol, true) {
		if time.Now().After(deadline) {
			e.log.Warn("close did not settle in time, proceeding with rotation",
				zap.String("symbol", inst.Symbol))
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(closeSettlePoll):
		}
		e.handleResolutions(ctx, e.recon.Tick(ctx, time.Now().UTC()))
	}
	if _, err := e.account.Refresh(ctx, e.cat); err != nil {
		e.log.Warn("account refresh after close failed", zap.Error(err))
	}
	return true
}

func (e *Engine) openInstrument(ctx context.Context, inst *catalog.Instrument) bool {
	e.ensureLeverage(ctx, inst)
	pending, err := e.orch.Open(ctx, inst)
	if err != nil {
		e.log.Error("open failed", zap.String("symbol", inst.Symbol), zap.Error(err))
		e.notify(ctx, fmt.Sprintf("open of %s failed: %v", inst.Symbol, err))
		return false
	}
	if pending != nil {
		e.recon.Track(ctx, pending)
	}
	return true
}

func (e *Engine) ensureLeverage(ctx context.Context, inst *catalog.Instrument) {
	if e.leverageSet[inst.Symbol] || e.lev == nil {
		return
	}
	if err := e.lev.UpdateLeverage(ctx, inst.PerpAssetID(), e.cfg.Strategy.Leverage, true); err != nil {
		e.log.Warn("leverage update failed",
			zap.String("symbol", inst.Symbol),
			zap.Int("leverage", e.cfg.Strategy.Leverage),
			zap.Error(err))
		return
	}
	e.leverageSet[inst.Symbol] = true
}

func (e *Engine) checkAllocation(ctx context.Context) {
	target := strategy.AllocationTarget{
		SpotFraction: e.cfg.Allocation.SpotFraction,
		PerpFraction: e.cfg.Allocation.PerpFraction,
		Threshold:    e.cfg.Allocation.RebalanceThreshold,
	}
	spotValue := e.summary.SpotUSDC
	for _, inst := range e.cat.Tradable() {
		if inst.Spot.Position == nil {
			continue
		}
		mid, err := e.market.Mid(ctx, inst.Symbol)
		if err != nil {
			e.log.Warn("mid unavailable for allocation check", zap.String("symbol", inst.Symbol), zap.Error(err))
			continue
		}
		spotValue += inst.Spot.Position.Total * mid
	}
	report := strategy.CheckAllocation(target, spotValue, e.summary.AccountValue)
	if report.Balanced {
		return
	}
	direction := "perp -> spot"
	if report.ToPerp {
		direction = "spot -> perp"
	}
	e.metrics.RebalanceWarnings.Inc()
	e.log.Warn("allocation drifted from target",
		zap.Float64("spot_ratio", report.SpotRatio),
		zap.Float64("target", target.SpotFraction),
		zap.Float64("transfer_usd", report.TransferUSD),
		zap.String("direction", direction))
	e.notify(ctx, fmt.Sprintf("allocation drift: spot ratio %.3f vs target %.3f, transfer %.2f USDC %s", report.SpotRatio, target.SpotFraction, report.TransferUSD, direction))
}

func (e *Engine) recordSnapshots(now time.Time) {
	for _, inst := range e.cat.Tradable() {
		delta := strategy.EvaluateDelta(inst, e.cfg.Strategy.DeltaErrorMargin)
		if delta.SpotSize == 0 && delta.PerpSize == 0 {
			continue
		}
		e.history.EnqueuePosition(history.PositionSnapshot{
			Time:         now,
			Coin:         inst.Symbol,
			Neutral:      delta.Neutral,
			SpotSize:     delta.SpotSize,
			PerpSize:     delta.PerpSize,
			DiffPct:      delta.DiffPct,
			SpotUSDC:     e.summary.SpotUSDC,
			AccountValue: e.summary.AccountValue,
			PendingCount: e.recon.Pending(),
		})
	}
}

// shutdown closes every neutral position on a fresh context; the loop
// context is already cancelled by the time it runs.
func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Strategy.CloseSettleTimeout)
	defer cancel()
	e.log.Info("engine shutting down, closing positions")
	if err := e.Stop(ctx); err != nil {
		e.log.Error("shutdown close failed", zap.Error(err))
	}
}

func (e *Engine) notify(ctx context.Context, message string) {
	if e.alerts == nil {
		return
	}
	if err := e.alerts.Send(ctx, message); err != nil {
		e.log.Warn("alert send failed", zap.Error(err))
	}
}
