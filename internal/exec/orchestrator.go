package exec

import (
	"context"
	"fmt"
	"math"
	"time"

	"hl-delta-bot/internal/catalog"
	"hl-delta-bot/internal/metrics"
	"hl-delta-bot/internal/strategy"

	"go.uber.org/zap"
)

// collateralBuffer keeps a slice of the quote balance unspent so the spot
// leg cannot fail on fees or price drift between sizing and fill.
const collateralBuffer = 0.95

type PriceSource interface {
	Mid(ctx context.Context, coin string) (float64, error)
}

type BalanceSource interface {
	SpotUSDC(ctx context.Context) (float64, error)
}

type OrchestratorConfig struct {
	BalanceFraction  float64
	MinNotionalUSD   float64
	DeltaErrorMargin float64
	PendingMaxWait   time.Duration
}

// Orchestrator opens and closes the two legs of a delta-neutral position.
// Legs are submitted spot first, then perp; a failed second leg is not
// rolled back, the partial pending order is handed to the reconciler.
type Orchestrator struct {
	venue    Venue
	prices   PriceSource
	balances BalanceSource
	cfg      OrchestratorConfig
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewOrchestrator(venue Venue, prices PriceSource, balances BalanceSource, cfg OrchestratorConfig, log *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Orchestrator{venue: venue, prices: prices, balances: balances, cfg: cfg, log: log, metrics: m}
}

// Open buys spot and shorts the perp for the same size. Returns nil with no
// error when the instrument is already delta neutral.
func (o *Orchestrator) Open(ctx context.Context, inst *catalog.Instrument) (*PendingLegOrder, error) {
	if !inst.Tradable() {
		return nil, fmt.Errorf("%w: %s", ErrNotTradable, inst.Symbol)
	}
	if delta := strategy.EvaluateDelta(inst, o.cfg.DeltaErrorMargin); delta.Neutral {
		o.log.Info("position already neutral", zap.String("symbol", inst.Symbol))
		return nil, nil
	}
	price, err := o.prices.Mid(ctx, inst.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, inst.Symbol, err)
	}
	quote, err := o.balances.SpotUSDC(ctx)
	if err != nil {
		return nil, err
	}
	spotSize := strategy.SpotOrderSize(inst, price, quote, o.cfg.BalanceFraction, o.cfg.MinNotionalUSD)
	if spotSize <= 0 {
		return nil, fmt.Errorf("%w: %.2f USDC free, min notional %.2f", ErrInsufficientBalance, quote, o.cfg.MinNotionalUSD)
	}
	if spotSize*price > quote*collateralBuffer {
		return nil, fmt.Errorf("%w: order notional %.2f exceeds %.0f%% of %.2f", ErrInsufficientBalance, spotSize*price, collateralBuffer*100, quote)
	}
	perpSize := strategy.PerpOrderSize(inst, spotSize)
	spotLimit := strategy.RoundPrice(price+inst.Spot.TickSize, inst.Spot.TickSize)
	perpLimit := strategy.RoundPrice(price-inst.Perp.TickSize, inst.Perp.TickSize)

	pending := &PendingLegOrder{
		Symbol:    inst.Symbol,
		SpotAsset: inst.SpotAssetID(),
		PerpAsset: inst.PerpAssetID(),
		CreatedAt: time.Now().UTC(),
		MaxWait:   o.cfg.PendingMaxWait,
	}
	o.log.Info("opening position",
		zap.String("symbol", inst.Symbol),
		zap.Float64("mid", price),
		zap.Float64("spot_size", spotSize),
		zap.Float64("perp_size", perpSize),
		zap.Float64("spot_limit", spotLimit),
		zap.Float64("perp_limit", perpLimit))

	spot, err := o.venue.PlaceOrder(ctx, pending.SpotAsset, true, spotSize, spotLimit, false)
	if err != nil {
		o.metrics.OrdersFailed.Inc()
		return nil, fmt.Errorf("spot buy %s: %w", inst.Symbol, err)
	}
	o.metrics.OrdersPlaced.Inc()
	pending.SpotOrderID = spot.OrderID
	pending.SpotFilled = spot.Filled

	perp, err := o.venue.PlaceOrder(ctx, pending.PerpAsset, false, perpSize, perpLimit, false)
	if err != nil {
		o.metrics.OrdersFailed.Inc()
		o.log.Error("perp short failed, spot leg left for reconciler",
			zap.String("symbol", inst.Symbol), zap.Error(err))
		return pending, nil
	}
	o.metrics.OrdersPlaced.Inc()
	pending.PerpOrderID = perp.OrderID
	pending.PerpFilled = perp.Filled
	return pending, nil
}

// Close unwinds a neutral position: sell the free spot balance, buy back
// the perp short. Held spot balance is excluded from the sell.
func (o *Orchestrator) Close(ctx context.Context, inst *catalog.Instrument) (*PendingLegOrder, error) {
	if !inst.Tradable() {
		return nil, fmt.Errorf("%w: %s", ErrNotTradable, inst.Symbol)
	}
	delta := strategy.EvaluateDelta(inst, o.cfg.DeltaErrorMargin)
	if !delta.Neutral {
		return nil, fmt.Errorf("%w: %s", ErrNothingToClose, inst.Symbol)
	}
	price, err := o.prices.Mid(ctx, inst.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, inst.Symbol, err)
	}
	var hold float64
	if inst.Spot.Position != nil {
		hold = inst.Spot.Position.Hold
	}
	spotSize := strategy.RoundSize(delta.SpotSize-hold, inst.Spot.SzDecimals)
	perpSize := strategy.RoundSize(math.Abs(delta.PerpSize), inst.Perp.SzDecimals)
	spotLimit := strategy.RoundPrice(price-inst.Spot.TickSize, inst.Spot.TickSize)
	perpLimit := strategy.RoundPrice(price+inst.Perp.TickSize, inst.Perp.TickSize)

	pending := &PendingLegOrder{
		Symbol:    inst.Symbol,
		Closing:   true,
		SpotAsset: inst.SpotAssetID(),
		PerpAsset: inst.PerpAssetID(),
		CreatedAt: time.Now().UTC(),
		MaxWait:   o.cfg.PendingMaxWait,
	}
	o.log.Info("closing position",
		zap.String("symbol", inst.Symbol),
		zap.Float64("mid", price),
		zap.Float64("spot_size", spotSize),
		zap.Float64("perp_size", perpSize),
		zap.Float64("spot_limit", spotLimit),
		zap.Float64("perp_limit", perpLimit))

	if spotSize > 0 {
		spot, err := o.venue.PlaceOrder(ctx, pending.SpotAsset, false, spotSize, spotLimit, false)
		if err != nil {
			o.metrics.OrdersFailed.Inc()
			return nil, fmt.Errorf("spot sell %s: %w", inst.Symbol, err)
		}
		o.metrics.OrdersPlaced.Inc()
		pending.SpotOrderID = spot.OrderID
		pending.SpotFilled = spot.Filled
	} else {
		// Whole balance is on hold; nothing to sell.
		pending.SpotFilled = true
	}

	if perpSize > 0 {
		perp, err := o.venue.PlaceOrder(ctx, pending.PerpAsset, true, perpSize, perpLimit, true)
		if err != nil {
			o.metrics.OrdersFailed.Inc()
			o.log.Error("perp cover failed, spot leg left for reconciler",
				zap.String("symbol", inst.Symbol), zap.Error(err))
			return pending, nil
		}
		o.metrics.OrdersPlaced.Inc()
		pending.PerpOrderID = perp.OrderID
		pending.PerpFilled = perp.Filled
	} else {
		pending.PerpFilled = true
	}
	return pending, nil
}
