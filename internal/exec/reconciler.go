package exec

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"hl-delta-bot/internal/metrics"
	"hl-delta-bot/internal/state"

	"go.uber.org/zap"
)

type Outcome int

const (
	OutcomeResolved Outcome = iota
	OutcomeTimedOut
)

// Resolution is a pending entry that left the ACTIVE state during a tick.
type Resolution struct {
	Entry   *PendingLegOrder
	Outcome Outcome
}

// Reconciler drives pending dual-leg orders to resolution. Each entry is
// polled at most once per checkInterval; an entry past its wait budget has
// its unfilled legs cancelled and is reported as timed out. Transport
// errors leave the entry active for the next tick.
type Reconciler struct {
	venue         Venue
	store         state.Store
	log           *zap.Logger
	metrics       *metrics.Metrics
	checkInterval time.Duration
	entries       []*PendingLegOrder
}

func NewReconciler(venue Venue, store state.Store, checkInterval time.Duration, log *zap.Logger, m *metrics.Metrics) *Reconciler {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Reconciler{
		venue:         venue,
		store:         store,
		log:           log,
		metrics:       m,
		checkInterval: checkInterval,
	}
}

// Restore reloads persisted entries after a restart so in-flight orders
// are not orphaned.
func (r *Reconciler) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	rows, err := r.store.List(ctx, "pending:")
	if err != nil {
		return err
	}
	for key, raw := range rows {
		var entry PendingLegOrder
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			r.log.Warn("dropping unreadable pending entry", zap.String("key", key), zap.Error(err))
			_ = r.store.Delete(ctx, key)
			continue
		}
		r.entries = append(r.entries, &entry)
	}
	if len(r.entries) > 0 {
		r.log.Info("restored pending orders", zap.Int("count", len(r.entries)))
	}
	return nil
}

// Track adds a pending entry and persists it.
func (r *Reconciler) Track(ctx context.Context, entry *PendingLegOrder) {
	if entry == nil {
		return
	}
	r.entries = append(r.entries, entry)
	r.persist(ctx, entry)
}

func (r *Reconciler) Pending() int {
	return len(r.entries)
}

// HasPending reports whether any entry for the symbol is still active,
// optionally restricted to closing entries.
func (r *Reconciler) HasPending(symbol string, closingOnly bool) bool {
	for _, entry := range r.entries {
		if !strings.EqualFold(entry.Symbol, symbol) {
			continue
		}
		if closingOnly && !entry.Closing {
			continue
		}
		return true
	}
	return false
}

// Tick advances every active entry once and returns the entries that
// resolved or timed out. The caller re-opens timed-out opening entries.
func (r *Reconciler) Tick(ctx context.Context, now time.Time) []Resolution {
	var done []Resolution
	remaining := r.entries[:0]
	for _, entry := range r.entries {
		resolution, finished := r.advance(ctx, entry, now)
		if finished {
			done = append(done, resolution)
			r.unpersist(ctx, entry)
			continue
		}
		remaining = append(remaining, entry)
	}
	r.entries = remaining
	return done
}

func (r *Reconciler) advance(ctx context.Context, entry *PendingLegOrder, now time.Time) (Resolution, bool) {
	if entry.bothFilled() {
		r.metrics.PendingResolved.Inc()
		r.log.Info("pending order resolved",
			zap.String("symbol", entry.Symbol), zap.Bool("closing", entry.Closing))
		return Resolution{Entry: entry, Outcome: OutcomeResolved}, true
	}
	if entry.expired(now) {
		r.cancelUnfilled(ctx, entry)
		r.metrics.PendingTimedOut.Inc()
		r.log.Warn("pending order timed out",
			zap.String("symbol", entry.Symbol),
			zap.Bool("closing", entry.Closing),
			zap.Bool("spot_filled", entry.SpotFilled),
			zap.Bool("perp_filled", entry.PerpFilled))
		return Resolution{Entry: entry, Outcome: OutcomeTimedOut}, true
	}
	if !entry.lastChecked.IsZero() && now.Sub(entry.lastChecked) < r.checkInterval {
		return Resolution{}, false
	}
	entry.lastChecked = now
	if !entry.SpotFilled && entry.SpotOrderID != 0 {
		open, err := r.venue.OrderOpen(ctx, entry.SpotOrderID)
		if err != nil {
			r.log.Warn("spot order status check failed",
				zap.String("symbol", entry.Symbol), zap.Error(err))
			return Resolution{}, false
		}
		if !open {
			entry.SpotFilled = true
		}
	}
	if !entry.PerpFilled && entry.PerpOrderID != 0 {
		open, err := r.venue.OrderOpen(ctx, entry.PerpOrderID)
		if err != nil {
			r.log.Warn("perp order status check failed",
				zap.String("symbol", entry.Symbol), zap.Error(err))
			return Resolution{}, false
		}
		if !open {
			entry.PerpFilled = true
		}
	}
	if entry.bothFilled() {
		r.metrics.PendingResolved.Inc()
		r.log.Info("pending order resolved",
			zap.String("symbol", entry.Symbol), zap.Bool("closing", entry.Closing))
		return Resolution{Entry: entry, Outcome: OutcomeResolved}, true
	}
	r.persist(ctx, entry)
	return Resolution{}, false
}

func (r *Reconciler) cancelUnfilled(ctx context.Context, entry *PendingLegOrder) {
	if !entry.SpotFilled && entry.SpotOrderID != 0 {
		if err := retry(ctx, 3, func() error {
			return r.venue.CancelOrder(ctx, entry.SpotAsset, entry.SpotOrderID)
		}); err != nil {
			r.log.Warn("spot cancel failed",
				zap.String("symbol", entry.Symbol), zap.Int64("oid", entry.SpotOrderID), zap.Error(err))
		} else {
			r.metrics.OrdersCanceled.Inc()
		}
	}
	if !entry.PerpFilled && entry.PerpOrderID != 0 {
		if err := retry(ctx, 3, func() error {
			return r.venue.CancelOrder(ctx, entry.PerpAsset, entry.PerpOrderID)
		}); err != nil {
			r.log.Warn("perp cancel failed",
				zap.String("symbol", entry.Symbol), zap.Int64("oid", entry.PerpOrderID), zap.Error(err))
		} else {
			r.metrics.OrdersCanceled.Inc()
		}
	}
}

func (r *Reconciler) persist(ctx context.Context, entry *PendingLegOrder) {
	if r.store == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := r.store.Set(ctx, entry.storeKey(), string(raw)); err != nil {
		r.log.Warn("pending order persist failed", zap.Error(err))
	}
}

func (r *Reconciler) unpersist(ctx context.Context, entry *PendingLegOrder) {
	if r.store == nil {
		return
	}
	if err := r.store.Delete(ctx, entry.storeKey()); err != nil {
		r.log.Warn("pending order delete failed", zap.Error(err))
	}
}
