package exec

import (
	"context"
	"errors"
	"testing"
	"time"

	"hl-delta-bot/internal/metrics"

	"go.uber.org/zap"
)

func testReconciler(venue Venue, store *memStore) *Reconciler {
	return NewReconciler(venue, store, 30*time.Second, zap.NewNop(), metrics.NewNoop())
}

func pendingEntry(symbol string, closing bool, createdAt time.Time) *PendingLegOrder {
	return &PendingLegOrder{
		Symbol:      symbol,
		Closing:     closing,
		SpotAsset:   10140,
		PerpAsset:   0,
		SpotOrderID: 1,
		PerpOrderID: 2,
		CreatedAt:   createdAt,
		MaxWait:     5 * time.Minute,
	}
}

func TestTickResolvesWhenBothLegsFill(t *testing.T) {
	venue := newFakeVenue()
	// Both orders gone from the book: treated as filled.
	venue.open[1] = false
	venue.open[2] = false
	store := newMemStore()
	recon := testReconciler(venue, store)
	ctx := context.Background()

	now := time.Now().UTC()
	entry := pendingEntry("BTC", false, now)
	recon.Track(ctx, entry)
	if len(store.rows) != 1 {
		t.Fatalf("expected persisted entry, got %d rows", len(store.rows))
	}

	done := recon.Tick(ctx, now)
	if len(done) != 1 || done[0].Outcome != OutcomeResolved {
		t.Fatalf("expected one resolved entry, got %v", done)
	}
	if recon.Pending() != 0 {
		t.Fatalf("expected no pending entries, got %d", recon.Pending())
	}
	if len(store.rows) != 0 {
		t.Fatalf("expected persisted entry removed, got %v", store.rows)
	}
}

func TestTickKeepsEntryWhileLegsRest(t *testing.T) {
	venue := newFakeVenue()
	venue.open[1] = true
	venue.open[2] = false
	recon := testReconciler(venue, newMemStore())
	ctx := context.Background()

	now := time.Now().UTC()
	entry := pendingEntry("BTC", false, now)
	recon.Track(ctx, entry)

	done := recon.Tick(ctx, now)
	if len(done) != 0 {
		t.Fatalf("expected no resolutions, got %v", done)
	}
	if !entry.PerpFilled || entry.SpotFilled {
		t.Fatalf("expected perp leg filled and spot resting, got %+v", entry)
	}
	if recon.Pending() != 1 {
		t.Fatalf("expected entry to stay active")
	}
}

func TestTickThrottlesStatusChecks(t *testing.T) {
	venue := newFakeVenue()
	venue.open[1] = true
	venue.open[2] = true
	recon := testReconciler(venue, newMemStore())
	ctx := context.Background()

	now := time.Now().UTC()
	entry := pendingEntry("BTC", false, now)
	recon.Track(ctx, entry)

	recon.Tick(ctx, now)
	venue.open[1] = false
	venue.open[2] = false

	// Within the check interval nothing is polled again.
	done := recon.Tick(ctx, now.Add(10*time.Second))
	if len(done) != 0 {
		t.Fatalf("expected throttled tick to resolve nothing, got %v", done)
	}
	if entry.SpotFilled || entry.PerpFilled {
		t.Fatalf("expected no fills before the interval elapses, got %+v", entry)
	}

	done = recon.Tick(ctx, now.Add(31*time.Second))
	if len(done) != 1 || done[0].Outcome != OutcomeResolved {
		t.Fatalf("expected resolution after the interval, got %v", done)
	}
}

func TestTickCancelsUnfilledLegsOnTimeout(t *testing.T) {
	venue := newFakeVenue()
	store := newMemStore()
	recon := testReconciler(venue, store)
	ctx := context.Background()

	created := time.Now().UTC().Add(-6 * time.Minute)
	entry := pendingEntry("BTC", false, created)
	entry.SpotFilled = true
	recon.Track(ctx, entry)

	done := recon.Tick(ctx, time.Now().UTC())
	if len(done) != 1 || done[0].Outcome != OutcomeTimedOut {
		t.Fatalf("expected timed-out resolution, got %v", done)
	}
	if len(venue.canceled) != 1 || venue.canceled[0] != 2 {
		t.Fatalf("expected perp leg cancelled, got %v", venue.canceled)
	}
	if recon.Pending() != 0 {
		t.Fatalf("expected entry removed after timeout")
	}
	if len(store.rows) != 0 {
		t.Fatalf("expected persisted entry removed, got %v", store.rows)
	}
}

func TestTickTransportErrorLeavesEntryActive(t *testing.T) {
	venue := newFakeVenue()
	venue.openErr[1] = errors.New("timeout")
	recon := testReconciler(venue, newMemStore())
	ctx := context.Background()

	now := time.Now().UTC()
	entry := pendingEntry("BTC", false, now)
	recon.Track(ctx, entry)

	done := recon.Tick(ctx, now)
	if len(done) != 0 {
		t.Fatalf("expected no resolutions on transport error, got %v", done)
	}
	if entry.SpotFilled || entry.PerpFilled {
		t.Fatalf("expected no fill flags on transport error, got %+v", entry)
	}
	if recon.Pending() != 1 {
		t.Fatalf("expected entry to stay active")
	}
}

func TestRestoreReloadsPersistedEntries(t *testing.T) {
	venue := newFakeVenue()
	store := newMemStore()
	ctx := context.Background()

	first := testReconciler(venue, store)
	first.Track(ctx, pendingEntry("BTC", false, time.Now().UTC()))
	first.Track(ctx, pendingEntry("ETH", true, time.Now().UTC().Add(time.Millisecond)))
	_ = store.Set(ctx, "pending:garbage", "{not json")

	second := testReconciler(venue, store)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if second.Pending() != 2 {
		t.Fatalf("expected 2 restored entries, got %d", second.Pending())
	}
	if _, ok := store.rows["pending:garbage"]; ok {
		t.Fatalf("expected unreadable entry dropped from store")
	}
}

func TestHasPending(t *testing.T) {
	recon := testReconciler(newFakeVenue(), newMemStore())
	ctx := context.Background()
	recon.Track(ctx, pendingEntry("BTC", false, time.Now().UTC()))
	recon.Track(ctx, pendingEntry("ETH", true, time.Now().UTC()))

	if !recon.HasPending("btc", false) {
		t.Fatalf("expected case-insensitive match for BTC")
	}
	if recon.HasPending("BTC", true) {
		t.Fatalf("expected no closing entry for BTC")
	}
	if !recon.HasPending("ETH", true) {
		t.Fatalf("expected closing entry for ETH")
	}
	if recon.HasPending("SOL", false) {
		t.Fatalf("expected no entry for SOL")
	}
}
