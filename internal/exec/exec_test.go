package exec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hl-delta-bot/internal/catalog"
	"hl-delta-bot/internal/metrics"

	"go.uber.org/zap"
)

type placedOrder struct {
	asset      int
	isBuy      bool
	size       float64
	price      float64
	reduceOnly bool
}

type fakeVenue struct {
	placed     []placedOrder
	placements map[int]OrderPlacement
	placeErr   map[int]error
	canceled   []int64
	cancelErr  error
	open       map[int64]bool
	openErr    map[int64]error
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		placements: make(map[int]OrderPlacement),
		placeErr:   make(map[int]error),
		open:       make(map[int64]bool),
		openErr:    make(map[int64]error),
	}
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, asset int, isBuy bool, size, price float64, reduceOnly bool) (OrderPlacement, error) {
	if err := f.placeErr[asset]; err != nil {
		return OrderPlacement{}, err
	}
	f.placed = append(f.placed, placedOrder{asset, isBuy, size, price, reduceOnly})
	return f.placements[asset], nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, asset int, orderID int64) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.canceled = append(f.canceled, orderID)
	return nil
}

func (f *fakeVenue) OrderOpen(ctx context.Context, orderID int64) (bool, error) {
	if err := f.openErr[orderID]; err != nil {
		return false, err
	}
	return f.open[orderID], nil
}

type fakePrices struct {
	mid float64
	err error
}

func (f fakePrices) Mid(ctx context.Context, coin string) (float64, error) {
	return f.mid, f.err
}

type fakeBalances struct {
	usdc float64
	err  error
}

func (f fakeBalances) SpotUSDC(ctx context.Context) (float64, error) {
	return f.usdc, f.err
}

type memStore struct {
	rows map[string]string
}

func newMemStore() *memStore { return &memStore{rows: make(map[string]string)} }

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.rows[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.rows[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.rows, key)
	return nil
}

func (m *memStore) List(ctx context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range m.rows {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func execInstrument(spotTotal, spotHold, perpSize float64) *catalog.Instrument {
	inst := &catalog.Instrument{
		Symbol: "BTC",
		Spot:   &catalog.SpotMarket{Name: "UBTC", PairIndex: 140, SzDecimals: 5, TickSize: 1},
		Perp:   &catalog.PerpMarket{Name: "BTC", Index: 0, SzDecimals: 5, TickSize: 1},
	}
	if spotTotal != 0 {
		inst.Spot.Position = &catalog.SpotPosition{Total: spotTotal, Hold: spotHold}
	}
	if perpSize != 0 {
		inst.Perp.Position = &catalog.PerpPosition{Size: perpSize}
	}
	return inst
}

func testOrchestrator(venue Venue, prices PriceSource, balances BalanceSource) *Orchestrator {
	cfg := OrchestratorConfig{
		BalanceFraction:  0.9,
		MinNotionalUSD:   10,
		DeltaErrorMargin: 0.05,
		PendingMaxWait:   5 * time.Minute,
	}
	return NewOrchestrator(venue, prices, balances, cfg, zap.NewNop(), metrics.NewNoop())
}

func TestOpenPlacesBothLegs(t *testing.T) {
	venue := newFakeVenue()
	venue.placements[10140] = OrderPlacement{OrderID: 1, Filled: false}
	venue.placements[0] = OrderPlacement{OrderID: 2, Filled: true}
	orch := testOrchestrator(venue, fakePrices{mid: 64000}, fakeBalances{usdc: 1000})

	pending, err := orch.Open(context.Background(), execInstrument(0, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending == nil {
		t.Fatalf("expected pending order")
	}
	if len(venue.placed) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(venue.placed))
	}
	spot, perp := venue.placed[0], venue.placed[1]
	if spot.asset != 10140 || !spot.isBuy || spot.reduceOnly {
		t.Fatalf("unexpected spot leg: %+v", spot)
	}
	if spot.price != 64001 {
		t.Fatalf("expected spot limit 64001, got %v", spot.price)
	}
	if perp.asset != 0 || perp.isBuy || perp.reduceOnly {
		t.Fatalf("unexpected perp leg: %+v", perp)
	}
	if perp.price != 63999 {
		t.Fatalf("expected perp limit 63999, got %v", perp.price)
	}
	if spot.size != perp.size {
		t.Fatalf("expected matching leg sizes, got %v vs %v", spot.size, perp.size)
	}
	if pending.SpotOrderID != 1 || pending.PerpOrderID != 2 {
		t.Fatalf("unexpected order ids: %+v", pending)
	}
	if pending.SpotFilled || !pending.PerpFilled {
		t.Fatalf("unexpected fill flags: %+v", pending)
	}
}

func TestOpenAlreadyNeutralIsNoop(t *testing.T) {
	venue := newFakeVenue()
	orch := testOrchestrator(venue, fakePrices{mid: 64000}, fakeBalances{usdc: 1000})
	pending, err := orch.Open(context.Background(), execInstrument(0.015, 0, -0.015))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending != nil {
		t.Fatalf("expected nil pending for neutral instrument")
	}
	if len(venue.placed) != 0 {
		t.Fatalf("expected no orders, got %d", len(venue.placed))
	}
}

func TestOpenInsufficientBalance(t *testing.T) {
	orch := testOrchestrator(newFakeVenue(), fakePrices{mid: 64000}, fakeBalances{usdc: 5})
	_, err := orch.Open(context.Background(), execInstrument(0, 0, 0))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestOpenPriceUnavailable(t *testing.T) {
	orch := testOrchestrator(newFakeVenue(), fakePrices{err: errors.New("no mid")}, fakeBalances{usdc: 1000})
	_, err := orch.Open(context.Background(), execInstrument(0, 0, 0))
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestOpenNotTradable(t *testing.T) {
	orch := testOrchestrator(newFakeVenue(), fakePrices{mid: 64000}, fakeBalances{usdc: 1000})
	inst := &catalog.Instrument{Symbol: "ETH", Perp: &catalog.PerpMarket{Name: "ETH"}}
	if _, err := orch.Open(context.Background(), inst); !errors.Is(err, ErrNotTradable) {
		t.Fatalf("expected ErrNotTradable, got %v", err)
	}
}

func TestOpenSpotLegFailure(t *testing.T) {
	venue := newFakeVenue()
	venue.placeErr[10140] = errors.New("rejected")
	orch := testOrchestrator(venue, fakePrices{mid: 64000}, fakeBalances{usdc: 1000})
	pending, err := orch.Open(context.Background(), execInstrument(0, 0, 0))
	if err == nil {
		t.Fatalf("expected error when spot leg fails")
	}
	if pending != nil {
		t.Fatalf("expected no pending order, got %+v", pending)
	}
}

func TestOpenPerpLegFailureKeepsSpotLeg(t *testing.T) {
	venue := newFakeVenue()
	venue.placements[10140] = OrderPlacement{OrderID: 7}
	venue.placeErr[0] = errors.New("rejected")
	orch := testOrchestrator(venue, fakePrices{mid: 64000}, fakeBalances{usdc: 1000})
	pending, err := orch.Open(context.Background(), execInstrument(0, 0, 0))
	if err != nil {
		t.Fatalf("expected nil error when perp leg fails, got %v", err)
	}
	if pending == nil || pending.SpotOrderID != 7 || pending.PerpOrderID != 0 {
		t.Fatalf("expected partial pending with spot leg only, got %+v", pending)
	}
}

func TestCloseRequiresNeutralPosition(t *testing.T) {
	orch := testOrchestrator(newFakeVenue(), fakePrices{mid: 64000}, fakeBalances{usdc: 0})
	_, err := orch.Close(context.Background(), execInstrument(0.015, 0, 0))
	if !errors.Is(err, ErrNothingToClose) {
		t.Fatalf("expected ErrNothingToClose, got %v", err)
	}
}

func TestClosePlacesBothLegs(t *testing.T) {
	venue := newFakeVenue()
	venue.placements[10140] = OrderPlacement{OrderID: 11}
	venue.placements[0] = OrderPlacement{OrderID: 12}
	orch := testOrchestrator(venue, fakePrices{mid: 64000}, fakeBalances{usdc: 0})

	pending, err := orch.Close(context.Background(), execInstrument(0.015, 0.001, -0.015))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pending.Closing {
		t.Fatalf("expected closing entry")
	}
	if len(venue.placed) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(venue.placed))
	}
	spot, perp := venue.placed[0], venue.placed[1]
	if spot.isBuy || spot.reduceOnly {
		t.Fatalf("expected plain spot sell, got %+v", spot)
	}
	if spot.size != 0.014 {
		t.Fatalf("expected held balance excluded, got size %v", spot.size)
	}
	if spot.price != 63999 {
		t.Fatalf("expected spot limit 63999, got %v", spot.price)
	}
	if !perp.isBuy || !perp.reduceOnly {
		t.Fatalf("expected reduce-only perp buy, got %+v", perp)
	}
	if perp.size != 0.015 {
		t.Fatalf("expected perp size 0.015, got %v", perp.size)
	}
	if perp.price != 64001 {
		t.Fatalf("expected perp limit 64001, got %v", perp.price)
	}
}

func TestCloseWholeBalanceOnHold(t *testing.T) {
	venue := newFakeVenue()
	venue.placements[0] = OrderPlacement{OrderID: 12}
	orch := testOrchestrator(venue, fakePrices{mid: 64000}, fakeBalances{usdc: 0})

	pending, err := orch.Close(context.Background(), execInstrument(0.015, 0.015, -0.015))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pending.SpotFilled {
		t.Fatalf("expected spot leg marked filled when nothing to sell")
	}
	if len(venue.placed) != 1 || venue.placed[0].asset != 0 {
		t.Fatalf("expected only the perp leg, got %+v", venue.placed)
	}
}
