package history

import (
	"testing"
	"time"

	"hl-delta-bot/internal/config"

	"go.uber.org/zap"
)

func TestNewDisabledReturnsNil(t *testing.T) {
	writer, err := New(config.HistoryConfig{Enabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writer != nil {
		t.Fatalf("expected nil writer when disabled")
	}
}

func TestNewEnabledRequiresDSN(t *testing.T) {
	if _, err := New(config.HistoryConfig{Enabled: true}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for missing dsn")
	}
}

func TestNilWriterIsSafe(t *testing.T) {
	var w *Writer
	w.Start(nil)
	w.EnqueuePosition(PositionSnapshot{Time: time.Now(), Coin: "BTC"})
	w.EnqueueFunding(FundingObservation{Time: time.Now(), Coin: "BTC"})
	if err := w.Close(); err != nil {
		t.Fatalf("expected nil close error, got %v", err)
	}
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	w := &Writer{
		log:       zap.NewNop(),
		positions: make(chan PositionSnapshot, 1),
		fundings:  make(chan FundingObservation, 1),
	}
	w.EnqueuePosition(PositionSnapshot{Coin: "BTC"})
	w.EnqueuePosition(PositionSnapshot{Coin: "ETH"})
	if got := w.dropPos.Load(); got != 1 {
		t.Fatalf("expected 1 dropped snapshot, got %d", got)
	}
	w.EnqueueFunding(FundingObservation{Coin: "BTC"})
	w.EnqueueFunding(FundingObservation{Coin: "ETH"})
	if got := w.dropFund.Load(); got != 1 {
		t.Fatalf("expected 1 dropped observation, got %d", got)
	}
}
