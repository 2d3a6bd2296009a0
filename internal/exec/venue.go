package exec

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotTradable         = errors.New("instrument is not tradable")
	ErrPriceUnavailable    = errors.New("mid price unavailable")
	ErrInsufficientBalance = errors.New("insufficient quote balance")
	ErrNothingToClose      = errors.New("no neutral position to close")
)

// OrderPlacement is the immediate result of submitting one leg.
type OrderPlacement struct {
	OrderID int64
	Filled  bool
}

// Venue is the minimal exchange surface the orchestrator and reconciler
// need. The production implementation wraps the signed exchange client and
// the /info order status endpoint.
type Venue interface {
	PlaceOrder(ctx context.Context, asset int, isBuy bool, size, price float64, reduceOnly bool) (OrderPlacement, error)
	CancelOrder(ctx context.Context, asset int, orderID int64) error
	// OrderOpen reports whether the order is still resting. Orders the
	// venue no longer knows about count as not open.
	OrderOpen(ctx context.Context, orderID int64) (bool, error)
}

func retry(ctx context.Context, attempts int, fn func() error) error {
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt == attempts-1 {
			return fmt.Errorf("retry failed: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}
