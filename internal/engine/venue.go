package engine

import (
	"context"

	"hl-delta-bot/internal/exec"
	"hl-delta-bot/internal/hl/exchange"
	"hl-delta-bot/internal/hl/rest"
)

// hlVenue adapts the signed exchange client and the /info endpoint to the
// venue surface the orchestrator and reconciler work against.
type hlVenue struct {
	exchange *exchange.Client
	rest     *rest.Client
	user     string
}

func NewVenue(exchangeClient *exchange.Client, restClient *rest.Client, user string) exec.Venue {
	return &hlVenue{exchange: exchangeClient, rest: restClient, user: user}
}

func (v *hlVenue) PlaceOrder(ctx context.Context, asset int, isBuy bool, size, price float64, reduceOnly bool) (exec.OrderPlacement, error) {
	result, err := v.exchange.PlaceLimitOrder(ctx, asset, isBuy, size, price, reduceOnly, exchange.TifGtc)
	if err != nil {
		return exec.OrderPlacement{}, err
	}
	return exec.OrderPlacement{OrderID: result.OrderID, Filled: result.Filled}, nil
}

func (v *hlVenue) CancelOrder(ctx context.Context, asset int, orderID int64) error {
	return v.exchange.CancelOrder(ctx, asset, orderID)
}

func (v *hlVenue) OrderOpen(ctx context.Context, orderID int64) (bool, error) {
	resp, err := v.rest.Info(ctx, rest.InfoRequest{Type: "orderStatus", User: v.user, Oid: orderID})
	if err != nil {
		return false, err
	}
	return orderOpenFromStatus(resp), nil
}

// orderOpenFromStatus reads an orderStatus response. Anything other than a
// resting order, including orders the venue does not know, counts as not
// open.
func orderOpenFromStatus(resp map[string]any) bool {
	if resp == nil {
		return false
	}
	if status, _ := resp["status"].(string); status != "order" {
		return false
	}
	order, ok := resp["order"].(map[string]any)
	if !ok {
		return false
	}
	state, _ := order["status"].(string)
	return state == "open"
}
