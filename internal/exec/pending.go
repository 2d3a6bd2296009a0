package exec

import (
	"fmt"
	"time"
)

// PendingLegOrder tracks both legs of an open or close attempt until the
// reconciler can declare them filled, or gives up and cancels.
type PendingLegOrder struct {
	Symbol      string        `json:"symbol"`
	Closing     bool          `json:"closing"`
	SpotAsset   int           `json:"spot_asset"`
	PerpAsset   int           `json:"perp_asset"`
	SpotOrderID int64         `json:"spot_order_id"`
	PerpOrderID int64         `json:"perp_order_id"`
	SpotFilled  bool          `json:"spot_filled"`
	PerpFilled  bool          `json:"perp_filled"`
	CreatedAt   time.Time     `json:"created_at"`
	MaxWait     time.Duration `json:"max_wait"`

	lastChecked time.Time
}

func (p *PendingLegOrder) bothFilled() bool {
	return p.SpotFilled && p.PerpFilled
}

func (p *PendingLegOrder) expired(now time.Time) bool {
	return now.Sub(p.CreatedAt) >= p.MaxWait
}

func (p *PendingLegOrder) storeKey() string {
	return fmt.Sprintf("pending:%s:%d", p.Symbol, p.CreatedAt.UnixNano())
}
