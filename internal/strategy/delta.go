package strategy

import (
	"math"

	"hl-delta-bot/internal/catalog"
)

// DeltaStatus is the outcome of comparing the two legs of an instrument.
type DeltaStatus struct {
	Neutral  bool
	SpotSize float64
	PerpSize float64
	DiffPct  float64
}

// EvaluateDelta reports whether an instrument holds a delta-neutral pair:
// a positive spot balance against a short perp of matching magnitude.
// errorMargin is the tolerated relative mismatch as a fraction (0.05 means
// the leg sizes may differ by up to 5% of the larger leg).
func EvaluateDelta(inst *catalog.Instrument, errorMargin float64) DeltaStatus {
	var status DeltaStatus
	if !inst.Tradable() {
		return status
	}
	if inst.Spot.Position != nil {
		status.SpotSize = inst.Spot.Position.Total
	}
	if inst.Perp.Position != nil {
		status.PerpSize = inst.Perp.Position.Size
	}
	if status.SpotSize == 0 || status.PerpSize == 0 {
		return status
	}
	if status.PerpSize >= 0 || status.SpotSize <= 0 {
		return status
	}
	perpAbs := math.Abs(status.PerpSize)
	larger := math.Max(perpAbs, status.SpotSize)
	status.DiffPct = math.Abs(perpAbs-status.SpotSize) / larger * 100
	status.Neutral = status.DiffPct <= errorMargin*100
	return status
}
