package strategy

import (
	"time"

	"hl-delta-bot/internal/catalog"
)

// rotationWindowMinute is the first minute of the pre-hour window in which
// rotation decisions run, shortly before the hourly funding payment.
const rotationWindowMinute = 50

// InRotationWindow reports whether t falls in the ten minutes before the
// top of the hour.
func InRotationWindow(t time.Time) bool {
	return t.Minute() >= rotationWindowMinute
}

// BestFundingCandidate picks the instrument with the strictly highest
// positive yearly funding rate. A tie for the top rate yields no candidate;
// flapping between equally attractive instruments would just pay fees.
func BestFundingCandidate(instruments []*catalog.Instrument) (*catalog.Instrument, bool) {
	var best *catalog.Instrument
	ties := 0
	for _, inst := range instruments {
		if !inst.Tradable() {
			continue
		}
		rate := inst.Perp.FundingYearlyPct
		if rate <= 0 {
			continue
		}
		switch {
		case best == nil || rate > best.Perp.FundingYearlyPct:
			best = inst
			ties = 0
		case rate == best.Perp.FundingYearlyPct:
			ties++
		}
	}
	if best == nil || ties > 0 {
		return nil, false
	}
	return best, true
}

// ShouldRotate decides whether to move from the currently held instrument
// to the candidate. Holding wins whenever the current position still earns
// at least minYearlyPct, or the candidate does not.
func ShouldRotate(current, candidate *catalog.Instrument, minYearlyPct float64) bool {
	if candidate == nil || !candidate.Tradable() {
		return false
	}
	if candidate.Perp.FundingYearlyPct < minYearlyPct {
		return false
	}
	if current == nil {
		return true
	}
	if current.Symbol == candidate.Symbol {
		return false
	}
	return current.Perp.FundingYearlyPct < minYearlyPct
}
