package strategy

import "math"

// AllocationTarget is the desired capital split between the spot and perp
// wallets, with a tolerance band half-width around the spot fraction.
type AllocationTarget struct {
	SpotFraction float64
	PerpFraction float64
	Threshold    float64
}

// AllocationReport describes how far the current split is from target and
// the transfer that would restore it. The report is advisory: no component
// moves capital on its own.
type AllocationReport struct {
	Balanced    bool
	SpotValue   float64
	PerpValue   float64
	Total       float64
	SpotRatio   float64
	TransferUSD float64
	ToPerp      bool
}

// CheckAllocation compares the spot/perp value split against the target.
// The band is inclusive on both edges: a ratio sitting exactly on
// SpotFraction±Threshold counts as balanced.
func CheckAllocation(target AllocationTarget, spotValue, perpValue float64) AllocationReport {
	report := AllocationReport{
		SpotValue: spotValue,
		PerpValue: perpValue,
		Total:     spotValue + perpValue,
	}
	if report.Total <= 0 {
		report.Balanced = true
		return report
	}
	report.SpotRatio = spotValue / report.Total
	deviation := math.Abs(report.SpotRatio - target.SpotFraction)
	// The epsilon keeps a ratio sitting exactly on the band edge inside it.
	if deviation <= target.Threshold+1e-9 {
		report.Balanced = true
		return report
	}
	desired := target.SpotFraction * report.Total
	diff := desired - spotValue
	report.TransferUSD = math.Abs(diff)
	report.ToPerp = diff < 0
	return report
}
