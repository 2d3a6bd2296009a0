package strategy

import (
	"math"

	"hl-delta-bot/internal/catalog"
)

// RoundSize rounds a size down to the given number of decimals. Rounding
// down keeps the order inside the available balance.
func RoundSize(size float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	scale := math.Pow10(decimals)
	return math.Floor(size*scale+1e-9) / scale
}

// RoundPrice snaps a price to the instrument's tick grid. The result is
// additionally clamped to eight decimals so it survives wire encoding.
func RoundPrice(price, tick float64) float64 {
	if tick > 0 {
		price = math.Round(price/tick) * tick
	}
	return math.Round(price*1e8) / 1e8
}

// SpotOrderSize computes the spot leg size for opening a position: a
// fraction of the free quote balance converted at the given price and
// rounded down to the spot size decimals. Returns 0 when the budget or the
// resulting notional is below the minimum.
func SpotOrderSize(inst *catalog.Instrument, price, quoteBalance, fraction, minNotionalUSD float64) float64 {
	if inst == nil || inst.Spot == nil || price <= 0 {
		return 0
	}
	budget := quoteBalance * fraction
	if budget < minNotionalUSD {
		return 0
	}
	size := RoundSize(budget/price, inst.Spot.SzDecimals)
	if size*price < minNotionalUSD {
		return 0
	}
	return size
}

// PerpOrderSize mirrors a spot size onto the perp leg, re-rounded to the
// perp's own size decimals.
func PerpOrderSize(inst *catalog.Instrument, spotSize float64) float64 {
	if inst == nil || inst.Perp == nil {
		return 0
	}
	return RoundSize(spotSize, inst.Perp.SzDecimals)
}
