package pnl

import "github.com/rustyeddy/sigrun/signal"

// Costs carries round-trip trading costs in whole percents (0.1 == 0.1%).
type Costs struct {
	FeePercent      float64
	SlippagePercent float64
}

func (c Costs) fraction() float64 {
	return (c.FeePercent + c.SlippagePercent) / 100
}

// RoundTripPercent is the raw favorable move needed to cover fees and
// slippage on both entry and exit.
func (c Costs) RoundTripPercent() float64 {
	return (c.FeePercent + c.SlippagePercent) * 2
}

// Calculator computes realized and unrealized percent returns with costs
// applied on both sides of the trade.
type Calculator struct {
	costs Costs
}

func NewCalculator(costs Costs) Calculator {
	return Calculator{costs: costs}
}

func (c Calculator) Costs() Costs { return c.costs }

// Percent is the realized percent for closing the full remaining size at
// priceClose. Long: ((close*(1-f-s)) / (open*(1+f+s)) - 1) * 100; short is
// symmetric.
func (c Calculator) Percent(pos signal.Position, priceOpen, priceClose float64) float64 {
	fs := c.costs.fraction()
	if pos == signal.Long {
		return ((priceClose*(1-fs))/(priceOpen*(1+fs)) - 1) * 100
	}
	return ((priceOpen*(1-fs))/(priceClose*(1+fs)) - 1) * 100
}

// EffectiveOpen is the fill price after slippage and fee. This is the open
// price reported to consumers.
func (c Calculator) EffectiveOpen(pos signal.Position, priceOpen float64) float64 {
	fs := c.costs.fraction()
	if pos == signal.Long {
		return priceOpen * (1 + fs)
	}
	return priceOpen * (1 - fs)
}

// RawMovePercent is the unadjusted move from entry in the direction of
// profit; negative when the price moved against the position.
func RawMovePercent(pos signal.Position, priceOpen, price float64) float64 {
	if pos == signal.Long {
		return (price/priceOpen - 1) * 100
	}
	return (1 - price/priceOpen) * 100
}

// Blend folds partial closures into the final realized percent. closedPct
// is the share of the position already closed (0..100) and partialAccum is
// the sum of each partial's percent weighted by its share.
func Blend(finalPct, partialAccum, closedPct float64) float64 {
	remaining := 1 - closedPct/100
	if remaining < 0 {
		remaining = 0
	}
	return partialAccum + finalPct*remaining
}
