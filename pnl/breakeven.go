package pnl

import "github.com/rustyeddy/sigrun/signal"

// BreakevenTracker fires once per signal when the raw favorable move covers
// the round-trip costs plus the configured threshold. The engine then moves
// the stop-loss to the entry price.
type BreakevenTracker struct {
	costs     Costs
	threshold float64
	done      bool
}

func NewBreakevenTracker(costs Costs, threshold float64) *BreakevenTracker {
	return &BreakevenTracker{costs: costs, threshold: threshold}
}

// Evaluate reports whether breakeven triggers at price. Once it has fired
// every later call returns false.
func (t *BreakevenTracker) Evaluate(pos signal.Position, priceOpen, price float64) bool {
	if t.done {
		return false
	}
	if RawMovePercent(pos, priceOpen, price) >= t.costs.RoundTripPercent()+t.threshold {
		t.done = true
		return true
	}
	return false
}

// MarkDone suppresses future triggers, used when a restored record already
// has its stop at the entry price or after a manual breakeven.
func (t *BreakevenTracker) MarkDone() { t.done = true }

func (t *BreakevenTracker) Done() bool { return t.done }
