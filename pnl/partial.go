package pnl

import "github.com/rustyeddy/sigrun/signal"

// PartialTracker detects crossings of percent milestones from entry and
// reports each level at most once per signal. Profit and loss levels are
// tracked independently on the same step grid (10, 20, 30, ...).
type PartialTracker struct {
	step   float64
	profit map[int]bool
	loss   map[int]bool
}

func NewPartialTracker(step float64) *PartialTracker {
	if step <= 0 {
		step = 10
	}
	return &PartialTracker{
		step:   step,
		profit: make(map[int]bool),
		loss:   make(map[int]bool),
	}
}

// Profit returns the newly crossed profit levels at price, ascending.
func (t *PartialTracker) Profit(pos signal.Position, priceOpen, price float64) []float64 {
	return t.cross(t.profit, RawMovePercent(pos, priceOpen, price))
}

// Loss returns the newly crossed loss levels at price, ascending.
func (t *PartialTracker) Loss(pos signal.Position, priceOpen, price float64) []float64 {
	return t.cross(t.loss, -RawMovePercent(pos, priceOpen, price))
}

func (t *PartialTracker) cross(seen map[int]bool, move float64) []float64 {
	if move < t.step {
		return nil
	}
	var out []float64
	for n := 1; float64(n)*t.step <= move; n++ {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, float64(n)*t.step)
	}
	return out
}
