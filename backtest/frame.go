package backtest

import (
	"fmt"
	"time"

	"github.com/rustyeddy/sigrun/market"
)

// FrameProvider yields the ordered, deduplicated tick timestamps a driver
// walks through, aligned to the frame's interval.
type FrameProvider interface {
	GetTimeframe(symbol string) ([]time.Time, error)
}

// RangeFrame generates timestamps [Start, End) stepped by Interval.
type RangeFrame struct {
	Start    time.Time
	End      time.Time
	Interval market.Interval
}

func (r RangeFrame) GetTimeframe(string) ([]time.Time, error) {
	if !r.Interval.Valid() {
		return nil, fmt.Errorf("backtest: invalid frame interval %q", r.Interval)
	}
	if !r.End.After(r.Start) {
		return nil, fmt.Errorf("backtest: frame end %s not after start %s",
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}

	step := r.Interval.Duration()
	var out []time.Time
	for t := r.Interval.Align(r.Start); t.Before(r.End); t = t.Add(step) {
		out = append(out, t)
	}
	return out, nil
}
