package engine

import (
	"fmt"
	"time"

	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/signal"
)

// Backtest fast-forwards the held signal through an ordered one-minute
// candle sequence and returns the first terminal result, or the state left
// after the last candle when nothing closed.
//
// Per candle the order is: schedule activation, stop-loss before entry,
// exit (take-profit / stop-loss with the intra-candle rule), breakeven,
// partial milestones, time expiry. A candle touching both exit levels
// resolves to stop-loss; the one exception is an open already gapped past
// the take-profit, which fills at the open price.
func (e *Engine) Backtest(candles []market.Candle) (signal.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sig == nil && e.sched == nil {
		return signal.Result{}, fmt.Errorf("engine: backtest requires an active or scheduled signal")
	}

	var last signal.Result
	for _, c := range candles {
		now := c.OpenTime.Add(time.Minute)

		if e.sched != nil {
			res, terminal := e.backtestScheduled(c, now)
			if terminal {
				return res, nil
			}
			last = res
			if e.sig == nil {
				continue
			}
		}

		res, terminal := e.backtestActive(c, now)
		if terminal {
			return res, nil
		}
		last = res
	}
	return last, nil
}

func (e *Engine) backtestScheduled(c market.Candle, now time.Time) (signal.Result, bool) {
	elapsed := now.Sub(e.sched.ScheduledAt)
	await := e.opt.Config.ScheduleAwait()

	if e.sched.CandleTouchesOpen(c) && elapsed <= await {
		return e.activate(now), false
	}
	if e.sched.CandleTouchesSL(c) {
		return e.cancelScheduled(signal.CancelSLBeforeEntry, now), true
	}
	if elapsed >= await {
		return e.cancelScheduled(signal.CancelScheduleTimeout, now), true
	}
	return signal.ScheduledResult(e.sched.Clone()), false
}

func (e *Engine) backtestActive(c market.Candle, now time.Time) (signal.Result, bool) {
	long := e.sig.Position == signal.Long

	// Favorable gap: an open already past the take-profit fills there.
	if (long && c.Open >= e.sig.PriceTakeProfit) || (!long && c.Open <= e.sig.PriceTakeProfit) {
		return e.close(signal.CloseTakeProfit, c.Open, now), true
	}
	if e.sig.CandleTouchesSL(c) {
		return e.close(signal.CloseStopLoss, e.sig.PriceStopLoss, now), true
	}
	if e.sig.CandleTouchesTP(c) {
		return e.close(signal.CloseTakeProfit, e.sig.PriceTakeProfit, now), true
	}

	favorable, adverse := c.High, c.Low
	if !long {
		favorable, adverse = c.Low, c.High
	}
	e.evalMilestones(now, favorable, adverse)

	if now.Sub(e.sig.PendingAt) >= e.sig.Lifetime() {
		return e.close(signal.CloseTimeExpired, c.Close, now), true
	}
	return signal.ActiveResult(e.sig.Clone()), false
}
