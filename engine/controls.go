package engine

import (
	"fmt"
	"time"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/signal"
)

// Stop requests a cooperative shutdown. The engine finishes any held
// signal; once flat it stays idle. Calling Stop twice is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

func (e *Engine) StopRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *Engine) HasActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sig != nil
}

func (e *Engine) HasScheduled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched != nil
}

// Cancel removes the scheduled signal. A non-empty cancelID must match the
// one minted at scheduling time; active signals are not cancellable.
func (e *Engine) Cancel(now time.Time, cancelID string) (signal.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sched == nil {
		return signal.Result{}, fmt.Errorf("engine: no scheduled signal to cancel")
	}
	if cancelID != "" && cancelID != e.sched.CancelID {
		return signal.Result{}, fmt.Errorf("engine: cancel id %q does not match %q", cancelID, e.sched.CancelID)
	}
	return e.cancelScheduled(signal.CancelUser, now), nil
}

// PartialProfit closes pct percent of the remaining position at price and
// folds the realized return into the final PnL.
func (e *Engine) PartialProfit(now time.Time, pct, price float64) (*signal.Active, error) {
	return e.partialClose(now, pct, price, bus.TopicPartialProfit)
}

// PartialLoss is PartialProfit for a position under water; only the event
// topic differs.
func (e *Engine) PartialLoss(now time.Time, pct, price float64) (*signal.Active, error) {
	return e.partialClose(now, pct, price, bus.TopicPartialLoss)
}

func (e *Engine) partialClose(now time.Time, pct, price float64, topic bus.Topic) (*signal.Active, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sig == nil {
		return nil, fmt.Errorf("engine: no active signal for partial close")
	}
	if pct <= 0 || e.sig.PartialClosedPct+pct > 100 {
		return nil, fmt.Errorf("engine: partial close %.2f%% exceeds remaining %.2f%%",
			pct, 100-e.sig.PartialClosedPct)
	}

	realized := e.calc.Percent(e.sig.Position, e.sig.PriceOpen, price)
	e.partialAccum += realized * pct / 100
	e.sig.PartialClosedPct += pct
	e.writePending()

	ev := PartialEvent{Signal: e.sig.Clone(), Level: pct, Price: price}
	e.opt.Bus.Publish(topic, ev)
	if topic == bus.TopicPartialProfit {
		e.hooks.OnPartialProfit(e.sctx(now), ev.Signal, pct)
	} else {
		e.hooks.OnPartialLoss(e.sctx(now), ev.Signal, pct)
	}
	return ev.Signal, nil
}

// TrailingStop moves the stop-loss pctShift percent from the original
// stop-loss toward profit. Shifts always start from the original level, so
// repeated calls never compound. price is the current market price; a level
// at or past it would fill on the next tick and is refused here.
func (e *Engine) TrailingStop(pctShift, price float64) (*signal.Active, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sig == nil {
		return nil, fmt.Errorf("engine: no active signal for trailing stop")
	}

	next := e.sig.OriginalPriceStopLoss * (1 + pctShift/100)
	if e.sig.Position == signal.Short {
		next = e.sig.OriginalPriceStopLoss * (1 - pctShift/100)
	}
	long := e.sig.Position == signal.Long
	if (long && next >= price) || (!long && next <= price) {
		return nil, fmt.Errorf("engine: trailing stop %.8f crosses price %.8f", next, price)
	}
	if (long && next >= e.sig.PriceTakeProfit) || (!long && next <= e.sig.PriceTakeProfit) {
		return nil, fmt.Errorf("engine: trailing stop %.8f crosses take-profit %.8f", next, e.sig.PriceTakeProfit)
	}

	e.sig.PriceStopLoss = next
	e.writePending()
	return e.sig.Clone(), nil
}

// TrailingTake moves the take-profit pctShift percent from the original
// take-profit further into profit. Like TrailingStop it never compounds and
// checks the new level against the current price at call time.
func (e *Engine) TrailingTake(pctShift, price float64) (*signal.Active, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sig == nil {
		return nil, fmt.Errorf("engine: no active signal for trailing take")
	}

	next := e.sig.OriginalPriceTakeProfit * (1 + pctShift/100)
	if e.sig.Position == signal.Short {
		next = e.sig.OriginalPriceTakeProfit * (1 - pctShift/100)
	}
	long := e.sig.Position == signal.Long
	if (long && next <= price) || (!long && next >= price) {
		return nil, fmt.Errorf("engine: trailing take %.8f crosses price %.8f", next, price)
	}
	if (long && next <= e.sig.PriceStopLoss) || (!long && next >= e.sig.PriceStopLoss) {
		return nil, fmt.Errorf("engine: trailing take %.8f crosses stop-loss %.8f", next, e.sig.PriceStopLoss)
	}

	e.sig.PriceTakeProfit = next
	e.writePending()
	return e.sig.Clone(), nil
}

// Breakeven moves the stop-loss to the entry price immediately and
// suppresses the automatic trigger for this signal.
func (e *Engine) Breakeven(now time.Time, price float64) (*signal.Active, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sig == nil {
		return nil, fmt.Errorf("engine: no active signal for breakeven")
	}
	e.breakeven.MarkDone()
	e.applyBreakeven(now, price)
	return e.sig.Clone(), nil
}
