// Package engine owns the signal lifecycle for one (symbol, strategy) pair:
// proposal intake, scheduling, activation, milestone tracking and close
// accounting. One engine is a single-writer unit; Tick, Backtest and the
// user controls serialize on an internal mutex.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/config"
	"github.com/rustyeddy/sigrun/persist"
	"github.com/rustyeddy/sigrun/pkg/id"
	"github.com/rustyeddy/sigrun/pnl"
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/signal"
	"github.com/rustyeddy/sigrun/strategy"
)

// Options wires one engine. Strategy, Store, Bus, Gate and Config are
// required; FrameName is informational.
type Options struct {
	Symbol       string
	StrategyName string
	ExchangeName string
	FrameName    string
	Backtest     bool

	Strategy strategy.Strategy
	Store    persist.Store
	Bus      *bus.Bus
	Gate     *risk.Gate
	Config   *config.Config
	Log      zerolog.Logger
}

// Engine drives one (symbol, strategy) signal lifecycle.
type Engine struct {
	mu  sync.Mutex
	opt Options

	hooks  strategy.Hooks
	calc   pnl.Calculator
	limits signal.Limits

	sig   *signal.Active
	sched *signal.Scheduled

	stopped      bool
	restored     bool
	lastSignalAt time.Time

	partials     *pnl.PartialTracker
	breakeven    *pnl.BreakevenTracker
	partialAccum float64
}

func New(opt Options) (*Engine, error) {
	if opt.Symbol == "" || opt.StrategyName == "" {
		return nil, fmt.Errorf("engine: symbol and strategy name required")
	}
	if opt.Strategy == nil {
		return nil, fmt.Errorf("engine: strategy required for %s/%s", opt.Symbol, opt.StrategyName)
	}
	if !opt.Strategy.Interval().Valid() {
		return nil, fmt.Errorf("engine: strategy %s has invalid interval %q", opt.StrategyName, opt.Strategy.Interval())
	}
	if opt.Store == nil || opt.Bus == nil || opt.Gate == nil || opt.Config == nil {
		return nil, fmt.Errorf("engine: store, bus, gate and config required for %s/%s", opt.Symbol, opt.StrategyName)
	}

	hooks := strategy.Hooks(strategy.NopHooks{})
	if h, ok := opt.Strategy.(strategy.Hooks); ok {
		hooks = h
	}

	return &Engine{
		opt:    opt,
		hooks:  hooks,
		calc:   pnl.NewCalculator(opt.Config.Costs()),
		limits: opt.Config.Limits(),
	}, nil
}

func (e *Engine) Symbol() string       { return e.opt.Symbol }
func (e *Engine) StrategyName() string { return e.opt.StrategyName }

func (e *Engine) key() persist.Key {
	return persist.Key{Symbol: e.opt.Symbol, StrategyName: e.opt.StrategyName}
}

func (e *Engine) sctx(now time.Time) strategy.Context {
	return strategy.Context{
		Symbol:       e.opt.Symbol,
		When:         now,
		Backtest:     e.opt.Backtest,
		StrategyName: e.opt.StrategyName,
		ExchangeName: e.opt.ExchangeName,
		FrameName:    e.opt.FrameName,
	}
}

// Tick advances the lifecycle one step at (now, price) and returns the
// resulting state. price is the current average price from the driver.
func (e *Engine) Tick(ctx context.Context, now time.Time, price float64) signal.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped && e.sig == nil && e.sched == nil {
		return signal.Idle()
	}
	if !e.opt.Backtest && !e.restored {
		e.restore()
	}

	switch {
	case e.sig != nil:
		return e.tickActive(now, price)
	case e.sched != nil:
		return e.tickScheduled(now, price)
	default:
		return e.tickIdle(ctx, now, price)
	}
}

func (e *Engine) tickActive(now time.Time, price float64) signal.Result {
	e.hooks.OnTick(e.sctx(now), price)
	e.evalMilestones(now, price, price)

	// Stop first: a price that touches both levels resolves pessimistically.
	switch {
	case e.sig.TouchedSL(price):
		return e.close(signal.CloseStopLoss, e.sig.PriceStopLoss, now)
	case e.sig.TouchedTP(price):
		return e.close(signal.CloseTakeProfit, e.sig.PriceTakeProfit, now)
	case e.sig.Expired(now):
		return e.close(signal.CloseTimeExpired, price, now)
	}

	res := signal.ActiveResult(e.sig.Clone())
	e.publish(res)
	e.opt.Bus.Publish(bus.TopicPingActive, res.Signal)
	e.hooks.OnPing(e.sctx(now), res.Signal)
	e.hooks.OnActive(e.sctx(now), res.Signal, price)
	return res
}

// evalMilestones runs breakeven then partial trackers against the given
// favorable/adverse price marks. In live ticks both marks are the current
// price; in backtest they are the candle extremes.
func (e *Engine) evalMilestones(now time.Time, favorable, adverse float64) {
	if e.breakeven.Evaluate(e.sig.Position, e.sig.PriceOpen, favorable) {
		e.applyBreakeven(now, favorable)
	}
	for _, level := range e.partials.Profit(e.sig.Position, e.sig.PriceOpen, favorable) {
		ev := PartialEvent{Signal: e.sig.Clone(), Level: level, Price: favorable}
		e.opt.Bus.Publish(bus.TopicPartialProfit, ev)
		e.hooks.OnPartialProfit(e.sctx(now), ev.Signal, level)
	}
	for _, level := range e.partials.Loss(e.sig.Position, e.sig.PriceOpen, adverse) {
		ev := PartialEvent{Signal: e.sig.Clone(), Level: level, Price: adverse}
		e.opt.Bus.Publish(bus.TopicPartialLoss, ev)
		e.hooks.OnPartialLoss(e.sctx(now), ev.Signal, level)
	}
}

func (e *Engine) applyBreakeven(now time.Time, price float64) {
	e.sig.PriceStopLoss = e.sig.PriceOpen
	e.writePending()
	e.opt.Bus.Publish(bus.TopicBreakeven, BreakevenEvent{Signal: e.sig.Clone(), Price: price})
	e.hooks.OnBreakeven(e.sctx(now), e.sig.Clone())
}

func (e *Engine) tickScheduled(now time.Time, price float64) signal.Result {
	e.hooks.OnTick(e.sctx(now), price)

	elapsed := now.Sub(e.sched.ScheduledAt)
	await := e.opt.Config.ScheduleAwait()

	if e.sched.TouchedSL(price) {
		return e.cancelScheduled(signal.CancelSLBeforeEntry, now)
	}
	// The await boundary is inclusive for a touch on the boundary tick.
	if e.sched.TouchedOpen(price) && elapsed <= await {
		return e.activate(now)
	}
	if elapsed >= await {
		return e.cancelScheduled(signal.CancelScheduleTimeout, now)
	}

	res := signal.ScheduledResult(e.sched.Clone())
	e.publish(res)
	e.opt.Bus.Publish(bus.TopicPingScheduled, res.Scheduled)
	return res
}

// activate promotes the scheduled record. scheduledAt is preserved; only
// pendingAt moves to the activation instant, so lifetime counts from entry.
func (e *Engine) activate(now time.Time) signal.Result {
	prop := &signal.Proposal{
		ID:                  e.sched.ID,
		Position:            e.sched.Position,
		PriceOpen:           e.sched.PriceOpen,
		PriceTakeProfit:     e.sched.PriceTakeProfit,
		PriceStopLoss:       e.sched.PriceStopLoss,
		MinuteEstimatedTime: e.sched.MinuteEstimatedTime,
		Note:                e.sched.Note,
	}
	pos := risk.Position{
		SignalID:     e.sched.ID,
		Symbol:       e.opt.Symbol,
		StrategyName: e.opt.StrategyName,
		Position:     e.sched.Position,
		PriceOpen:    e.sched.PriceOpen,
		OpenedAt:     now,
	}
	if rej := e.opt.Gate.Admit(prop, pos); rej != nil {
		// Keep waiting; the gate may admit on a later tick before timeout.
		e.opt.Bus.Publish(bus.TopicRiskRejection, RiskRejectionEvent{
			Symbol:       e.opt.Symbol,
			StrategyName: e.opt.StrategyName,
			Proposal:     prop,
			Rejection:    rej,
		})
		res := signal.ScheduledResult(e.sched.Clone())
		e.publish(res)
		return res
	}

	act := e.sched.Active
	act.PendingAt = now
	e.sig = &act
	e.resetTrackers()
	e.sched = nil

	e.writePending()
	e.deleteScheduled()

	res := signal.Opened(e.sig.Clone())
	e.publish(res)
	e.hooks.OnOpen(e.sctx(now), res.Signal)
	return res
}

func (e *Engine) cancelScheduled(reason signal.CancelReason, now time.Time) signal.Result {
	e.deleteScheduled()
	res := signal.Cancelled(e.sched.Clone(), reason, now)
	e.sched = nil
	e.publish(res)
	e.hooks.OnCancel(e.sctx(now), res.Scheduled, reason)
	return res
}

func (e *Engine) tickIdle(ctx context.Context, now time.Time, price float64) signal.Result {
	if e.stopped {
		return signal.Idle()
	}
	if !e.lastSignalAt.IsZero() && now.Sub(e.lastSignalAt) < e.opt.Strategy.Interval().Duration() {
		e.hooks.OnIdle(e.sctx(now))
		return signal.Idle()
	}
	e.lastSignalAt = now

	prop, err := e.opt.Strategy.GetSignal(ctx, e.sctx(now))
	if err != nil {
		e.opt.Log.Error().Err(err).
			Str("symbol", e.opt.Symbol).
			Str("strategy", e.opt.StrategyName).
			Msg("get signal failed")
		e.opt.Bus.Publish(bus.TopicError, ErrorEvent{
			Symbol: e.opt.Symbol, StrategyName: e.opt.StrategyName, Err: err,
		})
		return signal.Idle()
	}
	if prop == nil {
		e.hooks.OnIdle(e.sctx(now))
		return signal.Idle()
	}

	if err := signal.Validate(prop, price, e.limits); err != nil {
		e.opt.Log.Warn().Err(err).
			Str("symbol", e.opt.Symbol).
			Str("strategy", e.opt.StrategyName).
			Msg("proposal rejected")
		e.opt.Bus.Publish(bus.TopicValidationError, ErrorEvent{
			Symbol: e.opt.Symbol, StrategyName: e.opt.StrategyName, Err: err,
		})
		return signal.Idle()
	}

	if prop.ID == "" {
		prop.ID = id.New()
	}
	if prop.Scheduled() {
		return e.schedule(prop, now, price)
	}
	return e.open(prop, now, price)
}

func (e *Engine) open(prop *signal.Proposal, now time.Time, price float64) signal.Result {
	pos := risk.Position{
		SignalID:     prop.ID,
		Symbol:       e.opt.Symbol,
		StrategyName: e.opt.StrategyName,
		Position:     prop.Position,
		PriceOpen:    price,
		OpenedAt:     now,
	}
	if rej := e.opt.Gate.Admit(prop, pos); rej != nil {
		e.rejected(prop, rej)
		return signal.Idle()
	}

	e.sig = e.newActive(prop, price, now, now)
	e.resetTrackers()
	e.writePending()

	res := signal.Opened(e.sig.Clone())
	e.publish(res)
	e.hooks.OnOpen(e.sctx(now), res.Signal)
	return res
}

func (e *Engine) schedule(prop *signal.Proposal, now time.Time, price float64) signal.Result {
	if rej := e.opt.Gate.Check(prop, price, now); rej != nil {
		e.rejected(prop, rej)
		return signal.Idle()
	}

	e.sched = &signal.Scheduled{
		Active:   *e.newActive(prop, prop.PriceOpen, now, now),
		CancelID: prop.ID,
	}
	e.writeScheduled()

	res := signal.ScheduledResult(e.sched.Clone())
	e.publish(res)
	e.hooks.OnSchedule(e.sctx(now), res.Scheduled)
	return res
}

func (e *Engine) newActive(prop *signal.Proposal, priceOpen float64, scheduledAt, pendingAt time.Time) *signal.Active {
	return &signal.Active{
		ID:                      prop.ID,
		Symbol:                  e.opt.Symbol,
		StrategyName:            e.opt.StrategyName,
		ExchangeName:            e.opt.ExchangeName,
		FrameName:               e.opt.FrameName,
		Position:                prop.Position,
		PriceOpen:               priceOpen,
		PriceTakeProfit:         prop.PriceTakeProfit,
		PriceStopLoss:           prop.PriceStopLoss,
		OriginalPriceStopLoss:   prop.PriceStopLoss,
		OriginalPriceTakeProfit: prop.PriceTakeProfit,
		MinuteEstimatedTime:     prop.MinuteEstimatedTime,
		ScheduledAt:             scheduledAt,
		PendingAt:               pendingAt,
		Note:                    prop.Note,
	}
}

func (e *Engine) rejected(prop *signal.Proposal, rej *risk.Rejection) {
	e.opt.Log.Info().
		Str("symbol", e.opt.Symbol).
		Str("strategy", e.opt.StrategyName).
		Str("validator", rej.Validator).
		Str("reason", rej.Reason).
		Msg("proposal refused by risk gate")
	e.opt.Bus.Publish(bus.TopicRiskRejection, RiskRejectionEvent{
		Symbol:       e.opt.Symbol,
		StrategyName: e.opt.StrategyName,
		Proposal:     prop,
		Rejection:    rej,
	})
}

func (e *Engine) close(reason signal.CloseReason, priceClose float64, at time.Time) signal.Result {
	effOpen := e.calc.EffectiveOpen(e.sig.Position, e.sig.PriceOpen)
	pct := e.calc.Percent(e.sig.Position, e.sig.PriceOpen, priceClose)
	final := pnl.Blend(pct, e.partialAccum, e.sig.PartialClosedPct)

	e.opt.Gate.Retire(e.sig.ID)
	e.deletePending()

	res := signal.Closed(e.sig.Clone(), reason, priceClose, effOpen, final, at)
	e.sig = nil
	e.partials = nil
	e.breakeven = nil
	e.partialAccum = 0

	e.publish(res)
	e.hooks.OnClose(e.sctx(at), res.Signal, reason, final)
	return res
}

func (e *Engine) resetTrackers() {
	e.partials = pnl.NewPartialTracker(e.opt.Config.PartialLevelStepPercent)
	e.breakeven = pnl.NewBreakevenTracker(e.opt.Config.Costs(), e.opt.Config.BreakevenThreshold)
	e.partialAccum = 0
}

// restore loads persisted records on the first live tick. Records whose
// ownership marker does not match this engine are ignored, not deleted;
// the file stays for the owner that wrote it.
func (e *Engine) restore() {
	e.restored = true

	if a, err := e.opt.Store.ReadPending(e.key()); err == nil {
		if e.owns(a) {
			e.sig = a
			e.resetTrackers()
			if a.PriceStopLoss == a.PriceOpen {
				e.breakeven.MarkDone()
			}
			e.opt.Gate.Restore(risk.Position{
				SignalID:     a.ID,
				Symbol:       a.Symbol,
				StrategyName: a.StrategyName,
				Position:     a.Position,
				PriceOpen:    a.PriceOpen,
				OpenedAt:     a.PendingAt,
			})
			e.opt.Log.Info().
				Str("id", a.ID).
				Str("symbol", a.Symbol).
				Time("pendingAt", a.PendingAt).
				Msg("restored active signal")
		} else {
			e.opt.Log.Warn().
				Str("id", a.ID).
				Str("owner", a.ExchangeName+"/"+a.StrategyName+"/"+a.Symbol).
				Msg("ignoring pending record with foreign ownership")
		}
	} else if !errors.Is(err, persist.ErrNotFound) {
		e.storeError("read pending record", err)
	}

	if s, err := e.opt.Store.ReadScheduled(e.key()); err == nil {
		if e.sig == nil && e.owns(&s.Active) {
			e.sched = s
			e.opt.Log.Info().
				Str("id", s.ID).
				Str("symbol", s.Symbol).
				Time("scheduledAt", s.ScheduledAt).
				Msg("restored scheduled signal")
		} else if e.sig != nil {
			e.opt.Log.Warn().Str("id", s.ID).Msg("ignoring scheduled record while a pending record exists")
		} else {
			e.opt.Log.Warn().
				Str("id", s.ID).
				Str("owner", s.ExchangeName+"/"+s.StrategyName+"/"+s.Symbol).
				Msg("ignoring scheduled record with foreign ownership")
		}
	} else if !errors.Is(err, persist.ErrNotFound) {
		e.storeError("read scheduled record", err)
	}
}

func (e *Engine) owns(a *signal.Active) bool {
	return a.ExchangeName == e.opt.ExchangeName &&
		a.StrategyName == e.opt.StrategyName &&
		a.Symbol == e.opt.Symbol
}

// Persistence failures never abort a tick; memory stays authoritative and
// the next successful write converges.
func (e *Engine) writePending() {
	if err := e.opt.Store.WritePending(e.key(), e.sig); err != nil {
		e.storeError("write pending record", err)
		return
	}
	e.hooks.OnWrite(e.sctx(e.sig.PendingAt))
}

func (e *Engine) deletePending() {
	if err := e.opt.Store.DeletePending(e.key()); err != nil {
		e.storeError("delete pending record", err)
	}
}

func (e *Engine) writeScheduled() {
	if err := e.opt.Store.WriteScheduled(e.key(), e.sched); err != nil {
		e.storeError("write scheduled record", err)
		return
	}
	e.hooks.OnWrite(e.sctx(e.sched.ScheduledAt))
}

func (e *Engine) deleteScheduled() {
	if err := e.opt.Store.DeleteScheduled(e.key()); err != nil {
		e.storeError("delete scheduled record", err)
	}
}

func (e *Engine) storeError(op string, err error) {
	e.opt.Log.Error().Err(err).
		Str("symbol", e.opt.Symbol).
		Str("strategy", e.opt.StrategyName).
		Msg(op + " failed")
	e.opt.Bus.Publish(bus.TopicError, ErrorEvent{
		Symbol: e.opt.Symbol, StrategyName: e.opt.StrategyName, Err: fmt.Errorf("%s: %w", op, err),
	})
}

func (e *Engine) publish(res signal.Result) {
	if res.Kind == signal.KindIdle {
		return
	}
	e.opt.Bus.Publish(bus.TopicSignal, res)
	if e.opt.Backtest {
		e.opt.Bus.Publish(bus.TopicSignalBacktest, res)
	} else {
		e.opt.Bus.Publish(bus.TopicSignalLive, res)
	}
}
