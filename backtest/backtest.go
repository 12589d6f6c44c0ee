// Package backtest replays a historical frame through a strategy engine.
// The driver walks tick timestamps, opens signals through the engine and
// fast-forwards each one through forward candles to its close.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/config"
	"github.com/rustyeddy/sigrun/engine"
	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/signal"
)

// Progress is published on the progress-backtest topic after every frame.
type Progress struct {
	Symbol          string
	StrategyName    string
	ProcessedFrames int
	TotalFrames     int
}

// Done is published on the done-backtest topic when the frame is exhausted.
type Done struct {
	Symbol       string
	StrategyName string
	TotalFrames  int
}

// Options wires one backtest driver.
type Options struct {
	Symbol string
	Engine *engine.Engine

	// Exchange serves the driver's own fetches: average price and the
	// forward candles for fast-forwarding. It must not be the guarded
	// instance the strategy sees.
	Exchange exchange.Exchange

	// Guard, when set, is advanced to each frame before ticking so the
	// strategy cannot fetch candles past the frame.
	Guard *exchange.Guard

	Frames FrameProvider
	Config *config.Config
	Bus    *bus.Bus
	Log    zerolog.Logger
}

// Driver is a lazy finite sequence of terminal signal results. Consumers
// call Next until ok is false; breaking early leaves the engine intact.
type Driver struct {
	opt    Options
	frames []time.Time
	i      int
	done   bool
}

func New(opt Options) (*Driver, error) {
	if opt.Engine == nil || opt.Exchange == nil || opt.Frames == nil || opt.Config == nil || opt.Bus == nil {
		return nil, fmt.Errorf("backtest: engine, exchange, frames, config and bus required")
	}
	frames, err := opt.Frames.GetTimeframe(opt.Symbol)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("backtest: empty frame for %s", opt.Symbol)
	}
	return &Driver{opt: opt, frames: frames}, nil
}

// Next advances the frame until a signal closes or cancels and returns that
// result. ok is false once the frame is exhausted.
func (d *Driver) Next(ctx context.Context) (res signal.Result, ok bool, err error) {
	if d.done {
		return signal.Result{}, false, nil
	}

	for d.i < len(d.frames) {
		if err := ctx.Err(); err != nil {
			return signal.Result{}, false, err
		}

		eng := d.opt.Engine
		if eng.StopRequested() && !eng.HasActive() && !eng.HasScheduled() {
			break
		}

		now := d.frames[d.i]
		if d.opt.Guard != nil {
			d.opt.Guard.SetNow(now)
		}

		price, err := exchange.AveragePrice(ctx, d.opt.Exchange, d.opt.Symbol, now, d.opt.Config.AvgPriceCandlesCount)
		if err != nil {
			return signal.Result{}, false, fmt.Errorf("backtest: %w", err)
		}

		res := eng.Tick(ctx, now, price)
		d.step(1)

		switch res.Kind {
		case signal.KindOpened:
			final, err := d.fastForward(ctx, now, res.Signal)
			if err != nil {
				return signal.Result{}, false, err
			}
			if final.Terminal() {
				d.skipTo(final.ClosedAt)
				return final, true, nil
			}
			// Candles ran out before a close; resume frame ticking past
			// the last simulated minute.
		case signal.KindClosed, signal.KindCancelled:
			return res, true, nil
		}
	}

	d.done = true
	d.opt.Bus.Publish(bus.TopicDoneBacktest, Done{
		Symbol:       d.opt.Symbol,
		StrategyName: d.opt.Engine.StrategyName(),
		TotalFrames:  len(d.frames),
	})
	return signal.Result{}, false, nil
}

// fastForward fetches forward one-minute candles sized to cover the await
// window, the signal lifetime and the configured buffer, then replays them
// through the engine.
func (d *Driver) fastForward(ctx context.Context, now time.Time, sig *signal.Active) (signal.Result, error) {
	limit := d.opt.Config.BacktestBufferMinutes +
		int(d.opt.Config.ScheduleAwaitMinutes) +
		int(sig.MinuteEstimatedTime) + 1

	since := market.M1.Align(now)
	candles, err := d.opt.Exchange.GetCandles(ctx, d.opt.Symbol, market.M1, since, limit)
	if err != nil {
		return signal.Result{}, fmt.Errorf("backtest: forward candles: %w", err)
	}

	final, err := d.opt.Engine.Backtest(candles)
	if err != nil {
		return signal.Result{}, fmt.Errorf("backtest: %w", err)
	}
	if !final.Terminal() {
		d.skipTo(candles[len(candles)-1].OpenTime.Add(time.Minute))
	}
	return final, nil
}

// skipTo advances the frame cursor to the first timestamp at or after ts.
func (d *Driver) skipTo(ts time.Time) {
	n := 0
	for d.i+n < len(d.frames) && d.frames[d.i+n].Before(ts) {
		n++
	}
	d.step(n)
}

func (d *Driver) step(n int) {
	d.i += n
	d.opt.Bus.Publish(bus.TopicProgressBacktest, Progress{
		Symbol:          d.opt.Symbol,
		StrategyName:    d.opt.Engine.StrategyName(),
		ProcessedFrames: d.i,
		TotalFrames:     len(d.frames),
	})
}
