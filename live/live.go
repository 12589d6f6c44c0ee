// Package live runs a strategy engine against the wall clock. The driver
// ticks once per TICK_TTL, restores persisted state on the first tick and
// keeps ticking a held signal through shutdown until it closes.
package live

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/config"
	"github.com/rustyeddy/sigrun/engine"
	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/pkg/clock"
	"github.com/rustyeddy/sigrun/signal"
)

// Done is published on the done-live topic when the loop ends.
type Done struct {
	Symbol       string
	StrategyName string
}

// Options wires one live driver.
type Options struct {
	Symbol   string
	Engine   *engine.Engine
	Exchange exchange.Exchange
	Config   *config.Config
	Bus      *bus.Bus
	Clock    clock.Clock
	Log      zerolog.Logger
}

// Driver is a lazy infinite sequence of opened, closed and cancelled
// results. Internal idle, active and scheduled ticks stay on the event bus
// only. The loop ends after Stop once no active signal is held.
type Driver struct {
	opt  Options
	done bool
	rest bool // a result was just yielded; one TICK_TTL is still owed
}

func New(opt Options) (*Driver, error) {
	if opt.Engine == nil || opt.Exchange == nil || opt.Config == nil || opt.Bus == nil {
		return nil, fmt.Errorf("live: engine, exchange, config and bus required")
	}
	if opt.Clock == nil {
		opt.Clock = clock.Real{}
	}
	return &Driver{opt: opt}, nil
}

// Next blocks until the engine opens, closes or cancels a signal. ok is
// false once the driver has shut down.
func (d *Driver) Next(ctx context.Context) (res signal.Result, ok bool, err error) {
	if d.done {
		return signal.Result{}, false, nil
	}

	eng := d.opt.Engine
	for {
		if err := ctx.Err(); err != nil {
			return signal.Result{}, false, d.fatal(err)
		}
		// A scheduled signal does not block shutdown; its record stays
		// persisted for the next run.
		if eng.StopRequested() && !eng.HasActive() {
			break
		}
		// Keep the one-tick-per-TTL cadence across Next calls.
		if d.rest {
			d.rest = false
			if err := d.opt.Clock.Sleep(ctx, d.opt.Config.TickTTL()); err != nil {
				return signal.Result{}, false, d.fatal(err)
			}
		}

		now := d.opt.Clock.Now()
		price, err := exchange.AveragePrice(ctx, d.opt.Exchange, d.opt.Symbol, now, d.opt.Config.AvgPriceCandlesCount)
		if err != nil {
			d.opt.Log.Warn().Err(err).Str("symbol", d.opt.Symbol).Msg("average price fetch failed")
			d.opt.Bus.Publish(bus.TopicError, engine.ErrorEvent{
				Symbol:       d.opt.Symbol,
				StrategyName: eng.StrategyName(),
				Err:          err,
			})
			if err := d.opt.Clock.Sleep(ctx, d.opt.Config.TickTTL()); err != nil {
				return signal.Result{}, false, d.fatal(err)
			}
			continue
		}

		res := eng.Tick(ctx, now, price)

		switch res.Kind {
		case signal.KindOpened, signal.KindClosed, signal.KindCancelled:
			d.rest = true
			return res, true, nil
		}

		if err := d.opt.Clock.Sleep(ctx, d.opt.Config.TickTTL()); err != nil {
			return signal.Result{}, false, d.fatal(err)
		}
	}

	d.done = true
	d.opt.Bus.Publish(bus.TopicDoneLive, Done{
		Symbol:       d.opt.Symbol,
		StrategyName: eng.StrategyName(),
	})
	return signal.Result{}, false, nil
}

// fatal marks the driver done and announces the termination before the
// error propagates to the consumer.
func (d *Driver) fatal(err error) error {
	d.done = true
	d.opt.Bus.Publish(bus.TopicExit, engine.ErrorEvent{
		Symbol:       d.opt.Symbol,
		StrategyName: d.opt.Engine.StrategyName(),
		Err:          err,
	})
	return err
}
