package backtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/config"
	"github.com/rustyeddy/sigrun/engine"
	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/persist"
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/signal"
	"github.com/rustyeddy/sigrun/strategy"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// timedStrategy proposes once when the tick time reaches at.
type timedStrategy struct {
	at    time.Time
	prop  *signal.Proposal
	calls int
	fired bool
}

func (s *timedStrategy) Interval() market.Interval { return market.M1 }

func (s *timedStrategy) GetSignal(_ context.Context, sctx strategy.Context) (*signal.Proposal, error) {
	s.calls++
	if s.fired || sctx.When.Before(s.at) {
		return nil, nil
	}
	s.fired = true
	return s.prop, nil
}

// flatSeriesWithSpike is a flat 50000 one-minute series with one candle at
// spikeMinute reaching spikeHigh.
func flatSeriesWithSpike(t *testing.T, minutes, spikeMinute int, spikeHigh float64) *exchange.Static {
	t.Helper()
	candles := make([]market.Candle, minutes)
	for i := range candles {
		candles[i] = market.Candle{
			OpenTime: t0.Add(time.Duration(i) * time.Minute),
			Open:     50000, High: 50000, Low: 50000, Close: 50000,
			Volume: 1,
		}
		if i == spikeMinute {
			candles[i].High = spikeHigh
			candles[i].Close = 50000
		}
	}
	st, err := exchange.NewStatic("BTCUSDT", candles, 2)
	require.NoError(t, err)
	return st
}

type recorder struct {
	bus *bus.Bus
	mu  sync.Mutex
	evs []bus.Event
}

func record(b *bus.Bus) *recorder {
	r := &recorder{bus: b}
	b.SubscribeAll(func(ev bus.Event) {
		r.mu.Lock()
		r.evs = append(r.evs, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) Events(topic bus.Topic) []bus.Event {
	r.bus.Close()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bus.Event
	for _, ev := range r.evs {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

func newDriver(t *testing.T, strat strategy.Strategy, ex exchange.Exchange, frames FrameProvider) (*Driver, *recorder) {
	t.Helper()

	b := bus.New()
	cfg := config.Default()
	eng, err := engine.New(engine.Options{
		Symbol:       "BTCUSDT",
		StrategyName: "timed",
		ExchangeName: "static",
		Backtest:     true,
		Strategy:     strat,
		Store:        persist.Nop{},
		Bus:          b,
		Gate:         risk.NewGate(risk.NewPortfolio()),
		Config:       cfg,
		Log:          zerolog.Nop(),
	})
	require.NoError(t, err)

	d, err := New(Options{
		Symbol:   "BTCUSDT",
		Engine:   eng,
		Exchange: ex,
		Frames:   frames,
		Config:   cfg,
		Bus:      b,
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return d, record(b)
}

func TestRangeFrame(t *testing.T) {
	t.Parallel()

	frames, err := RangeFrame{Start: t0, End: t0.Add(time.Hour), Interval: market.M5}.GetTimeframe("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, frames, 12)
	assert.True(t, frames[0].Equal(t0))
	assert.True(t, frames[11].Equal(t0.Add(55*time.Minute)))

	_, err = RangeFrame{Start: t0, End: t0, Interval: market.M5}.GetTimeframe("BTCUSDT")
	assert.Error(t, err)

	_, err = RangeFrame{Start: t0, End: t0.Add(time.Hour), Interval: market.Interval("7m")}.GetTimeframe("BTCUSDT")
	assert.Error(t, err)
}

func TestDriverFastForwardsToClose(t *testing.T) {
	t.Parallel()

	// Opens at minute 100; the take-profit candle sits 40 minutes later.
	strat := &timedStrategy{
		at: t0.Add(100 * time.Minute),
		prop: &signal.Proposal{
			Position:            signal.Long,
			PriceTakeProfit:     51000,
			PriceStopLoss:       49000,
			MinuteEstimatedTime: 60,
		},
	}
	ex := flatSeriesWithSpike(t, 400, 140, 51100)
	frames := RangeFrame{Start: t0.Add(5 * time.Minute), End: t0.Add(390 * time.Minute), Interval: market.M1}

	d, rec := newDriver(t, strat, ex, frames)
	ctx := context.Background()

	res, ok, err := d.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, signal.KindClosed, res.Kind)
	assert.Equal(t, signal.CloseTakeProfit, res.CloseReason)
	assert.Equal(t, 51000.0, res.PriceClose)
	assert.True(t, res.ClosedAt.Equal(t0.Add(141*time.Minute)))
	assert.True(t, res.Signal.PendingAt.Equal(t0.Add(100*time.Minute)))

	// The frame cursor jumped past the simulated minutes.
	_, ok, err = d.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Subsequent calls stay exhausted.
	_, ok, _ = d.Next(ctx)
	assert.False(t, ok)

	require.Len(t, rec.Events(bus.TopicDoneBacktest), 1)
	progress := rec.Events(bus.TopicProgressBacktest)
	require.NotEmpty(t, progress)
	last := progress[len(progress)-1].Data.(Progress)
	assert.Equal(t, last.TotalFrames, last.ProcessedFrames)
}

func TestDriverYieldsScheduleTimeout(t *testing.T) {
	t.Parallel()

	strat := &timedStrategy{
		at: t0.Add(10 * time.Minute),
		prop: &signal.Proposal{
			Position:            signal.Short,
			PriceOpen:           50500,
			PriceTakeProfit:     49000,
			PriceStopLoss:       51500,
			MinuteEstimatedTime: 60,
		},
	}
	ex := flatSeriesWithSpike(t, 400, -1, 0)
	frames := RangeFrame{Start: t0.Add(5 * time.Minute), End: t0.Add(390 * time.Minute), Interval: market.M1}

	d, _ := newDriver(t, strat, ex, frames)

	res, ok, err := d.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, signal.KindCancelled, res.Kind)
	assert.Equal(t, signal.CancelScheduleTimeout, res.CancelReason)
	// Scheduled at minute 10, await is 120 minutes.
	assert.True(t, res.ClosedAt.Equal(t0.Add(130*time.Minute)))
}

func TestDriverStopsWhenEngineFlat(t *testing.T) {
	t.Parallel()

	strat := &timedStrategy{at: t0.Add(time.Hour)}
	ex := flatSeriesWithSpike(t, 100, -1, 0)
	frames := RangeFrame{Start: t0.Add(5 * time.Minute), End: t0.Add(90 * time.Minute), Interval: market.M1}

	d, rec := newDriver(t, strat, ex, frames)
	d.opt.Engine.Stop()

	_, ok, err := d.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, strat.calls)
	assert.Len(t, rec.Events(bus.TopicDoneBacktest), 1)
}

func TestDriverGuardBlocksLookAhead(t *testing.T) {
	t.Parallel()

	ex := flatSeriesWithSpike(t, 100, -1, 0)
	guard := exchange.NewGuard(ex)
	strat := &peekingStrategy{ex: guard}
	frames := RangeFrame{Start: t0.Add(10 * time.Minute), End: t0.Add(20 * time.Minute), Interval: market.M1}

	b := bus.New()
	cfg := config.Default()
	eng, err := engine.New(engine.Options{
		Symbol:       "BTCUSDT",
		StrategyName: "peek",
		ExchangeName: "static",
		Backtest:     true,
		Strategy:     strat,
		Store:        persist.Nop{},
		Bus:          b,
		Gate:         risk.NewGate(risk.NewPortfolio()),
		Config:       cfg,
		Log:          zerolog.Nop(),
	})
	require.NoError(t, err)

	d, err := New(Options{
		Symbol: "BTCUSDT", Engine: eng, Exchange: ex, Guard: guard,
		Frames: frames, Config: cfg, Bus: b, Log: zerolog.Nop(),
	})
	require.NoError(t, err)
	rec := record(b)

	_, ok, err := d.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "every tick fails recoverably, frame just runs out")
	assert.NotEmpty(t, rec.Events(bus.TopicError))
	assert.True(t, strat.sawLookAhead)
}

// peekingStrategy tries to fetch candles past the current frame.
type peekingStrategy struct {
	ex           exchange.Exchange
	sawLookAhead bool
}

func (s *peekingStrategy) Interval() market.Interval { return market.M1 }

func (s *peekingStrategy) GetSignal(ctx context.Context, sctx strategy.Context) (*signal.Proposal, error) {
	_, err := s.ex.GetCandles(ctx, sctx.Symbol, market.M1, sctx.When, 30)
	if err != nil {
		s.sawLookAhead = true
		return nil, err
	}
	return nil, nil
}
