package walker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/sigrun/backtest"
	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/config"
	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/signal"
	"github.com/rustyeddy/sigrun/strategy"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// walkStrategy opens one long at a fixed frame time.
type walkStrategy struct {
	at    time.Time
	tp    float64
	sl    float64
	risk  []string
	fired bool
}

func (s *walkStrategy) Interval() market.Interval { return market.M1 }
func (s *walkStrategy) RiskNames() []string       { return s.risk }

func (s *walkStrategy) GetSignal(_ context.Context, sctx strategy.Context) (*signal.Proposal, error) {
	if s.fired || sctx.When.Before(s.at) {
		return nil, nil
	}
	s.fired = true
	return &signal.Proposal{
		Position:            signal.Long,
		PriceTakeProfit:     s.tp,
		PriceStopLoss:       s.sl,
		MinuteEstimatedTime: 120,
	}, nil
}

// fixed builds a candidate factory around a prebuilt strategy that does not
// fetch candles itself.
func fixed(s *walkStrategy) func(exchange.Exchange) strategy.Strategy {
	return func(exchange.Exchange) strategy.Strategy { return s }
}

func spikedSeries(t *testing.T) *exchange.Static {
	t.Helper()
	candles := make([]market.Candle, 400)
	for i := range candles {
		candles[i] = market.Candle{
			OpenTime: t0.Add(time.Duration(i) * time.Minute),
			Open:     50000, High: 50000, Low: 50000, Close: 50000,
			Volume: 1,
		}
	}
	candles[140].High = 51100 // winner's take-profit
	candles[160].Low = 48900  // loser's stop-loss
	st, err := exchange.NewStatic("BTCUSDT", candles, 2)
	require.NoError(t, err)
	return st
}

func newWalker(t *testing.T, sets *risk.Registry) (*Walker, *bus.Bus) {
	t.Helper()
	b := bus.New()
	w, err := New(Options{
		Symbol:   "BTCUSDT",
		Exchange: spikedSeries(t),
		Frames: backtest.RangeFrame{
			Start:    t0.Add(5 * time.Minute),
			End:      t0.Add(390 * time.Minute),
			Interval: market.M1,
		},
		Config:   config.Default(),
		Bus:      b,
		RiskSets: sets,
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return w, b
}

func TestWalkerRanksByCumulativePnL(t *testing.T) {
	t.Parallel()

	w, b := newWalker(t, nil)

	var mu sync.Mutex
	var dones []Done
	var progress []Progress
	b.SubscribeAll(func(ev bus.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch data := ev.Data.(type) {
		case Done:
			dones = append(dones, data)
		case Progress:
			progress = append(progress, data)
		}
	})

	reports, err := w.Run(context.Background(), []Candidate{
		{Name: "winner", Build: fixed(&walkStrategy{at: t0.Add(100 * time.Minute), tp: 51000, sl: 49000})},
		{Name: "loser", Build: fixed(&walkStrategy{at: t0.Add(100 * time.Minute), tp: 60000, sl: 49000})},
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "winner", reports[0].StrategyName)
	assert.Equal(t, 1, reports[0].Closed)
	assert.Equal(t, 1, reports[0].Wins)
	assert.Positive(t, reports[0].TotalPnLPercent)

	assert.Equal(t, 1, reports[1].Closed)
	assert.Equal(t, 1, reports[1].Losses)
	assert.Negative(t, reports[1].TotalPnLPercent)

	b.Close()
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dones, 1)
	assert.Equal(t, "winner", dones[0].Best.StrategyName)
	require.Len(t, progress, 2)
	assert.Equal(t, 2, progress[1].Total)
}

func TestWalkerResolvesRiskSets(t *testing.T) {
	t.Parallel()

	sets := risk.NewRegistry()
	require.NoError(t, sets.Register("default", risk.MaxOpenPositions(1)))

	w, _ := newWalker(t, sets)
	reports, err := w.Run(context.Background(), []Candidate{
		{Name: "gated", Build: fixed(&walkStrategy{
			at: t0.Add(100 * time.Minute), tp: 51000, sl: 49000,
			risk: []string{"default"},
		})},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reports[0].Closed)
}

func TestWalkerUnknownRiskSetFails(t *testing.T) {
	t.Parallel()

	w, _ := newWalker(t, risk.NewRegistry())
	_, err := w.Run(context.Background(), []Candidate{
		{Name: "bad", Build: fixed(&walkStrategy{
			at: t0.Add(100 * time.Minute), tp: 51000, sl: 49000,
			risk: []string{"missing"},
		})},
	})
	assert.Error(t, err)
}

func TestWalkerRequiresCandidates(t *testing.T) {
	t.Parallel()

	w, _ := newWalker(t, nil)
	_, err := w.Run(context.Background(), nil)
	assert.Error(t, err)

	_, err = w.Run(context.Background(), []Candidate{{Name: "nobuild"}})
	assert.Error(t, err)
}

// peekStrategy fetches a candle window ending one hour past the frame time.
type peekStrategy struct {
	ex           exchange.Exchange
	sawLookAhead bool
}

func (s *peekStrategy) Interval() market.Interval { return market.M1 }

func (s *peekStrategy) GetSignal(ctx context.Context, sctx strategy.Context) (*signal.Proposal, error) {
	_, err := s.ex.GetCandles(ctx, sctx.Symbol, market.M1, sctx.When, 60)
	if err != nil {
		if errors.Is(err, exchange.ErrLookAhead) {
			s.sawLookAhead = true
		}
		return nil, err
	}
	return nil, nil
}

func TestWalkerGuardBlocksStrategyLookAhead(t *testing.T) {
	t.Parallel()

	w, _ := newWalker(t, nil)

	var strat *peekStrategy
	reports, err := w.Run(context.Background(), []Candidate{{
		Name: "peeker",
		Build: func(ex exchange.Exchange) strategy.Strategy {
			strat = &peekStrategy{ex: ex}
			return strat
		},
	}})
	require.NoError(t, err)
	require.NotNil(t, strat)
	assert.True(t, strat.sawLookAhead, "fetch past the frame must be refused")
	assert.Zero(t, reports[0].Closed)
	assert.Zero(t, reports[0].Cancelled)
}
