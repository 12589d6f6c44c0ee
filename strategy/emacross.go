package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/indicators"
	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/signal"
)

// EMACross proposes a long when the fast EMA crosses above the slow EMA
// and a short on the opposite cross. Take-profit and stop-loss are fixed
// percent offsets from the cross price.
type EMACross struct {
	NopHooks

	Exchange   exchange.Exchange
	Frame      market.Interval
	FastPeriod int
	SlowPeriod int
	Lookback   int // candles fetched per evaluation; 0 means 3x slow period

	TakeProfitPct   float64
	StopLossPct     float64
	LifetimeMinutes float64
	Risk            []string
}

func (s *EMACross) Interval() market.Interval { return s.Frame }

func (s *EMACross) RiskNames() []string { return s.Risk }

func (s *EMACross) lookback() int {
	if s.Lookback > 0 {
		return s.Lookback
	}
	return 3 * s.SlowPeriod
}

func (s *EMACross) GetSignal(ctx context.Context, sctx Context) (*signal.Proposal, error) {
	if s.FastPeriod >= s.SlowPeriod {
		return nil, fmt.Errorf("ema cross: fast period %d must be below slow %d", s.FastPeriod, s.SlowPeriod)
	}

	n := s.lookback()
	ivd := s.Frame.Duration()
	// Only completed candles: the bucket containing When is still forming.
	end := s.Frame.Align(sctx.When)
	since := end.Add(-time.Duration(n) * ivd)

	candles, err := s.Exchange.GetCandles(ctx, sctx.Symbol, s.Frame, since, n)
	if err != nil {
		return nil, fmt.Errorf("ema cross: %w", err)
	}

	fast := indicators.NewEMA(s.FastPeriod)
	slow := indicators.NewEMA(s.SlowPeriod)

	var prevDiff, diff float64
	for i, c := range candles {
		f := fast.Update(c.Close)
		sl := slow.Update(c.Close)
		if i == len(candles)-2 {
			prevDiff = f - sl
		}
		if i == len(candles)-1 {
			diff = f - sl
		}
	}
	if !fast.Ready() || !slow.Ready() {
		return nil, nil
	}

	last := candles[len(candles)-1].Close
	switch {
	case prevDiff <= 0 && diff > 0:
		return &signal.Proposal{
			Position:            signal.Long,
			PriceTakeProfit:     last * (1 + s.TakeProfitPct/100),
			PriceStopLoss:       last * (1 - s.StopLossPct/100),
			MinuteEstimatedTime: s.LifetimeMinutes,
			Note:                fmt.Sprintf("ema %d/%d cross up", s.FastPeriod, s.SlowPeriod),
		}, nil
	case prevDiff >= 0 && diff < 0:
		return &signal.Proposal{
			Position:            signal.Short,
			PriceTakeProfit:     last * (1 - s.TakeProfitPct/100),
			PriceStopLoss:       last * (1 + s.StopLossPct/100),
			MinuteEstimatedTime: s.LifetimeMinutes,
			Note:                fmt.Sprintf("ema %d/%d cross down", s.FastPeriod, s.SlowPeriod),
		}, nil
	}
	return nil, nil
}
