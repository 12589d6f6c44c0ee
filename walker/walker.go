// Package walker backtests a set of candidate strategies sequentially over
// the same frame and ranks them by cumulative realized return.
package walker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/sigrun/backtest"
	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/config"
	"github.com/rustyeddy/sigrun/engine"
	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/persist"
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/signal"
	"github.com/rustyeddy/sigrun/strategy"
)

// Candidate is one strategy entered into the walk. Build receives the
// candidate's guarded exchange; strategies must fetch candles through it so
// the frame clamp applies to every fetch they make.
type Candidate struct {
	Name  string
	Build func(ex exchange.Exchange) strategy.Strategy
}

// Report summarizes one candidate's run. TotalPnLPercent is the sum of
// realized percents over all closed signals.
type Report struct {
	StrategyName    string
	Closed          int
	Cancelled       int
	Wins            int
	Losses          int
	TotalPnLPercent float64
}

// Progress is published on the progress-walker topic after each candidate.
type Progress struct {
	StrategyName string
	Index        int
	Total        int
}

// Done is published on the done-walker topic with the full ranking.
type Done struct {
	Symbol  string
	Best    Report
	Reports []Report
}

// Options wires a walker. RiskSets may be nil; candidates implementing
// strategy.RiskNamer then run ungated.
type Options struct {
	Symbol   string
	Exchange exchange.Exchange
	Frames   backtest.FrameProvider
	Config   *config.Config
	Bus      *bus.Bus
	RiskSets *risk.Registry
	Log      zerolog.Logger
}

type Walker struct {
	opt Options
}

func New(opt Options) (*Walker, error) {
	if opt.Exchange == nil || opt.Frames == nil || opt.Config == nil || opt.Bus == nil {
		return nil, fmt.Errorf("walker: exchange, frames, config and bus required")
	}
	return &Walker{opt: opt}, nil
}

// Run backtests every candidate and returns the reports in input order.
// Each candidate gets a fresh engine, portfolio and look-ahead guard.
func (w *Walker) Run(ctx context.Context, candidates []Candidate) ([]Report, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("walker: no candidates")
	}

	reports := make([]Report, 0, len(candidates))
	for i, cand := range candidates {
		report, err := w.runOne(ctx, cand)
		if err != nil {
			return nil, fmt.Errorf("walker: %s: %w", cand.Name, err)
		}
		reports = append(reports, report)

		w.opt.Bus.Publish(bus.TopicPerformance, report)
		w.opt.Bus.Publish(bus.TopicProgressWalker, Progress{
			StrategyName: cand.Name,
			Index:        i + 1,
			Total:        len(candidates),
		})
	}

	best := reports[0]
	for _, r := range reports[1:] {
		if r.TotalPnLPercent > best.TotalPnLPercent {
			best = r
		}
	}
	w.opt.Bus.Publish(bus.TopicDoneWalker, Done{
		Symbol:  w.opt.Symbol,
		Best:    best,
		Reports: reports,
	})
	return reports, nil
}

func (w *Walker) runOne(ctx context.Context, cand Candidate) (Report, error) {
	if cand.Build == nil {
		return Report{}, fmt.Errorf("nil build func")
	}
	guard := exchange.NewGuard(w.opt.Exchange)
	strat := cand.Build(guard)
	if strat == nil {
		return Report{}, fmt.Errorf("build returned no strategy")
	}

	validators, err := w.resolveRisk(strat)
	if err != nil {
		return Report{}, err
	}

	eng, err := engine.New(engine.Options{
		Symbol:       w.opt.Symbol,
		StrategyName: cand.Name,
		ExchangeName: "walker",
		Backtest:     true,
		Strategy:     strat,
		Store:        persist.Nop{},
		Bus:          w.opt.Bus,
		Gate:         risk.NewGate(risk.NewPortfolio(), validators...),
		Config:       w.opt.Config,
		Log:          w.opt.Log,
	})
	if err != nil {
		return Report{}, err
	}

	driver, err := backtest.New(backtest.Options{
		Symbol:   w.opt.Symbol,
		Engine:   eng,
		Exchange: w.opt.Exchange,
		Guard:    guard,
		Frames:   w.opt.Frames,
		Config:   w.opt.Config,
		Bus:      w.opt.Bus,
		Log:      w.opt.Log,
	})
	if err != nil {
		return Report{}, err
	}

	report := Report{StrategyName: cand.Name}
	for {
		res, ok, err := driver.Next(ctx)
		if err != nil {
			return Report{}, err
		}
		if !ok {
			break
		}
		switch res.Kind {
		case signal.KindClosed:
			report.Closed++
			report.TotalPnLPercent += res.PnLPercent
			if res.PnLPercent > 0 {
				report.Wins++
			} else {
				report.Losses++
			}
		case signal.KindCancelled:
			report.Cancelled++
		}
	}
	return report, nil
}

func (w *Walker) resolveRisk(s strategy.Strategy) ([]risk.Validator, error) {
	namer, ok := s.(strategy.RiskNamer)
	if !ok || w.opt.RiskSets == nil {
		return nil, nil
	}
	names := namer.RiskNames()
	if len(names) == 0 {
		return nil, nil
	}
	return w.opt.RiskSets.Resolve(names...)
}
