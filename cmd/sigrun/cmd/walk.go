package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/sigrun/backtest"
	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/strategy"
	"github.com/rustyeddy/sigrun/walker"
)

var walkCmd = &cobra.Command{
	Use:   "walk",
	Short: "Backtest a grid of EMA cross parameters and rank them",
	Long: `Walk runs one backtest per fast:slow pair over the same candle
archive and ranks the variants by cumulative realized return.

Example:
  sigrun walk --candles data/btcusdt-1m.csv.xz --pairs 9:21,12:26,20:50`,
	RunE: runWalk,
}

var (
	wkCandlesPath string
	wkSymbol      string
	wkFrame       string
	wkPairs       string
	wkTPPct       float64
	wkSLPct       float64
	wkLifetime    float64
)

func init() {
	rootCmd.AddCommand(walkCmd)

	walkCmd.Flags().StringVarP(&wkCandlesPath, "candles", "t", "", "path to one-minute candle CSV (required)")
	walkCmd.Flags().StringVarP(&wkSymbol, "symbol", "i", "BTCUSDT", "symbol the archive covers")
	walkCmd.Flags().StringVar(&wkFrame, "frame", "5m", "strategy evaluation interval")
	walkCmd.Flags().StringVar(&wkPairs, "pairs", "9:21,12:26,20:50", "comma-separated fast:slow EMA period pairs")
	walkCmd.Flags().Float64Var(&wkTPPct, "tp", 2, "take-profit distance percent")
	walkCmd.Flags().Float64Var(&wkSLPct, "sl", 1, "stop-loss distance percent")
	walkCmd.Flags().Float64Var(&wkLifetime, "lifetime", 240, "signal lifetime in minutes")

	walkCmd.MarkFlagRequired("candles")
}

func parsePairs(s string) ([][2]int, error) {
	var out [][2]int
	for _, part := range strings.Split(s, ",") {
		fastSlow := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fastSlow) != 2 {
			return nil, fmt.Errorf("bad pair %q, want fast:slow", part)
		}
		fast, err := strconv.Atoi(fastSlow[0])
		if err != nil {
			return nil, fmt.Errorf("bad fast period %q: %w", fastSlow[0], err)
		}
		slow, err := strconv.Atoi(fastSlow[1])
		if err != nil {
			return nil, fmt.Errorf("bad slow period %q: %w", fastSlow[1], err)
		}
		if fast >= slow {
			return nil, fmt.Errorf("pair %q: fast must be below slow", part)
		}
		out = append(out, [2]int{fast, slow})
	}
	return out, nil
}

func runWalk(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	frame, err := market.ParseInterval(wkFrame)
	if err != nil {
		return err
	}
	pairs, err := parsePairs(wkPairs)
	if err != nil {
		return err
	}

	feed, err := exchange.OpenFileFeed(wkCandlesPath, wkSymbol, 2)
	if err != nil {
		return err
	}
	first, last := feed.Span()

	b := bus.New()
	defer b.Close()

	sets := risk.NewRegistry()
	if err := sets.Register("default", risk.MaxOpenPositions(1)); err != nil {
		return err
	}

	w, err := walker.New(walker.Options{
		Symbol:   wkSymbol,
		Exchange: feed,
		Frames: backtest.RangeFrame{
			Start:    first.Add(time.Duration(cfg.AvgPriceCandlesCount) * time.Minute),
			End:      last,
			Interval: frame,
		},
		Config:   cfg,
		Bus:      b,
		RiskSets: sets,
		Log:      log,
	})
	if err != nil {
		return err
	}

	candidates := make([]walker.Candidate, 0, len(pairs))
	for _, p := range pairs {
		candidates = append(candidates, walker.Candidate{
			Name: fmt.Sprintf("ema-%d-%d", p[0], p[1]),
			Build: func(ex exchange.Exchange) strategy.Strategy {
				return &strategy.EMACross{
					Exchange:        ex,
					Frame:           frame,
					FastPeriod:      p[0],
					SlowPeriod:      p[1],
					TakeProfitPct:   wkTPPct,
					StopLossPct:     wkSLPct,
					LifetimeMinutes: wkLifetime,
					Risk:            []string{"default"},
				}
			},
		})
	}

	reports, err := w.Run(cmd.Context(), candidates)
	if err != nil {
		return err
	}

	for _, r := range reports {
		fmt.Printf("%-12s closed=%-3d cancelled=%-3d wins=%-3d losses=%-3d pnl=%.4f%%\n",
			r.StrategyName, r.Closed, r.Cancelled, r.Wins, r.Losses, r.TotalPnLPercent)
	}
	return nil
}
