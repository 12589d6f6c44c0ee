package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/sigrun/backtest"
	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/engine"
	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/journal"
	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/persist"
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest the EMA cross strategy against a recorded candle feed",
	Long: `Backtest replays a one-minute candle archive (CSV, optionally
xz-compressed) through the signal engine. Each opened signal is
fast-forwarded through forward candles to its close; closed and cancelled
signals are printed and optionally journaled.

Example:
  sigrun backtest --candles data/btcusdt-1m.csv.xz --symbol BTCUSDT --fast 9 --slow 21`,
	RunE: runBacktest,
}

var (
	btCandlesPath string
	btSymbol      string
	btFrame       string
	btFast        int
	btSlow        int
	btTPPct       float64
	btSLPct       float64
	btLifetime    float64
	btDBPath      string
	btMaxOpen     int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btCandlesPath, "candles", "t", "", "path to one-minute candle CSV (openTimeMs,open,high,low,close,volume) (required)")
	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "i", "BTCUSDT", "symbol the archive covers")
	backtestCmd.Flags().StringVar(&btFrame, "frame", "5m", "strategy evaluation interval (1m, 3m, 5m, 15m, 30m, 1h)")

	backtestCmd.Flags().IntVar(&btFast, "fast", 9, "ema-cross: fast EMA period")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 21, "ema-cross: slow EMA period")
	backtestCmd.Flags().Float64Var(&btTPPct, "tp", 2, "take-profit distance percent")
	backtestCmd.Flags().Float64Var(&btSLPct, "sl", 1, "stop-loss distance percent")
	backtestCmd.Flags().Float64Var(&btLifetime, "lifetime", 240, "signal lifetime in minutes")

	backtestCmd.Flags().StringVarP(&btDBPath, "db", "d", "", "path to SQLite journal DB (empty disables journaling)")
	backtestCmd.Flags().IntVar(&btMaxOpen, "max-open", 1, "risk gate: maximum concurrent positions")

	backtestCmd.MarkFlagRequired("candles")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	frame, err := market.ParseInterval(btFrame)
	if err != nil {
		return err
	}

	feed, err := exchange.OpenFileFeed(btCandlesPath, btSymbol, 2)
	if err != nil {
		return err
	}
	first, last := feed.Span()
	log.Info().Time("from", first).Time("to", last).Str("symbol", btSymbol).Msg("candle archive loaded")

	b := bus.New()
	defer b.Close()

	if btDBPath != "" {
		j, err := journal.OpenSQLite(btDBPath)
		if err != nil {
			return err
		}
		defer j.Close()
		journal.RecordBus(b, j, log)
	}

	guard := exchange.NewGuard(feed)
	strat := &strategy.EMACross{
		Exchange:        guard,
		Frame:           frame,
		FastPeriod:      btFast,
		SlowPeriod:      btSlow,
		TakeProfitPct:   btTPPct,
		StopLossPct:     btSLPct,
		LifetimeMinutes: btLifetime,
	}

	eng, err := engine.New(engine.Options{
		Symbol:       btSymbol,
		StrategyName: "ema-cross",
		ExchangeName: "filefeed",
		FrameName:    btFrame,
		Backtest:     true,
		Strategy:     strat,
		Store:        persist.Nop{},
		Bus:          b,
		Gate:         risk.NewGate(risk.NewPortfolio(), risk.MaxOpenPositions(btMaxOpen)),
		Config:       cfg,
		Log:          log,
	})
	if err != nil {
		return err
	}

	// Leave warm-up room for the VWAP window and the EMA seed.
	start := first.Add(time.Duration(cfg.AvgPriceCandlesCount) * time.Minute)
	driver, err := backtest.New(backtest.Options{
		Symbol:   btSymbol,
		Engine:   eng,
		Exchange: feed,
		Guard:    guard,
		Frames:   backtest.RangeFrame{Start: start, End: last, Interval: frame},
		Config:   cfg,
		Bus:      b,
		Log:      log,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var closed, cancelled int
	var totalPnL float64
	for {
		res, ok, err := driver.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		printResult(log, res)
		switch {
		case res.CloseReason != "":
			closed++
			totalPnL += res.PnLPercent
		default:
			cancelled++
		}
	}

	fmt.Printf("backtest done: %d closed, %d cancelled, total pnl %.4f%%\n", closed, cancelled, totalPnL)
	return nil
}
