package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/engine"
	"github.com/rustyeddy/sigrun/exchange"
	"github.com/rustyeddy/sigrun/journal"
	"github.com/rustyeddy/sigrun/live"
	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/metrics"
	"github.com/rustyeddy/sigrun/persist"
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/strategy"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run the live signal loop against a candle feed",
	Long: `Live ticks the engine once per TICK_TTL, persisting every signal
transition so a restart resumes with the original entry time and the
remaining lifetime intact. On SIGINT/SIGTERM the loop stops once no active
signal is held.

The feed is a recorded candle archive, which makes this a paper-trading
loop; an exchange-backed feed plugs in through the same interface.`,
	RunE: runLive,
}

var (
	lvCandlesPath string
	lvSymbol      string
	lvFrame       string
	lvFast        int
	lvSlow        int
	lvTPPct       float64
	lvSLPct       float64
	lvLifetime    float64
	lvMaxOpen     int
	lvListen      string
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVarP(&lvCandlesPath, "candles", "t", "", "path to one-minute candle CSV feed (required)")
	liveCmd.Flags().StringVarP(&lvSymbol, "symbol", "i", "BTCUSDT", "symbol to trade")
	liveCmd.Flags().StringVar(&lvFrame, "frame", "5m", "strategy evaluation interval")
	liveCmd.Flags().IntVar(&lvFast, "fast", 9, "ema-cross: fast EMA period")
	liveCmd.Flags().IntVar(&lvSlow, "slow", 21, "ema-cross: slow EMA period")
	liveCmd.Flags().Float64Var(&lvTPPct, "tp", 2, "take-profit distance percent")
	liveCmd.Flags().Float64Var(&lvSLPct, "sl", 1, "stop-loss distance percent")
	liveCmd.Flags().Float64Var(&lvLifetime, "lifetime", 240, "signal lifetime in minutes")
	liveCmd.Flags().IntVar(&lvMaxOpen, "max-open", 1, "risk gate: maximum concurrent positions")
	liveCmd.Flags().StringVar(&lvListen, "listen", "", "address for the Prometheus scrape endpoint (empty disables)")

	liveCmd.MarkFlagRequired("candles")
}

func runLive(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	frame, err := market.ParseInterval(lvFrame)
	if err != nil {
		return err
	}

	feed, err := exchange.OpenFileFeed(lvCandlesPath, lvSymbol, 2)
	if err != nil {
		return err
	}

	b := bus.New()
	defer b.Close()

	if lvListen != "" {
		m := metrics.New()
		m.Observe(b)
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			if err := http.ListenAndServe(lvListen, mux); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		log.Info().Str("addr", lvListen).Msg("metrics endpoint up")
	}

	store, err := persist.NewFileStore(cfg.PersistRoot, log)
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()
	journal.RecordBus(b, j, log)

	strat := &strategy.EMACross{
		Exchange:        feed,
		Frame:           frame,
		FastPeriod:      lvFast,
		SlowPeriod:      lvSlow,
		TakeProfitPct:   lvTPPct,
		StopLossPct:     lvSLPct,
		LifetimeMinutes: lvLifetime,
	}

	eng, err := engine.New(engine.Options{
		Symbol:       lvSymbol,
		StrategyName: "ema-cross",
		ExchangeName: "filefeed",
		FrameName:    lvFrame,
		Strategy:     strat,
		Store:        store,
		Bus:          b,
		Gate:         risk.NewGate(risk.NewPortfolio(), risk.MaxOpenPositions(lvMaxOpen)),
		Config:       cfg,
		Log:          log,
	})
	if err != nil {
		return err
	}

	driver, err := live.New(live.Options{
		Symbol:   lvSymbol,
		Engine:   eng,
		Exchange: exchange.NewRetry(feed, cfg.GetCandlesRetryCount, cfg.RetryDelay(), nil, log),
		Config:   cfg,
		Bus:      b,
		Log:      log,
	})
	if err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info().Msg("shutdown requested, waiting for the active signal to close")
		eng.Stop()
	}()

	ctx := cmd.Context()
	for {
		res, ok, err := driver.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			log.Info().Msg("live loop done")
			return nil
		}
		printResult(log, res)
	}
}
