package cmd

import (
	"github.com/rs/zerolog"

	"github.com/rustyeddy/sigrun/signal"
)

func printResult(log zerolog.Logger, res signal.Result) {
	switch res.Kind {
	case signal.KindOpened:
		log.Info().
			Str("id", res.Signal.ID).
			Str("position", string(res.Signal.Position)).
			Float64("open", res.Signal.PriceOpen).
			Float64("tp", res.Signal.PriceTakeProfit).
			Float64("sl", res.Signal.PriceStopLoss).
			Msg("signal opened")
	case signal.KindClosed:
		log.Info().
			Str("id", res.Signal.ID).
			Str("reason", string(res.CloseReason)).
			Float64("open", res.PriceOpenEffective).
			Float64("close", res.PriceClose).
			Float64("pnl", res.PnLPercent).
			Time("at", res.ClosedAt).
			Msg("signal closed")
	case signal.KindCancelled:
		log.Info().
			Str("id", res.Scheduled.ID).
			Str("reason", string(res.CancelReason)).
			Time("at", res.ClosedAt).
			Msg("signal cancelled")
	}
}
