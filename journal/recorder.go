package journal

import (
	"github.com/rs/zerolog"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/signal"
)

// Record subscribes j to the signal topic and appends every terminal
// result. The returned func cancels the subscription; the journal itself
// is not closed.
func RecordBus(b *bus.Bus, j Journal, log zerolog.Logger) (cancel func()) {
	return b.Subscribe(bus.TopicSignal, func(ev bus.Event) {
		res, ok := ev.Data.(signal.Result)
		if !ok {
			return
		}
		rec, ok := FromResult(res)
		if !ok {
			return
		}
		if err := j.Append(rec); err != nil {
			log.Error().Err(err).
				Str("signal", rec.SignalID).
				Str("symbol", rec.Symbol).
				Msg("journal append failed")
		}
	})
}
