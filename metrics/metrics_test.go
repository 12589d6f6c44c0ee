package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/engine"
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/signal"
)

func TestMetricsObserveBus(t *testing.T) {
	t.Parallel()

	m := New()
	b := bus.New()
	m.Observe(b)

	sig := &signal.Active{ID: "x", Symbol: "BTCUSDT", StrategyName: "ema-cross", Position: signal.Long}
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	b.Publish(bus.TopicSignal, signal.Opened(sig))
	b.Publish(bus.TopicSignal, signal.Closed(sig, signal.CloseTakeProfit, 51000, 50100, 1.59, at))
	b.Publish(bus.TopicSignal, signal.Cancelled(&signal.Scheduled{Active: *sig}, signal.CancelScheduleTimeout, at))
	b.Publish(bus.TopicPartialProfit, engine.PartialEvent{Signal: sig, Level: 10, Price: 55000})
	b.Publish(bus.TopicBreakeven, engine.BreakevenEvent{Signal: sig, Price: 50300})
	b.Publish(bus.TopicRiskRejection, engine.RiskRejectionEvent{
		Symbol: "BTCUSDT", StrategyName: "ema-cross",
		Rejection: &risk.Rejection{Validator: "max-active-positions", Reason: "full"},
	})
	b.Publish(bus.TopicError, engine.ErrorEvent{Err: assert.AnError})
	b.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.opened.WithLabelValues("BTCUSDT", "ema-cross")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closed.WithLabelValues("BTCUSDT", "ema-cross", "take_profit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancelled.WithLabelValues("BTCUSDT", "ema-cross", "schedule_timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.partials.WithLabelValues("BTCUSDT", "ema-cross", "partial-profit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakevens.WithLabelValues("BTCUSDT", "ema-cross")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("BTCUSDT", "ema-cross", "max-active-positions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("error")))
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m := New()
	assert.NotNil(t, m.Handler())
	assert.NotNil(t, m.Registry())
}
