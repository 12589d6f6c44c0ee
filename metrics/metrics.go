// Package metrics exposes engine activity as Prometheus series. The
// collectors are fed from the event bus, so drivers and engines stay free
// of instrumentation code.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/sigrun/bus"
	"github.com/rustyeddy/sigrun/engine"
	"github.com/rustyeddy/sigrun/signal"
)

type Metrics struct {
	registry *prometheus.Registry

	opened     *prometheus.CounterVec
	scheduled  *prometheus.CounterVec
	closed     *prometheus.CounterVec
	cancelled  *prometheus.CounterVec
	pnl        *prometheus.HistogramVec
	partials   *prometheus.CounterVec
	breakevens *prometheus.CounterVec
	rejections *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		opened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigrun_signals_opened_total",
			Help: "Signals opened or activated.",
		}, []string{"symbol", "strategy"}),
		scheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigrun_signals_scheduled_total",
			Help: "Signals parked waiting for their entry price.",
		}, []string{"symbol", "strategy"}),
		closed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigrun_signals_closed_total",
			Help: "Signals closed, by reason.",
		}, []string{"symbol", "strategy", "reason"}),
		cancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigrun_signals_cancelled_total",
			Help: "Scheduled signals cancelled, by reason.",
		}, []string{"symbol", "strategy", "reason"}),
		pnl: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigrun_signal_pnl_percent",
			Help:    "Realized percent return per closed signal.",
			Buckets: []float64{-10, -5, -2, -1, -0.5, 0, 0.5, 1, 2, 5, 10},
		}, []string{"symbol", "strategy"}),
		partials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigrun_partial_events_total",
			Help: "Partial profit and loss milestone events.",
		}, []string{"symbol", "strategy", "kind"}),
		breakevens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigrun_breakeven_events_total",
			Help: "Stop-loss migrations to the entry price.",
		}, []string{"symbol", "strategy"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigrun_risk_rejections_total",
			Help: "Proposals refused by the risk gate, by validator.",
		}, []string{"symbol", "strategy", "validator"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sigrun_errors_total",
			Help: "Recoverable and validation errors, by topic.",
		}, []string{"topic"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe feeds the collectors from b until the returned cancel func runs.
func (m *Metrics) Observe(b *bus.Bus) (cancel func()) {
	return b.SubscribeAll(m.handle)
}

func (m *Metrics) handle(ev bus.Event) {
	switch ev.Topic {
	case bus.TopicSignal:
		res, ok := ev.Data.(signal.Result)
		if !ok {
			return
		}
		switch res.Kind {
		case signal.KindOpened:
			m.opened.WithLabelValues(res.Signal.Symbol, res.Signal.StrategyName).Inc()
		case signal.KindScheduled:
			m.scheduled.WithLabelValues(res.Scheduled.Symbol, res.Scheduled.StrategyName).Inc()
		case signal.KindClosed:
			m.closed.WithLabelValues(res.Signal.Symbol, res.Signal.StrategyName, string(res.CloseReason)).Inc()
			m.pnl.WithLabelValues(res.Signal.Symbol, res.Signal.StrategyName).Observe(res.PnLPercent)
		case signal.KindCancelled:
			m.cancelled.WithLabelValues(res.Scheduled.Symbol, res.Scheduled.StrategyName, string(res.CancelReason)).Inc()
		}
	case bus.TopicPartialProfit, bus.TopicPartialLoss:
		if ev2, ok := ev.Data.(engine.PartialEvent); ok {
			m.partials.WithLabelValues(ev2.Signal.Symbol, ev2.Signal.StrategyName, string(ev.Topic)).Inc()
		}
	case bus.TopicBreakeven:
		if ev2, ok := ev.Data.(engine.BreakevenEvent); ok {
			m.breakevens.WithLabelValues(ev2.Signal.Symbol, ev2.Signal.StrategyName).Inc()
		}
	case bus.TopicRiskRejection:
		if ev2, ok := ev.Data.(engine.RiskRejectionEvent); ok {
			m.rejections.WithLabelValues(ev2.Symbol, ev2.StrategyName, ev2.Rejection.Validator).Inc()
		}
	case bus.TopicError, bus.TopicValidationError:
		m.errors.WithLabelValues(string(ev.Topic)).Inc()
	}
}
