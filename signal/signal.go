package signal

import (
	"time"

	"github.com/rustyeddy/sigrun/market"
)

// Position is the direction of a trade.
type Position string

const (
	Long  Position = "long"
	Short Position = "short"
)

func (p Position) Valid() bool { return p == Long || p == Short }

// Proposal is what a strategy returns from GetSignal. A nil proposal means
// "wait". PriceOpen == 0 opens immediately at the current average price; a
// non-zero PriceOpen schedules a limit-style entry that activates when a
// candle touches it.
type Proposal struct {
	ID                  string
	Position            Position
	PriceOpen           float64
	PriceTakeProfit     float64
	PriceStopLoss       float64
	MinuteEstimatedTime float64
	Note                string
}

// Scheduled reports whether the proposal asks for a deferred entry.
func (p *Proposal) Scheduled() bool { return p.PriceOpen > 0 }

// Active is the live record of an open position. Original stop/take prices
// are kept so trailing adjustments always shift from the strategy's initial
// levels instead of compounding.
type Active struct {
	ID                      string
	Symbol                  string
	StrategyName            string
	ExchangeName            string
	FrameName               string
	Position                Position
	PriceOpen               float64
	PriceTakeProfit         float64
	PriceStopLoss           float64
	OriginalPriceStopLoss   float64
	OriginalPriceTakeProfit float64
	MinuteEstimatedTime     float64
	ScheduledAt             time.Time
	PendingAt               time.Time
	Note                    string
	PartialClosedPct        float64
}

// Lifetime converts the estimated minutes into a duration.
func (a *Active) Lifetime() time.Duration {
	return time.Duration(a.MinuteEstimatedTime * float64(time.Minute))
}

// ExpiresAt is the moment elapsed-since-pendingAt reaches the lifetime.
func (a *Active) ExpiresAt() time.Time {
	return a.PendingAt.Add(a.Lifetime())
}

// Expired reports time-based close against PendingAt. After a restart the
// restored PendingAt keeps the remaining lifetime intact.
func (a *Active) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt())
}

func (a *Active) Clone() *Active {
	cp := *a
	return &cp
}

// TouchedTP reports whether price has reached the take-profit.
func (a *Active) TouchedTP(price float64) bool {
	if a.Position == Long {
		return price >= a.PriceTakeProfit
	}
	return price <= a.PriceTakeProfit
}

// TouchedSL reports whether price has reached the stop-loss.
func (a *Active) TouchedSL(price float64) bool {
	if a.Position == Long {
		return price <= a.PriceStopLoss
	}
	return price >= a.PriceStopLoss
}

// CandleTouchesTP reports a take-profit touch anywhere inside the candle.
func (a *Active) CandleTouchesTP(c market.Candle) bool {
	if a.Position == Long {
		return c.High >= a.PriceTakeProfit
	}
	return c.Low <= a.PriceTakeProfit
}

// CandleTouchesSL reports a stop-loss touch anywhere inside the candle.
func (a *Active) CandleTouchesSL(c market.Candle) bool {
	if a.Position == Long {
		return c.Low <= a.PriceStopLoss
	}
	return c.High >= a.PriceStopLoss
}

// Scheduled is an Active waiting for its entry price. PendingAt equals
// ScheduledAt until activation. CancelID lets the proposing strategy target
// this record from Cancel.
type Scheduled struct {
	Active
	CancelID string
}

// TouchedOpen reports whether price has reached the scheduled entry.
func (s *Scheduled) TouchedOpen(price float64) bool {
	if s.Position == Long {
		return price <= s.PriceOpen
	}
	return price >= s.PriceOpen
}

// CandleTouchesOpen reports an entry touch anywhere inside the candle.
func (s *Scheduled) CandleTouchesOpen(c market.Candle) bool {
	if s.Position == Long {
		return c.Low <= s.PriceOpen
	}
	return c.High >= s.PriceOpen
}

func (s *Scheduled) Clone() *Scheduled {
	cp := *s
	return &cp
}
