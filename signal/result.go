package signal

import "time"

// Kind tags a tick result.
type Kind string

const (
	KindIdle      Kind = "idle"
	KindScheduled Kind = "scheduled"
	KindOpened    Kind = "opened"
	KindActive    Kind = "active"
	KindClosed    Kind = "closed"
	KindCancelled Kind = "cancelled"
)

// CloseReason explains why an active signal closed.
type CloseReason string

const (
	CloseTakeProfit  CloseReason = "take_profit"
	CloseStopLoss    CloseReason = "stop_loss"
	CloseTimeExpired CloseReason = "time_expired"
)

// CancelReason explains why a scheduled signal never activated.
type CancelReason string

const (
	CancelScheduleTimeout CancelReason = "schedule_timeout"
	CancelUser            CancelReason = "user_cancel"
	CancelSLBeforeEntry   CancelReason = "sl_before_entry"
)

// Result is the discriminated outcome of one tick or one fast-forward run.
// Kind selects which payload fields are meaningful:
//
//	idle       - nothing
//	scheduled  - Scheduled
//	opened     - Signal (freshly activated or opened)
//	active     - Signal (still holding)
//	closed     - Signal, CloseReason, PriceClose, PriceOpenEffective,
//	             PnLPercent, ClosedAt
//	cancelled  - Scheduled, CancelReason, ClosedAt
type Result struct {
	Kind               Kind
	Signal             *Active
	Scheduled          *Scheduled
	CloseReason        CloseReason
	CancelReason       CancelReason
	PriceClose         float64
	PriceOpenEffective float64
	PnLPercent         float64
	ClosedAt           time.Time
}

func Idle() Result { return Result{Kind: KindIdle} }

func ScheduledResult(s *Scheduled) Result {
	return Result{Kind: KindScheduled, Scheduled: s}
}

func Opened(a *Active) Result {
	return Result{Kind: KindOpened, Signal: a}
}

func ActiveResult(a *Active) Result {
	return Result{Kind: KindActive, Signal: a}
}

func Closed(a *Active, reason CloseReason, priceClose, effOpen, pnlPct float64, at time.Time) Result {
	return Result{
		Kind:               KindClosed,
		Signal:             a,
		CloseReason:        reason,
		PriceClose:         priceClose,
		PriceOpenEffective: effOpen,
		PnLPercent:         pnlPct,
		ClosedAt:           at,
	}
}

func Cancelled(s *Scheduled, reason CancelReason, at time.Time) Result {
	return Result{Kind: KindCancelled, Scheduled: s, CancelReason: reason, ClosedAt: at}
}

// Terminal reports whether the result ends a signal's life.
func (r Result) Terminal() bool {
	return r.Kind == KindClosed || r.Kind == KindCancelled
}
