package strategy

import "github.com/rustyeddy/sigrun/signal"

// Hooks are optional lifecycle callbacks a strategy may implement next to
// Strategy. The engine invokes them synchronously inside the tick, after
// state changes are persisted. Embed NopHooks to pick only the ones you
// care about.
type Hooks interface {
	OnOpen(sctx Context, sig *signal.Active)
	OnActive(sctx Context, sig *signal.Active, price float64)
	OnIdle(sctx Context)
	OnClose(sctx Context, sig *signal.Active, reason signal.CloseReason, pnlPercent float64)
	OnSchedule(sctx Context, sched *signal.Scheduled)
	OnCancel(sctx Context, sched *signal.Scheduled, reason signal.CancelReason)
	OnWrite(sctx Context)
	OnTick(sctx Context, price float64)
	OnPartialProfit(sctx Context, sig *signal.Active, level float64)
	OnPartialLoss(sctx Context, sig *signal.Active, level float64)
	OnBreakeven(sctx Context, sig *signal.Active)
	OnPing(sctx Context, sig *signal.Active)
}

// NopHooks implements Hooks with empty methods.
type NopHooks struct{}

func (NopHooks) OnOpen(Context, *signal.Active)                               {}
func (NopHooks) OnActive(Context, *signal.Active, float64)                    {}
func (NopHooks) OnIdle(Context)                                               {}
func (NopHooks) OnClose(Context, *signal.Active, signal.CloseReason, float64) {}
func (NopHooks) OnSchedule(Context, *signal.Scheduled)                        {}
func (NopHooks) OnCancel(Context, *signal.Scheduled, signal.CancelReason)     {}
func (NopHooks) OnWrite(Context)                                              {}
func (NopHooks) OnTick(Context, float64)                                      {}
func (NopHooks) OnPartialProfit(Context, *signal.Active, float64)             {}
func (NopHooks) OnPartialLoss(Context, *signal.Active, float64)               {}
func (NopHooks) OnBreakeven(Context, *signal.Active)                          {}
func (NopHooks) OnPing(Context, *signal.Active)                               {}
