// Package journal records terminal signal results to durable sinks for
// later analysis. Sinks are append-only; one row per closed or cancelled
// signal.
package journal

import (
	"fmt"
	"time"

	"github.com/rustyeddy/sigrun/config"
	"github.com/rustyeddy/sigrun/signal"
)

// Record is one journal row.
type Record struct {
	SignalID     string
	Symbol       string
	StrategyName string
	ExchangeName string
	Position     signal.Position
	Kind         signal.Kind
	CloseReason  signal.CloseReason
	CancelReason signal.CancelReason

	PriceOpen        float64
	PriceClose       float64
	PnLPercent       float64
	PartialClosedPct float64

	ScheduledAt time.Time
	PendingAt   time.Time
	ClosedAt    time.Time
	Note        string
}

// Journal is an append-only sink of terminal results.
type Journal interface {
	Append(rec Record) error
	Close() error
}

// FromResult flattens a terminal tick result into a record. Non-terminal
// results return false.
func FromResult(res signal.Result) (Record, bool) {
	switch res.Kind {
	case signal.KindClosed:
		s := res.Signal
		return Record{
			SignalID:         s.ID,
			Symbol:           s.Symbol,
			StrategyName:     s.StrategyName,
			ExchangeName:     s.ExchangeName,
			Position:         s.Position,
			Kind:             res.Kind,
			CloseReason:      res.CloseReason,
			PriceOpen:        res.PriceOpenEffective,
			PriceClose:       res.PriceClose,
			PnLPercent:       res.PnLPercent,
			PartialClosedPct: s.PartialClosedPct,
			ScheduledAt:      s.ScheduledAt,
			PendingAt:        s.PendingAt,
			ClosedAt:         res.ClosedAt,
			Note:             s.Note,
		}, true
	case signal.KindCancelled:
		s := res.Scheduled
		return Record{
			SignalID:     s.ID,
			Symbol:       s.Symbol,
			StrategyName: s.StrategyName,
			ExchangeName: s.ExchangeName,
			Position:     s.Position,
			Kind:         res.Kind,
			CancelReason: res.CancelReason,
			PriceOpen:    s.PriceOpen,
			ScheduledAt:  s.ScheduledAt,
			PendingAt:    s.PendingAt,
			ClosedAt:     res.ClosedAt,
			Note:         s.Note,
		}, true
	}
	return Record{}, false
}

// Open builds the sink named by cfg. An empty type yields a Nop journal.
func Open(cfg config.Journal) (Journal, error) {
	switch cfg.Type {
	case "":
		return Nop{}, nil
	case "csv":
		return OpenCSV(cfg.File)
	case "sqlite":
		return OpenSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("journal: unknown type %q", cfg.Type)
	}
}

// Nop discards every record.
type Nop struct{}

func (Nop) Append(Record) error { return nil }
func (Nop) Close() error        { return nil }
