package persist

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/sigrun/signal"
)

// ErrNotFound is returned when no record exists for the key.
var ErrNotFound = errors.New("persist: record not found")

// Key identifies the engine that owns a pair of records.
type Key struct {
	Symbol       string
	StrategyName string
}

func (k Key) filename() string {
	return fmt.Sprintf("%s_%s.json", k.Symbol, k.StrategyName)
}

// Store persists the pending (active) and scheduled records for one
// (symbol, strategy). Writes must be atomic: after a crash a reader sees
// either the previous record or the new one, never a partial document.
type Store interface {
	ReadPending(k Key) (*signal.Active, error)
	WritePending(k Key, a *signal.Active) error
	DeletePending(k Key) error

	ReadScheduled(k Key) (*signal.Scheduled, error)
	WriteScheduled(k Key, s *signal.Scheduled) error
	DeleteScheduled(k Key) error
}

// Nop is the backtest store: it persists nothing and restores nothing.
type Nop struct{}

func (Nop) ReadPending(Key) (*signal.Active, error)      { return nil, ErrNotFound }
func (Nop) WritePending(Key, *signal.Active) error       { return nil }
func (Nop) DeletePending(Key) error                      { return nil }
func (Nop) ReadScheduled(Key) (*signal.Scheduled, error) { return nil, ErrNotFound }
func (Nop) WriteScheduled(Key, *signal.Scheduled) error  { return nil }
func (Nop) DeleteScheduled(Key) error                    { return nil }
