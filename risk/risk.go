package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/sigrun/signal"
)

// Position is one active entry in the process-wide portfolio.
type Position struct {
	SignalID     string
	Symbol       string
	StrategyName string
	Position     signal.Position
	PriceOpen    float64
	OpenedAt     time.Time
}

// Snapshot is a point-in-time copy of the portfolio handed to validators.
// Validators must treat it as read-only.
type Snapshot struct {
	Positions []Position
}

// OpenCount returns how many positions are held, optionally for one symbol
// (empty symbol counts everything).
func (s Snapshot) OpenCount(symbol string) int {
	if symbol == "" {
		return len(s.Positions)
	}
	n := 0
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			n++
		}
	}
	return n
}

// Portfolio is the shared registry of active positions across strategies.
// It is mutated only through Gate.Admit and Gate.Retire.
type Portfolio struct {
	mu   sync.Mutex
	open map[string]Position // keyed by signal ID
}

func NewPortfolio() *Portfolio {
	return &Portfolio{open: make(map[string]Position)}
}

func (p *Portfolio) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := Snapshot{Positions: make([]Position, 0, len(p.open))}
	for _, pos := range p.open {
		out.Positions = append(out.Positions, pos)
	}
	return out
}

func (p *Portfolio) admit(pos Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open[pos.SignalID] = pos
}

func (p *Portfolio) retire(signalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.open, signalID)
}

// Rejection names the validator that refused a proposal and why.
type Rejection struct {
	Validator string
	Reason    string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("%s: %s", r.Validator, r.Reason)
}

// CheckFunc is a pure admission check. A nil return admits.
type CheckFunc func(p *signal.Proposal, snap Snapshot, price float64, now time.Time) *Rejection

// Validator is one named admission check.
type Validator struct {
	Name  string
	Check CheckFunc
}

// Gate runs validators in order over a proposed signal and the current
// portfolio. The first rejection short-circuits. The gate never mutates
// the proposal.
type Gate struct {
	portfolio  *Portfolio
	validators []Validator
}

func NewGate(portfolio *Portfolio, validators ...Validator) *Gate {
	return &Gate{portfolio: portfolio, validators: validators}
}

// Check evaluates the validators without registering anything. Used for
// scheduled proposals, which only enter the portfolio on activation.
func (g *Gate) Check(p *signal.Proposal, price float64, now time.Time) *Rejection {
	snap := g.portfolio.Snapshot()
	for _, v := range g.validators {
		if rej := v.Check(p, snap, price, now); rej != nil {
			if rej.Validator == "" {
				rej.Validator = v.Name
			}
			return rej
		}
	}
	return nil
}

// Admit evaluates the validators and, on success, registers the position.
// The caller must Retire it when the signal closes.
func (g *Gate) Admit(p *signal.Proposal, pos Position) *Rejection {
	if rej := g.Check(p, pos.PriceOpen, pos.OpenedAt); rej != nil {
		return rej
	}
	g.portfolio.admit(pos)
	return nil
}

// Retire removes a closed position from the portfolio.
func (g *Gate) Retire(signalID string) {
	g.portfolio.retire(signalID)
}

// Restore registers a position without running the validators. Used when an
// engine restores a persisted signal after a restart; the position was
// already admitted before the crash.
func (g *Gate) Restore(pos Position) {
	g.portfolio.admit(pos)
}
