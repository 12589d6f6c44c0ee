package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/signal"
)

// Context is the immutable call context handed to every provider call, so
// a strategy can read the tick time and mode without global state.
type Context struct {
	Symbol       string
	When         time.Time
	Backtest     bool
	StrategyName string
	ExchangeName string
	FrameName    string
}

// Strategy produces signal proposals for one timeframe. GetSignal may
// block on candle fetches; drivers pass a cancellable context. Returning
// (nil, nil) means "wait".
type Strategy interface {
	Interval() market.Interval
	GetSignal(ctx context.Context, sctx Context) (*signal.Proposal, error)
}

// RiskNamer optionally names the risk validator sets the engine runs for
// this strategy. The union of the named sets applies, in order.
type RiskNamer interface {
	RiskNames() []string
}

// Registry maps strategy names to implementations.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func (r *Registry) Register(name string, s Strategy) error {
	if !s.Interval().Valid() {
		return fmt.Errorf("strategy: %q has invalid interval %q", name, s.Interval())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.strategies[name]; dup {
		return fmt.Errorf("strategy: %q already registered", name)
	}
	r.strategies[name] = s
	return nil
}

func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown name %q", name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		out = append(out, name)
	}
	return out
}
