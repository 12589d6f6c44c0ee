package engine

import "sync"

type cacheKey struct {
	symbol       string
	strategyName string
	backtest     bool
}

// Cache creates engines lazily and memoizes them by (symbol, strategy,
// backtest), so live and backtest runs of the same pair never share state.
type Cache struct {
	mu      sync.Mutex
	engines map[cacheKey]*Engine
}

func NewCache() *Cache {
	return &Cache{engines: make(map[cacheKey]*Engine)}
}

// Get returns the cached engine for opt's key, building it with New on the
// first request.
func (c *Cache) Get(opt Options) (*Engine, error) {
	key := cacheKey{symbol: opt.Symbol, strategyName: opt.StrategyName, backtest: opt.Backtest}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.engines[key]; ok {
		return e, nil
	}
	e, err := New(opt)
	if err != nil {
		return nil, err
	}
	c.engines[key] = e
	return e, nil
}

// StopAll requests shutdown on every cached engine.
func (c *Cache) StopAll() {
	c.mu.Lock()
	engines := make([]*Engine, 0, len(c.engines))
	for _, e := range c.engines {
		engines = append(engines, e)
	}
	c.mu.Unlock()

	for _, e := range engines {
		e.Stop()
	}
}
