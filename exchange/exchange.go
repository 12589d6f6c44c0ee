package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/sigrun/market"
)

// ErrLookAhead marks a candle fetch reaching past the backtest driver's
// current frame. It is a fatal contract breach, not a transient failure.
var ErrLookAhead = errors.New("exchange: candle fetch beyond current frame")

// Exchange serves candle history and exchange-specific formatting.
//
// GetCandles must return exactly limit candles whose first OpenTime equals
// since aligned down to the interval; anything else is a contract breach
// the caller treats as fatal. Fetches must be side-effect free with respect
// to the engine.
type Exchange interface {
	GetCandles(ctx context.Context, symbol string, iv market.Interval, since time.Time, limit int) ([]market.Candle, error)
	FormatPrice(symbol string, price float64) string
	FormatQuantity(symbol string, qty float64) string
}

// CheckContract verifies the GetCandles postcondition.
func CheckContract(candles []market.Candle, iv market.Interval, since time.Time, limit int) error {
	if len(candles) != limit {
		return fmt.Errorf("exchange: got %d candles, want %d", len(candles), limit)
	}
	if limit > 0 {
		want := iv.Align(since)
		if !candles[0].OpenTime.Equal(want) {
			return fmt.Errorf("exchange: first candle opens at %s, want %s",
				candles[0].OpenTime.Format(time.RFC3339), want.Format(time.RFC3339))
		}
	}
	return nil
}

// AveragePrice is the VWAP of the last n one-minute candles ending at now.
func AveragePrice(ctx context.Context, ex Exchange, symbol string, now time.Time, n int) (float64, error) {
	since := market.M1.Align(now).Add(-time.Duration(n-1) * time.Minute)
	candles, err := ex.GetCandles(ctx, symbol, market.M1, since, n)
	if err != nil {
		return 0, fmt.Errorf("average price %s: %w", symbol, err)
	}
	return market.VWAP(candles), nil
}

// Registry maps exchange names to providers.
type Registry struct {
	mu        sync.RWMutex
	exchanges map[string]Exchange
}

func NewRegistry() *Registry {
	return &Registry{exchanges: make(map[string]Exchange)}
}

func (r *Registry) Register(name string, ex Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.exchanges[name]; dup {
		return fmt.Errorf("exchange: %q already registered", name)
	}
	r.exchanges[name] = ex
	return nil
}

func (r *Registry) Get(name string) (Exchange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.exchanges[name]
	if !ok {
		return nil, fmt.Errorf("exchange: unknown name %q", name)
	}
	return ex, nil
}
