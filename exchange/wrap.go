package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/pkg/clock"
)

// Retry wraps candle fetches with bounded retries. Formatting calls pass
// through untouched.
type Retry struct {
	next  Exchange
	count int
	delay time.Duration
	clk   clock.Clock
	log   zerolog.Logger
}

func NewRetry(next Exchange, count int, delay time.Duration, clk clock.Clock, log zerolog.Logger) *Retry {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Retry{next: next, count: count, delay: delay, clk: clk, log: log}
}

func (r *Retry) GetCandles(ctx context.Context, symbol string, iv market.Interval, since time.Time, limit int) ([]market.Candle, error) {
	var lastErr error
	for attempt := 0; attempt <= r.count; attempt++ {
		if attempt > 0 {
			if err := r.clk.Sleep(ctx, r.delay); err != nil {
				return nil, err
			}
		}
		candles, err := r.next.GetCandles(ctx, symbol, iv, since, limit)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		r.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Msg("candle fetch failed")
	}
	return nil, fmt.Errorf("get candles after %d attempts: %w", r.count+1, lastErr)
}

func (r *Retry) FormatPrice(symbol string, price float64) string {
	return r.next.FormatPrice(symbol, price)
}

func (r *Retry) FormatQuantity(symbol string, qty float64) string {
	return r.next.FormatQuantity(symbol, qty)
}

// Chunker splits large candle requests into pages of at most max candles.
type Chunker struct {
	next Exchange
	max  int
}

func NewChunker(next Exchange, max int) *Chunker {
	if max <= 0 {
		max = 1000
	}
	return &Chunker{next: next, max: max}
}

func (c *Chunker) GetCandles(ctx context.Context, symbol string, iv market.Interval, since time.Time, limit int) ([]market.Candle, error) {
	if limit <= c.max {
		return c.next.GetCandles(ctx, symbol, iv, since, limit)
	}
	out := make([]market.Candle, 0, limit)
	cursor := iv.Align(since)
	remaining := limit
	for remaining > 0 {
		n := remaining
		if n > c.max {
			n = c.max
		}
		page, err := c.next.GetCandles(ctx, symbol, iv, cursor, n)
		if err != nil {
			return nil, err
		}
		if err := CheckContract(page, iv, cursor, n); err != nil {
			return nil, err
		}
		out = append(out, page...)
		cursor = cursor.Add(time.Duration(n) * iv.Duration())
		remaining -= n
	}
	return out, nil
}

func (c *Chunker) FormatPrice(symbol string, price float64) string {
	return c.next.FormatPrice(symbol, price)
}

func (c *Chunker) FormatQuantity(symbol string, qty float64) string {
	return c.next.FormatQuantity(symbol, qty)
}

// Guard refuses fetches reaching past a movable clamp. Backtest drivers
// hand a guarded exchange to strategies and advance the clamp frame by
// frame, so a strategy can never peek at candles it could not have seen.
type Guard struct {
	next Exchange

	mu  sync.Mutex
	now time.Time
}

func NewGuard(next Exchange) *Guard {
	return &Guard{next: next}
}

// SetNow moves the clamp to the driver's current frame time.
func (g *Guard) SetNow(t time.Time) {
	g.mu.Lock()
	g.now = t
	g.mu.Unlock()
}

func (g *Guard) GetCandles(ctx context.Context, symbol string, iv market.Interval, since time.Time, limit int) ([]market.Candle, error) {
	g.mu.Lock()
	now := g.now
	g.mu.Unlock()

	end := iv.Align(since).Add(time.Duration(limit) * iv.Duration())
	if !now.IsZero() && end.After(now) {
		return nil, fmt.Errorf("%w: request ends %s, frame is %s",
			ErrLookAhead, end.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return g.next.GetCandles(ctx, symbol, iv, since, limit)
}

func (g *Guard) FormatPrice(symbol string, price float64) string {
	return g.next.FormatPrice(symbol, price)
}

func (g *Guard) FormatQuantity(symbol string, qty float64) string {
	return g.next.FormatQuantity(symbol, qty)
}
