package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/sigrun/market"
	"github.com/rustyeddy/sigrun/pkg/clock"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// flatSeries builds n one-minute candles at a constant price.
func flatSeries(n int, price float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			OpenTime: t0.Add(time.Duration(i) * time.Minute),
			Open:     price, High: price, Low: price, Close: price,
			Volume: 1,
		}
	}
	return out
}

func TestStatic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := NewStatic("BTCUSDT", flatSeries(120, 50000), 2)
	require.NoError(t, err)

	t.Run("contract first candle opens at aligned since", func(t *testing.T) {
		t.Parallel()

		since := t0.Add(10*time.Minute + 30*time.Second)
		got, err := st.GetCandles(ctx, "BTCUSDT", market.M1, since, 5)
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.True(t, got[0].OpenTime.Equal(t0.Add(10*time.Minute)))
	})

	t.Run("resamples to larger intervals", func(t *testing.T) {
		t.Parallel()

		got, err := st.GetCandles(ctx, "BTCUSDT", market.M15, t0, 4)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, 15.0, got[0].Volume) // 15 one-minute candles merged
		assert.True(t, got[3].OpenTime.Equal(t0.Add(45*time.Minute)))
	})

	t.Run("insufficient history fails", func(t *testing.T) {
		t.Parallel()

		_, err := st.GetCandles(ctx, "BTCUSDT", market.M1, t0.Add(110*time.Minute), 20)
		require.Error(t, err)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		t.Parallel()

		_, err := st.GetCandles(ctx, "ETHUSDT", market.M1, t0, 1)
		require.Error(t, err)
	})

	t.Run("series with gap rejected", func(t *testing.T) {
		t.Parallel()

		broken := flatSeries(10, 1)
		broken[5].OpenTime = broken[5].OpenTime.Add(time.Minute)
		_, err := NewStatic("X", broken, 2)
		require.Error(t, err)
	})

	t.Run("formatting", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "50000.12", st.FormatPrice("BTCUSDT", 50000.119))
	})
}

func TestAveragePrice(t *testing.T) {
	t.Parallel()

	series := flatSeries(10, 100)
	// Last candle trades higher on more volume.
	series[9].High, series[9].Low, series[9].Close, series[9].Volume = 110, 106, 107, 3
	st, err := NewStatic("BTCUSDT", series, 2)
	require.NoError(t, err)

	now := t0.Add(9*time.Minute + 10*time.Second)
	got, err := AveragePrice(context.Background(), st, "BTCUSDT", now, 5)
	require.NoError(t, err)

	// 4 candles at typical 100 vol 1, one at typical 107.666 vol 3.
	want := (100*4 + (110+106+107)/3.0*3) / 7.0
	assert.InDelta(t, want, got, 1e-9)
}

// countingExchange records per-request limits and can fail n times.
type countingExchange struct {
	*Static

	mu       sync.Mutex
	limits   []int
	failures int
}

func (c *countingExchange) GetCandles(ctx context.Context, symbol string, iv market.Interval, since time.Time, limit int) ([]market.Candle, error) {
	c.mu.Lock()
	c.limits = append(c.limits, limit)
	fail := c.failures > 0
	if fail {
		c.failures--
	}
	c.mu.Unlock()
	if fail {
		return nil, errors.New("upstream hiccup")
	}
	return c.Static.GetCandles(ctx, symbol, iv, since, limit)
}

func TestChunker(t *testing.T) {
	t.Parallel()

	st, err := NewStatic("BTCUSDT", flatSeries(250, 50000), 2)
	require.NoError(t, err)
	counting := &countingExchange{Static: st}
	ch := NewChunker(counting, 100)

	got, err := ch.GetCandles(context.Background(), "BTCUSDT", market.M1, t0, 250)
	require.NoError(t, err)
	require.Len(t, got, 250)
	assert.Equal(t, []int{100, 100, 50}, counting.limits)

	// Pages are contiguous.
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].OpenTime.Equal(got[i-1].OpenTime.Add(time.Minute)), "gap at %d", i)
	}
}

func TestRetry(t *testing.T) {
	t.Parallel()

	st, err := NewStatic("BTCUSDT", flatSeries(10, 50000), 2)
	require.NoError(t, err)

	t.Run("recovers within budget", func(t *testing.T) {
		t.Parallel()

		counting := &countingExchange{Static: st, failures: 2}
		r := NewRetry(counting, 3, time.Millisecond, clock.NewFake(t0), zerolog.Nop())
		got, err := r.GetCandles(context.Background(), "BTCUSDT", market.M1, t0, 5)
		require.NoError(t, err)
		assert.Len(t, got, 5)
		assert.Len(t, counting.limits, 3)
	})

	t.Run("exhausts budget", func(t *testing.T) {
		t.Parallel()

		counting := &countingExchange{Static: st, failures: 10}
		r := NewRetry(counting, 2, time.Millisecond, clock.NewFake(t0), zerolog.Nop())
		_, err := r.GetCandles(context.Background(), "BTCUSDT", market.M1, t0, 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "3 attempts")
	})
}

func TestGuard(t *testing.T) {
	t.Parallel()

	st, err := NewStatic("BTCUSDT", flatSeries(120, 50000), 2)
	require.NoError(t, err)
	g := NewGuard(st)
	g.SetNow(t0.Add(60 * time.Minute))

	ctx := context.Background()

	// History up to the clamp is fine.
	_, err = g.GetCandles(ctx, "BTCUSDT", market.M1, t0.Add(50*time.Minute), 10)
	require.NoError(t, err)

	// One candle past the clamp is a look-ahead.
	_, err = g.GetCandles(ctx, "BTCUSDT", market.M1, t0.Add(51*time.Minute), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLookAhead)

	// Advancing the clamp admits the same request.
	g.SetNow(t0.Add(61 * time.Minute))
	_, err = g.GetCandles(ctx, "BTCUSDT", market.M1, t0.Add(51*time.Minute), 10)
	require.NoError(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	st, err := NewStatic("BTCUSDT", flatSeries(5, 1), 2)
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, r.Register("file", st))
	require.Error(t, r.Register("file", st))

	got, err := r.Get("file")
	require.NoError(t, err)
	assert.Same(t, st, got)

	_, err = r.Get("binance")
	require.Error(t, err)
}

func TestCheckContract(t *testing.T) {
	t.Parallel()

	candles := flatSeries(3, 1)
	require.NoError(t, CheckContract(candles, market.M1, t0.Add(30*time.Second), 3))
	require.Error(t, CheckContract(candles, market.M1, t0, 4))
	require.Error(t, CheckContract(candles, market.M1, t0.Add(time.Minute), 3))
}

func ExampleAveragePrice() {
	st, _ := NewStatic("BTCUSDT", flatSeries(5, 50000), 2)
	price, _ := AveragePrice(context.Background(), st, "BTCUSDT", t0.Add(4*time.Minute), 5)
	fmt.Println(st.FormatPrice("BTCUSDT", price))
	// Output: 50000.00
}
