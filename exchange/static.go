package exchange

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rustyeddy/sigrun/market"
)

// Static serves candles for one symbol from an in-memory one-minute series,
// resampling to larger intervals on demand. It backs the file feed and the
// test fixtures.
type Static struct {
	symbol    string
	m1        []market.Candle
	precision int
}

// NewStatic requires m1 to be a contiguous, ordered one-minute series.
func NewStatic(symbol string, m1 []market.Candle, pricePrecision int) (*Static, error) {
	if len(m1) == 0 {
		return nil, fmt.Errorf("exchange: empty candle series for %s", symbol)
	}
	for i := 1; i < len(m1); i++ {
		want := m1[i-1].OpenTime.Add(time.Minute)
		if !m1[i].OpenTime.Equal(want) {
			return nil, fmt.Errorf("exchange: %s series gap at %s", symbol, want.Format(time.RFC3339))
		}
	}
	if pricePrecision <= 0 {
		pricePrecision = 2
	}
	return &Static{symbol: symbol, m1: m1, precision: pricePrecision}, nil
}

// Span returns the first and one-past-last instants covered by the series.
func (s *Static) Span() (time.Time, time.Time) {
	return s.m1[0].OpenTime, s.m1[len(s.m1)-1].OpenTime.Add(time.Minute)
}

func (s *Static) GetCandles(_ context.Context, symbol string, iv market.Interval, since time.Time, limit int) ([]market.Candle, error) {
	if symbol != s.symbol {
		return nil, fmt.Errorf("exchange: unknown symbol %q", symbol)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("exchange: non-positive limit %d", limit)
	}

	start := iv.Align(since)
	first := sort.Search(len(s.m1), func(i int) bool {
		return !s.m1[i].OpenTime.Before(start)
	})
	minutes := int(iv.Duration() / time.Minute)
	need := limit * minutes
	if first >= len(s.m1) || !s.m1[first].OpenTime.Equal(start) || first+need > len(s.m1) {
		return nil, fmt.Errorf("exchange: %s has no %d candles of %s from %s",
			s.symbol, limit, iv, start.Format(time.RFC3339))
	}

	out := market.Resample(s.m1[first:first+need], iv)
	if err := CheckContract(out, iv, since, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Static) FormatPrice(_ string, price float64) string {
	return strconv.FormatFloat(price, 'f', s.precision, 64)
}

func (s *Static) FormatQuantity(_ string, qty float64) string {
	return strconv.FormatFloat(qty, 'f', 8, 64)
}
