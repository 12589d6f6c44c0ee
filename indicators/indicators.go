// Package indicators provides the streaming indicators used by the bundled
// strategies. Each indicator is fed one value (or candle) at a time and
// reports Ready once its warm-up window is full.
package indicators

import "github.com/rustyeddy/sigrun/market"

// SMA is a simple moving average over a fixed window.
type SMA struct {
	period int
	buf    []float64
	next   int
	full   bool
	sum    float64
}

func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{period: period, buf: make([]float64, period)}
}

func (s *SMA) Update(v float64) float64 {
	if s.full {
		s.sum -= s.buf[s.next]
	}
	s.buf[s.next] = v
	s.sum += v
	s.next++
	if s.next == s.period {
		s.next = 0
		s.full = true
	}
	return s.Value()
}

func (s *SMA) Ready() bool { return s.full }

func (s *SMA) Value() float64 {
	n := s.period
	if !s.full {
		n = s.next
		if n == 0 {
			return 0
		}
	}
	return s.sum / float64(n)
}

// EMA is an exponential moving average seeded with the SMA of the first
// period values.
type EMA struct {
	period int
	k      float64
	value  float64
	warm   int
	sum    float64
}

func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{period: period, k: 2 / float64(period+1)}
}

func (e *EMA) Update(v float64) float64 {
	if e.warm < e.period {
		e.warm++
		e.sum += v
		e.value = e.sum / float64(e.warm)
		return e.value
	}
	e.value = v*e.k + e.value*(1-e.k)
	return e.value
}

func (e *EMA) Ready() bool    { return e.warm >= e.period }
func (e *EMA) Value() float64 { return e.value }

// ATR is Wilder's average true range over candles.
type ATR struct {
	period    int
	prevClose float64
	seen      int
	sum       float64
	value     float64
}

func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{period: period}
}

func (a *ATR) Update(c market.Candle) float64 {
	tr := c.High - c.Low
	if a.seen > 0 {
		if hc := abs(c.High - a.prevClose); hc > tr {
			tr = hc
		}
		if lc := abs(c.Low - a.prevClose); lc > tr {
			tr = lc
		}
	}
	a.prevClose = c.Close
	a.seen++

	if a.seen <= a.period {
		a.sum += tr
		a.value = a.sum / float64(a.seen)
		return a.value
	}
	a.value = (a.value*float64(a.period-1) + tr) / float64(a.period)
	return a.value
}

func (a *ATR) Ready() bool    { return a.seen >= a.period }
func (a *ATR) Value() float64 { return a.value }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
