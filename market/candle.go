package market

import "time"

// Candle is one OHLCV bar. OpenTime is aligned to the interval boundary
// (floor division of the epoch).
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// CloseTime is the first instant after the candle.
func (c Candle) CloseTime(iv Interval) time.Time {
	return c.OpenTime.Add(iv.Duration())
}

// Typical is the (H+L+C)/3 price used for VWAP weighting.
func (c Candle) Typical() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// VWAP is the volume-weighted average of the typical price. When total
// volume is zero it falls back to the simple mean of closes.
func VWAP(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var pv, vol float64
	for _, c := range candles {
		pv += c.Typical() * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		var sum float64
		for _, c := range candles {
			sum += c.Close
		}
		return sum / float64(len(candles))
	}
	return pv / vol
}

// Resample aggregates one-minute candles into iv-sized candles. Input must
// be ordered by OpenTime. Buckets with no source candles are skipped.
func Resample(m1 []Candle, iv Interval) []Candle {
	if iv == M1 || len(m1) == 0 {
		return m1
	}
	var out []Candle
	var cur Candle
	var open bool
	for _, c := range m1 {
		bucket := iv.Align(c.OpenTime)
		if !open || !bucket.Equal(cur.OpenTime) {
			if open {
				out = append(out, cur)
			}
			cur = Candle{OpenTime: bucket, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
			open = true
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	if open {
		out = append(out, cur)
	}
	return out
}
