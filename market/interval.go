package market

import (
	"fmt"
	"time"
)

// Interval is a strategy timeframe.
type Interval string

const (
	M1  Interval = "1m"
	M3  Interval = "3m"
	M5  Interval = "5m"
	M15 Interval = "15m"
	M30 Interval = "30m"
	H1  Interval = "1h"
)

var intervalDurations = map[Interval]time.Duration{
	M1:  time.Minute,
	M3:  3 * time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
}

// ParseInterval validates s against the supported timeframes.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if !iv.Valid() {
		return "", fmt.Errorf("market: unknown interval %q", s)
	}
	return iv, nil
}

func (iv Interval) Valid() bool {
	_, ok := intervalDurations[iv]
	return ok
}

// Duration is the span of one candle.
func (iv Interval) Duration() time.Duration {
	return intervalDurations[iv]
}

// Align floors t to the interval boundary.
func (iv Interval) Align(t time.Time) time.Time {
	d := iv.Duration()
	if d <= 0 {
		return t
	}
	ms := t.UnixMilli()
	return time.UnixMilli(ms - ms%d.Milliseconds()).UTC()
}
