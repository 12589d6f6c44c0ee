package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/sigrun/market"
)

func TestSMA(t *testing.T) {
	t.Parallel()

	s := NewSMA(3)
	assert.False(t, s.Ready())

	assert.InDelta(t, 1, s.Update(1), 1e-9)
	assert.InDelta(t, 1.5, s.Update(2), 1e-9)
	assert.InDelta(t, 2, s.Update(3), 1e-9)
	assert.True(t, s.Ready())

	// Window slides: (2+3+7)/3.
	assert.InDelta(t, 4, s.Update(7), 1e-9)
}

func TestEMA(t *testing.T) {
	t.Parallel()

	e := NewEMA(3)
	e.Update(1)
	e.Update(2)
	assert.False(t, e.Ready())
	e.Update(3) // seed SMA = 2
	assert.True(t, e.Ready())
	assert.InDelta(t, 2, e.Value(), 1e-9)

	// k = 0.5 for period 3: 4*0.5 + 2*0.5 = 3.
	assert.InDelta(t, 3, e.Update(4), 1e-9)
}

func TestATR(t *testing.T) {
	t.Parallel()

	a := NewATR(2)
	a.Update(market.Candle{High: 12, Low: 10, Close: 11})
	assert.InDelta(t, 2, a.Value(), 1e-9)

	// Gap up: true range uses previous close. max(15-13, 15-11, 13-11) = 4.
	a.Update(market.Candle{High: 15, Low: 13, Close: 14})
	assert.True(t, a.Ready())
	assert.InDelta(t, 3, a.Value(), 1e-9) // (2+4)/2

	// Wilder smoothing: (3*1 + 2)/2 = 2.5 with tr = 16-14 = 2.
	a.Update(market.Candle{High: 16, Low: 14, Close: 15})
	assert.InDelta(t, 2.5, a.Value(), 1e-9)
}
