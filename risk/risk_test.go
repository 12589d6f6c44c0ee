package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/sigrun/signal"
)

func longProposal() *signal.Proposal {
	return &signal.Proposal{
		Position:            signal.Long,
		PriceTakeProfit:     51000,
		PriceStopLoss:       49000,
		MinuteEstimatedTime: 120,
	}
}

func position(id, symbol string) Position {
	return Position{
		SignalID:     id,
		Symbol:       symbol,
		StrategyName: "s",
		Position:     signal.Long,
		PriceOpen:    50000,
		OpenedAt:     time.Now(),
	}
}

func TestGateAdmitRetire(t *testing.T) {
	t.Parallel()

	gate := NewGate(NewPortfolio(), MaxOpenPositions(1))

	rej := gate.Admit(longProposal(), position("a", "BTCUSDT"))
	require.Nil(t, rej)

	// Portfolio already holds one position: the second proposal is refused.
	rej = gate.Admit(longProposal(), position("b", "ETHUSDT"))
	require.NotNil(t, rej)
	assert.Equal(t, "max-active-positions", rej.Validator)
	assert.Contains(t, rej.Reason, "1 >= max 1")

	gate.Retire("a")
	rej = gate.Admit(longProposal(), position("b", "ETHUSDT"))
	assert.Nil(t, rej)
}

func TestGateFirstRejectionShortCircuits(t *testing.T) {
	t.Parallel()

	var secondRan bool
	first := Validator{Name: "first", Check: func(*signal.Proposal, Snapshot, float64, time.Time) *Rejection {
		return &Rejection{Reason: "no"}
	}}
	second := Validator{Name: "second", Check: func(*signal.Proposal, Snapshot, float64, time.Time) *Rejection {
		secondRan = true
		return nil
	}}

	gate := NewGate(NewPortfolio(), first, second)
	rej := gate.Check(longProposal(), 50000, time.Now())
	require.NotNil(t, rej)
	assert.Equal(t, "first", rej.Validator)
	assert.False(t, secondRan)
}

func TestGateCheckDoesNotRegister(t *testing.T) {
	t.Parallel()

	portfolio := NewPortfolio()
	gate := NewGate(portfolio, MaxOpenPositions(1))

	require.Nil(t, gate.Check(longProposal(), 50000, time.Now()))
	assert.Empty(t, portfolio.Snapshot().Positions)
}

func TestMaxPerSymbol(t *testing.T) {
	t.Parallel()

	portfolio := NewPortfolio()
	gate := NewGate(portfolio, MaxPerSymbol("BTCUSDT", 1))

	require.Nil(t, gate.Admit(longProposal(), position("a", "BTCUSDT")))
	// Other symbols stay admissible.
	require.Nil(t, gate.Admit(longProposal(), position("b", "ETHUSDT")))

	rej := gate.Admit(longProposal(), position("c", "BTCUSDT"))
	require.NotNil(t, rej)
	assert.Equal(t, "max-per-symbol", rej.Validator)
}

func TestMinRewardRisk(t *testing.T) {
	t.Parallel()

	v := MinRewardRisk(1.5)

	// 1000 risk vs 1000 reward: ratio 1.0, rejected.
	p := longProposal()
	rej := v.Check(p, Snapshot{}, 50000, time.Now())
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "1.00")

	// 2000 reward vs 1000 risk admits.
	p.PriceTakeProfit = 52000
	assert.Nil(t, v.Check(p, Snapshot{}, 50000, time.Now()))

	// Short mirror.
	s := &signal.Proposal{Position: signal.Short, PriceTakeProfit: 48000, PriceStopLoss: 51000}
	assert.Nil(t, v.Check(s, Snapshot{}, 50000, time.Now()))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register("conservative", MaxOpenPositions(1), MinRewardRisk(2)))
	require.NoError(t, r.Register("throttle", MaxOpenPositions(3), MaxPerSymbol("BTCUSDT", 1)))
	require.Error(t, r.Register("conservative"))

	t.Run("single set", func(t *testing.T) {
		t.Parallel()
		vs, err := r.Resolve("conservative")
		require.NoError(t, err)
		require.Len(t, vs, 2)
		assert.Equal(t, "max-active-positions", vs[0].Name)
	})

	t.Run("union dedupes by validator name", func(t *testing.T) {
		t.Parallel()
		vs, err := r.Resolve("conservative", "throttle")
		require.NoError(t, err)
		names := make([]string, len(vs))
		for i, v := range vs {
			names[i] = v.Name
		}
		assert.Equal(t, []string{"max-active-positions", "min-reward-risk", "max-per-symbol"}, names)
	})

	t.Run("unknown set", func(t *testing.T) {
		t.Parallel()
		_, err := r.Resolve("nope")
		require.Error(t, err)
	})
}
