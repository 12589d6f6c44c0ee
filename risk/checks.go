package risk

import (
	"fmt"
	"time"

	"github.com/rustyeddy/sigrun/signal"
)

// MaxOpenPositions rejects a proposal once n positions are held anywhere
// in the portfolio.
func MaxOpenPositions(n int) Validator {
	return Validator{
		Name: "max-active-positions",
		Check: func(_ *signal.Proposal, snap Snapshot, _ float64, _ time.Time) *Rejection {
			if open := snap.OpenCount(""); open >= n {
				return &Rejection{Reason: fmt.Sprintf("open positions %d >= max %d", open, n)}
			}
			return nil
		},
	}
}

// MaxPerSymbol bounds concurrent positions on one symbol. The symbol is
// resolved by the engine before the check runs, so the validator closes
// over it.
func MaxPerSymbol(symbol string, n int) Validator {
	return Validator{
		Name: "max-per-symbol",
		Check: func(_ *signal.Proposal, snap Snapshot, _ float64, _ time.Time) *Rejection {
			if open := snap.OpenCount(symbol); open >= n {
				return &Rejection{Reason: fmt.Sprintf("%s holds %d positions, max %d", symbol, open, n)}
			}
			return nil
		},
	}
}

// MinRewardRisk rejects proposals whose take-profit distance does not pay
// for the stop-loss distance by the given ratio.
func MinRewardRisk(ratio float64) Validator {
	return Validator{
		Name: "min-reward-risk",
		Check: func(p *signal.Proposal, _ Snapshot, price float64, _ time.Time) *Rejection {
			open := price
			if p.Scheduled() {
				open = p.PriceOpen
			}
			risk := open - p.PriceStopLoss
			reward := p.PriceTakeProfit - open
			if p.Position == signal.Short {
				risk, reward = -risk, -reward
			}
			if risk <= 0 {
				return &Rejection{Reason: "stop-loss on the wrong side of entry"}
			}
			if rr := reward / risk; rr < ratio {
				return &Rejection{Reason: fmt.Sprintf("reward/risk %.2f below minimum %.2f", rr, ratio)}
			}
			return nil
		},
	}
}
