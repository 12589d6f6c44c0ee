package engine

import (
	"github.com/rustyeddy/sigrun/risk"
	"github.com/rustyeddy/sigrun/signal"
)

// PartialEvent is published on the partial-profit and partial-loss topics
// when a milestone level is crossed.
type PartialEvent struct {
	Signal *signal.Active
	Level  float64
	Price  float64
}

// BreakevenEvent is published when the stop-loss migrates to the entry.
type BreakevenEvent struct {
	Signal *signal.Active
	Price  float64
}

// RiskRejectionEvent carries a refused proposal.
type RiskRejectionEvent struct {
	Symbol       string
	StrategyName string
	Proposal     *signal.Proposal
	Rejection    *risk.Rejection
}

// ErrorEvent is published on the error and validation-error topics.
type ErrorEvent struct {
	Symbol       string
	StrategyName string
	Err          error
}
