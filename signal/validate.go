package signal

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid wraps every validation failure so callers can route them to
// the validation-error topic with errors.Is.
var ErrInvalid = errors.New("signal: invalid proposal")

// Limits bounds a proposal's economics. Percent values are whole percents
// (0.1 means 0.1%).
type Limits struct {
	PercentFee                   float64
	PercentSlippage              float64
	MinTakeProfitDistancePercent float64
	MinStopLossDistancePercent   float64
	MaxStopLossDistancePercent   float64
	MaxSignalLifetimeMinutes     float64
}

// MinTakeProfit is the smallest acceptable TP distance in percent: the
// round-trip costs plus the configured minimum profit margin.
func (l Limits) MinTakeProfit() float64 {
	return (l.PercentFee+l.PercentSlippage)*2 + l.MinTakeProfitDistancePercent
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Validate checks a proposal against Limits. price is the entry reference:
// the scheduled entry price when set, otherwise the current average price.
func Validate(p *Proposal, price float64, lim Limits) error {
	if p == nil {
		return fmt.Errorf("%w: nil", ErrInvalid)
	}
	if !p.Position.Valid() {
		return fmt.Errorf("%w: position %q", ErrInvalid, p.Position)
	}
	open := price
	if p.Scheduled() {
		open = p.PriceOpen
	}
	if !finitePositive(open) {
		return fmt.Errorf("%w: open price %v", ErrInvalid, open)
	}
	if !finitePositive(p.PriceTakeProfit) {
		return fmt.Errorf("%w: take-profit %v", ErrInvalid, p.PriceTakeProfit)
	}
	if !finitePositive(p.PriceStopLoss) {
		return fmt.Errorf("%w: stop-loss %v", ErrInvalid, p.PriceStopLoss)
	}
	if !finitePositive(p.MinuteEstimatedTime) || p.MinuteEstimatedTime > lim.MaxSignalLifetimeMinutes {
		return fmt.Errorf("%w: estimated time %v min outside (0, %v]",
			ErrInvalid, p.MinuteEstimatedTime, lim.MaxSignalLifetimeMinutes)
	}

	switch p.Position {
	case Long:
		if !(p.PriceTakeProfit > open && open > p.PriceStopLoss) {
			return fmt.Errorf("%w: long requires TP %v > open %v > SL %v",
				ErrInvalid, p.PriceTakeProfit, open, p.PriceStopLoss)
		}
	case Short:
		if !(p.PriceTakeProfit < open && open < p.PriceStopLoss) {
			return fmt.Errorf("%w: short requires TP %v < open %v < SL %v",
				ErrInvalid, p.PriceTakeProfit, open, p.PriceStopLoss)
		}
	}

	tpDist := math.Abs(p.PriceTakeProfit-open) / open * 100
	if tpDist < lim.MinTakeProfit() {
		return fmt.Errorf("%w: take-profit distance %.4f%% below minimum %.4f%%",
			ErrInvalid, tpDist, lim.MinTakeProfit())
	}

	slDist := math.Abs(open-p.PriceStopLoss) / open * 100
	if slDist < lim.MinStopLossDistancePercent || slDist > lim.MaxStopLossDistancePercent {
		return fmt.Errorf("%w: stop-loss distance %.4f%% outside [%.4f%%, %.4f%%]",
			ErrInvalid, slDist, lim.MinStopLossDistancePercent, lim.MaxStopLossDistancePercent)
	}

	return nil
}
