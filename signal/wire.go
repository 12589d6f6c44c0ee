package signal

import (
	"encoding/json"
	"time"
)

// activeWire is the persisted document. Field names are a compatibility
// contract; timestamps are Unix milliseconds so pendingAt round-trips
// unchanged across restarts.
type activeWire struct {
	ID                      string   `json:"id"`
	Position                Position `json:"position"`
	PriceOpen               float64  `json:"priceOpen"`
	PriceTakeProfit         float64  `json:"priceTakeProfit"`
	PriceStopLoss           float64  `json:"priceStopLoss"`
	OriginalPriceStopLoss   float64  `json:"originalPriceStopLoss"`
	OriginalPriceTakeProfit float64  `json:"originalPriceTakeProfit"`
	PendingAt               int64    `json:"pendingAt"`
	ScheduledAt             int64    `json:"scheduledAt"`
	MinuteEstimatedTime     float64  `json:"minuteEstimatedTime"`
	ExchangeName            string   `json:"exchangeName"`
	StrategyName            string   `json:"strategyName"`
	Symbol                  string   `json:"symbol"`
	FrameName               string   `json:"frameName,omitempty"`
	Note                    string   `json:"note"`
	PartialClosedPct        float64  `json:"partialClosedPct"`
	IsScheduled             bool     `json:"_isScheduled,omitempty"`
	CancelID                string   `json:"cancelId,omitempty"`
}

func (a *Active) wire() activeWire {
	return activeWire{
		ID:                      a.ID,
		Position:                a.Position,
		PriceOpen:               a.PriceOpen,
		PriceTakeProfit:         a.PriceTakeProfit,
		PriceStopLoss:           a.PriceStopLoss,
		OriginalPriceStopLoss:   a.OriginalPriceStopLoss,
		OriginalPriceTakeProfit: a.OriginalPriceTakeProfit,
		PendingAt:               a.PendingAt.UnixMilli(),
		ScheduledAt:             a.ScheduledAt.UnixMilli(),
		MinuteEstimatedTime:     a.MinuteEstimatedTime,
		ExchangeName:            a.ExchangeName,
		StrategyName:            a.StrategyName,
		Symbol:                  a.Symbol,
		FrameName:               a.FrameName,
		Note:                    a.Note,
		PartialClosedPct:        a.PartialClosedPct,
	}
}

func (a *Active) fromWire(w activeWire) {
	a.ID = w.ID
	a.Position = w.Position
	a.PriceOpen = w.PriceOpen
	a.PriceTakeProfit = w.PriceTakeProfit
	a.PriceStopLoss = w.PriceStopLoss
	a.OriginalPriceStopLoss = w.OriginalPriceStopLoss
	a.OriginalPriceTakeProfit = w.OriginalPriceTakeProfit
	a.PendingAt = time.UnixMilli(w.PendingAt).UTC()
	a.ScheduledAt = time.UnixMilli(w.ScheduledAt).UTC()
	a.MinuteEstimatedTime = w.MinuteEstimatedTime
	a.ExchangeName = w.ExchangeName
	a.StrategyName = w.StrategyName
	a.Symbol = w.Symbol
	a.FrameName = w.FrameName
	a.Note = w.Note
	a.PartialClosedPct = w.PartialClosedPct
}

func (a Active) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.wire())
}

func (a *Active) UnmarshalJSON(data []byte) error {
	var w activeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.fromWire(w)
	return nil
}

func (s Scheduled) MarshalJSON() ([]byte, error) {
	w := s.Active.wire()
	w.IsScheduled = true
	w.CancelID = s.CancelID
	return json.Marshal(w)
}

func (s *Scheduled) UnmarshalJSON(data []byte) error {
	var w activeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Active.fromWire(w)
	s.CancelID = w.CancelID
	return nil
}
