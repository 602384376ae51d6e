package domain

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Direction returns +1 for longs and -1 for shorts.
func (s Side) Direction() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStopLimit OrderType = "stop-limit"
)

// Position is one open leveraged exposure on one market. All fields are
// immutable after creation; a position only ever leaves the open set whole,
// there are no partial closes.
type Position struct {
	ID             string    `json:"id"`
	Market         string    `json:"market"`
	Side           Side      `json:"side"`
	OrderType      OrderType `json:"orderType"`
	Leverage       float64   `json:"leverage"`
	Amount         float64   `json:"amount"`
	ExecutionPrice float64   `json:"executionPrice"`
	StopLoss       *float64  `json:"stopLoss,omitempty"`
	TakeProfit     *float64  `json:"takeProfit,omitempty"`
	PlacedAt       time.Time `json:"placedAt"`
}

// OrderRequest is a proposed order as submitted by the user, before
// validation. Zero values for LimitPrice, StopLoss and TakeProfit mean
// "not set"; the validator converts set triggers into explicit pointers on
// the accepted Position.
type OrderRequest struct {
	Market     string    `json:"market"`
	Side       Side      `json:"side"`
	OrderType  OrderType `json:"orderType"`
	Leverage   float64   `json:"leverage"`
	Amount     float64   `json:"amount"`
	LimitPrice float64   `json:"limitPrice,omitempty"`
	StopLoss   float64   `json:"stopLoss,omitempty"`
	TakeProfit float64   `json:"takeProfit,omitempty"`
}

// SanitizePositions filters a decoded position set down to records the engine
// math can trust: positive amount, price and leverage, a valid side and a
// unique id. Legacy records that stored sides as "buy"/"sell" are normalized.
// Missing timestamps default to now. Malformed records are dropped, not
// repaired, so they never enter the open set.
func SanitizePositions(positions []*Position) []*Position {
	seen := make(map[string]bool, len(positions))
	out := make([]*Position, 0, len(positions))
	for _, p := range positions {
		if p == nil {
			continue
		}
		switch p.Side {
		case "buy":
			p.Side = SideLong
		case "sell":
			p.Side = SideShort
		}
		if !p.Side.Valid() {
			continue
		}
		if p.ID == "" || seen[p.ID] {
			continue
		}
		if p.Amount <= 0 || p.ExecutionPrice <= 0 || p.Leverage <= 0 {
			continue
		}
		if p.StopLoss != nil && *p.StopLoss <= 0 {
			p.StopLoss = nil
		}
		if p.TakeProfit != nil && *p.TakeProfit <= 0 {
			p.TakeProfit = nil
		}
		if p.PlacedAt.IsZero() {
			p.PlacedAt = time.Now().UTC()
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
