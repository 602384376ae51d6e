package usecase

import "github.com/clemsytoff/tradesarace/internal/domain"

// UnrealizedPnL marks a position to the given price. A zero or negative mark
// price means "no data yet" and yields 0 rather than an error.
func UnrealizedPnL(p *domain.Position, markPrice float64) float64 {
	if markPrice <= 0 {
		return 0
	}
	return (markPrice - p.ExecutionPrice) * p.Amount * p.Side.Direction() * p.Leverage
}

// PnLPercent is the leveraged return on entry price, in percent, signed by
// position direction.
func PnLPercent(p *domain.Position, markPrice float64) float64 {
	if markPrice <= 0 {
		return 0
	}
	return ((markPrice - p.ExecutionPrice) / p.ExecutionPrice) * 100 * p.Side.Direction() * p.Leverage
}

// AggregatePnL sums unrealized PnL over a position set, looking each
// position's market up in prices. Markets with no known price contribute 0.
func AggregatePnL(positions []*domain.Position, prices map[string]float64) float64 {
	total := 0.0
	for _, p := range positions {
		total += UnrealizedPnL(p, prices[p.Market])
	}
	return total
}
