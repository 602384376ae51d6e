package usecase

import "github.com/clemsytoff/tradesarace/internal/domain"

// Margin math. Pure functions, no side effects. Positions reaching these
// helpers are well-formed (leverage > 0); the order validator and the
// persistence boundary enforce that upstream.

// Notional values a position at its entry price.
func Notional(p *domain.Position) float64 {
	return p.Amount * p.ExecutionPrice
}

// Margin is the capital committed to support a position.
func Margin(p *domain.Position) float64 {
	return Notional(p) / p.Leverage
}

// MarginInUse sums committed margin over every open position the account
// holds, across all markets. The balance pool is shared, so margin on one
// market reduces what is available on every other.
func MarginInUse(positions []*domain.Position) float64 {
	total := 0.0
	for _, p := range positions {
		total += Margin(p)
	}
	return total
}

// AvailableBalance is the cash left to margin new orders. Unrealized gains on
// open positions are not credited here.
func AvailableBalance(wallet domain.Wallet, positions []*domain.Position) float64 {
	return wallet.USDBalance - MarginInUse(positions)
}
