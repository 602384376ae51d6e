package usecase

import "github.com/clemsytoff/tradesarace/internal/domain"

type TriggerReason string

const (
	TriggerStopLoss   TriggerReason = "stop-loss"
	TriggerTakeProfit TriggerReason = "take-profit"
)

// checkTriggers reports whether the mark price breaches the position's
// stop-loss or take-profit. Both conditions are evaluated on every tick but a
// position closes at most once; stop-loss wins the label when both trigger at
// the same price. A position with neither field set never auto-closes.
func checkTriggers(p *domain.Position, price float64) (TriggerReason, bool) {
	reason := TriggerReason("")
	if p.TakeProfit != nil {
		if p.Side == domain.SideLong && price >= *p.TakeProfit {
			reason = TriggerTakeProfit
		}
		if p.Side == domain.SideShort && price <= *p.TakeProfit {
			reason = TriggerTakeProfit
		}
	}
	if p.StopLoss != nil {
		if p.Side == domain.SideLong && price <= *p.StopLoss {
			reason = TriggerStopLoss
		}
		if p.Side == domain.SideShort && price >= *p.StopLoss {
			reason = TriggerStopLoss
		}
	}
	return reason, reason != ""
}
