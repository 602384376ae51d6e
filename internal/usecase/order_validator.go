package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clemsytoff/tradesarace/internal/domain"
)

// MinOrderSize is the smallest accepted order size in base-asset units.
const MinOrderSize = 0.001

// OrderValidator checks proposed orders against market state and available
// margin. It has no side effects: on success it returns a fresh Position and
// the caller inserts it into the open set.
type OrderValidator struct {
	now func() time.Time
}

func NewOrderValidator() *OrderValidator {
	return &OrderValidator{now: time.Now}
}

// Validate runs the checks in order and fails fast on the first violation.
// The returned error is always a *domain.OrderRejectedError.
func (v *OrderValidator) Validate(
	req domain.OrderRequest,
	markPrice float64,
	wallet domain.Wallet,
	open []*domain.Position,
) (*domain.Position, error) {
	leverage := req.Leverage
	if leverage <= 0 {
		leverage = 1
	}

	execPrice := markPrice
	if req.OrderType != domain.OrderTypeMarket && req.LimitPrice > 0 {
		execPrice = req.LimitPrice
	}

	if markPrice <= 0 {
		return nil, &domain.OrderRejectedError{
			Reason:  domain.RejectPriceUnavailable,
			Message: "Live price is not available yet.",
		}
	}
	if req.Amount <= 0 {
		return nil, &domain.OrderRejectedError{
			Reason:  domain.RejectInvalidSize,
			Message: "Enter a valid order size.",
		}
	}
	if req.Amount < MinOrderSize {
		return nil, &domain.OrderRejectedError{
			Reason:  domain.RejectInvalidSize,
			Message: fmt.Sprintf("Minimum order size is %g.", MinOrderSize),
		}
	}
	if req.OrderType != domain.OrderTypeMarket && req.LimitPrice <= 0 {
		return nil, &domain.OrderRejectedError{
			Reason:  domain.RejectInvalidLimitPrice,
			Message: "Limit price must be greater than 0.",
		}
	}

	available := AvailableBalance(wallet, open)
	required := req.Amount * execPrice / leverage
	if required > available {
		return nil, &domain.OrderRejectedError{
			Reason:  domain.RejectInsufficientBalance,
			Message: fmt.Sprintf("Insufficient balance. Available: $%.2f", available),
		}
	}

	if req.StopLoss > 0 {
		if req.Side == domain.SideLong && req.StopLoss >= execPrice {
			return nil, &domain.OrderRejectedError{
				Reason:  domain.RejectInvalidStopLoss,
				Message: "Stop loss must be below entry price for long positions.",
			}
		}
		if req.Side == domain.SideShort && req.StopLoss <= execPrice {
			return nil, &domain.OrderRejectedError{
				Reason:  domain.RejectInvalidStopLoss,
				Message: "Stop loss must be above entry price for short positions.",
			}
		}
	}
	if req.TakeProfit > 0 {
		if req.Side == domain.SideLong && req.TakeProfit <= execPrice {
			return nil, &domain.OrderRejectedError{
				Reason:  domain.RejectInvalidTakeProfit,
				Message: "Take profit must be above entry price for long positions.",
			}
		}
		if req.Side == domain.SideShort && req.TakeProfit >= execPrice {
			return nil, &domain.OrderRejectedError{
				Reason:  domain.RejectInvalidTakeProfit,
				Message: "Take profit must be below entry price for short positions.",
			}
		}
	}

	pos := &domain.Position{
		ID:             uuid.NewString(),
		Market:         req.Market,
		Side:           req.Side,
		OrderType:      req.OrderType,
		Leverage:       leverage,
		Amount:         req.Amount,
		ExecutionPrice: execPrice,
		PlacedAt:       v.now().UTC(),
	}
	if req.StopLoss > 0 {
		sl := req.StopLoss
		pos.StopLoss = &sl
	}
	if req.TakeProfit > 0 {
		tp := req.TakeProfit
		pos.TakeProfit = &tp
	}
	return pos, nil
}
