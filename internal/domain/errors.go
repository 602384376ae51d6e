package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type RejectReason string

const (
	RejectPriceUnavailable    RejectReason = "price_unavailable"
	RejectInvalidSize         RejectReason = "invalid_size"
	RejectInvalidLimitPrice   RejectReason = "invalid_limit_price"
	RejectInsufficientBalance RejectReason = "insufficient_balance"
	RejectInvalidStopLoss     RejectReason = "invalid_stop_loss"
	RejectInvalidTakeProfit   RejectReason = "invalid_take_profit"
)

// OrderRejectedError is a user-correctable validation failure. It is returned
// to the caller for display; account and position state are left untouched.
type OrderRejectedError struct {
	Reason  RejectReason
	Message string
}

func (e *OrderRejectedError) Error() string {
	return e.Message
}
