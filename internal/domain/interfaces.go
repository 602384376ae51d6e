package domain

import "context"

// UserRepository defines storage operations for user records.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// StateRepository persists the wallet and open positions for one user.
// Implementations must round-trip every Position field, including timestamps,
// and must drop malformed records on load so the engine only ever sees
// well-formed state.
type StateRepository interface {
	LoadState(ctx context.Context, userID string) (Wallet, []*Position, error)
	SaveState(ctx context.Context, userID string, wallet Wallet, positions []*Position) error
	ListWallets(ctx context.Context) ([]WalletEntry, error)
}

// PriceSource delivers mark prices. A price of 0 means "unknown"; consumers
// suppress PnL and margin computation that depends on it.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, market string) (float64, error)
	OnPriceUpdate(callback func(market string, price float64))
	Subscribe(markets []string) error
}
