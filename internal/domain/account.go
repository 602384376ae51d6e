package domain

import "time"

// Wallet holds the demo balances for one user. Only USDBalance takes part in
// margin math; BTCBalance and Bonus are display balances.
type Wallet struct {
	USDBalance float64 `json:"usdBalance"`
	BTCBalance float64 `json:"btcBalance"`
	Bonus      float64 `json:"bonus"`
}

// DefaultWallet is the starting wallet granted to every new user.
func DefaultWallet() Wallet {
	return Wallet{USDBalance: 20000, BTCBalance: 0.35, Bonus: 185}
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// WalletEntry is a read-only projection of one user's wallet, used by the
// leaderboard.
type WalletEntry struct {
	UserID string
	Name   string
	Wallet Wallet
}
