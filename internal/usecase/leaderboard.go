package usecase

import (
	"sort"

	"github.com/clemsytoff/tradesarace/internal/domain"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 25
)

type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	UserID     string  `json:"id"`
	Name       string  `json:"name"`
	USDBalance float64 `json:"usdBalance"`
}

// RankWallets orders entries by USD balance descending; ties keep their input
// order. Ranks start at 1. limit <= 0 falls back to the default, anything
// above the cap is clamped.
func RankWallets(entries []domain.WalletEntry, limit int) []LeaderboardEntry {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	ranked := append([]domain.WalletEntry(nil), entries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Wallet.USDBalance > ranked[j].Wallet.USDBalance
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]LeaderboardEntry, len(ranked))
	for i, e := range ranked {
		out[i] = LeaderboardEntry{
			Rank:       i + 1,
			UserID:     e.UserID,
			Name:       e.Name,
			USDBalance: e.Wallet.USDBalance,
		}
	}
	return out
}
