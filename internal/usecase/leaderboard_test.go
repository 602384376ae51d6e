package usecase_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemsytoff/tradesarace/internal/domain"
	"github.com/clemsytoff/tradesarace/internal/usecase"
)

func entry(id string, balance float64) domain.WalletEntry {
	return domain.WalletEntry{UserID: id, Name: id, Wallet: domain.Wallet{USDBalance: balance}}
}

func TestRankWallets(t *testing.T) {
	entries := []domain.WalletEntry{
		entry("low", 5000),
		entry("high", 31000),
		entry("mid", 20000),
	}

	ranked := usecase.RankWallets(entries, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].UserID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "mid", ranked[1].UserID)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, "low", ranked[2].UserID)
	assert.Equal(t, 3, ranked[2].Rank)
}

// Equal balances keep their input order.
func TestRankWalletsStableTies(t *testing.T) {
	entries := []domain.WalletEntry{
		entry("first", 20000),
		entry("second", 20000),
		entry("third", 20000),
	}

	ranked := usecase.RankWallets(entries, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "first", ranked[0].UserID)
	assert.Equal(t, "second", ranked[1].UserID)
	assert.Equal(t, "third", ranked[2].UserID)
}

func TestRankWalletsLimits(t *testing.T) {
	var entries []domain.WalletEntry
	for i := 0; i < 30; i++ {
		entries = append(entries, entry(fmt.Sprintf("u%d", i), float64(i)))
	}

	assert.Len(t, usecase.RankWallets(entries, 0), 10)  // default
	assert.Len(t, usecase.RankWallets(entries, 5), 5)
	assert.Len(t, usecase.RankWallets(entries, 100), 25) // capped
}
