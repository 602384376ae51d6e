package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemsytoff/tradesarace/internal/domain"
	"github.com/clemsytoff/tradesarace/internal/infrastructure/storage"
)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newUser(email string) *domain.User {
	return &domain.User{
		ID:           uuid.NewString(),
		Name:         "trader",
		Email:        email,
		PasswordHash: "$2a$10$hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func fptr(v float64) *float64 { return &v }

func TestCreateAndGetUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	u := newUser("trader@example.com")
	require.NoError(t, store.CreateUser(ctx, u))

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)

	byEmail, err := store.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, newUser("dup@example.com")))
	err := store.CreateUser(ctx, newUser("dup@example.com"))
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestGetUserNotFound(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = store.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// A freshly registered user starts from the default wallet with no open
// positions.
func TestLoadStateNewUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	u := newUser("fresh@example.com")
	require.NoError(t, store.CreateUser(ctx, u))

	wallet, positions, err := store.LoadState(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWallet(), wallet)
	assert.Empty(t, positions)
}

func TestSaveAndLoadStateRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	u := newUser("roundtrip@example.com")
	require.NoError(t, store.CreateUser(ctx, u))

	placedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	wallet := domain.Wallet{USDBalance: 17500.25, BTCBalance: 0.35, Bonus: 185}
	positions := []*domain.Position{
		{
			ID:             "pos-1",
			Market:         "BTCUSD",
			Side:           domain.SideLong,
			OrderType:      domain.OrderTypeMarket,
			Leverage:       10,
			Amount:         0.5,
			ExecutionPrice: 50000,
			StopLoss:       fptr(48000),
			TakeProfit:     fptr(55000),
			PlacedAt:       placedAt,
		},
		{
			ID:             "pos-2",
			Market:         "ETHUSD",
			Side:           domain.SideShort,
			OrderType:      domain.OrderTypeLimit,
			Leverage:       5,
			Amount:         2,
			ExecutionPrice: 3000,
			PlacedAt:       placedAt,
		},
	}

	require.NoError(t, store.SaveState(ctx, u.ID, wallet, positions))

	gotWallet, gotPositions, err := store.LoadState(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet, gotWallet)
	require.Len(t, gotPositions, 2)

	first := gotPositions[0]
	assert.Equal(t, "pos-1", first.ID)
	assert.Equal(t, domain.SideLong, first.Side)
	require.NotNil(t, first.StopLoss)
	assert.Equal(t, 48000.0, *first.StopLoss)
	require.NotNil(t, first.TakeProfit)
	assert.Equal(t, 55000.0, *first.TakeProfit)
	assert.True(t, first.PlacedAt.Equal(placedAt))

	second := gotPositions[1]
	assert.Equal(t, domain.SideShort, second.Side)
	assert.Nil(t, second.StopLoss)
	assert.Nil(t, second.TakeProfit)
}

// Records that would break the engine are filtered out on load rather than
// surfaced.
func TestLoadStateDropsMalformedPositions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	u := newUser("malformed@example.com")
	require.NoError(t, store.CreateUser(ctx, u))

	positions := []*domain.Position{
		{ID: "bad", Market: "BTCUSD", Side: domain.SideLong, Leverage: 0, Amount: 1, ExecutionPrice: 50000},
		{ID: "good", Market: "BTCUSD", Side: domain.SideLong, Leverage: 10, Amount: 1, ExecutionPrice: 50000, PlacedAt: time.Now().UTC()},
	}
	require.NoError(t, store.SaveState(ctx, u.ID, domain.DefaultWallet(), positions))

	_, got, err := store.LoadState(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)
}

func TestSaveStateUnknownUser(t *testing.T) {
	store := newStore(t)
	err := store.SaveState(context.Background(), "missing", domain.DefaultWallet(), nil)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestListWallets(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := newUser("a@example.com")
	b := newUser("b@example.com")
	require.NoError(t, store.CreateUser(ctx, a))
	require.NoError(t, store.CreateUser(ctx, b))

	richer := domain.Wallet{USDBalance: 31000}
	require.NoError(t, store.SaveState(ctx, b.ID, richer, nil))

	entries, err := store.ListWallets(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]domain.Wallet{}
	for _, e := range entries {
		byID[e.UserID] = e.Wallet
	}
	assert.Equal(t, domain.DefaultWallet(), byID[a.ID])
	assert.Equal(t, richer, byID[b.ID])
}
