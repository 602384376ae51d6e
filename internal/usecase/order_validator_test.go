package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemsytoff/tradesarace/internal/domain"
	"github.com/clemsytoff/tradesarace/internal/usecase"
)

func marketOrder(side domain.Side, amount, leverage float64) domain.OrderRequest {
	return domain.OrderRequest{
		Market:    "BTCUSD",
		Side:      side,
		OrderType: domain.OrderTypeMarket,
		Leverage:  leverage,
		Amount:    amount,
	}
}

func rejectionReason(t *testing.T, err error) domain.RejectReason {
	t.Helper()
	var rejected *domain.OrderRejectedError
	require.ErrorAs(t, err, &rejected)
	return rejected.Reason
}

func TestValidateRejections(t *testing.T) {
	v := usecase.NewOrderValidator()
	wallet := domain.Wallet{USDBalance: 20000}

	tests := []struct {
		name       string
		req        domain.OrderRequest
		markPrice  float64
		wantReason domain.RejectReason
	}{
		{
			name:       "price unavailable",
			req:        marketOrder(domain.SideLong, 1, 10),
			markPrice:  0,
			wantReason: domain.RejectPriceUnavailable,
		},
		{
			name:       "zero amount",
			req:        marketOrder(domain.SideLong, 0, 10),
			markPrice:  50000,
			wantReason: domain.RejectInvalidSize,
		},
		{
			name:       "below minimum size",
			req:        marketOrder(domain.SideLong, 0.0005, 10),
			markPrice:  50000,
			wantReason: domain.RejectInvalidSize,
		},
		{
			name: "limit order without limit price",
			req: domain.OrderRequest{
				Market: "BTCUSD", Side: domain.SideLong,
				OrderType: domain.OrderTypeLimit, Leverage: 10, Amount: 1,
			},
			markPrice:  50000,
			wantReason: domain.RejectInvalidLimitPrice,
		},
		{
			name:       "insufficient balance",
			req:        marketOrder(domain.SideLong, 10, 10), // margin 50000 > 20000
			markPrice:  50000,
			wantReason: domain.RejectInsufficientBalance,
		},
		{
			name: "long stop loss at entry",
			req: func() domain.OrderRequest {
				r := marketOrder(domain.SideLong, 1, 10)
				r.StopLoss = 50000
				return r
			}(),
			markPrice:  50000,
			wantReason: domain.RejectInvalidStopLoss,
		},
		{
			name: "short stop loss below entry",
			req: func() domain.OrderRequest {
				r := marketOrder(domain.SideShort, 1, 10)
				r.StopLoss = 49000
				return r
			}(),
			markPrice:  50000,
			wantReason: domain.RejectInvalidStopLoss,
		},
		{
			name: "long take profit below entry",
			req: func() domain.OrderRequest {
				r := marketOrder(domain.SideLong, 1, 10)
				r.TakeProfit = 49000
				return r
			}(),
			markPrice:  50000,
			wantReason: domain.RejectInvalidTakeProfit,
		},
		{
			name: "short take profit at entry",
			req: func() domain.OrderRequest {
				r := marketOrder(domain.SideShort, 1, 10)
				r.TakeProfit = 50000
				return r
			}(),
			markPrice:  50000,
			wantReason: domain.RejectInvalidTakeProfit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Validate(tt.req, tt.markPrice, wallet, nil)
			assert.Nil(t, p)
			assert.Equal(t, tt.wantReason, rejectionReason(t, err))
		})
	}
}

// First failure wins: an order that is both undersized and has a bad stop
// loss reports the size problem.
func TestValidateFailFast(t *testing.T) {
	v := usecase.NewOrderValidator()
	req := marketOrder(domain.SideLong, 0, 10)
	req.StopLoss = 60000

	_, err := v.Validate(req, 50000, domain.Wallet{USDBalance: 20000}, nil)
	assert.Equal(t, domain.RejectInvalidSize, rejectionReason(t, err))
}

// Margin committed to open positions on other markets counts against the
// shared balance pool.
func TestValidateSharedMarginPool(t *testing.T) {
	v := usecase.NewOrderValidator()
	wallet := domain.Wallet{USDBalance: 10000}
	open := []*domain.Position{
		pos("ETHUSD", domain.SideLong, 2, 1, 3000), // margin 6000
	}

	// margin 5000 > 10000 - 6000 available
	_, err := v.Validate(marketOrder(domain.SideLong, 1, 10), 50000, wallet, open)
	require.Error(t, err)
	assert.Equal(t, domain.RejectInsufficientBalance, rejectionReason(t, err))
	assert.Contains(t, err.Error(), "Available: $4000.00")

	// margin 2500 fits
	p, err := v.Validate(marketOrder(domain.SideLong, 0.5, 10), 50000, wallet, open)
	require.NoError(t, err)
	require.NotNil(t, p)

	// Margin conservation: accepting never pushes committed margin past the
	// wallet balance.
	after := append(append([]*domain.Position(nil), open...), p)
	assert.LessOrEqual(t, usecase.MarginInUse(after), wallet.USDBalance)
}

func TestValidateAcceptsMarketOrder(t *testing.T) {
	v := usecase.NewOrderValidator()
	req := marketOrder(domain.SideLong, 1, 10)
	req.StopLoss = 48000
	req.TakeProfit = 55000

	p, err := v.Validate(req, 50000, domain.Wallet{USDBalance: 20000}, nil)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "BTCUSD", p.Market)
	assert.Equal(t, domain.SideLong, p.Side)
	assert.Equal(t, 50000.0, p.ExecutionPrice)
	assert.Equal(t, 10.0, p.Leverage)
	require.NotNil(t, p.StopLoss)
	assert.Equal(t, 48000.0, *p.StopLoss)
	require.NotNil(t, p.TakeProfit)
	assert.Equal(t, 55000.0, *p.TakeProfit)
	assert.False(t, p.PlacedAt.IsZero())
}

func TestValidateLimitOrderExecutionPrice(t *testing.T) {
	v := usecase.NewOrderValidator()
	req := domain.OrderRequest{
		Market:     "BTCUSD",
		Side:       domain.SideShort,
		OrderType:  domain.OrderTypeLimit,
		Leverage:   5,
		Amount:     0.1,
		LimitPrice: 52000,
	}

	p, err := v.Validate(req, 50000, domain.Wallet{USDBalance: 20000}, nil)
	require.NoError(t, err)
	assert.Equal(t, 52000.0, p.ExecutionPrice)
	assert.Nil(t, p.StopLoss)
	assert.Nil(t, p.TakeProfit)
}

// Two accepted orders never share an id.
func TestValidateUniqueIDs(t *testing.T) {
	v := usecase.NewOrderValidator()
	wallet := domain.Wallet{USDBalance: 20000}

	a, err := v.Validate(marketOrder(domain.SideLong, 0.1, 10), 50000, wallet, nil)
	require.NoError(t, err)
	b, err := v.Validate(marketOrder(domain.SideLong, 0.1, 10), 50000, wallet, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
