package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clemsytoff/tradesarace/internal/domain"
	"github.com/clemsytoff/tradesarace/internal/usecase"
)

// positionView decorates an open position with its mark-to-market figures.
type positionView struct {
	*domain.Position
	MarkPrice     float64 `json:"markPrice"`
	UnrealizedPnl float64 `json:"unrealizedPnl"`
	PnlPercent    float64 `json:"pnlPercent"`
}

func (s *Server) stateResponse(wallet domain.Wallet, positions []*domain.Position) map[string]interface{} {
	prices := s.svc.Prices()
	views := make([]positionView, len(positions))
	for i, p := range positions {
		price := prices[p.Market]
		views[i] = positionView{
			Position:      p,
			MarkPrice:     price,
			UnrealizedPnl: usecase.UnrealizedPnL(p, price),
			PnlPercent:    usecase.PnLPercent(p, price),
		}
	}
	return map[string]interface{}{
		"ok":               true,
		"wallet":           wallet,
		"positions":        views,
		"availableBalance": usecase.AvailableBalance(wallet, positions),
		"unrealizedPnl":    usecase.AggregatePnL(positions, prices),
	}
}

func (s *Server) handleGetUserState(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	wallet, positions, err := s.svc.GetState(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("failed to load state", zap.String("user", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load state")
		return
	}
	writeJSON(w, http.StatusOK, s.stateResponse(wallet, positions))
}

// walletPayload verifies all three balance fields are present, the shape
// check the original API enforced on writes.
type walletPayload struct {
	USDBalance *float64 `json:"usdBalance"`
	BTCBalance *float64 `json:"btcBalance"`
	Bonus      *float64 `json:"bonus"`
}

type putStateRequest struct {
	Wallet    *walletPayload     `json:"wallet"`
	Positions []*domain.Position `json:"positions"`
}

func (s *Server) handlePutUserState(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req putStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Wallet == nil && req.Positions == nil {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	var wallet *domain.Wallet
	if req.Wallet != nil {
		if req.Wallet.USDBalance == nil || req.Wallet.BTCBalance == nil || req.Wallet.Bonus == nil {
			writeError(w, http.StatusBadRequest, "Invalid wallet")
			return
		}
		wallet = &domain.Wallet{
			USDBalance: *req.Wallet.USDBalance,
			BTCBalance: *req.Wallet.BTCBalance,
			Bonus:      *req.Wallet.Bonus,
		}
	}

	newWallet, newPositions, err := s.svc.ReplaceState(r.Context(), userID, wallet, req.Positions)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("failed to replace state", zap.String("user", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update state")
		return
	}
	writeJSON(w, http.StatusOK, s.stateResponse(newWallet, newPositions))
}

type orderPayload struct {
	Market     string  `json:"market"`
	Side       string  `json:"side"`
	OrderType  string  `json:"orderType"`
	Leverage   float64 `json:"leverage"`
	Amount     float64 `json:"amount"`
	LimitPrice float64 `json:"limitPrice"`
	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var payload orderPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	side, ok := normalizeSide(payload.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid order side")
		return
	}
	orderType := domain.OrderType(payload.OrderType)
	if orderType == "" {
		orderType = domain.OrderTypeMarket
	}

	req := domain.OrderRequest{
		Market:     payload.Market,
		Side:       side,
		OrderType:  orderType,
		Leverage:   payload.Leverage,
		Amount:     payload.Amount,
		LimitPrice: payload.LimitPrice,
		StopLoss:   payload.StopLoss,
		TakeProfit: payload.TakeProfit,
	}

	pos, err := s.svc.PlaceOrder(r.Context(), userID, req)
	if err != nil {
		var rejected *domain.OrderRejectedError
		if errors.As(err, &rejected) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"ok":      false,
				"reason":  rejected.Reason,
				"message": rejected.Message,
			})
			return
		}
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("order failed", zap.String("user", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Order failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "position": pos})
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	positionID := chi.URLParam(r, "id")

	realized, closed, err := s.svc.ClosePosition(r.Context(), userID, positionID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("close failed", zap.String("user", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Close failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"closed":      closed,
		"realizedPnl": realized,
	})
}

type closeAllRequest struct {
	Market string `json:"market"`
}

func (s *Server) handleCloseAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req closeAllRequest
	if err := decodeJSON(r, &req); err != nil || req.Market == "" {
		writeError(w, http.StatusBadRequest, "Market is required")
		return
	}

	realized, closed, err := s.svc.CloseAll(r.Context(), userID, req.Market)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("close-all failed", zap.String("user", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Close failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"closed":      closed,
		"realizedPnl": realized,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	entries, err := s.state.ListWallets(r.Context())
	if err != nil {
		s.logger.Error("failed to list wallets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"leaderboard": usecase.RankWallets(entries, limit),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("market")
	if market == "" {
		writeError(w, http.StatusBadRequest, "Market is required")
		return
	}
	price := s.svc.LatestPrice(market)
	if price <= 0 {
		writeError(w, http.StatusNotFound, "Live price is not available yet.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"market": market,
		"price":  price,
	})
}

func normalizeSide(raw string) (domain.Side, bool) {
	switch raw {
	case "long", "buy":
		return domain.SideLong, true
	case "short", "sell":
		return domain.SideShort, true
	}
	return "", false
}
