package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/clemsytoff/tradesarace/internal/domain"
)

// TradingService owns the open-position set and wallet for every active user
// and serializes all mutation per account: validate-then-insert on order
// submission and scan-then-close on price ticks never interleave for the same
// user. Cross-account operations do not contend.
//
// In-memory state is the system of record while a user is active; the
// repository is written through after every mutation and read once on first
// access.
type TradingService struct {
	repo      domain.StateRepository
	validator *OrderValidator
	logger    *zap.Logger
	audit     *zap.Logger

	pricesMu   sync.RWMutex
	lastPrices map[string]float64

	accountsMu sync.Mutex
	accounts   map[string]*accountState
}

type accountState struct {
	mu        sync.Mutex
	loaded    bool
	wallet    domain.Wallet
	positions []*domain.Position
}

func NewTradingService(repo domain.StateRepository, logger, audit *zap.Logger) *TradingService {
	if audit == nil {
		audit = logger
	}
	return &TradingService{
		repo:       repo,
		validator:  NewOrderValidator(),
		logger:     logger,
		audit:      audit,
		lastPrices: make(map[string]float64),
		accounts:   make(map[string]*accountState),
	}
}

// LatestPrice returns the last known mark price for a market, 0 if unknown.
func (s *TradingService) LatestPrice(market string) float64 {
	s.pricesMu.RLock()
	defer s.pricesMu.RUnlock()
	return s.lastPrices[market]
}

// Prices returns a copy of the last known mark prices.
func (s *TradingService) Prices() map[string]float64 {
	s.pricesMu.RLock()
	defer s.pricesMu.RUnlock()
	out := make(map[string]float64, len(s.lastPrices))
	for k, v := range s.lastPrices {
		out[k] = v
	}
	return out
}

// LoadInitialPrices seeds the price table from the feed's REST snapshot so
// quotes are available before the first websocket tick.
func (s *TradingService) LoadInitialPrices(ctx context.Context, source domain.PriceSource, markets []string) error {
	for _, market := range markets {
		price, err := source.GetCurrentPrice(ctx, market)
		if err != nil {
			s.logger.Warn("initial price fetch failed", zap.String("market", market), zap.Error(err))
			continue
		}
		s.pricesMu.Lock()
		s.lastPrices[market] = price
		s.pricesMu.Unlock()
	}
	return nil
}

func (s *TradingService) account(userID string) *accountState {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	st, ok := s.accounts[userID]
	if !ok {
		st = &accountState{}
		s.accounts[userID] = st
	}
	return st
}

// withAccount runs fn with the per-account lock held, loading persisted state
// on first access. fn runs to completion before any other mutation of the
// same account begins.
func (s *TradingService) withAccount(ctx context.Context, userID string, fn func(st *accountState) error) error {
	st := s.account(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.loaded {
		wallet, positions, err := s.repo.LoadState(ctx, userID)
		if err != nil {
			return err
		}
		st.wallet = wallet
		st.positions = positions
		st.loaded = true
	}
	return fn(st)
}

// persist writes the account state through to the repository. The in-memory
// copy stays authoritative; a failed write is logged and retried implicitly by
// the next mutation.
func (s *TradingService) persist(ctx context.Context, userID string, st *accountState) {
	if err := s.repo.SaveState(ctx, userID, st.wallet, st.positions); err != nil {
		s.logger.Error("failed to persist account state", zap.String("user", userID), zap.Error(err))
	}
}

// PlaceOrder validates a proposed order against the current mark price and
// available margin. On acceptance the new position joins the open set and the
// state is persisted; on rejection a *domain.OrderRejectedError is returned
// and nothing changes.
func (s *TradingService) PlaceOrder(ctx context.Context, userID string, req domain.OrderRequest) (*domain.Position, error) {
	markPrice := s.LatestPrice(req.Market)

	var pos *domain.Position
	err := s.withAccount(ctx, userID, func(st *accountState) error {
		p, err := s.validator.Validate(req, markPrice, st.wallet, st.positions)
		if err != nil {
			return err
		}
		st.positions = append(st.positions, p)
		s.persist(ctx, userID, st)
		pos = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("position opened",
		zap.String("user", userID),
		zap.String("market", pos.Market),
		zap.String("side", string(pos.Side)),
		zap.Float64("amount", pos.Amount),
		zap.Float64("leverage", pos.Leverage),
		zap.Float64("entry", pos.ExecutionPrice))
	return pos, nil
}

// ClosePosition settles one position at the current mark price, applying
// realized PnL to the wallet exactly once. Closing an unknown or already
// closed id, or closing while the mark price is unknown, is a no-op, not an
// error: closed reports whether a settlement happened.
func (s *TradingService) ClosePosition(ctx context.Context, userID, positionID string) (realized float64, closed bool, err error) {
	err = s.withAccount(ctx, userID, func(st *accountState) error {
		idx := -1
		for i, p := range st.positions {
			if p.ID == positionID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil
		}
		price := s.LatestPrice(st.positions[idx].Market)
		if price <= 0 {
			return nil
		}
		realized = s.settleLocked(userID, st, idx, price, "manual")
		closed = true
		s.persist(ctx, userID, st)
		return nil
	})
	return realized, closed, err
}

// CloseAll settles every open position on a market at the current mark price,
// summing realized PnL into a single wallet update. No positions or an
// unknown price is a no-op.
func (s *TradingService) CloseAll(ctx context.Context, userID, market string) (realized float64, closed int, err error) {
	price := s.LatestPrice(market)
	err = s.withAccount(ctx, userID, func(st *accountState) error {
		if price <= 0 {
			return nil
		}
		var kept []*domain.Position
		total := 0.0
		for _, p := range st.positions {
			if p.Market != market {
				kept = append(kept, p)
				continue
			}
			pnl := UnrealizedPnL(p, price)
			total += pnl
			closed++
			s.audit.Info("position settled",
				zap.String("user", userID),
				zap.String("position", p.ID),
				zap.String("market", p.Market),
				zap.String("reason", "close-all"),
				zap.Float64("exit", price),
				zap.Float64("pnl", pnl))
		}
		if closed == 0 {
			return nil
		}
		st.wallet.USDBalance += total
		st.positions = kept
		realized = total
		s.persist(ctx, userID, st)
		return nil
	})
	return realized, closed, err
}

// ProcessTick records a new mark price and runs the auto-close scan for every
// active account holding positions on that market. The scan walks a snapshot
// of each open set, so settling one position never skips evaluation of the
// next; each breached position settles independently and at most once. The
// scan completes before the method returns, preserving price-order causality
// when the feed delivers ticks sequentially.
func (s *TradingService) ProcessTick(ctx context.Context, market string, price float64) error {
	if price <= 0 {
		return nil
	}
	s.pricesMu.Lock()
	s.lastPrices[market] = price
	s.pricesMu.Unlock()

	s.accountsMu.Lock()
	users := make([]string, 0, len(s.accounts))
	states := make([]*accountState, 0, len(s.accounts))
	for id, st := range s.accounts {
		users = append(users, id)
		states = append(states, st)
	}
	s.accountsMu.Unlock()

	for i, st := range states {
		userID := users[i]
		st.mu.Lock()
		if !st.loaded {
			st.mu.Unlock()
			continue
		}
		snapshot := append([]*domain.Position(nil), st.positions...)
		settled := false
		for _, p := range snapshot {
			if p.Market != market {
				continue
			}
			reason, hit := checkTriggers(p, price)
			if !hit {
				continue
			}
			idx := -1
			for j, q := range st.positions {
				if q.ID == p.ID {
					idx = j
					break
				}
			}
			if idx == -1 {
				continue
			}
			s.settleLocked(userID, st, idx, price, string(reason))
			settled = true
		}
		if settled {
			s.persist(ctx, userID, st)
		}
		st.mu.Unlock()
	}
	return nil
}

// settleLocked closes the position at st.positions[idx]: applies realized PnL
// to the wallet and removes the position from the open set. Caller holds the
// account lock and guarantees a known price.
func (s *TradingService) settleLocked(userID string, st *accountState, idx int, price float64, reason string) float64 {
	p := st.positions[idx]
	pnl := UnrealizedPnL(p, price)
	st.wallet.USDBalance += pnl
	st.positions = append(st.positions[:idx], st.positions[idx+1:]...)

	s.audit.Info("position settled",
		zap.String("user", userID),
		zap.String("position", p.ID),
		zap.String("market", p.Market),
		zap.String("reason", reason),
		zap.Float64("entry", p.ExecutionPrice),
		zap.Float64("exit", price),
		zap.Float64("pnl", pnl))
	return pnl
}

// GetState returns the wallet and a copy of the open positions for rendering.
func (s *TradingService) GetState(ctx context.Context, userID string) (domain.Wallet, []*domain.Position, error) {
	var wallet domain.Wallet
	var positions []*domain.Position
	err := s.withAccount(ctx, userID, func(st *accountState) error {
		wallet = st.wallet
		positions = append([]*domain.Position(nil), st.positions...)
		return nil
	})
	return wallet, positions, err
}

// ReplaceState overwrites the wallet and/or position set, the write half of
// the persistence surface. Incoming positions pass the same sanitization as
// records loaded from storage. A nil argument leaves that half untouched.
func (s *TradingService) ReplaceState(ctx context.Context, userID string, wallet *domain.Wallet, positions []*domain.Position) (domain.Wallet, []*domain.Position, error) {
	var outWallet domain.Wallet
	var outPositions []*domain.Position
	err := s.withAccount(ctx, userID, func(st *accountState) error {
		if wallet != nil {
			st.wallet = *wallet
		}
		if positions != nil {
			st.positions = domain.SanitizePositions(positions)
		}
		s.persist(ctx, userID, st)
		outWallet = st.wallet
		outPositions = append([]*domain.Position(nil), st.positions...)
		return nil
	})
	return outWallet, outPositions, err
}
