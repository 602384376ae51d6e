package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clemsytoff/tradesarace/internal/domain"
	"github.com/clemsytoff/tradesarace/internal/usecase"
)

type Server struct {
	router *chi.Mux
	server *http.Server
	svc    *usecase.TradingService
	auth   *AuthService
	users  domain.UserRepository
	state  domain.StateRepository
	logger *zap.Logger
}

func NewServer(
	port int,
	svc *usecase.TradingService,
	auth *AuthService,
	users domain.UserRepository,
	state domain.StateRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		auth:   auth,
		users:  users,
		state:  state,
		logger: logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(corsMiddleware)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/quote", s.handleQuote)

		r.Group(func(r chi.Router) {
			r.Use(s.withAuth)
			r.Get("/auth/me", s.handleMe)
			r.Get("/user-state", s.handleGetUserState)
			r.Put("/user-state", s.handlePutUserState)
			r.Post("/orders", s.handlePlaceOrder)
			r.Post("/positions/{id}/close", s.handleClosePosition)
			r.Post("/positions/close-all", s.handleCloseAll)
		})
	})
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
