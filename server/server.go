// Package server exposes the arena over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"predictionarena/models"
	"predictionarena/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// AdminKey gates market curation and oracle push routes. When empty
	// those routes return 404.
	AdminKey string
}

// Server wires the service layer to a chi router.
type Server struct {
	cfg        Config
	ledger     service.LedgerService
	markets    service.MarketService
	wagers     service.WagerService
	resolution service.ResolutionService
	stats      service.StatsService

	httpServer *http.Server
}

// New creates the HTTP server.
func New(cfg Config, ledger service.LedgerService, markets service.MarketService, wagers service.WagerService, resolution service.ResolutionService, stats service.StatsService) *Server {
	s := &Server{
		cfg:        cfg,
		ledger:     ledger,
		markets:    markets,
		wagers:     wagers,
		resolution: resolution,
		stats:      stats,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/markets", s.listMarkets)
	r.Get("/api/markets/{id}", s.getMarket)
	r.Get("/api/markets/{id}/value", s.getObservedValue)

	r.Get("/api/accounts/{id}", s.getAccount)
	r.Post("/api/accounts/{id}/deposit", s.deposit)
	r.Post("/api/accounts/{id}/withdraw", s.withdraw)
	r.Get("/api/accounts/{id}/history", s.getHistory)
	r.Get("/api/accounts/{id}/wagers", s.listWagers)

	r.Post("/api/wagers", s.placeWager)
	r.Post("/api/wagers/{id}/claim", s.claimPayout)

	r.Get("/api/leaderboard", s.getLeaderboard)

	// Curation and oracle push are operator-only.
	r.Group(func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Post("/api/markets", s.createMarket)
		r.Post("/api/markets/{id}/value", s.pushObservedValue)
		r.Post("/api/markets/{id}/resolve", s.resolveMarket)
	})

	return r
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// ── Markets ──────────────────────────────────────────

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.markets.GetOpenMarkets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	market, err := s.markets.GetMarket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

func (s *Server) getObservedValue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	value, err := s.markets.GetObservedValue(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marketId": id, "value": value})
}

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var def models.MarketDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeClientError(w, http.StatusBadRequest, "invalid json")
		return
	}
	market, err := s.markets.CreateMarket(r.Context(), def)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

func (s *Server) pushObservedValue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeClientError(w, http.StatusBadRequest, "invalid json")
		return
	}
	err := s.markets.UpdateObservedValue(r.Context(), chi.URLParam(r, "id"), req.Value, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) resolveMarket(w http.ResponseWriter, r *http.Request) {
	resolution, err := s.resolution.ResolveMarket(r.Context(), chi.URLParam(r, "id"), time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"marketId":      resolution.Market.ID,
		"direction":     resolution.Direction,
		"resolvedValue": resolution.ResolvedValue,
		"totalPot":      resolution.TotalPot,
		"winnersPaid":   resolution.WinnersPaid,
		"losersSettled": resolution.LosersSettled,
	})
}

// ── Accounts ─────────────────────────────────────────

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.GetOrCreateAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.adjustBalance(w, r, s.ledger.Deposit)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.adjustBalance(w, r, s.ledger.Withdraw)
}

func (s *Server) adjustBalance(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, int64) (*models.Account, error)) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeClientError(w, http.StatusBadRequest, "invalid json")
		return
	}
	account, err := fn(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.ledger.GetHistory(r.Context(), chi.URLParam(r, "id"), queryLimit(r, 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	wagers, err := s.wagers.GetWagersForAccount(r.Context(), chi.URLParam(r, "id"), queryLimit(r, 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wagers": wagers})
}

// ── Wagers ───────────────────────────────────────────

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId"`
		MarketID  string `json:"marketId"`
		Direction string `json:"direction"`
		Amount    int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeClientError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.AccountID == "" || req.MarketID == "" {
		writeClientError(w, http.StatusBadRequest, "accountId and marketId are required")
		return
	}

	wager, err := s.wagers.PlaceWager(r.Context(), req.AccountID, req.MarketID, models.Direction(req.Direction), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wager)
}

func (s *Server) claimPayout(w http.ResponseWriter, r *http.Request) {
	wager, err := s.wagers.ClaimPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wager)
}

// ── Leaderboard ──────────────────────────────────────

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.stats.GetLeaderboard(r.Context(), queryLimit(r, 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return def
}
