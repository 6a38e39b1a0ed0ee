// Package api exposes the economy over HTTP. Handlers stay thin: decode,
// call the service, map domain errors to statuses in one place.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"hoard/internal/catalog"
	"hoard/internal/config"
	"hoard/internal/economy"
	"hoard/internal/ledger"
	"hoard/internal/transfer"
)

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	store   *ledger.Service
	economy *economy.Service
	deals   *transfer.Coordinator
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, store *ledger.Service, eco *economy.Service, deals *transfer.Coordinator) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		store:   store,
		economy: eco,
		deals:   deals,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/shop", s.handleShop)
		r.Get("/items/{id}", s.handleItemDetail)
		r.Get("/market/history", s.handleMarketHistory)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/leaderboard/items/{item}", s.handleItemLeaderboard)

		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/balance", s.handleBalance)
			r.Get("/inventory", s.handleInventory)
			r.Get("/networth", s.handleNetWorth)
			r.Get("/journal", s.handleJournal)
			r.Get("/badges", s.handleBadges)
			r.Get("/level", s.handleLevel)
			r.Post("/actions/{kind}", s.handleAction)
			r.Post("/open/{box}", s.handleOpenBox)
			r.Post("/use/crown", s.handleUseCrown)
			r.Post("/deposit", s.handleDeposit)
			r.Post("/withdraw", s.handleWithdraw)
		})

		r.Post("/proposals", s.handlePropose)
		r.Post("/proposals/{id}/confirm", s.handleConfirm)

		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/admin/accounts/{id}/wipe", s.handleAdminWipe)
			r.Post("/admin/accounts/{id}/boost", s.handleAdminBoost)
			r.Post("/admin/accounts/{id}/badges", s.handleAdminBadge)
			r.Post("/admin/accounts/{id}/level", s.handleAdminSetLevel)
		})
	})
}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			writeError(w, http.StatusForbidden, "admin endpoints are disabled")
			return
		}
		if strings.TrimSpace(r.Header.Get("X-Admin-Token")) != s.cfg.AdminToken {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	items := catalog.Items()
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		row := map[string]any{
			"id":       it.ID,
			"name":     it.Name,
			"price":    it.Price,
			"buyable":  it.Buyable,
			"sellable": it.Sellable,
		}
		if it.Dynamic {
			price, err := s.store.StockPrice(r.Context())
			if err != nil {
				writeDomainError(w, err)
				return
			}
			row["price"] = price
			row["dynamic"] = true
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleItemDetail(w http.ResponseWriter, r *http.Request) {
	it, ok := catalog.ItemByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no such item")
		return
	}
	price := it.Price
	if it.Dynamic {
		var err error
		if price, err = s.store.StockPrice(r.Context()); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       it.ID,
		"name":     it.Name,
		"price":    price,
		"dynamic":  it.Dynamic,
		"buyable":  it.Buyable,
		"sellable": it.Sellable,
	})
}

func (s *Server) handleMarketHistory(w http.ResponseWriter, r *http.Request) {
	prices, err := s.store.PriceHistory(r.Context(), queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	wallet, bank, err := s.store.GetBalance(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallet": wallet, "bank": bank})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := s.store.GetInventory(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory": inv})
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	worth, err := s.store.NetWorth(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"net_worth": worth})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Journal(r.Context(), accountID(r), queryLimit(r, 20))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.store.Badges(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": badges})
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	lv, err := s.store.LevelData(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lv)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	account := accountID(r)
	kind := catalog.ActionKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	var in struct {
		Location string `json:"location"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// A search without a chosen location is the offer phase: nothing is
	// gated or rolled yet.
	if kind == catalog.ActionSearch && in.Location == "" {
		locs, err := s.economy.OfferSearch(r.Context(), account, 3)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(locs))
		for _, loc := range locs {
			out = append(out, map[string]any{
				"id":          loc.ID,
				"description": loc.Description,
				"risky":       loc.Risky,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"locations": out})
		return
	}

	res, err := s.economy.PerformAction(r.Context(), account, kind, in.Location)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOpenBox(w http.ResponseWriter, r *http.Request) {
	res, err := s.economy.OpenBox(r.Context(), accountID(r), chi.URLParam(r, "box"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUseCrown(w http.ResponseWriter, r *http.Request) {
	upgraded, err := s.economy.UseCrown(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"upgraded": upgraded})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handlePocketMove(w, r, s.store.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handlePocketMove(w, r, s.store.Withdraw)
}

func (s *Server) handlePocketMove(w http.ResponseWriter, r *http.Request, move func(ctx context.Context, account string, amount int64) error) {
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := move(r.Context(), accountID(r), in.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	wallet, bank, err := s.store.GetBalance(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallet": wallet, "bank": bank})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.Leaderboard(r.Context(), queryLimit(r, 10))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleItemLeaderboard(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item")
	if _, ok := catalog.ItemByID(item); !ok {
		writeError(w, http.StatusNotFound, "no such item")
		return
	}
	rows, err := s.store.ItemLeaderboard(r.Context(), item, queryLimit(r, 10))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Kind     string `json:"kind"`
		Account  string `json:"account"`
		To       string `json:"to"`
		ItemID   string `json:"item_id"`
		Quantity int64  `json:"quantity"`
		Amount   int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		p   transfer.Proposal
		err error
	)
	switch transfer.Kind(in.Kind) {
	case transfer.KindBuy:
		p, err = s.deals.ProposeBuy(r.Context(), in.Account, in.ItemID, in.Quantity)
	case transfer.KindSell:
		p, err = s.deals.ProposeSell(r.Context(), in.Account, in.ItemID, in.Quantity)
	case transfer.KindPayCoins:
		p, err = s.deals.ProposePayCoins(r.Context(), in.Account, in.To, in.Amount)
	case transfer.KindPayItem:
		p, err = s.deals.ProposePayItem(r.Context(), in.Account, in.To, in.ItemID, in.Quantity)
	default:
		writeError(w, http.StatusBadRequest, "unknown proposal kind")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}
	var in struct {
		Decision string `json:"decision"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var accept bool
	switch strings.ToLower(strings.TrimSpace(in.Decision)) {
	case "yes", "y":
		accept = true
	case "no", "n":
		accept = false
	default:
		writeError(w, http.StatusBadRequest, "decision must be yes or no")
		return
	}

	p, err := s.deals.Confirm(r.Context(), id, accept)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"committed": true, "proposal": p})
}

func (s *Server) handleAdminWipe(w http.ResponseWriter, r *http.Request) {
	if err := s.store.WipeAccount(r.Context(), accountID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAdminBoost(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Factor int64  `json:"factor"`
		For    string `json:"for"`
		Clear  bool   `json:"clear"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account := accountID(r)
	if in.Clear {
		if err := s.store.ClearBoost(r.Context(), account); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	d, err := time.ParseDuration(in.For)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid boost duration")
		return
	}
	if err := s.store.SetBoost(r.Context(), account, in.Factor, time.Now().Add(d)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAdminBadge(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Badge  string `json:"badge"`
		Remove bool   `json:"remove"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Badge) == "" {
		writeError(w, http.StatusBadRequest, "badge name required")
		return
	}
	var err error
	if in.Remove {
		err = s.store.RemoveBadge(r.Context(), accountID(r), in.Badge)
	} else {
		err = s.store.AddBadge(r.Context(), accountID(r), in.Badge)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAdminSetLevel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Level int `json:"level"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetLevel(r.Context(), accountID(r), in.Level); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var cd *economy.CooldownError
	if errors.As(err, &cd) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":             cd.Error(),
			"remaining_seconds": int64(cd.Remaining / time.Second),
		})
		return
	}
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, ledger.ErrInsufficientItems),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrAmountOverflow),
		errors.Is(err, transfer.ErrItemNotBuyable),
		errors.Is(err, transfer.ErrItemNotSellable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, transfer.ErrInvalidItem),
		errors.Is(err, economy.ErrUnknownAction),
		errors.Is(err, economy.ErrUnknownLocation),
		errors.Is(err, economy.ErrNotABox):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, transfer.ErrProposalExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, transfer.ErrProposalDeclined),
		errors.Is(err, transfer.ErrMarketUnavailable),
		errors.Is(err, ledger.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func accountID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func queryLimit(r *http.Request, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
