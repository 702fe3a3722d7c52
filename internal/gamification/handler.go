package gamification

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/logger"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/middleware"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func getUserID(r *http.Request) (string, bool) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	return uid, ok && uid != ""
}

// ── Gamification State ──────────────────────────────────

func (h *Handler) GetGamification(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.GetGamification(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to get gamification state")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	limit := intQueryParam(r.URL.Query(), "limit", 20)

	txs, err := h.service.Ledger().Transactions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err, "Failed to get transactions")
		return
	}

	writeJSON(w, http.StatusOK, models.TransactionsResponse{Transactions: txs})
}

// RecordActivity credits the acting user for a forum contribution named by
// target_id. The ledger checks the forum record before awarding anything.
func (h *Handler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	g, err := h.service.Ledger().CreditContribution(r.Context(), userID, Activity(req.Kind), req.TargetID)
	if err != nil {
		writeError(w, err, "Failed to record activity")
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// ── Votes ───────────────────────────────────────────────

func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.CastVote(r.Context(), userID, req)
	if err != nil {
		writeError(w, err, "Failed to cast vote")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Streak ──────────────────────────────────────────────

func (h *Handler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.Streaks().RecordLogin(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to record login")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Leaderboard ─────────────────────────────────────────

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	limit := intQueryParam(r.URL.Query(), "limit", 0)

	resp, err := h.service.GetLeaderboard(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err, "Failed to get leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Badges ──────────────────────────────────────────────

func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]Badge{"badges": h.service.Badges()})
}

// ── Helpers ─────────────────────────────────────────────

// writeError maps engine errors onto status codes. Validation messages are
// safe to echo; anything unclassified is reported as a retryable outage.
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Not found"})
	case errors.Is(err, ErrConflict):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Concurrent update, please retry"})
	default:
		logger.Error("[gamification] %s: %v", fallback, err)
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: fallback})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
