package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kzcasino/models"
	"kzcasino/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler exposes the casino services over HTTP
type Handler struct {
	ledger      service.LedgerService
	params      service.ParamsService
	loans       service.LoanService
	predictions service.PredictionService
	rewards     service.RewardService
	health      HealthChecker
}

// NewHandler returns a new handler
func NewHandler(ledger service.LedgerService, params service.ParamsService, loans service.LoanService, predictions service.PredictionService, rewards service.RewardService, health HealthChecker) *Handler {
	return &Handler{
		ledger:      ledger,
		params:      params,
		loans:       loans,
		predictions: predictions,
		rewards:     rewards,
		health:      health,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a domain error kind to its HTTP status
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindInsufficientFunds, service.KindWrongState, service.KindAlreadyResolved:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeServiceError renders a service error, hiding infrastructure detail
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(service.KindOf(err))
	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":      r.URL.Path,
			"requestId": middleware.GetReqID(r.Context()),
			"error":     err,
		}).Error("Request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func parseDiscordID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "discordId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid discord id %q", raw)
	}
	return id, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetAccount handles GET /accounts/{discordId}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseDiscordID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// GetHistory handles GET /accounts/{discordId}/history?limit=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseDiscordID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.ledger.History(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if history == nil {
		history = []*models.BalanceHistory{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Leaderboard handles GET /leaderboard?limit=
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.ledger.Leaderboard(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListLoans handles GET /accounts/{discordId}/loans?view=open|pending|history
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	id, err := parseDiscordID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := models.LoanListView(strings.ToLower(r.URL.Query().Get("view")))
	if view == "" {
		view = models.LoanListOpen
	}

	loans, err := h.loans.ListForUser(r.Context(), id, view)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if loans == nil {
		loans = []*models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

// ListPredictions handles GET /accounts/{discordId}/predictions
func (h *Handler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	id, err := parseDiscordID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	placed, err := h.predictions.List(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	onTarget, err := h.predictions.ListOnTarget(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if placed == nil {
		placed = []*models.Prediction{}
	}
	if onTarget == nil {
		onTarget = []*models.Prediction{}
	}
	writeJSON(w, http.StatusOK, map[string][]*models.Prediction{
		"placed":    placed,
		"on_target": onTarget,
	})
}

// ListParams handles GET /params
func (h *Handler) ListParams(w http.ResponseWriter, r *http.Request) {
	states, err := h.params.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// GetParam handles GET /params/{name}
func (h *Handler) GetParam(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	value, err := h.params.Get(r.Context(), name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": value.String()})
}

type transferRequest struct {
	To     int64 `json:"to"`
	Amount int64 `json:"amount"`
}

// Transfer handles POST /accounts/{discordId}/transfers with {"to": id, "amount": n}
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, err := parseDiscordID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req transferRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To <= 0 {
		writeError(w, http.StatusBadRequest, "invalid recipient")
		return
	}

	result, err := h.ledger.Transfer(r.Context(), id, req.To, req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetCooldowns handles GET /accounts/{discordId}/cooldowns
func (h *Handler) GetCooldowns(w http.ResponseWriter, r *http.Request) {
	id, err := parseDiscordID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	statuses, err := h.rewards.Cooldowns(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

type setParamRequest struct {
	Value string `json:"value"`
}

// SetParam handles PUT /params/{name} with {"value": "..."}
func (h *Handler) SetParam(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var req setParamRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	value, err := h.params.Set(r.Context(), name, req.Value)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.WithFields(log.Fields{
		"name":  name,
		"value": value.String(),
	}).Info("Parameter override set over HTTP")
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": value.String()})
}

// ResetParam handles DELETE /params/{name}
func (h *Handler) ResetParam(w http.ResponseWriter, r *http.Request) {
	if err := h.params.Reset(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetAllParams handles DELETE /params
func (h *Handler) ResetAllParams(w http.ResponseWriter, r *http.Request) {
	if err := h.params.ResetAll(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestLogger logs each request at debug level
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start),
			"requestId": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}
