package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the admin API router
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", h.Health)
	r.Get("/leaderboard", h.Leaderboard)

	r.Route("/accounts/{discordId}", func(r chi.Router) {
		r.Get("/", h.GetAccount)
		r.Get("/history", h.GetHistory)
		r.Get("/loans", h.ListLoans)
		r.Get("/predictions", h.ListPredictions)
		r.Get("/cooldowns", h.GetCooldowns)
		r.Post("/transfers", h.Transfer)
	})

	r.Route("/params", func(r chi.Router) {
		r.Get("/", h.ListParams)
		r.Delete("/", h.ResetAllParams)
		r.Get("/{name}", h.GetParam)
		r.Put("/{name}", h.SetParam)
		r.Delete("/{name}", h.ResetParam)
	})

	return r
}
