package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/order-assistant/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware ассистента.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/assistant", func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		r.Post("/message", h.Message)
		r.Post("/call", h.Call)
		r.Post("/query", h.Query)

		r.Route("/history/{phone}", func(r chi.Router) {
			r.Use(custommiddleware.RequesterPhone)

			r.Get("/", h.GetHistory)
			r.Delete("/", h.ClearHistory)
		})
	})

	// promhttp сжимает ответ самостоятельно.
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
