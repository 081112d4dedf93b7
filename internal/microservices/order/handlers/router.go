package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tableside/internal/common/logger"
)

func Router(h *Handler, limiter *IPLimiter, live func() bool, lg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLog(lg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "feed_live": live()})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tables", h.OrderHandler.Tables)
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.Middleware)
			}
			r.Post("/tables/{tableId}/checkout", h.OrderHandler.Checkout)
			r.Post("/tables/{tableId}/waiter-calls", h.OrderHandler.CallWaiter)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/transfers", h.AdminHandler.Transfer)
			r.Patch("/orders/{orderId}/status", h.AdminHandler.UpdateStatus)
			r.Patch("/orders/{orderId}/payment", h.AdminHandler.SetPayment)
			r.Patch("/waiter-calls/{callId}/ack", h.AdminHandler.AckWaiterCall)
			r.Get("/queue", h.AdminHandler.Queue)
			r.Get("/history", h.AdminHandler.History)
			r.Get("/waiter-calls", h.AdminHandler.WaiterCalls)
		})
	})
	return r
}

func requestLog(lg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			lg.Debug("http_request", map[string]any{
				"method": r.Method, "path": r.URL.Path, "status": ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}
