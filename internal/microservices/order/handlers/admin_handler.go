package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/microservices/feed"
	"tableside/internal/microservices/order/service"
)

// AdminHandler serves the staff endpoints.
type AdminHandler struct {
	orders  service.OrderServiceInterface
	waiters service.WaiterServiceInterface
	view    FeedView
	log     *logger.Logger
}

func NewAdminHandler(orders service.OrderServiceInterface, waiters service.WaiterServiceInterface, view FeedView, lg *logger.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, waiters: waiters, view: view, log: lg}
}

func (h *AdminHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	resp, err := h.orders.Transfer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.StatusRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	id := chi.URLParam(r, "orderId")
	if err := h.orders.UpdateStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": req.Status})
}

func (h *AdminHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	id := chi.URLParam(r, "orderId")
	if err := h.orders.SetPaymentStatus(r.Context(), id, req.PaymentStatus); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "payment_status": req.PaymentStatus})
}

func (h *AdminHandler) AckWaiterCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "callId")
	if err := h.waiters.Acknowledge(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"call_id": id, "status": domain.CallAcknowledged})
}

func (h *AdminHandler) Queue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"orders": views(h.view.Queue()), "live": h.view.Live()})
}

func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	var p feed.Period
	if raw := r.URL.Query().Get("period"); raw != "" {
		var err error
		if p, err = feed.ParsePeriod(raw); err != nil {
			writeProblem(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
	}
	hv := h.view.History(p)
	writeJSON(w, http.StatusOK, map[string]any{"summary": hv.Summary, "orders": views(hv.Orders), "live": h.view.Live()})
}

func (h *AdminHandler) WaiterCalls(w http.ResponseWriter, _ *http.Request) {
	calls := h.view.PendingCalls()
	out := make([]domain.WaiterCallView, 0, len(calls))
	for _, c := range calls {
		out = append(out, domain.CallViewOf(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"waiter_calls": out, "live": h.view.Live()})
}

func views(orders []domain.Order) []domain.OrderView {
	out := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, domain.ViewOf(o))
	}
	return out
}
