package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tableside/internal/common/logger"
	"tableside/internal/domain"
	"tableside/internal/microservices/order/service"
)

// OrderHandler serves the patron-facing endpoints.
type OrderHandler struct {
	orders  service.OrderServiceInterface
	waiters service.WaiterServiceInterface
	log     *logger.Logger
}

func NewOrderHandler(orders service.OrderServiceInterface, waiters service.WaiterServiceInterface, lg *logger.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, waiters: waiters, log: lg}
}

func (h *OrderHandler) Tables(w http.ResponseWriter, _ *http.Request) {
	tables := h.orders.Tables()
	if tables == nil {
		tables = []domain.Table{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// Checkout answers 201 when a new order was opened and 200 when the cart was
// merged into the table's open tab.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	resp, err := h.orders.Checkout(r.Context(), chi.URLParam(r, "tableId"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusCreated
	if resp.Merged {
		code = http.StatusOK
	}
	writeJSON(w, code, resp)
}

func (h *OrderHandler) CallWaiter(w http.ResponseWriter, r *http.Request) {
	resp, err := h.waiters.Call(r.Context(), chi.URLParam(r, "tableId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
