package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tableside/internal/domain"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem writes a simplified RFC 7807 problem+json body.
func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingTable),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidTransfer),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPaymentStatus):
		writeProblem(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrUnknownTable):
		writeProblem(w, http.StatusNotFound, "unknown_table", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrWaiterCallNotFound):
		writeProblem(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNothingToTransfer):
		writeProblem(w, http.StatusNotFound, "nothing_to_transfer", err.Error())
	case errors.Is(err, domain.ErrCallCooldown):
		w.Header().Set("Retry-After", "30")
		writeProblem(w, http.StatusTooManyRequests, "cooldown", err.Error())
	case domain.IsRetryable(err):
		writeProblem(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
