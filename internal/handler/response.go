package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/mesafood/comanda/internal/domain/order"
)

// Error kinds form the stable taxonomy surfaced to clients.
const (
	kindValidation = "validation_error"
	kindNotFound   = "not_found"
	kindConflict   = "conflict"
	kindAuth       = "auth_error"
	kindInternal   = "internal_error"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Code: code, Message: message}})
}

// respondDomainError maps domain errors onto HTTP status plus error kind.
// Unrecognized errors are logged and surfaced as a generic internal error;
// internal detail never leaves the process.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		pnf *order.ProductNotFoundError
		pun *order.ProductUnavailableError
		ins *order.InsufficientStockError
		inq *order.InvalidQuantityError
		ilt *order.IllegalTransitionError
		ilp *order.IllegalPaymentTransitionError
	)

	switch {
	case errors.Is(err, order.ErrEmptyOrder):
		writeError(w, http.StatusBadRequest, kindValidation, "empty_order", err.Error())
	case errors.Is(err, order.ErrInvalidOrderType):
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_order_type", err.Error())
	case errors.Is(err, order.ErrMissingDeliveryAddress):
		writeError(w, http.StatusBadRequest, kindValidation, "missing_delivery_address", err.Error())
	case errors.As(err, &inq):
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_quantity", inq.Error())
	case errors.As(err, &pnf):
		writeError(w, http.StatusBadRequest, kindValidation, "product_not_found", pnf.Error())
	case errors.As(err, &pun):
		writeError(w, http.StatusBadRequest, kindValidation, "product_unavailable", pun.Error())
	case errors.As(err, &ins):
		writeError(w, http.StatusBadRequest, kindValidation, "insufficient_stock", ins.Error())
	case errors.Is(err, order.ErrStockRace):
		writeError(w, http.StatusConflict, kindConflict, "stock_race_lost", "stock changed concurrently, retry the order")
	case errors.As(err, &ilt):
		writeError(w, http.StatusBadRequest, kindConflict, "illegal_transition", ilt.Error())
	case errors.As(err, &ilp):
		writeError(w, http.StatusBadRequest, kindConflict, "illegal_transition", ilp.Error())
	case errors.Is(err, order.ErrNotCancellable):
		writeError(w, http.StatusBadRequest, kindConflict, "order_not_cancellable", err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "order_not_found", "order not found")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, kindInternal, "internal", "internal server error")
	}
}
