package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mesafood/comanda/internal/domain/order"
)

const defaultListLimit = 50

type createOrderRequest struct {
	OrderType           string              `json:"order_type"`
	TableID             string              `json:"table_id,omitempty"`
	Items               []createOrderItem   `json:"items"`
	DeliveryAddress     string              `json:"delivery_address,omitempty"`
	SpecialInstructions string              `json:"special_instructions,omitempty"`
}

type createOrderItem struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updatePaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type orderItemResponse struct {
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	UnitPrice       string `json:"unit_price"`
	TotalPrice      string `json:"total_price"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

type orderResponse struct {
	ID                  string              `json:"id"`
	OrderNumber         string              `json:"order_number"`
	UserID              string              `json:"user_id"`
	TableID             string              `json:"table_id,omitempty"`
	OrderType           string              `json:"order_type"`
	Items               []orderItemResponse `json:"items"`
	Subtotal            string              `json:"subtotal"`
	TaxAmount           string              `json:"tax_amount"`
	DiscountAmount      string              `json:"discount_amount"`
	TotalAmount         string              `json:"total_amount"`
	Status              string              `json:"status"`
	PaymentStatus       string              `json:"payment_status"`
	PaymentMethod       string              `json:"payment_method,omitempty"`
	DeliveryAddress     string              `json:"delivery_address,omitempty"`
	SpecialInstructions string              `json:"special_instructions,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func orderView(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice.StringFixed(2),
			TotalPrice:      it.TotalPrice.StringFixed(2),
			SpecialRequests: it.SpecialRequests,
		}
	}
	return orderResponse{
		ID:                  o.ID,
		OrderNumber:         o.Number,
		UserID:              o.UserID,
		TableID:             o.TableID,
		OrderType:           string(o.Type),
		Items:               items,
		Subtotal:            o.Subtotal.StringFixed(2),
		TaxAmount:           o.TaxAmount.StringFixed(2),
		DiscountAmount:      o.DiscountAmount.StringFixed(2),
		TotalAmount:         o.TotalAmount.StringFixed(2),
		Status:              string(o.Status),
		PaymentStatus:       string(o.PaymentStatus),
		PaymentMethod:       o.PaymentMethod,
		DeliveryAddress:     o.DeliveryAddress,
		SpecialInstructions: o.SpecialInstructions,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, kindAuth, "missing_token", "access token required")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_body", "malformed request body")
		return
	}

	items := make([]order.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.CartItem{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			SpecialRequests: it.SpecialRequests,
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:              claims.UserID,
		TableID:             req.TableID,
		Type:                order.Type(req.OrderType),
		Items:               items,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderView(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, kindAuth, "missing_token", "access token required")
		return
	}

	f, err := orderFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_filter", err.Error())
		return
	}
	// Non-staff callers only ever see their own orders.
	if !claims.Role.Staff() {
		f.UserID = claims.UserID
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderListView(orders))
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, kindAuth, "missing_token", "access token required")
		return
	}

	f, err := orderFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_filter", err.Error())
		return
	}
	f.UserID = claims.UserID

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderListView(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, kindAuth, "missing_token", "access token required")
		return
	}

	o, err := h.orders.Get(r.Context(), urlParam(r, "orderID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !claims.CanViewOrder(o.UserID) {
		writeError(w, http.StatusForbidden, kindAuth, "forbidden", "not your order")
		return
	}
	writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, kindAuth, "missing_token", "access token required")
		return
	}

	id := urlParam(r, "orderID")
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !claims.CanViewOrder(o.UserID) {
		writeError(w, http.StatusForbidden, kindAuth, "forbidden", "not your order")
		return
	}

	o, err = h.orders.Cancel(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_body", "malformed request body")
		return
	}
	to, ok := order.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_status", "unknown order status: "+req.Status)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), urlParam(r, "orderID"), to)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_body", "malformed request body")
		return
	}
	to, ok := order.ParsePaymentStatus(req.PaymentStatus)
	if !ok {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid_payment_status", "unknown payment status: "+req.PaymentStatus)
		return
	}

	o, err := h.orders.UpdatePayment(r.Context(), urlParam(r, "orderID"), to, req.PaymentMethod)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(o))
}

func orderListView(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = orderView(&orders[i])
	}
	return out
}

// orderFilterFromQuery parses the conjunctive listing filter from the query
// string. Unknown status or type values are rejected rather than silently
// matching nothing.
func orderFilterFromQuery(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	f := order.Filter{Limit: defaultListLimit}

	if s := q.Get("status"); s != "" {
		st, ok := order.ParseStatus(s)
		if !ok {
			return f, errInvalidParam("status", s)
		}
		f.Status = st
	}
	if s := q.Get("order_type"); s != "" {
		t, ok := order.ParseType(s)
		if !ok {
			return f, errInvalidParam("order_type", s)
		}
		f.Type = t
	}
	if s := q.Get("date_from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, errInvalidParam("date_from", s)
		}
		f.DateFrom = t
	}
	if s := q.Get("date_to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, errInvalidParam("date_to", s)
		}
		f.DateTo = t
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return f, errInvalidParam("limit", s)
		}
		f.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, errInvalidParam("offset", s)
		}
		f.Offset = n
	}
	return f, nil
}

type paramError struct {
	name, value string
}

func errInvalidParam(name, value string) error {
	return &paramError{name: name, value: value}
}

func (e *paramError) Error() string {
	return "invalid " + e.name + ": " + e.value
}
