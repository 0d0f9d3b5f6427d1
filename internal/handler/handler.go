// Package handler exposes the order and catalog APIs over HTTP. Handlers stay
// thin: decode, authorize, delegate to the domain service, map errors onto
// the stable error-kind taxonomy.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mesafood/comanda/internal/domain/auth"
	"github.com/mesafood/comanda/internal/domain/catalog"
	"github.com/mesafood/comanda/internal/domain/order"
)

// Handler implements the HTTP API on top of the order service and catalog.
type Handler struct {
	orders   *order.Service
	products catalog.Repository
	verifier auth.Verifier
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders *order.Service, products catalog.Repository, verifier auth.Verifier) *Handler {
	return &Handler{
		orders:   orders,
		products: products,
		verifier: verifier,
	}
}

// Routes mounts the API. The catalog is public; everything under /orders
// requires an authenticated user, with staff-only gates on status and
// payment updates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.verifier))

		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/my", h.listMyOrders)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Patch("/orders/{orderID}/cancel", h.cancelOrder)

		r.Group(func(r chi.Router) {
			r.Use(RequireStaff)
			r.Patch("/orders/{orderID}/status", h.updateStatus)
			r.Patch("/orders/{orderID}/payment", h.updatePayment)
		})
	})

	return r
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
