package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"

	"github.com/mesafood/comanda/internal/domain/catalog"
)

type productResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         string    `json:"price"`
	Category      string    `json:"category"`
	ImageURL      string    `json:"image_url,omitempty"`
	StockQuantity int       `json:"stock_quantity"`
	Available     bool      `json:"is_available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func productView(p *catalog.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.StringFixed(2),
		Category:      p.Category,
		ImageURL:      p.ImageURL,
		StockQuantity: p.StockQuantity,
		Available:     p.Available,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    defaultListLimit,
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, kindValidation, "invalid_filter", "invalid limit: "+s)
			return
		}
		f.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, kindValidation, "invalid_filter", "invalid offset: "+s)
			return
		}
		f.Offset = n
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = productView(&products[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), urlParam(r, "productID"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, kindNotFound, "product_not_found", "product not found")
			return
		}
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productView(p))
}
