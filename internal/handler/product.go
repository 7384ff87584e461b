package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-core/internal/domain/product"
)

type productResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// searchResultResponse is the value/label shape used by the storefront's
// autocomplete widgets.
type searchResultResponse struct {
	Value string           `json:"value"`
	Label string           `json:"label"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

type updateProductRequest struct {
	Name   *string          `json:"name"`
	Price  *decimal.Decimal `json:"price"`
	Stock  *int             `json:"stock"`
	Status *string          `json:"status"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ListProducts handles GET /products with pagination.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, total, err := h.products.List(r.Context(), page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	data := make([]productResponse, len(products))
	for i, p := range products {
		data[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, newPageResponse(page, limit, total, data))
}

// SearchProducts handles GET /products/search?term=. Only IN-STOCK products
// are returned, as value/label rows.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		writeError(w, http.StatusBadRequest, "product name is required for searching")
		return
	}

	products, err := h.products.Search(r.Context(), term)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	results := make([]searchResultResponse, len(products))
	for i, p := range products {
		price := p.Price
		results[i] = searchResultResponse{Value: p.ID, Label: p.Name, Price: &price}
	}
	writeJSON(w, http.StatusOK, results)
}

// UpdateProduct handles PATCH /products/{id}: a partial field update.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := product.Update{Name: req.Name, Price: req.Price, Stock: req.Stock}
	if req.Status != nil {
		status, ok := product.ParseStatus(*req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status, valid statuses are: IN-STOCK, RESERVED, SOLD")
			return
		}
		upd.Status = &status
	}
	if upd.IsEmpty() {
		writeError(w, http.StatusBadRequest, "at least one field (name, price, stock, or status) is required to update")
		return
	}

	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}
