package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type customerBalanceResponse struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

// GetCustomerBalance handles GET /customers/{id}/balance.
func (h *Handler) GetCustomerBalance(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customerBalanceResponse{ID: c.ID, Balance: c.Balance})
}

// SearchCustomers handles GET /customers/search?term=, matching against the
// full name and returning value/label rows.
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		writeError(w, http.StatusBadRequest, "search term is required")
		return
	}

	customers, err := h.customers.Search(r.Context(), term)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	results := make([]searchResultResponse, len(customers))
	for i, c := range customers {
		results[i] = searchResultResponse{Value: c.ID, Label: c.FullName()}
	}
	writeJSON(w, http.StatusOK, results)
}
