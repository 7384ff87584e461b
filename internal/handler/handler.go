// Package handler exposes the HTTP JSON API. It converts requests into
// domain calls and maps domain errors onto HTTP status codes; business rules
// live in the domain packages.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-core/internal/domain/code"
	"github.com/xenking/shop-core/internal/domain/customer"
	"github.com/xenking/shop-core/internal/domain/order"
	"github.com/xenking/shop-core/internal/domain/product"
)

// Handler carries the domain dependencies for all API endpoints.
type Handler struct {
	orders    *order.Service
	products  product.Repository
	customers customer.Repository
	codes     code.Repository

	// codeFilter tracks created/renamed code tokens for the validator's
	// bloom prefilter. Nil when the prefilter is disabled.
	codeFilter *code.Filter
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders *order.Service,
	products product.Repository,
	customers customer.Repository,
	codes code.Repository,
	codeFilter *code.Filter,
) *Handler {
	return &Handler{
		orders:     orders,
		products:   products,
		customers:  customers,
		codes:      codes,
		codeFilter: codeFilter,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}/status", h.UpdateOrderStatus)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/search", h.SearchProducts)
		r.Patch("/{id}", h.UpdateProduct)
	})

	r.Route("/customers", func(r chi.Router) {
		r.Get("/search", h.SearchCustomers)
		r.Get("/{id}/balance", h.GetCustomerBalance)
	})

	r.Route("/codes", func(r chi.Router) {
		r.Get("/", h.ListCodes)
		r.Get("/verify", h.VerifyCode)
		r.Post("/", h.AddCode)
		r.Patch("/{id}", h.EditCode)
	})

	return r
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// pageResponse wraps a paginated listing.
type pageResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	Data       any   `json:"data"`
}

func newPageResponse(page, limit int, total int64, data any) pageResponse {
	totalPages := (total + int64(limit) - 1) / int64(limit)
	return pageResponse{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		Data:       data,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Best effort: the status code is already written.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// respondError maps domain errors onto HTTP responses. Unexpected errors are
// logged and answered with a generic 500 body so internals never leak to
// clients.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		iqErr    *order.InvalidQuantityError
		stockErr *order.InsufficientStockError
		trErr    *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrMissingCustomer),
		errors.As(err, &iqErr),
		errors.As(err, &stockErr),
		errors.Is(err, order.ErrInsufficientBalance),
		errors.Is(err, code.ErrInvalid),
		errors.Is(err, code.ErrNotActive),
		errors.Is(err, code.ErrExpired):
		writeError(w, http.StatusBadRequest, userMessage(err))

	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, code.ErrNotFound):
		writeError(w, http.StatusNotFound, userMessage(err))

	case errors.Is(err, code.ErrDuplicate),
		errors.As(err, &trErr):
		writeError(w, http.StatusConflict, userMessage(err))

	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// userMessage strips wrapping context so clients see the root cause only.
func userMessage(err error) string {
	for {
		u := errors.Unwrap(err)
		if u == nil {
			return err.Error()
		}
		err = u
	}
}

// parsePagination reads page/limit query parameters with the legacy defaults
// of page 1, limit 10. Non-positive values are rejected.
func parsePagination(r *http.Request) (page, limit int, err error) {
	page, limit = 1, 10

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errors.New("page and limit must be positive integers")
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errors.New("page and limit must be positive integers")
		}
	}
	if page <= 0 || limit <= 0 {
		return 0, 0, errors.New("page and limit must be positive integers")
	}
	return page, limit, nil
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "invalid JSON body")
	}
	return nil
}
