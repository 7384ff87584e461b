package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-core/internal/domain/code"
)

type codeResponse struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Discount  decimal.Decimal `json:"discount"`
	Status    string          `json:"status"`
	ExpiredAt *time.Time      `json:"expiredAt,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type verifyCodeResponse struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
	Status   string          `json:"status"`
}

type addCodeRequest struct {
	Code      string           `json:"code"`
	Discount  *decimal.Decimal `json:"discount"`
	Status    string           `json:"status"`
	ExpiredAt *time.Time       `json:"expiredAt"`
}

type editCodeRequest struct {
	Code      *string          `json:"code"`
	Discount  *decimal.Decimal `json:"discount"`
	Status    *string          `json:"status"`
	ExpiredAt *time.Time       `json:"expiredAt"`
}

func toCodeResponse(c code.Code) codeResponse {
	return codeResponse{
		ID:        c.ID,
		Code:      c.Code,
		Discount:  c.Discount,
		Status:    string(c.Status),
		ExpiredAt: c.ExpiredAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ListCodes handles GET /codes with pagination.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	codes, total, err := h.codes.List(r.Context(), page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	data := make([]codeResponse, len(codes))
	for i, c := range codes {
		data[i] = toCodeResponse(c)
	}
	writeJSON(w, http.StatusOK, newPageResponse(page, limit, total, data))
}

// VerifyCode handles GET /codes/verify?code=. Unknown codes are 404;
// non-active codes are 400.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("code")
	if token == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	c, err := h.codes.FindByCode(r.Context(), token)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if c.Status != code.StatusActive {
		writeError(w, http.StatusBadRequest, "code is not valid")
		return
	}

	writeJSON(w, http.StatusOK, verifyCodeResponse{
		Code:     c.Code,
		Discount: c.Discount,
		Status:   string(c.Status),
	})
}

// AddCode handles POST /codes.
func (h *Handler) AddCode(w http.ResponseWriter, r *http.Request) {
	var req addCodeRequest
	if err := decodeBody(r, &req); err != nil || req.Code == "" || req.Discount == nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "discount, code, and status are required")
		return
	}

	status, ok := code.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status, valid statuses are: active, inactive, expired")
		return
	}

	c := &code.Code{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Discount:  *req.Discount,
		Status:    status,
		ExpiredAt: req.ExpiredAt,
	}
	if err := h.codes.Create(r.Context(), c); err != nil {
		h.respondError(w, r, err)
		return
	}
	if h.codeFilter != nil {
		h.codeFilter.Add(c.Code)
	}

	created, err := h.codes.GetByID(r.Context(), c.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCodeResponse(*created))
}

// EditCode handles PATCH /codes/{id}: a partial field update.
func (h *Handler) EditCode(w http.ResponseWriter, r *http.Request) {
	var req editCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := code.Update{Code: req.Code, Discount: req.Discount, ExpiredAt: req.ExpiredAt}
	if req.Status != nil {
		status, ok := code.ParseStatus(*req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status, valid statuses are: active, inactive, expired")
			return
		}
		upd.Status = &status
	}
	if upd.IsEmpty() {
		writeError(w, http.StatusBadRequest, "at least one field (code, discount, status, or expiredAt) is required to update")
		return
	}

	c, err := h.codes.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if h.codeFilter != nil && req.Code != nil {
		h.codeFilter.Add(*req.Code)
	}
	writeJSON(w, http.StatusOK, toCodeResponse(*c))
}
