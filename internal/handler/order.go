package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-core/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID     string             `json:"customerId"`
	Items          []orderItemRequest `json:"items"`
	RedemptionCode string             `json:"redemptionCode,omitempty"`
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	OrderID        string              `json:"orderId"`
	CustomerID     string              `json:"customerId"`
	CustomerName   string              `json:"customerName,omitempty"`
	Items          []orderItemResponse `json:"items"`
	TotalPrice     decimal.Decimal     `json:"totalPrice"`
	Discount       decimal.Decimal     `json:"discount"`
	FinalPrice     decimal.Decimal     `json:"finalPrice"`
	RedemptionCode string              `json:"redemptionCode,omitempty"`
	Status         string              `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
		}
	}
	return orderResponse{
		OrderID:        o.ID,
		CustomerID:     o.CustomerID,
		CustomerName:   o.CustomerName,
		Items:          items,
		TotalPrice:     o.TotalPrice,
		Discount:       o.Discount,
		FinalPrice:     o.FinalPrice,
		RedemptionCode: o.RedemptionCode,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// CreateOrder handles POST /orders: the fulfillment workflow.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "products and customerId are required")
		return
	}

	items := make([]order.LineItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		CustomerID:     req.CustomerID,
		Items:          items,
		RedemptionCode: req.RedemptionCode,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// ListOrders handles GET /orders with pagination.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, total, err := h.orders.ListOrders(r.Context(), page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	data := make([]orderResponse, len(orders))
	for i := range orders {
		data[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, newPageResponse(page, limit, total, data))
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateOrderStatus handles PATCH /orders/{id}/status. Transitions are only
// allowed out of PROCESSING and into a terminal state.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeBody(r, &req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	status, ok := order.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status, valid statuses are: PROCESSING, COMPLETED, FAILED")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
