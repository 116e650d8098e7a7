package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/order"
)

type orderLineDTO struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type orderDTO struct {
	ID        string         `json:"id"`
	BuyerID   string         `json:"buyerId"`
	Products  []orderLineDTO `json:"products"`
	Total     float64        `json:"total"`
	Status    string         `json:"status"`
	Payment   order.Payment  `json:"payment"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func toOrderDTO(o order.Order) orderDTO {
	lines := make([]orderLineDTO, len(o.Products))
	for i, p := range o.Products {
		lines[i] = orderLineDTO{
			ProductID: p.ProductID,
			Name:      p.Name,
			Price:     p.Price.InexactFloat64(),
			Quantity:  p.Quantity,
		}
	}
	return orderDTO{
		ID:        o.ID,
		BuyerID:   o.BuyerID,
		Products:  lines,
		Total:     o.Total.InexactFloat64(),
		Status:    o.Status.String(),
		Payment:   o.Payment,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func writeOrders(w http.ResponseWriter, orders []order.Order) {
	out := make([]orderDTO, len(orders))
	for i, o := range orders {
		out[i] = toOrderDTO(o)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// BuyerOrders lists the authenticated buyer's orders, newest first.
func (h *Handler) BuyerOrders(w http.ResponseWriter, r *http.Request) {
	b := BuyerFromContext(r.Context())

	orders, err := h.orders.FindByBuyer(r.Context(), b.ID)
	if err != nil {
		h.lg.Error("list buyer orders failed", zap.String("buyer_id", b.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load orders")
		return
	}
	writeOrders(w, orders)
}

// AllOrders lists every order. Admin only.
func (h *Handler) AllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FindAll(r.Context())
	if err != nil {
		h.lg.Error("list all orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load orders")
		return
	}
	writeOrders(w, orders)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus sets an order's fulfillment status. Any known status is
// accepted from any current state; a transition leaving a terminal state is
// logged for the audit trail but not rejected.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	current, err := h.orders.FindByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.lg.Error("order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	if !current.Status.CanTransitionTo(status) {
		h.lg.Warn("irregular order status transition",
			zap.String("order_id", orderID),
			zap.String("from", current.Status.String()),
			zap.String("to", status.String()),
		)
	}

	if err := h.orders.UpdateStatus(r.Context(), orderID, status); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.lg.Error("status update failed", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	writeOK(w)
}
