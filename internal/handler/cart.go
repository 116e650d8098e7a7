package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/cart"
)

// loadCart rehydrates the session cart for the authenticated buyer. A
// corrupted persisted cart starts fresh rather than blocking the session;
// the decode failure is logged.
func (h *Handler) loadCart(r *http.Request, owner string) *cart.Store {
	crt, err := cart.Load(r.Context(), owner, h.carts, cart.WithLogger(h.lg))
	if err != nil {
		h.lg.Warn("cart rehydration failed, starting empty",
			zap.String("owner", owner), zap.Error(err))
		return cart.New(owner, h.carts, cart.WithLogger(h.lg))
	}
	return crt
}

type cartResponse struct {
	Items []cart.Item `json:"items"`
	Total float64     `json:"total"`
}

func writeCart(w http.ResponseWriter, crt *cart.Store) {
	total, _ := crt.Total().Float64()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cartResponse{
		Items: crt.Items(),
		Total: total,
	})
}

// GetCart returns the session cart with a freshly computed total.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	b := BuyerFromContext(r.Context())
	writeCart(w, h.loadCart(r, b.ID))
}

// AddToCart appends one item. Duplicate product IDs produce distinct lines.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	b := BuyerFromContext(r.Context())

	var item cart.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId required")
		return
	}
	if _, err := item.Price(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}

	crt := h.loadCart(r, b.ID)
	crt.Add(r.Context(), item)
	writeCart(w, crt)
}

// RemoveFromCart deletes the line at the given position. An out-of-range
// index leaves the cart and its persisted state unchanged.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	b := BuyerFromContext(r.Context())

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}

	crt := h.loadCart(r, b.ID)
	crt.Remove(r.Context(), index)
	writeCart(w, crt)
}

// ClearCart empties the cart and removes the persisted key.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	b := BuyerFromContext(r.Context())

	crt := h.loadCart(r, b.ID)
	crt.Clear(r.Context())
	writeOK(w)
}
