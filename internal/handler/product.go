package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type productDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Quantity    int     `json:"quantity"`
	Shipping    bool    `json:"shipping"`
}

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.lg.Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load products")
		return
	}

	out := make([]productDTO, len(products))
	for i, p := range products {
		out[i] = productDTO{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.InexactFloat64(),
			Category:    p.Category,
			Quantity:    p.Quantity,
			Shipping:    p.Shipping,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
