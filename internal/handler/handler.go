// Package handler exposes the REST surface: authentication, product reads,
// session cart persistence, and the checkout pipeline endpoints.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/buyer"
	"github.com/sellergate/storefront/internal/domain/cart"
	"github.com/sellergate/storefront/internal/domain/checkout"
	"github.com/sellergate/storefront/internal/domain/order"
	"github.com/sellergate/storefront/internal/domain/product"
	"github.com/sellergate/storefront/internal/gateway"
	"github.com/sellergate/storefront/internal/session"
)

// buyerKey is the context key for the authenticated buyer.
type buyerKey struct{}

// BuyerFromContext extracts the authenticated buyer, or nil.
func BuyerFromContext(ctx context.Context) *buyer.Buyer {
	b, _ := ctx.Value(buyerKey{}).(*buyer.Buyer)
	return b
}

// Handler holds the dependencies for all HTTP endpoints.
type Handler struct {
	buyers       buyer.Repository
	products     product.Repository
	orders       order.Repository
	sessions     *session.Manager
	guard        *checkout.Guard
	orchestrator *checkout.Orchestrator
	gateway      gateway.Client
	nonces       *gateway.NonceGuard
	carts        cart.Storage
	lg           *zap.Logger
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	buyers buyer.Repository,
	products product.Repository,
	orders order.Repository,
	sessions *session.Manager,
	guard *checkout.Guard,
	orchestrator *checkout.Orchestrator,
	gw gateway.Client,
	nonces *gateway.NonceGuard,
	carts cart.Storage,
	lg *zap.Logger,
) *Handler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Handler{
		buyers:       buyers,
		products:     products,
		orders:       orders,
		sessions:     sessions,
		guard:        guard,
		orchestrator: orchestrator,
		gateway:      gw,
		nonces:       nonces,
		carts:        carts,
		lg:           lg,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Get("/products", h.ListProducts)
		r.Get("/product/braintree/token", h.BraintreeToken)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/product/braintree/payment", h.BraintreePayment)

			r.Get("/auth/orders", h.BuyerOrders)
			r.Put("/auth/profile/address", h.UpdateAddress)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.AddToCart)
			r.Delete("/cart/{index}", h.RemoveFromCart)
			r.Delete("/cart", h.ClearCart)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth, h.requireAdmin)

			r.Get("/auth/all-orders", h.AllOrders)
			r.Put("/auth/order-status/{orderId}", h.UpdateOrderStatus)
		})
	})

	return r
}

// requireAuth resolves the Bearer session token into a buyer. Without a
// valid session the response is the guard's RequiresLogin decision so the
// client can redirect to login and come back to the original destination.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := h.resolveBuyer(r)
		if b == nil {
			d := h.guard.Check(nil, r.URL.Path)
			writeGuardDecision(w, d)
			return
		}

		ctx := context.WithValue(r.Context(), buyerKey{}, b)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin gates administrative endpoints.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b := BuyerFromContext(r.Context()); !b.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolveBuyer verifies the Authorization header and loads the buyer record.
// Any failure yields nil: an expired token is the same as no token.
func (h *Handler) resolveBuyer(r *http.Request) *buyer.Buyer {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}

	claims, err := h.sessions.Verify(parts[1])
	if err != nil {
		return nil
	}

	b, err := h.buyers.FindByID(r.Context(), claims.BuyerID)
	if err != nil {
		return nil
	}
	return b
}
