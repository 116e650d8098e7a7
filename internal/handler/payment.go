package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/cart"
	"github.com/sellergate/storefront/internal/domain/checkout"
	"github.com/sellergate/storefront/internal/gateway"
)

// BraintreeToken returns a client-side authorization token for the hosted
// payment form. A gateway failure means no form is rendered; the client gets
// a 503 and retries by reloading the checkout page.
func (h *Handler) BraintreeToken(w http.ResponseWriter, r *http.Request) {
	co := gateway.NewCheckout(h.gateway, h.nonces, h.lg)

	token, err := co.RequestToken(r.Context())
	if err != nil {
		h.lg.Warn("braintree token fetch failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "payment service unavailable")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("clientToken", func(e *jx.Encoder) { e.Str(token) })
		})
	})
}

// paymentRequest is the settlement request body: the single-use nonce from
// the hosted form plus the client's current cart copy.
type paymentRequest struct {
	Nonce string      `json:"nonce"`
	Cart  []cart.Item `json:"cart"`
}

// BraintreePayment settles the cart total against the nonce and records the
// order. The cart is cleared only after the order write is confirmed; a
// decline or write failure leaves it untouched.
func (h *Handler) BraintreePayment(w http.ResponseWriter, r *http.Request) {
	b := BuyerFromContext(r.Context())

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Nonce == "" {
		writeError(w, http.StatusBadRequest, "nonce required")
		return
	}
	if len(req.Cart) == 0 {
		writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	if d := h.guard.Check(b, r.URL.Path); d.Verdict != checkout.Allowed {
		writeGuardDecision(w, d)
		return
	}

	co := gateway.NewCheckout(h.gateway, h.nonces, h.lg)
	co.ResumeHostedForm()
	if err := co.CollectNonce(req.Nonce); err != nil {
		if errors.Is(err, gateway.ErrNonceAlreadySpent) {
			writeError(w, http.StatusConflict, "payment already submitted")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The client's cart copy is authoritative for this purchase. Nothing is
	// persisted unless the order goes through, at which point the session's
	// cart key is removed.
	crt := cart.FromItems(b.ID, h.carts, req.Cart, cart.WithLogger(h.lg))

	_, err := h.orchestrator.PlaceOrder(r.Context(), b, crt, co)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	writeOK(w)
}

// writePaymentError maps the checkout error taxonomy onto the wire.
// Validation and authorization failures are actionable by the buyer; gateway
// and persistence failures surface as generic notices while the detail goes
// to the log.
func (h *Handler) writePaymentError(w http.ResponseWriter, err error) {
	var (
		decline     *gateway.DeclineError
		notRecorded *checkout.SettledNotRecordedError
	)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, checkout.ErrNotAllowed):
		writeError(w, http.StatusForbidden, "checkout not allowed")
	case errors.As(err, &decline):
		h.lg.Info("payment declined", zap.String("reason", decline.Message))
		writeError(w, http.StatusPaymentRequired, decline.Message)
	case errors.As(err, &notRecorded):
		// Buyer charged, order missing. Already logged at error level by the
		// orchestrator; the distinct error code lets operators reconcile.
		writeErrorCode(w, http.StatusBadGateway, "settled_not_recorded",
			"payment accepted but order could not be recorded, support has been notified")
	case errors.Is(err, gateway.ErrUnavailable):
		h.lg.Warn("gateway unavailable during settlement", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "payment service unavailable")
	default:
		h.lg.Error("payment failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "payment failed")
	}
}
