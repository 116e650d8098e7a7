package handler

import (
	"encoding/json"
	"net/http"
	"net/mail"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/buyer"
)

type registerRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Password string         `json:"password"`
	Address  *buyer.Address `json:"address,omitempty"`
}

// Register creates a buyer account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name and password required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	hash, err := buyer.HashPassword(req.Password)
	if err != nil {
		h.lg.Error("password hash failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	b := &buyer.Buyer{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Address:      req.Address,
		Role:         buyer.RoleBuyer,
	}
	if err := h.buyers.Create(r.Context(), b); err != nil {
		if errors.Is(err, buyer.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.lg.Error("buyer create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(b.ID) })
			e.Field("email", func(e *jx.Encoder) { e.Str(b.Email) })
		})
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// From is the destination the actor was heading to when the guard sent
	// them here. Echoed back so the client can resume the original flow.
	From string `json:"from,omitempty"`
}

// Login verifies credentials and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.buyers.FindByEmail(r.Context(), req.Email)
	if err != nil {
		// Same response as a wrong password; do not leak which emails exist.
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := b.CheckPassword(req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := h.sessions.Issue(b.ID, b.Email, b.Role)
	if err != nil {
		h.lg.Error("session issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("token", func(e *jx.Encoder) { e.Str(token) })
			e.Field("name", func(e *jx.Encoder) { e.Str(b.Name) })
			e.Field("role", func(e *jx.Encoder) { e.Str(b.Role) })
			if req.From != "" {
				e.Field("from", func(e *jx.Encoder) { e.Str(req.From) })
			}
		})
	})
}

// UpdateAddress sets the authenticated buyer's shipping address, unblocking
// the RequiresAddress guard verdict.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	b := BuyerFromContext(r.Context())

	var addr buyer.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if addr.Empty() {
		writeError(w, http.StatusBadRequest, "address required")
		return
	}

	if err := h.buyers.UpdateAddress(r.Context(), b.ID, addr); err != nil {
		h.lg.Error("address update failed", zap.String("buyer_id", b.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	writeOK(w)
}
