package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/sellergate/storefront/internal/domain/checkout"
)

// writeJSON encodes a response body with jx and writes it with the given
// status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard {code, message} error payload.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// writeErrorCode writes an error payload with a machine-readable error code
// in addition to the message. Used where callers must distinguish failure
// modes, e.g. a settled payment whose order write failed.
func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("error", func(e *jx.Encoder) { e.Str(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// writeGuardDecision translates a non-Allowed guard decision into a
// response. The original destination rides along in "from" so the client
// returns the actor there after login or address completion.
func writeGuardDecision(w http.ResponseWriter, d checkout.Decision) {
	status := http.StatusUnauthorized
	message := "login required"
	if d.Verdict == checkout.RequiresAddress {
		status = http.StatusForbidden
		message = "shipping address required"
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
			e.Field("redirect", func(e *jx.Encoder) { e.Str(d.RedirectTo) })
			e.Field("from", func(e *jx.Encoder) { e.Str(d.From) })
		})
	})
}

// writeOK writes the {ok:true} success envelope.
func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("ok", func(e *jx.Encoder) { e.Bool(true) })
		})
	})
}
