// Package checkout contains the authorization guard and the orchestrator
// that turns a settled payment into a durable order.
package checkout

import "github.com/sellergate/storefront/internal/domain/buyer"

// Verdict is the guard's answer for whether the actor may proceed.
type Verdict uint8

const (
	// Allowed: valid session and shipping address present.
	Allowed Verdict = iota
	// RequiresLogin: no valid session. The caller must send the actor
	// through the login flow and return them to the original destination.
	RequiresLogin
	// RequiresAddress: authenticated but no shipping address on record.
	// Checkout stays visible but its commit action is disabled until the
	// address is filled in.
	RequiresAddress
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case RequiresLogin:
		return "requires_login"
	case RequiresAddress:
		return "requires_address"
	default:
		return "unknown"
	}
}

// Decision carries the verdict plus the navigation hints the caller needs:
// where to send the actor and where to bring them back afterwards. From is
// round-tripped through the login redirect so the pending destination is
// never lost.
type Decision struct {
	Verdict    Verdict
	RedirectTo string
	From       string
}

// Guard gates the checkout commit action.
type Guard struct {
	loginPath   string
	profilePath string
}

// NewGuard configures the guard with the paths the caller should redirect to
// for login and address completion.
func NewGuard(loginPath, profilePath string) *Guard {
	return &Guard{
		loginPath:   loginPath,
		profilePath: profilePath,
	}
}

// Check evaluates whether the buyer may commit the given destination action.
// A nil buyer means no valid session token was presented.
func (g *Guard) Check(b *buyer.Buyer, destination string) Decision {
	if b == nil {
		return Decision{
			Verdict:    RequiresLogin,
			RedirectTo: g.loginPath,
			From:       destination,
		}
	}
	if !b.HasAddress() {
		return Decision{
			Verdict:    RequiresAddress,
			RedirectTo: g.profilePath,
			From:       destination,
		}
	}
	return Decision{Verdict: Allowed, From: destination}
}
