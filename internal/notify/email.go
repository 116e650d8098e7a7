// Package notify delivers order confirmation messages. Delivery is
// best-effort: a failed send is logged and never affects the order.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/buyer"
	"github.com/sellergate/storefront/internal/domain/checkout"
	"github.com/sellergate/storefront/internal/domain/order"
)

var _ checkout.Notifier = (*EmailNotifier)(nil)

// EmailNotifier sends order confirmations through SendGrid. A notifier built
// with an empty API key is a no-op, so checkout works without email
// configured.
type EmailNotifier struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
	lg        *zap.Logger
}

// NewEmailNotifier creates the notifier. apiKey may be empty to disable
// sending.
func NewEmailNotifier(apiKey, fromName, fromEmail string, lg *zap.Logger) *EmailNotifier {
	n := &EmailNotifier{
		fromName:  fromName,
		fromEmail: fromEmail,
		lg:        lg,
	}
	if apiKey != "" {
		n.client = sendgrid.NewSendClient(apiKey)
	}
	return n
}

// OrderPlaced emails the buyer a summary of the order just placed.
func (n *EmailNotifier) OrderPlaced(_ context.Context, b *buyer.Buyer, o *order.Order) {
	if n.client == nil {
		return
	}

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(b.Name, b.Email)
	subject := fmt.Sprintf("Order confirmation %s", o.ID)

	var lines strings.Builder
	fmt.Fprintf(&lines, "Hi %s,\n\nYour order %s has been placed.\n\n", b.Name, o.ID)
	for _, p := range o.Products {
		fmt.Fprintf(&lines, "  %s x%d  %s\n", p.Name, p.Quantity, p.Price.StringFixed(2))
	}
	fmt.Fprintf(&lines, "\nTotal: %s\nStatus: %s\n", o.Total.StringFixed(2), o.Status)

	msg := mail.NewSingleEmail(from, subject, to, lines.String(), "")
	resp, err := n.client.Send(msg)
	if err != nil {
		n.lg.Warn("order confirmation email failed", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	if resp.StatusCode >= 400 {
		n.lg.Warn("order confirmation email rejected",
			zap.String("order_id", o.ID),
			zap.Int("status", resp.StatusCode),
		)
	}
}
