package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sellergate/storefront/internal/domain/buyer"
	"github.com/sellergate/storefront/internal/domain/cart"
	"github.com/sellergate/storefront/internal/domain/order"
	"github.com/sellergate/storefront/internal/gateway"
)

// Validation errors, rejected before any network call.
var (
	ErrEmptyCart  = errors.New("cart is empty")
	ErrNotAllowed = errors.New("checkout not allowed")
)

// SettledNotRecordedError is the dangerous partial failure: the gateway
// settled the payment but the order write failed, so the buyer has been
// charged with no order record. It is logged at error level and surfaced
// distinctly from a plain decline so operators can reconcile manually by
// gateway transaction id.
type SettledNotRecordedError struct {
	TransactionID string
	Err           error
}

func (e *SettledNotRecordedError) Error() string {
	return fmt.Sprintf("payment settled (transaction %s) but order not recorded: %v", e.TransactionID, e.Err)
}

func (e *SettledNotRecordedError) Unwrap() error {
	return e.Err
}

// Notifier delivers the order confirmation. Implementations must tolerate
// being called after the response is committed; delivery failures are logged
// and never affect the order.
type Notifier interface {
	OrderPlaced(ctx context.Context, b *buyer.Buyer, o *order.Order)
}

// Orchestrator runs the settle-then-persist pipeline. The cart is cleared
// only after the repository confirms the write; on a decline or a write
// failure the cart is left byte-for-byte unchanged.
type Orchestrator struct {
	guard    *Guard
	orders   order.Repository
	notifier Notifier
	lg       *zap.Logger
	now      func() time.Time
}

// NewOrchestrator wires the orchestrator. notifier may be nil.
func NewOrchestrator(guard *Guard, orders order.Repository, notifier Notifier, lg *zap.Logger) *Orchestrator {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Orchestrator{
		guard:    guard,
		orders:   orders,
		notifier: notifier,
		lg:       lg,
		now:      time.Now,
	}
}

// PlaceOrder settles the current cart total against the collected nonce and
// persists the resulting order.
//
// Preconditions: the guard allows checkout and the cart is non-empty; both
// are re-checked here and fail before any gateway traffic. The settlement
// amount is the cart total at this moment, not a value captured at page
// load. On success exactly one order write and exactly one cart clear
// happen, in that order.
func (o *Orchestrator) PlaceOrder(ctx context.Context, b *buyer.Buyer, crt *cart.Store, co *gateway.Checkout) (*order.Order, error) {
	if d := o.guard.Check(b, "checkout"); d.Verdict != Allowed {
		return nil, errors.Wrapf(ErrNotAllowed, "%s", d.Verdict)
	}

	items := crt.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	// Snapshot the cart before settlement. A malformed price is a
	// validation failure here, not a charge followed by a broken order.
	snapshots := make([]order.Snapshot, len(items))
	total := decimal.Zero
	for i, it := range items {
		price, err := it.Price()
		if err != nil {
			return nil, errors.Wrap(err, "invalid cart item")
		}
		snapshots[i] = order.Snapshot{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     price,
			Quantity:  it.Qty(),
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Qty()))))
	}

	tx, err := co.Settle(ctx, total)
	if err != nil {
		// Declined or gateway failure: no order, cart untouched.
		return nil, err
	}

	ord := &order.Order{
		ID:       uuid.New().String(),
		BuyerID:  b.ID,
		Products: snapshots,
		Total:    total,
		Payment: order.Payment{
			TransactionID: tx.ID,
			Status:        tx.Status,
		},
		Status:    order.DefaultStatus,
		CreatedAt: o.now(),
	}

	if err := o.orders.Create(ctx, ord); err != nil {
		o.lg.Error("order not recorded after settlement",
			zap.String("transaction_id", tx.ID),
			zap.String("buyer_id", b.ID),
			zap.String("amount", total.StringFixed(2)),
			zap.Error(err),
		)
		return nil, &SettledNotRecordedError{TransactionID: tx.ID, Err: err}
	}

	crt.Clear(ctx)

	if o.notifier != nil {
		o.notifier.OrderPlaced(ctx, b, ord)
	}
	return ord, nil
}
