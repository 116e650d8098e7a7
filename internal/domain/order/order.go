// Package order defines the durable purchase record and its status
// lifecycle.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Snapshot is a product line captured at order time. Price is the unit price
// the buyer was charged; later catalog changes never alter it.
type Snapshot struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Payment is the gateway settlement result attached to the order.
type Payment struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// Order is the persisted record of a completed purchase.
type Order struct {
	ID        string
	BuyerID   string
	Products  []Snapshot
	Total     decimal.Decimal
	Payment   Payment
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for orders. Create always stores
// the order with the default status regardless of caller input. Reads never
// mutate. UpdateStatus rejects unknown status values but performs no
// transition-legality validation; transitions are administrative.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	FindAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
}
