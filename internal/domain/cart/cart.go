// Package cart implements the client-owned shopping cart: an ordered list of
// product snapshots persisted as a single serialized JSON array under the
// "cart" storage key.
package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Key is the well-known storage key the serialized cart lives under. The
// persisted value is fully overwritten on every mutation and removed on clear.
const Key = "cart"

// Item is a snapshot of a product at the moment it was added to the cart.
// UnitPrice is kept as a decimal string so that a malformed value coming from
// an old persisted cart surfaces at Total time instead of breaking decoding.
type Item struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice string `json:"price"`
	Quantity  int    `json:"quantity,omitempty"`
}

// Qty returns the effective quantity. A missing quantity means one.
func (it Item) Qty() int {
	if it.Quantity <= 0 {
		return 1
	}
	return it.Quantity
}

// Price parses the unit price of the item.
func (it Item) Price() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(it.UnitPrice)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse price for product %s", it.ProductID)
	}
	return d, nil
}

// Subtotal returns unit price times quantity for this line.
func (it Item) Subtotal() (decimal.Decimal, error) {
	price, err := it.Price()
	if err != nil {
		return decimal.Zero, err
	}
	return price.Mul(decimal.NewFromInt(int64(it.Qty()))), nil
}

// Reporter receives non-fatal cart errors: storage write failures and
// malformed prices encountered while totalling. It must not panic.
type Reporter func(error)

// Store holds the mutable cart for a single session. Mutations always apply
// in memory first; persistence failures go to the Reporter and never block
// or roll back the mutation.
type Store struct {
	owner   string
	storage Storage
	report  Reporter
	lg      *zap.Logger

	mu    sync.Mutex
	items []Item
}

// Option configures a Store.
type Option func(*Store)

// WithReporter sets the error reporter for non-fatal failures.
func WithReporter(r Reporter) Option {
	return func(s *Store) { s.report = r }
}

// WithLogger sets the logger used for storage failures.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Store) { s.lg = lg }
}

// New creates an empty cart for the given owner.
func New(owner string, storage Storage, opts ...Option) *Store {
	s := &Store{
		owner:   owner,
		storage: storage,
		lg:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.report == nil {
		s.report = func(err error) {
			s.lg.Warn("cart error", zap.String("owner", owner), zap.Error(err))
		}
	}
	return s
}

// Load rehydrates a cart from persisted storage. A missing key yields an
// empty cart; corrupted persisted data is an error so the caller can decide
// whether to start fresh.
func Load(ctx context.Context, owner string, storage Storage, opts ...Option) (*Store, error) {
	s := New(owner, storage, opts...)

	data, err := storage.Read(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s, nil
		}
		return nil, errors.Wrap(err, "read cart")
	}

	if err := json.Unmarshal(data, &s.items); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return s, nil
}

// FromItems builds a cart preloaded with the given lines without touching
// persisted storage. Used when the client submits its own cart copy at
// checkout: nothing may be written unless the order goes through, at which
// point Clear removes the persisted key.
func FromItems(owner string, storage Storage, items []Item, opts ...Option) *Store {
	s := New(owner, storage, opts...)
	s.items = make([]Item, len(items))
	copy(s.items, items)
	return s
}

// Add appends an item to the cart. Duplicate product IDs are allowed: two
// adds of the same product produce two distinct lines.
func (s *Store) Add(ctx context.Context, item Item) {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()

	s.persist(ctx)
}

// Remove deletes the item at the given position and re-persists. An
// out-of-range index is a no-op and leaves persisted state untouched.
func (s *Store) Remove(ctx context.Context, index int) {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	s.mu.Unlock()

	s.persist(ctx)
}

// Items returns a copy of the current cart lines in order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of lines in the cart.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Total recomputes the cart total from the current items on every call.
// A line with a malformed price is reported through the Reporter and
// skipped; Total never panics on bad persisted data.
func (s *Store) Total() decimal.Decimal {
	items := s.Items()

	total := decimal.Zero
	for _, it := range items {
		sub, err := it.Subtotal()
		if err != nil {
			s.report(err)
			continue
		}
		total = total.Add(sub)
	}
	return total
}

// Clear empties the cart and removes the persisted key.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	if err := s.storage.Remove(ctx, s.owner); err != nil && !errors.Is(err, ErrNotFound) {
		s.report(errors.Wrap(err, "remove persisted cart"))
	}
}

// persist rewrites the full serialized cart. Failures are reported and
// logged but never propagate: the in-memory cart is authoritative for the
// current session.
func (s *Store) persist(ctx context.Context) {
	s.mu.Lock()
	data, err := json.Marshal(s.items)
	s.mu.Unlock()
	if err != nil {
		s.report(errors.Wrap(err, "encode cart"))
		return
	}

	if err := s.storage.Write(ctx, s.owner, data); err != nil {
		s.report(errors.Wrap(err, "persist cart"))
	}
}
