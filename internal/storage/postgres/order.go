package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sellergate/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, buyer_id, products, total, payment, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	selectOrderSQL = `SELECT id, buyer_id, products, total, payment, status, created_at, updated_at
	FROM orders`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The product snapshots and payment record are
// serialized to JSONB and the status always starts at the default,
// regardless of what the caller set.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	productsJSON, err := json.Marshal(o.Products)
	if err != nil {
		return fmt.Errorf("marshaling order products: %w", err)
	}
	paymentJSON, err := json.Marshal(o.Payment)
	if err != nil {
		return fmt.Errorf("marshaling order payment: %w", err)
	}

	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	o.Status = order.DefaultStatus
	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.BuyerID, productsJSON, o.Total, paymentJSON, o.Status, createdAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// FindByID returns a single order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrderSQL+` WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// FindByBuyer returns all orders placed by the given buyer, newest first.
func (r *OrderRepository) FindByBuyer(ctx context.Context, buyerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrderSQL+` WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for buyer %q: %w", buyerID, err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// FindAll returns every order, newest first.
func (r *OrderRepository) FindAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrderSQL+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// UpdateStatus sets the order status. The status value has already been
// validated against the enum; no transition-legality check is applied here.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, status)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Delete removes an order. Administrative use only.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o            order.Order
		productsJSON []byte
		paymentJSON  []byte
		total        decimal.Decimal
		status       string
	)
	if err := row.Scan(&o.ID, &o.BuyerID, &productsJSON, &total, &paymentJSON, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(productsJSON, &o.Products); err != nil {
		return nil, fmt.Errorf("unmarshaling order products: %w", err)
	}
	if err := json.Unmarshal(paymentJSON, &o.Payment); err != nil {
		return nil, fmt.Errorf("unmarshaling order payment: %w", err)
	}
	o.Total = total
	o.Status = order.Status(status)
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]order.Order, error) {
	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return out, nil
}
