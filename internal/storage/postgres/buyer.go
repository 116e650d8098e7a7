package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellergate/storefront/internal/domain/buyer"
)

const (
	createBuyerSQL = `INSERT INTO buyers (id, name, email, phone, password_hash, address, role)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectBuyerSQL = `SELECT id, name, email, phone, password_hash, address, role FROM buyers`

	updateBuyerAddressSQL = `UPDATE buyers SET address = $2 WHERE id = $1`
)

// uniqueViolation is the postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

var _ buyer.Repository = (*BuyerRepository)(nil)

// BuyerRepository implements buyer.Repository backed by PostgreSQL.
type BuyerRepository struct {
	pool *pgxpool.Pool
}

// NewBuyerRepository returns a BuyerRepository that uses the given pool.
func NewBuyerRepository(pool *pgxpool.Pool) *BuyerRepository {
	return &BuyerRepository{pool: pool}
}

// Create persists a new buyer. A duplicate email maps to ErrEmailTaken.
func (r *BuyerRepository) Create(ctx context.Context, b *buyer.Buyer) error {
	var addrJSON []byte
	if b.Address != nil {
		var err error
		addrJSON, err = json.Marshal(b.Address)
		if err != nil {
			return fmt.Errorf("marshaling buyer address: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx, createBuyerSQL,
		b.ID, b.Name, b.Email, b.Phone, b.PasswordHash, addrJSON, b.Role,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return buyer.ErrEmailTaken
		}
		return fmt.Errorf("creating buyer %q: %w", b.Email, err)
	}
	return nil
}

// FindByID returns a buyer by identifier.
func (r *BuyerRepository) FindByID(ctx context.Context, id string) (*buyer.Buyer, error) {
	return r.findOne(ctx, selectBuyerSQL+` WHERE id = $1`, id)
}

// FindByEmail returns a buyer by email.
func (r *BuyerRepository) FindByEmail(ctx context.Context, email string) (*buyer.Buyer, error) {
	return r.findOne(ctx, selectBuyerSQL+` WHERE email = $1`, email)
}

// UpdateAddress replaces the buyer's shipping address.
func (r *BuyerRepository) UpdateAddress(ctx context.Context, id string, addr buyer.Address) error {
	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("marshaling buyer address: %w", err)
	}

	tag, err := r.pool.Exec(ctx, updateBuyerAddressSQL, id, addrJSON)
	if err != nil {
		return fmt.Errorf("updating address of buyer %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return buyer.ErrNotFound
	}
	return nil
}

func (r *BuyerRepository) findOne(ctx context.Context, query string, arg any) (*buyer.Buyer, error) {
	var (
		b        buyer.Buyer
		addrJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&b.ID, &b.Name, &b.Email, &b.Phone, &b.PasswordHash, &addrJSON, &b.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, buyer.ErrNotFound
		}
		return nil, fmt.Errorf("getting buyer: %w", err)
	}

	if len(addrJSON) > 0 {
		var addr buyer.Address
		if err := json.Unmarshal(addrJSON, &addr); err != nil {
			return nil, fmt.Errorf("unmarshaling buyer address: %w", err)
		}
		b.Address = &addr
	}
	return &b, nil
}
