//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/sellergate/storefront/internal/domain/buyer"
	"github.com/sellergate/storefront/internal/domain/order"
	"github.com/sellergate/storefront/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Printf("terminate container: %v", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = postgres.NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	return m.Run()
}

func createTestBuyer(t *testing.T) *buyer.Buyer {
	t.Helper()
	repo := postgres.NewBuyerRepository(pool)
	b := &buyer.Buyer{
		ID:           uuid.New().String(),
		Name:         "Ada",
		Email:        fmt.Sprintf("%s@example.com", uuid.New().String()[:8]),
		PasswordHash: "x",
		Role:         buyer.RoleBuyer,
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func testOrder(buyerID string) *order.Order {
	return &order.Order{
		ID:      uuid.New().String(),
		BuyerID: buyerID,
		Products: []order.Snapshot{
			{ProductID: "p1", Name: "Widget", Price: decimal.RequireFromString("99.95"), Quantity: 2},
			{ProductID: "p2", Name: "Gadget", Price: decimal.RequireFromString("100.10"), Quantity: 1},
		},
		Total: decimal.RequireFromString("300.00"),
		Payment: order.Payment{
			TransactionID: "tx-" + uuid.New().String()[:8],
			Status:        "submitted_for_settlement",
		},
	}
}

func TestOrderRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewOrderRepository(pool)
	b := createTestBuyer(t)

	ord := testOrder(b.ID)
	// Whatever the caller set, a fresh order starts at the default status.
	ord.Status = order.StatusShipped
	require.NoError(t, repo.Create(ctx, ord))

	got, err := repo.FindByID(ctx, ord.ID)
	require.NoError(t, err)

	assert.Equal(t, ord.ID, got.ID)
	assert.Equal(t, b.ID, got.BuyerID)
	assert.Equal(t, order.StatusNotProcess, got.Status)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("300.00")))
	assert.Equal(t, ord.Payment.TransactionID, got.Payment.TransactionID)

	require.Len(t, got.Products, 2)
	assert.Equal(t, "Widget", got.Products[0].Name)
	assert.True(t, got.Products[0].Price.Equal(decimal.RequireFromString("99.95")))
	assert.Equal(t, 2, got.Products[0].Quantity)
}

func TestOrderRepository_FindByBuyer(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewOrderRepository(pool)
	b := createTestBuyer(t)
	other := createTestBuyer(t)

	first := testOrder(b.ID)
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, first))

	second := testOrder(b.ID)
	require.NoError(t, repo.Create(ctx, second))

	require.NoError(t, repo.Create(ctx, testOrder(other.ID)))

	got, err := repo.FindByBuyer(ctx, b.ID)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "newest first")
	assert.Equal(t, first.ID, got[1].ID)
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewOrderRepository(pool)
	b := createTestBuyer(t)

	ord := testOrder(b.ID)
	require.NoError(t, repo.Create(ctx, ord))

	require.NoError(t, repo.UpdateStatus(ctx, ord.ID, order.StatusDelivered))

	got, err := repo.FindByID(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)
	assert.Equal(t, "deliverd", string(got.Status))

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", order.StatusShipped), order.ErrNotFound)
}

func TestOrderRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewOrderRepository(pool)
	b := createTestBuyer(t)

	ord := testOrder(b.ID)
	require.NoError(t, repo.Create(ctx, ord))

	require.NoError(t, repo.Delete(ctx, ord.ID))

	_, err := repo.FindByID(ctx, ord.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, ord.ID), order.ErrNotFound)
}

func TestBuyerRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewBuyerRepository(pool)
	b := createTestBuyer(t)

	dup := &buyer.Buyer{
		ID:           uuid.New().String(),
		Name:         "Imposter",
		Email:        b.Email,
		PasswordHash: "y",
		Role:         buyer.RoleBuyer,
	}
	assert.ErrorIs(t, repo.Create(ctx, dup), buyer.ErrEmailTaken)
}

func TestBuyerRepository_UpdateAddress(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewBuyerRepository(pool)
	b := createTestBuyer(t)

	got, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Address)

	addr := buyer.Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"}
	require.NoError(t, repo.UpdateAddress(ctx, b.ID, addr))

	got, err = repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Address)
	assert.Equal(t, addr, *got.Address)

	assert.ErrorIs(t, repo.UpdateAddress(ctx, "missing", addr), buyer.ErrNotFound)
}
