// Command seed-db populates the database with a product catalog and an
// admin account for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellergate/storefront/internal/domain/buyer"
	"github.com/sellergate/storefront/internal/domain/product"
	"github.com/sellergate/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Quantity    int             `json:"quantity"`
	Shipping    bool            `json:"shipping"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		fakeProducts  int
		adminEmail    string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (optional)")
	flag.IntVar(&fakeProducts, "fake-products", 20, "number of generated products when no file is given")
	flag.StringVar(&adminEmail, "admin-email", "", "admin account email (or STORE_SEED_ADMIN_EMAIL env)")
	flag.StringVar(&adminPassword, "admin-password", "", "admin account password (or STORE_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminEmail == "" {
		adminEmail = os.Getenv("STORE_SEED_ADMIN_EMAIL")
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("STORE_SEED_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, fakeProducts, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, fakeProducts int, adminEmail, adminPassword string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := postgres.NewProductRepository(pool)
	if err := seedProducts(ctx, products, productsFile, fakeProducts); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if adminEmail != "" && adminPassword != "" {
		buyers := postgres.NewBuyerRepository(pool)
		if err := seedAdmin(ctx, buyers, adminEmail, adminPassword); err != nil {
			return errors.Wrap(err, "seed admin")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, repo product.Repository, file string, fakeCount int) error {
	var items []productJSON

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, "read %s", file)
		}
		if err := json.Unmarshal(data, &items); err != nil {
			return errors.Wrap(err, "decode products file")
		}
	} else {
		items = fakeCatalog(fakeCount)
	}

	for _, pj := range items {
		p := &product.Product{
			ID:          pj.ID,
			Name:        pj.Name,
			Description: pj.Description,
			Price:       pj.Price,
			Category:    pj.Category,
			Quantity:    pj.Quantity,
			Shipping:    pj.Shipping,
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}
	}

	slog.Info("products seeded", slog.Int("count", len(items)))
	return nil
}

func fakeCatalog(n int) []productJSON {
	items := make([]productJSON, n)
	for i := range items {
		items[i] = productJSON{
			ID:          uuid.New().String(),
			Name:        gofakeit.ProductName(),
			Description: gofakeit.ProductDescription(),
			Price:       decimal.NewFromFloat(gofakeit.Price(5, 500)).Round(2),
			Category:    gofakeit.ProductCategory(),
			Quantity:    gofakeit.Number(1, 100),
			Shipping:    gofakeit.Bool(),
		}
	}
	return items
}

func seedAdmin(ctx context.Context, repo buyer.Repository, email, password string) error {
	hash, err := buyer.HashPassword(password)
	if err != nil {
		return err
	}

	b := &buyer.Buyer{
		ID:           uuid.New().String(),
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         buyer.RoleAdmin,
	}
	if err := repo.Create(ctx, b); err != nil {
		if errors.Is(err, buyer.ErrEmailTaken) {
			slog.Info("admin account already exists", slog.String("email", email))
			return nil
		}
		return err
	}

	slog.Info("admin account created", slog.String("email", email))
	return nil
}
