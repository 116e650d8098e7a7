// Command catalog-ingest bulk-imports gzipped catalog dumps. Each input file
// is a gzip-compressed stream of one product JSON object per line; files are
// processed concurrently and rows are upserted so re-running an import is
// safe.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sellergate/storefront/internal/domain/product"
	"github.com/sellergate/storefront/internal/storage/postgres"
)

const progressEvery = 10_000

type productLine struct {
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
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog*.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "catalog*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no catalog*.gz files in %s", dataDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)

	slog.Info("ingesting catalog files", slog.Int("files", len(files)))

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			n, err := ingestFile(gctx, repo, file)
			if err != nil {
				return errors.Wrapf(err, "ingest %s", file)
			}
			total.Add(n)
			slog.Info("file done", slog.String("file", file), slog.Int64("products", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest done", slog.Int64("products", total.Load()))
	return nil
}

func ingestFile(ctx context.Context, repo product.Repository, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	var count int64
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var pl productLine
		if err := json.Unmarshal(line, &pl); err != nil {
			return count, errors.Wrapf(err, "line %d", count+1)
		}
		if pl.ID == "" {
			pl.ID = uuid.New().String()
		}

		err := repo.Upsert(ctx, &product.Product{
			ID:          pl.ID,
			Name:        pl.Name,
			Description: pl.Description,
			Price:       pl.Price,
			Category:    pl.Category,
			Quantity:    pl.Quantity,
			Shipping:    pl.Shipping,
		})
		if err != nil {
			return count, err
		}

		count++
		if count%progressEvery == 0 {
			slog.Info("progress", slog.String("file", path), slog.Int64("products", count))
		}
	}
	if err := scanner.Err(); err != nil {
		return count, errors.Wrap(err, "scan gzip stream")
	}
	return count, nil
}
