package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/prasiddha/kinmel/internal/domain/product"
	"github.com/prasiddha/kinmel/internal/repository"
)

type productJSON struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
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

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	categories := repository.NewCategoryRepository(pool)
	products := repository.NewProductRepository(pool)

	if err := seedCategories(ctx, categories); err != nil {
		return errors.Wrap(err, "seed categories")
	}

	if err := seedProducts(ctx, products, categories, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func seedCategories(ctx context.Context, categories *repository.CategoryRepository) error {
	slog.Info("seeding default categories", slog.Int("count", len(product.DefaultCategories)))

	return categories.SeedDefaults(ctx, product.DefaultCategories)
}

func seedProducts(
	ctx context.Context,
	products *repository.ProductRepository,
	categories *repository.CategoryRepository,
	productsFile string,
) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var entries []productJSON
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	existing, err := categories.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list categories")
	}
	categoryIDs := make(map[string]string, len(existing))
	for _, c := range existing {
		categoryIDs[c.Name] = c.ID
	}

	slog.Info("upserting products", slog.Int("count", len(entries)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, e := range entries {
		categoryID, ok := categoryIDs[e.Category]
		if e.Category != "" && !ok {
			return errors.Errorf("product %q references unknown category %q", e.Name, e.Category)
		}

		g.Go(func() error {
			p := product.Product{
				ID:         uuid.New().String(),
				Name:       e.Name,
				Price:      e.Price,
				CategoryID: categoryID,
			}
			if err := products.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", e.Name)
			}

			slog.Info("upserted product", slog.String("name", e.Name), slog.String("category", e.Category))
			return nil
		})
	}

	return g.Wait()
}
