// Command seed-db loads menu products into the database and optionally mints
// demo access tokens for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mesafood/comanda/internal/domain/auth"
	"github.com/mesafood/comanda/internal/postgres"
)

type productJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		tokenSecret  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&tokenSecret, "token-secret", "", "mint demo tokens with this HMAC secret (or COMANDA_TOKEN_SECRET env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if tokenSecret == "" {
		tokenSecret = os.Getenv("COMANDA_TOKEN_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, tokenSecret); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, tokenSecret string) error {
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

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if tokenSecret != "" {
		if err := printDemoTokens(tokenSecret); err != nil {
			return errors.Wrap(err, "mint demo tokens")
		}
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, name, description, price, category, image_url, stock_quantity, is_available)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	price = EXCLUDED.price,
	category = EXCLUDED.category,
	image_url = EXCLUDED.image_url,
	stock_quantity = EXCLUDED.stock_quantity,
	is_available = TRUE,
	updated_at = now()`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.StockQuantity,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

// printDemoTokens mints one token per role so local clients can exercise the
// API and websocket endpoint without an identity provider.
func printDemoTokens(secret string) error {
	demo := []struct {
		userID string
		role   auth.Role
	}{
		{"demo-customer", auth.RoleCustomer},
		{"demo-staff", auth.RoleStaff},
		{"demo-admin", auth.RoleAdmin},
	}

	for _, d := range demo {
		token, err := auth.IssueToken([]byte(secret), d.userID, d.role, 24*time.Hour)
		if err != nil {
			return errors.Wrapf(err, "issue token for %s", d.userID)
		}
		slog.Info("demo token",
			slog.String("user_id", d.userID),
			slog.String("role", string(d.role)),
			slog.String("token", token),
		)
	}
	return nil
}
