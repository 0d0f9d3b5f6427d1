// Package catalog holds the product catalog model consumed by the order
// pipeline. Stock mutations happen through the order repository so that they
// share the order transaction; this package only defines read contracts.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a menu item available for ordering.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	Category      string
	ImageURL      string
	StockQuantity int
	Available     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Filter narrows catalog listings. Zero values mean "no constraint".
type Filter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
