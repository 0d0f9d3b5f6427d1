package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mesafood/comanda/internal/domain/catalog"
)

// CartItem is a raw, client-supplied order line. Prices are never taken from
// the client; the catalog price at validation time is authoritative.
type CartItem struct {
	ProductID       string
	Quantity        int
	SpecialRequests string
}

// Quote is the result of validating and pricing a cart.
type Quote struct {
	Items          []LineItem
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// DiscountPolicy computes a discount for a priced cart. The default policy
// grants none.
type DiscountPolicy interface {
	Discount(ctx context.Context, items []LineItem, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// NoDiscount is the default DiscountPolicy.
type NoDiscount struct{}

func (NoDiscount) Discount(context.Context, []LineItem, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// Pricer resolves cart items against the catalog and computes order totals
// with fixed-point arithmetic.
type Pricer struct {
	catalog  catalog.Repository
	taxRate  decimal.Decimal
	discount DiscountPolicy
}

// NewPricer creates a Pricer. The tax rate is a fraction (0.10 for 10%).
func NewPricer(cat catalog.Repository, taxRate decimal.Decimal, discount DiscountPolicy) *Pricer {
	if discount == nil {
		discount = NoDiscount{}
	}
	return &Pricer{catalog: cat, taxRate: taxRate, discount: discount}
}

// Quote validates the cart and order shape, then prices it:
//   - every product must exist, be available, and have sufficient stock;
//   - delivery orders require a non-blank delivery address;
//   - subtotal is the exact sum of line totals; tax is rounded half-up to the
//     smallest currency unit once, at the end, not per line.
//
// Stock is checked again inside the creation transaction; this check exists
// to reject hopeless carts before any write.
func (p *Pricer) Quote(ctx context.Context, typ Type, deliveryAddress string, items []CartItem) (*Quote, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if _, ok := ParseType(string(typ)); !ok {
		return nil, errors.Wrapf(ErrInvalidOrderType, "%q", typ)
	}
	if typ == TypeDelivery && strings.TrimSpace(deliveryAddress) == "" {
		return nil, ErrMissingDeliveryAddress
	}

	// A product may appear on several lines (different special requests);
	// stock is checked against the combined quantity.
	ids := make([]string, len(items))
	combined := make(map[string]int, len(items))
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
		combined[item.ProductID] += item.Quantity
	}

	fetched, err := p.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	products := make(map[string]catalog.Product, len(fetched))
	for _, pr := range fetched {
		products[pr.ID] = pr
	}

	q := &Quote{
		Items:    make([]LineItem, 0, len(items)),
		Subtotal: decimal.Zero,
	}
	for _, item := range items {
		pr, ok := products[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if !pr.Available {
			return nil, &ProductUnavailableError{ProductID: pr.ID, Name: pr.Name}
		}
		if pr.StockQuantity < combined[pr.ID] {
			return nil, &InsufficientStockError{
				ProductID: pr.ID,
				Requested: combined[pr.ID],
				Available: pr.StockQuantity,
			}
		}

		lineTotal := pr.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		q.Items = append(q.Items, LineItem{
			ProductID:       pr.ID,
			ProductName:     pr.Name,
			Quantity:        item.Quantity,
			UnitPrice:       pr.Price,
			TotalPrice:      lineTotal,
			SpecialRequests: item.SpecialRequests,
		})
		q.Subtotal = q.Subtotal.Add(lineTotal)
	}

	q.TaxAmount = q.Subtotal.Mul(p.taxRate).Round(2)

	discount, err := p.discount.Discount(ctx, q.Items, q.Subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "apply discount")
	}
	q.DiscountAmount = discount.Round(2)

	q.TotalAmount = q.Subtotal.Add(q.TaxAmount).Sub(q.DiscountAmount)
	if q.TotalAmount.IsNegative() {
		q.TotalAmount = decimal.Zero
	}
	return q, nil
}
