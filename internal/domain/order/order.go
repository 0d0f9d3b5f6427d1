// Package order implements the order transaction pipeline: cart validation
// and pricing, atomic persistence with stock reservation, the status
// lifecycle, and cancellation with stock restoration.
package order

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type distinguishes how an order is fulfilled.
type Type string

const (
	TypeDineIn   Type = "dine_in"
	TypeTakeaway Type = "takeaway"
	TypeDelivery Type = "delivery"
)

// ParseType validates a raw order type string.
func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case TypeDineIn, TypeTakeaway, TypeDelivery:
		return t, true
	}
	return "", false
}

// LineItem is a single priced line of an order. The unit price is captured
// from the catalog at order time and never re-read afterwards.
type LineItem struct {
	ProductID       string
	ProductName     string
	Quantity        int
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	SpecialRequests string
}

// Order is a committed customer order. It is created in one atomic step and
// afterwards mutated only through status transitions or cancellation.
type Order struct {
	ID                  string
	Number              string
	UserID              string
	TableID             string
	Type                Type
	Items               []LineItem
	Subtotal            decimal.Decimal
	TaxAmount           decimal.Decimal
	DiscountAmount      decimal.Decimal
	TotalAmount         decimal.Decimal
	Status              Status
	PaymentStatus       PaymentStatus
	PaymentMethod       string
	DeliveryAddress     string
	SpecialInstructions string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Filter narrows order listings. Filters combine conjunctively; zero values
// mean "no constraint". Results are always newest-first.
type Filter struct {
	Status   Status
	Type     Type
	UserID   string
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
	Offset   int
}

// Repository defines persistence for orders. Create and Cancel span the order
// header, its line items, and the matching stock adjustment in one database
// transaction; Transition and TransitionPayment re-check legality against the
// state machine inside the transaction before persisting.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	Cancel(ctx context.Context, id string) (*Order, error)
	Transition(ctx context.Context, id string, to Status) (*Order, error)
	TransitionPayment(ctx context.Context, id string, to PaymentStatus, method string) (*Order, error)
}

const numberAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewNumber generates a human-readable order number: a millisecond timestamp
// plus a random base36 suffix. Uniqueness is still enforced by the store; on
// conflict the caller generates a fresh number.
func NewNumber() string {
	var sb strings.Builder
	for range 5 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(numberAlphabet))))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(err)
		}
		sb.WriteByte(numberAlphabet[n.Int64()])
	}
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), strings.ToUpper(sb.String()))
}
