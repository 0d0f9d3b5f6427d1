package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order validation and lifecycle operations.
var (
	ErrEmptyOrder             = errors.New("order must contain at least one item")
	ErrInvalidOrderType       = errors.New("invalid order type")
	ErrMissingDeliveryAddress = errors.New("delivery address required for delivery orders")
	ErrNotFound               = errors.New("order not found")
	ErrNotCancellable         = errors.New("order can no longer be cancelled")
	// ErrStockRace is returned when stock became insufficient between
	// validation and commit. The whole transaction is rolled back and the
	// caller may retry the operation.
	ErrStockRace = errors.New("stock changed concurrently")
)

// ProductNotFoundError indicates a line item references an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ProductUnavailableError indicates a line item references a product that is
// not currently orderable.
type ProductUnavailableError struct {
	ProductID string
	Name      string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.Name)
}

// InsufficientStockError indicates the requested quantity exceeds the
// product's current stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidQuantityError indicates a line item has a quantity below one.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for product %s", e.ProductID)
}

// IllegalTransitionError indicates a status change that the lifecycle state
// machine does not permit.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// IllegalPaymentTransitionError indicates a payment status change that the
// payment state machine does not permit.
type IllegalPaymentTransitionError struct {
	From PaymentStatus
	To   PaymentStatus
}

func (e *IllegalPaymentTransitionError) Error() string {
	return fmt.Sprintf("illegal payment status transition %s -> %s", e.From, e.To)
}
