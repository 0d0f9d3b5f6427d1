package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mesafood/comanda/internal/domain/catalog"
	"github.com/mesafood/comanda/internal/events"
)

// PlaceOrderRequest holds the input for creating an order. The user identity
// comes from the authenticated request, never from the body.
type PlaceOrderRequest struct {
	UserID              string
	TableID             string
	Type                Type
	Items               []CartItem
	DeliveryAddress     string
	SpecialInstructions string
}

// Service is the order transaction manager. It validates and prices carts,
// executes order creation and cancellation atomically through the repository,
// enforces the lifecycle state machines, and emits events after commit.
type Service struct {
	orders    Repository
	pricer    *Pricer
	publisher events.Publisher

	ordersCreated   metric.Int64Counter
	ordersCancelled metric.Int64Counter
}

// NewService creates the order service. The publisher is invoked only after
// a successful commit; pass events.Nop when fan-out is not wired.
func NewService(
	cat catalog.Repository,
	orders Repository,
	publisher events.Publisher,
	taxRate decimal.Decimal,
	discount DiscountPolicy,
	meter metric.Meter,
) (*Service, error) {
	created, err := meter.Int64Counter("orders_created_total")
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	cancelled, err := meter.Int64Counter("orders_cancelled_total")
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	return &Service{
		orders:          orders,
		pricer:          NewPricer(cat, taxRate, discount),
		publisher:       publisher,
		ordersCreated:   created,
		ordersCancelled: cancelled,
	}, nil
}

// PlaceOrder validates and prices the cart, then persists the order header,
// its line items, and the stock decrement as a single transaction. Stock is
// re-checked inside the transaction; a concurrent depletion rolls everything
// back and surfaces ErrStockRace.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	quote, err := s.pricer.Quote(ctx, req.Type, req.DeliveryAddress, req.Items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:                  uuid.NewString(),
		Number:              NewNumber(),
		UserID:              req.UserID,
		TableID:             req.TableID,
		Type:                req.Type,
		Items:               quote.Items,
		Subtotal:            quote.Subtotal,
		TaxAmount:           quote.TaxAmount,
		DiscountAmount:      quote.DiscountAmount,
		TotalAmount:         quote.TotalAmount,
		Status:              StatusPending,
		PaymentStatus:       PaymentPending,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.ordersCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order_type", string(o.Type)),
	))
	s.publisher.ToStaff(ctx, events.Event{
		Name: events.NewOrder,
		Data: events.NewOrderData{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			UserID:      o.UserID,
			OrderType:   string(o.Type),
			TotalAmount: o.TotalAmount.StringFixed(2),
			Timestamp:   time.Now().UTC(),
		},
	})
	return o, nil
}

// Get returns a single order with its line items.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.FindByID(ctx, id)
}

// List returns orders matching the conjunctive filter, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	return s.orders.List(ctx, f)
}

// UpdateStatus applies a lifecycle transition. Legality is checked against the
// state machine inside the repository transaction; an illegal move is rejected
// without persisting. On success the owning user and the staff pool are each
// notified.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	o, err := s.orders.Transition(ctx, id, to)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, o)
	return o, nil
}

// UpdatePayment applies a payment status transition, recording the payment
// method when provided. Payment state is independent of the order lifecycle.
func (s *Service) UpdatePayment(ctx context.Context, id string, to PaymentStatus, method string) (*Order, error) {
	o, err := s.orders.TransitionPayment(ctx, id, to, method)
	if err != nil {
		return nil, err
	}
	s.publisher.ToStaff(ctx, events.Event{
		Name: events.OrderUpdated,
		Data: events.OrderUpdatedData{
			OrderID:       o.ID,
			OrderNumber:   o.Number,
			UserID:        o.UserID,
			Status:        string(o.Status),
			PaymentStatus: string(o.PaymentStatus),
			Timestamp:     time.Now().UTC(),
		},
	})
	return o, nil
}

// Cancel atomically restores stock for every line item and moves the order to
// the cancelled status. Terminal orders are rejected with ErrNotCancellable.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.ordersCancelled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order_type", string(o.Type)),
	))
	s.notifyStatus(ctx, o)
	return o, nil
}

// notifyStatus delivers a lifecycle change to the owning user's room and the
// staff pool as two independent deliveries.
func (s *Service) notifyStatus(ctx context.Context, o *Order) {
	now := time.Now().UTC()
	s.publisher.ToUser(ctx, o.UserID, events.Event{
		Name: events.OrderStatusChanged,
		Data: events.StatusChangedData{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			Status:      string(o.Status),
			Message:     o.Status.Message(),
			Timestamp:   now,
		},
	})
	s.publisher.ToStaff(ctx, events.Event{
		Name: events.OrderUpdated,
		Data: events.OrderUpdatedData{
			OrderID:       o.ID,
			OrderNumber:   o.Number,
			UserID:        o.UserID,
			Status:        string(o.Status),
			PaymentStatus: string(o.PaymentStatus),
			Timestamp:     now,
		},
	})
}
