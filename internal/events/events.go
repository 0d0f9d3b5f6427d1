// Package events defines the lifecycle events emitted by the order pipeline
// and the publisher contract used to fan them out. Publication is best-effort
// and happens only after the underlying transaction has committed; a failed
// delivery is logged and never propagated back to the caller.
package events

import (
	"context"
	"time"
)

// Event names carried on the wire.
const (
	NewOrder               = "new_order"
	OrderStatusChanged     = "order_status_changed"
	OrderUpdated           = "order_updated"
	KitchenStatus          = "kitchen_status"
	CustomerSupportMessage = "customer_support_message"
	SupportResponse        = "support_response"
)

// Event is a named payload delivered to one or more rooms.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// NewOrderData notifies staff about a freshly created order.
type NewOrderData struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	OrderType   string    `json:"order_type"`
	TotalAmount string    `json:"total_amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// StatusChangedData notifies the owning customer about a lifecycle change.
type StatusChangedData struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrderUpdatedData mirrors a lifecycle or payment change to the staff pool.
type OrderUpdatedData struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Timestamp     time.Time `json:"timestamp"`
}

// KitchenStatusData is a kitchen-wide progress update.
type KitchenStatusData struct {
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	EstimatedTime int       `json:"estimated_time,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// SupportMessageData carries a support chat message between a customer and
// the staff pool.
type SupportMessageData struct {
	UserID    string    `json:"user_id"`
	From      string    `json:"from"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher fans events out to connected sessions. Implementations must not
// block the caller and must not return delivery failures: emission is
// decoupled from the transactional path.
type Publisher interface {
	// ToUser delivers to the per-user room of the given user.
	ToUser(ctx context.Context, userID string, ev Event)
	// ToStaff delivers to the staff-pool room.
	ToStaff(ctx context.Context, ev Event)
	// ToTable delivers to an ad-hoc table room.
	ToTable(ctx context.Context, tableID string, ev Event)
	// Broadcast delivers to every connected session.
	Broadcast(ctx context.Context, ev Event)
}

// Nop is a Publisher that discards all events.
type Nop struct{}

func (Nop) ToUser(context.Context, string, Event)  {}
func (Nop) ToStaff(context.Context, Event)         {}
func (Nop) ToTable(context.Context, string, Event) {}
func (Nop) Broadcast(context.Context, Event)       {}

// Fanout delivers every event to each wrapped publisher in order.
type Fanout []Publisher

func (f Fanout) ToUser(ctx context.Context, userID string, ev Event) {
	for _, p := range f {
		p.ToUser(ctx, userID, ev)
	}
}

func (f Fanout) ToStaff(ctx context.Context, ev Event) {
	for _, p := range f {
		p.ToStaff(ctx, ev)
	}
}

func (f Fanout) ToTable(ctx context.Context, tableID string, ev Event) {
	for _, p := range f {
		p.ToTable(ctx, tableID, ev)
	}
}

func (f Fanout) Broadcast(ctx context.Context, ev Event) {
	for _, p := range f {
		p.Broadcast(ctx, ev)
	}
}
