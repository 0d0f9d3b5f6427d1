package order

// Status is the order lifecycle state. The happy path is linear:
// pending -> confirmed -> preparing -> ready -> delivered. Cancellation is
// reachable from any non-terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var statusNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusPreparing: true, StatusCancelled: true},
	StatusPreparing: {StatusReady: true, StatusCancelled: true},
	StatusReady:     {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := statusNext[st]
	return st, ok
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to Status) bool {
	return statusNext[from][to]
}

// Terminal reports whether no further transition is legal from this status.
func (s Status) Terminal() bool {
	return len(statusNext[s]) == 0
}

// Message returns the customer-facing description for a status, used in
// order_status_changed notifications.
func (s Status) Message() string {
	switch s {
	case StatusPending:
		return "Your order is awaiting confirmation"
	case StatusConfirmed:
		return "Your order has been confirmed"
	case StatusPreparing:
		return "Your order is being prepared"
	case StatusReady:
		return "Your order is ready"
	case StatusDelivered:
		return "Your order has been delivered"
	case StatusCancelled:
		return "Your order has been cancelled"
	}
	return "Order status updated"
}

// PaymentStatus tracks payment state independently of the order lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:  {PaymentPaid: true, PaymentFailed: true},
	PaymentPaid:     {PaymentRefunded: true},
	PaymentFailed:   {},
	PaymentRefunded: {},
}

// ParsePaymentStatus validates a raw payment status string.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	ps := PaymentStatus(s)
	_, ok := paymentNext[ps]
	return ps, ok
}

// CanTransitionPayment reports whether the payment state machine permits
// moving from one payment status to another.
func CanTransitionPayment(from, to PaymentStatus) bool {
	return paymentNext[from][to]
}
