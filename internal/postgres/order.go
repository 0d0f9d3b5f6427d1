package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesafood/comanda/internal/domain/order"
)

const orderColumns = `id, order_number, user_id, table_id, order_type, status, payment_status,
	payment_method, subtotal, tax_amount, discount_amount, total_amount,
	delivery_address, special_instructions, created_at, updated_at`

const (
	insertOrderSQL = `INSERT INTO orders (
		id, order_number, user_id, table_id, order_type, status, payment_status,
		subtotal, tax_amount, discount_amount, total_amount,
		delivery_address, special_instructions
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING created_at, updated_at`

	insertItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price, special_requests)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// Conditional decrement: zero rows affected means the in-transaction
	// stock check failed and the whole order rolls back.
	decrementStockSQL = `UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = now()
		WHERE id = $2 AND is_available AND stock_quantity >= $1`

	restoreStockSQL = `UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = now()
		WHERE id = $2`

	currentStockSQL = `SELECT stock_quantity FROM products WHERE id = $1`

	getOrderSQL        = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	lockOrderStatusSQL = `SELECT status, payment_status FROM orders WHERE id = $1 FOR UPDATE`

	getItemsSQL = `SELECT oi.product_id, p.name, oi.quantity, oi.unit_price, oi.total_price, COALESCE(oi.special_requests, '')
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	updateStatusSQL = `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`

	updatePaymentSQL = `UPDATE orders SET payment_status = $1, payment_method = $2, updated_at = now() WHERE id = $3`
)

// createAttempts bounds order-number regeneration on unique conflicts.
const createAttempts = 3

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header, all line items, and the stock decrement
// for every line in one transaction. Stock is re-checked by the conditional
// UPDATE: losing the race to a concurrent order rolls the whole operation
// back with order.ErrStockRace. An order-number collision regenerates the
// number and retries the transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	for attempt := 0; ; attempt++ {
		err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
			return r.createInTx(ctx, tx, o)
		})
		if err == nil {
			return nil
		}
		if isOrderNumberConflict(err) && attempt < createAttempts-1 {
			o.Number = order.NewNumber()
			continue
		}
		return err
	}
}

func (r *OrderRepository) createInTx(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	err := tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.Number, o.UserID, nullable(o.TableID), o.Type, o.Status, o.PaymentStatus,
		o.Subtotal, o.TaxAmount, o.DiscountAmount, o.TotalAmount,
		nullable(o.DeliveryAddress), nullable(o.SpecialInstructions),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	for _, item := range o.Items {
		_, err := tx.Exec(ctx, insertItemSQL,
			o.ID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice,
			nullable(item.SpecialRequests),
		)
		if err != nil {
			return errors.Wrapf(err, "insert item %s", item.ProductID)
		}

		ct, err := tx.Exec(ctx, decrementStockSQL, item.Quantity, item.ProductID)
		if err != nil {
			return errors.Wrapf(err, "decrement stock %s", item.ProductID)
		}
		if ct.RowsAffected() == 0 {
			var available int
			if err := tx.QueryRow(ctx, currentStockSQL, item.ProductID).Scan(&available); err != nil {
				available = 0
			}
			return errors.Wrapf(order.ErrStockRace,
				"product %s: requested %d, available %d", item.ProductID, item.Quantity, available)
		}
	}
	return nil
}

// FindByID returns an order with its line items in submission order.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	if o.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]order.LineItem, error) {
	rows, err := r.pool.Query(ctx, getItemsSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get items for order %q", orderID)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.LineItem, error) {
		var li order.LineItem
		err := row.Scan(&li.ProductID, &li.ProductName, &li.Quantity, &li.UnitPrice, &li.TotalPrice, &li.SpecialRequests)
		return li, err
	})
}

// List returns order headers matching the conjunctive filter, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders WHERE TRUE`)

	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		fmt.Fprintf(&sb, clause, len(args))
	}
	if f.Status != "" {
		add(" AND status = $%d", f.Status)
	}
	if f.Type != "" {
		add(" AND order_type = $%d", f.Type)
	}
	if f.UserID != "" {
		add(" AND user_id = $%d", f.UserID)
	}
	if !f.DateFrom.IsZero() {
		add(" AND created_at >= $%d", f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		add(" AND created_at <= $%d", f.DateTo)
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if f.Limit > 0 {
		add(" LIMIT $%d", f.Limit)
	}
	if f.Offset > 0 {
		add(" OFFSET $%d", f.Offset)
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Transition applies a lifecycle transition after re-checking legality under
// a row lock, so concurrent transitions serialize on the order row.
func (r *OrderRepository) Transition(ctx context.Context, id string, to order.Status) (*order.Order, error) {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current order.Status
		var payment order.PaymentStatus
		if err := tx.QueryRow(ctx, lockOrderStatusSQL, id).Scan(&current, &payment); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return errors.Wrapf(err, "lock order %q", id)
		}
		if !order.CanTransition(current, to) {
			return &order.IllegalTransitionError{From: current, To: to}
		}
		if _, err := tx.Exec(ctx, updateStatusSQL, to, id); err != nil {
			return errors.Wrapf(err, "update status for order %q", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// TransitionPayment applies a payment status transition under a row lock.
// A blank payment method is stored as NULL.
func (r *OrderRepository) TransitionPayment(ctx context.Context, id string, to order.PaymentStatus, method string) (*order.Order, error) {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current order.Status
		var payment order.PaymentStatus
		if err := tx.QueryRow(ctx, lockOrderStatusSQL, id).Scan(&current, &payment); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return errors.Wrapf(err, "lock order %q", id)
		}
		if !order.CanTransitionPayment(payment, to) {
			return &order.IllegalPaymentTransitionError{From: payment, To: to}
		}
		if _, err := tx.Exec(ctx, updatePaymentSQL, to, nullable(method), id); err != nil {
			return errors.Wrapf(err, "update payment for order %q", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// Cancel restores stock for every line item and sets the cancelled status in
// one transaction. Terminal orders are rejected without any stock change.
func (r *OrderRepository) Cancel(ctx context.Context, id string) (*order.Order, error) {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current order.Status
		var payment order.PaymentStatus
		if err := tx.QueryRow(ctx, lockOrderStatusSQL, id).Scan(&current, &payment); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return errors.Wrapf(err, "lock order %q", id)
		}
		if current.Terminal() {
			return order.ErrNotCancellable
		}

		rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_items WHERE order_id = $1`, id)
		if err != nil {
			return errors.Wrapf(err, "get items for order %q", id)
		}
		type line struct {
			productID string
			quantity  int
		}
		lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (line, error) {
			var l line
			err := row.Scan(&l.productID, &l.quantity)
			return l, err
		})
		if err != nil {
			return errors.Wrapf(err, "collect items for order %q", id)
		}

		for _, l := range lines {
			if _, err := tx.Exec(ctx, restoreStockSQL, l.quantity, l.productID); err != nil {
				return errors.Wrapf(err, "restore stock %s", l.productID)
			}
		}
		if _, err := tx.Exec(ctx, updateStatusSQL, order.StatusCancelled, id); err != nil {
			return errors.Wrapf(err, "cancel order %q", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                             order.Order
		tableID, method, addr, instrs *string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &tableID, &o.Type, &o.Status, &o.PaymentStatus,
		&method, &o.Subtotal, &o.TaxAmount, &o.DiscountAmount, &o.TotalAmount,
		&addr, &instrs, &o.CreatedAt, &o.UpdatedAt,
	)
	o.TableID = deref(tableID)
	o.PaymentMethod = deref(method)
	o.DeliveryAddress = deref(addr)
	o.SpecialInstructions = deref(instrs)
	return o, err
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		strings.Contains(pgErr.ConstraintName, "order_number")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
