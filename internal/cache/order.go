// Package cache decorates the order repository with a redis read-through
// cache for single-order lookups. The database stays the source of truth:
// every mutation drops the cached entry after the write commits.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mesafood/comanda/internal/domain/order"
)

const (
	orderKeyPrefix = "order:"
	orderTTL       = 5 * time.Minute
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository wraps a primary order.Repository with redis caching of
// FindByID results. Cache failures degrade to the primary repository and are
// logged, never surfaced.
type OrderRepository struct {
	primary order.Repository
	rdb     *redis.Client
	lg      *zap.Logger
}

// NewOrderRepository creates the caching decorator.
func NewOrderRepository(primary order.Repository, rdb *redis.Client, lg *zap.Logger) *OrderRepository {
	return &OrderRepository{primary: primary, rdb: rdb, lg: lg}
}

func orderKey(id string) string { return orderKeyPrefix + id }

// FindByID serves from redis when possible, falling back to the primary
// repository and repopulating the cache.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	if data, err := r.rdb.Get(ctx, orderKey(id)).Bytes(); err == nil {
		var o order.Order
		if err := json.Unmarshal(data, &o); err == nil {
			return &o, nil
		}
	}

	o, err := r.primary.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(o); err == nil {
		if err := r.rdb.Set(ctx, orderKey(id), data, orderTTL).Err(); err != nil {
			r.lg.Debug("cache set failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	return o, nil
}

// Create delegates to the primary repository; a fresh order has no stale
// cache entry to drop.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.primary.Create(ctx, o)
}

// List always hits the primary repository: listings are filter-shaped and
// not worth caching.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	return r.primary.List(ctx, f)
}

// Cancel delegates and invalidates.
func (r *OrderRepository) Cancel(ctx context.Context, id string) (*order.Order, error) {
	o, err := r.primary.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, id)
	return o, nil
}

// Transition delegates and invalidates.
func (r *OrderRepository) Transition(ctx context.Context, id string, to order.Status) (*order.Order, error) {
	o, err := r.primary.Transition(ctx, id, to)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, id)
	return o, nil
}

// TransitionPayment delegates and invalidates.
func (r *OrderRepository) TransitionPayment(ctx context.Context, id string, to order.PaymentStatus, method string) (*order.Order, error) {
	o, err := r.primary.TransitionPayment(ctx, id, to, method)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, id)
	return o, nil
}

func (r *OrderRepository) invalidate(ctx context.Context, id string) {
	if err := r.rdb.Del(ctx, orderKey(id)).Err(); err != nil {
		r.lg.Debug("cache invalidate failed", zap.String("order_id", id), zap.Error(err))
	}
}
