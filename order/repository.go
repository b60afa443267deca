package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/estore/cache"
	"goflare.io/estore/driver"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, tx pgx.Tx, orderID uint64) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, tx pgx.Tx, customerID uint64, limit, offset uint64) ([]*models.Order, error)
	ListOrders(ctx context.Context, tx pgx.Tx, status *enum.OrderStatus, limit, offset uint64) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID uint64, status enum.OrderStatus, updatedAt time.Time) error

	AddOrderItems(ctx context.Context, tx pgx.Tx, items []*models.ProductOrder) ([]*models.ProductOrder, error)
	ListOrderItems(ctx context.Context, tx pgx.Tx, orderID uint64) ([]*models.ProductOrder, error)
	MarkReturnRequested(ctx context.Context, tx pgx.Tx, orderID uint64) error
	MarkItemReturned(ctx context.Context, tx pgx.Tx, orderID, itemID uint64) error
	MarkAllItemsReturned(ctx context.Context, tx pgx.Tx, orderID uint64) error
}

const orderCacheTTL = 30 * time.Minute

const orderColumns = `id, customer_id, type, status, pickup_at, created_at, updated_at`

const itemColumns = `id, order_id, product_id, product_plan_id, quantity, serial_no, amount, return_requested, is_returned`

type repository struct {
	conn   driver.PostgresPool
	cache  cache.Cache
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, cache cache.Cache, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		cache:  cache,
		logger: logger,
	}
}

func (r *repository) CreateOrder(ctx context.Context, tx pgx.Tx, order *models.Order) (*models.Order, error) {
	created := &models.Order{}
	err := driver.Q(r.conn, tx).QueryRow(ctx, `
		INSERT INTO orders (customer_id, type, status, pickup_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns,
		order.CustomerID, order.Type, order.Status, order.PickupAt,
	).Scan(scanOrderDest(created)...)
	if err != nil {
		r.logger.Error("Failed to create order", zap.Uint64("customer_id", order.CustomerID), zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return created, nil
}

func (r *repository) GetOrder(ctx context.Context, tx pgx.Tx, orderID uint64) (*models.Order, error) {
	cacheKey := orderCacheKey(orderID)

	// 交易內不讀快取，並鎖定訂單列
	if tx == nil {
		var cached models.Order
		found, err := r.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			r.logger.Warn("Failed to get order from cache", zap.Uint64("order_id", orderID), zap.Error(err))
		}
		if found {
			return &cached, nil
		}
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	order := &models.Order{}
	if err := driver.Q(r.conn, tx).QueryRow(ctx, query, orderID).Scan(scanOrderDest(order)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order", zap.Uint64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.ListOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	if tx == nil {
		if err := r.cache.Set(ctx, cacheKey, order, orderCacheTTL); err != nil {
			r.logger.Warn("Failed to cache order", zap.Uint64("order_id", orderID), zap.Error(err))
		}
	}

	return order, nil
}

func (r *repository) ListOrdersByCustomer(ctx context.Context, tx pgx.Tx, customerID uint64, limit, offset uint64) ([]*models.Order, error) {
	rows, err := driver.Q(r.conn, tx).Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		r.logger.Error("Failed to list customer orders", zap.Uint64("customer_id", customerID), zap.Error(err))
		return nil, fmt.Errorf("failed to list customer orders: %w", err)
	}
	return r.collectOrders(ctx, tx, rows)
}

func (r *repository) ListOrders(ctx context.Context, tx pgx.Tx, status *enum.OrderStatus, limit, offset uint64) ([]*models.Order, error) {
	rows, err := driver.Q(r.conn, tx).Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE $1::text IS NULL OR status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		status, limit, offset,
	)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return r.collectOrders(ctx, tx, rows)
}

func (r *repository) UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID uint64, status enum.OrderStatus, updatedAt time.Time) error {
	tag, err := driver.Q(r.conn, tx).Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		orderID, status, updatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update order status",
			zap.Uint64("order_id", orderID),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}

	r.invalidateOrderCache(ctx, tx, orderID)
	return nil
}

func (r *repository) AddOrderItems(ctx context.Context, tx pgx.Tx, items []*models.ProductOrder) ([]*models.ProductOrder, error) {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO product_orders (order_id, product_id, product_plan_id, quantity, serial_no, amount)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+itemColumns,
			item.OrderID, item.ProductID, item.ProductPlanID, item.Quantity, item.SerialNo, item.Amount,
		)
	}

	br := driver.Q(r.conn, tx).SendBatch(ctx, batch)
	defer br.Close()

	created := make([]*models.ProductOrder, 0, len(items))
	for range items {
		item := &models.ProductOrder{}
		if err := br.QueryRow().Scan(scanItemDest(item)...); err != nil {
			r.logger.Error("Failed to add order item", zap.Error(err))
			return nil, fmt.Errorf("failed to add order items: %w", err)
		}
		created = append(created, item)
	}

	if len(created) > 0 {
		r.invalidateOrderCache(ctx, tx, created[0].OrderID)
	}
	return created, nil
}

func (r *repository) ListOrderItems(ctx context.Context, tx pgx.Tx, orderID uint64) ([]*models.ProductOrder, error) {
	rows, err := driver.Q(r.conn, tx).Query(ctx,
		`SELECT `+itemColumns+` FROM product_orders WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		r.logger.Error("Failed to list order items", zap.Uint64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.ProductOrder, 0)
	for rows.Next() {
		item := &models.ProductOrder{}
		if err := rows.Scan(scanItemDest(item)...); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) MarkReturnRequested(ctx context.Context, tx pgx.Tx, orderID uint64) error {
	if _, err := driver.Q(r.conn, tx).Exec(ctx,
		`UPDATE product_orders SET return_requested = true WHERE order_id = $1`,
		orderID,
	); err != nil {
		r.logger.Error("Failed to mark return requested", zap.Uint64("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to mark return requested: %w", err)
	}

	r.invalidateOrderCache(ctx, tx, orderID)
	return nil
}

func (r *repository) MarkItemReturned(ctx context.Context, tx pgx.Tx, orderID, itemID uint64) error {
	tag, err := driver.Q(r.conn, tx).Exec(ctx,
		`UPDATE product_orders SET is_returned = true WHERE id = $1 AND order_id = $2`,
		itemID, orderID,
	)
	if err != nil {
		r.logger.Error("Failed to mark item returned", zap.Uint64("item_id", itemID), zap.Error(err))
		return fmt.Errorf("failed to mark item returned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrItemNotFound
	}

	r.invalidateOrderCache(ctx, tx, orderID)
	return nil
}

// MarkAllItemsReturned 全部項目標記已退貨，金額與數量歸零
func (r *repository) MarkAllItemsReturned(ctx context.Context, tx pgx.Tx, orderID uint64) error {
	if _, err := driver.Q(r.conn, tx).Exec(ctx, `
		UPDATE product_orders
		SET is_returned = true, amount = 0, quantity = 0
		WHERE order_id = $1`,
		orderID,
	); err != nil {
		r.logger.Error("Failed to mark all items returned", zap.Uint64("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to mark all items returned: %w", err)
	}

	r.invalidateOrderCache(ctx, tx, orderID)
	return nil
}

func (r *repository) collectOrders(ctx context.Context, tx pgx.Tx, rows pgx.Rows) ([]*models.Order, error) {
	orders := make([]*models.Order, 0)
	ids := make([]uint64, 0)
	byID := make(map[uint64]*models.Order)

	for rows.Next() {
		order := &models.Order{Items: make([]*models.ProductOrder, 0)}
		if err := rows.Scan(scanOrderDest(order)...); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
		byID[order.ID] = order
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := driver.Q(r.conn, tx).Query(ctx,
		`SELECT `+itemColumns+` FROM product_orders WHERE order_id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		r.logger.Error("Failed to list order items", zap.Error(err))
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item := &models.ProductOrder{}
		if err := itemRows.Scan(scanItemDest(item)...); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return orders, itemRows.Err()
}

// invalidateOrderCache 交易中延後到提交之後才清除快取
func (r *repository) invalidateOrderCache(ctx context.Context, tx pgx.Tx, orderID uint64) {
	ctx = context.WithoutCancel(ctx)
	driver.AfterCommit(tx, func() {
		if err := r.cache.Delete(ctx, orderCacheKey(orderID)); err != nil {
			r.logger.Warn("Failed to invalidate order cache", zap.Uint64("order_id", orderID), zap.Error(err))
		}
	})
}

func orderCacheKey(orderID uint64) string {
	return fmt.Sprintf("order:%d", orderID)
}

func scanOrderDest(o *models.Order) []any {
	return []any{&o.ID, &o.CustomerID, &o.Type, &o.Status, &o.PickupAt, &o.CreatedAt, &o.UpdatedAt}
}

func scanItemDest(i *models.ProductOrder) []any {
	return []any{&i.ID, &i.OrderID, &i.ProductID, &i.ProductPlanID, &i.Quantity, &i.SerialNo, &i.Amount, &i.ReturnRequested, &i.IsReturned}
}
