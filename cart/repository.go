package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/estore/driver"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	CreateCart(ctx context.Context, tx pgx.Tx, cart *models.Cart) (*models.Cart, error)
	GetCart(ctx context.Context, tx pgx.Tx, id uint64) (*models.Cart, error)
	GetActiveCartByCustomerID(ctx context.Context, tx pgx.Tx, customerID uint64) (*models.Cart, error)
	UpdateCartStatus(ctx context.Context, tx pgx.Tx, id uint64, status enum.CartStatus) error
	AbandonExpiredCarts(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error)

	AddCartItem(ctx context.Context, tx pgx.Tx, item *models.CartItem) (*models.CartItem, error)
	GetCartItem(ctx context.Context, tx pgx.Tx, cartID, itemID uint64) (*models.CartItem, error)
	UpdateCartItem(ctx context.Context, tx pgx.Tx, item *models.CartItem) error
	RemoveCartItem(ctx context.Context, tx pgx.Tx, cartID, itemID uint64) error
	ListCartItems(ctx context.Context, tx pgx.Tx, cartID uint64) ([]*models.CartItem, error)
	ClearCartItems(ctx context.Context, tx pgx.Tx, cartID uint64) error
}

const cartColumns = `id, customer_id, status, currency, created_at, updated_at, expires_at`

const cartItemColumns = `id, cart_id, product_id, product_plan_id, quantity, unit_price, plan_price`

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		logger: logger,
	}
}

func (r *repository) CreateCart(ctx context.Context, tx pgx.Tx, cart *models.Cart) (*models.Cart, error) {
	created, err := scanCart(driver.Q(r.conn, tx).QueryRow(ctx, `
		INSERT INTO carts (customer_id, status, currency, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+cartColumns,
		cart.CustomerID, cart.Status, cart.Currency, cart.ExpiresAt,
	))
	if err != nil {
		r.logger.Error("Failed to create cart", zap.Uint64("customer_id", cart.CustomerID), zap.Error(err))
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	created.Items = make([]*models.CartItem, 0)
	return created, nil
}

func (r *repository) GetCart(ctx context.Context, tx pgx.Tx, id uint64) (*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}
	return r.getCart(ctx, tx, query, id)
}

func (r *repository) GetActiveCartByCustomerID(ctx context.Context, tx pgx.Tx, customerID uint64) (*models.Cart, error) {
	return r.getCart(ctx, tx, `
		SELECT `+cartColumns+`
		FROM carts
		WHERE customer_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		customerID, enum.CartStatusActive,
	)
}

func (r *repository) UpdateCartStatus(ctx context.Context, tx pgx.Tx, id uint64, status enum.CartStatus) error {
	tag, err := driver.Q(r.conn, tx).Exec(ctx,
		`UPDATE carts SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		r.logger.Error("Failed to update cart status", zap.Uint64("cart_id", id), zap.Error(err))
		return fmt.Errorf("failed to update cart status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrCartNotFound
	}
	return nil
}

// AbandonExpiredCarts 將過期的 active 購物車標記為 abandoned
func (r *repository) AbandonExpiredCarts(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error) {
	tag, err := driver.Q(r.conn, tx).Exec(ctx, `
		UPDATE carts SET status = $1, updated_at = $3
		WHERE status = $2 AND expires_at < $3`,
		enum.CartStatusAbandoned, enum.CartStatusActive, now,
	)
	if err != nil {
		r.logger.Error("Failed to abandon expired carts", zap.Error(err))
		return 0, fmt.Errorf("failed to abandon expired carts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) AddCartItem(ctx context.Context, tx pgx.Tx, item *models.CartItem) (*models.CartItem, error) {
	created, err := scanCartItem(driver.Q(r.conn, tx).QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, product_plan_id, quantity, unit_price, plan_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+cartItemColumns,
		item.CartID, item.ProductID, item.ProductPlanID, item.Quantity, item.UnitPrice, item.PlanPrice,
	))
	if err != nil {
		r.logger.Error("Failed to add cart item", zap.Uint64("cart_id", item.CartID), zap.Error(err))
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	r.touch(ctx, tx, item.CartID)
	return created, nil
}

func (r *repository) GetCartItem(ctx context.Context, tx pgx.Tx, cartID, itemID uint64) (*models.CartItem, error) {
	item, err := scanCartItem(driver.Q(r.conn, tx).QueryRow(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE id = $1 AND cart_id = $2`,
		itemID, cartID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrItemNotFound
		}
		r.logger.Error("Failed to get cart item", zap.Uint64("item_id", itemID), zap.Error(err))
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return item, nil
}

func (r *repository) UpdateCartItem(ctx context.Context, tx pgx.Tx, item *models.CartItem) error {
	tag, err := driver.Q(r.conn, tx).Exec(ctx, `
		UPDATE cart_items SET quantity = $3, unit_price = $4, plan_price = $5
		WHERE id = $1 AND cart_id = $2`,
		item.ID, item.CartID, item.Quantity, item.UnitPrice, item.PlanPrice,
	)
	if err != nil {
		r.logger.Error("Failed to update cart item", zap.Uint64("item_id", item.ID), zap.Error(err))
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrItemNotFound
	}
	r.touch(ctx, tx, item.CartID)
	return nil
}

func (r *repository) RemoveCartItem(ctx context.Context, tx pgx.Tx, cartID, itemID uint64) error {
	tag, err := driver.Q(r.conn, tx).Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		r.logger.Error("Failed to remove cart item", zap.Uint64("item_id", itemID), zap.Error(err))
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrItemNotFound
	}
	r.touch(ctx, tx, cartID)
	return nil
}

func (r *repository) ListCartItems(ctx context.Context, tx pgx.Tx, cartID uint64) ([]*models.CartItem, error) {
	rows, err := driver.Q(r.conn, tx).Query(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY id`, cartID)
	if err != nil {
		r.logger.Error("Failed to list cart items", zap.Uint64("cart_id", cartID), zap.Error(err))
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.CartItem, 0)
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) ClearCartItems(ctx context.Context, tx pgx.Tx, cartID uint64) error {
	if _, err := driver.Q(r.conn, tx).Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		r.logger.Error("Failed to clear cart items", zap.Uint64("cart_id", cartID), zap.Error(err))
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	r.touch(ctx, tx, cartID)
	return nil
}

func (r *repository) getCart(ctx context.Context, tx pgx.Tx, query string, args ...any) (*models.Cart, error) {
	cart, err := scanCart(driver.Q(r.conn, tx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCartNotFound
		}
		r.logger.Error("Failed to get cart", zap.Error(err))
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	items, err := r.ListCartItems(ctx, tx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return cart, nil
}

func (r *repository) touch(ctx context.Context, tx pgx.Tx, cartID uint64) {
	if _, err := driver.Q(r.conn, tx).Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID); err != nil {
		r.logger.Warn("Failed to touch cart", zap.Uint64("cart_id", cartID), zap.Error(err))
	}
}

func scanCart(row pgx.Row) (*models.Cart, error) {
	c := &models.Cart{}
	if err := row.Scan(&c.ID, &c.CustomerID, &c.Status, &c.Currency, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt); err != nil {
		return nil, err
	}
	return c, nil
}

func scanCartItem(row pgx.Row) (*models.CartItem, error) {
	i := &models.CartItem{}
	if err := row.Scan(&i.ID, &i.CartID, &i.ProductID, &i.ProductPlanID, &i.Quantity, &i.UnitPrice, &i.PlanPrice); err != nil {
		return nil, err
	}
	return i, nil
}
