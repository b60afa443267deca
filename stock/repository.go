package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/estore/cache"
	"goflare.io/estore/driver"
	"goflare.io/estore/models"
)

var _ Repository = (*repository)(nil)

// Repository 商品庫存存於 products.quantity，每次異動都應搭配一筆 stock movement
type Repository interface {
	ReduceStock(ctx context.Context, tx pgx.Tx, params []ReduceStockParams) error
	Restock(ctx context.Context, tx pgx.Tx, params []RestockParams) error
	AdjustStock(ctx context.Context, tx pgx.Tx, params AdjustStockParams) (int64, error)
	CreateStockMovements(ctx context.Context, tx pgx.Tx, params []CreateStockMovementParams) error
	ListStockMovements(ctx context.Context, tx pgx.Tx, productID uint64, limit, offset uint64) ([]*models.StockMovement, error)
}

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

// ReduceStock 扣除庫存，任何商品扣除後小於零即回傳 ErrInsufficientStock，由呼叫端回滾交易
func (r *repository) ReduceStock(ctx context.Context, tx pgx.Tx, params []ReduceStockParams) error {
	batch := &pgx.Batch{}
	for _, param := range params {
		batch.Queue(
			`UPDATE products SET quantity = quantity - $2, updated_at = $3 WHERE id = $1 RETURNING quantity`,
			param.ProductID, param.Quantity, param.LastUpdated,
		)
	}

	br := driver.Q(r.conn, tx).SendBatch(ctx, batch)
	defer br.Close()

	for _, param := range params {
		var remaining int64
		if err := br.QueryRow().Scan(&remaining); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("product %d: %w", param.ProductID, models.ErrProductNotFound)
			}
			r.logger.Error("Failed to reduce stock", zap.Uint64("product_id", param.ProductID), zap.Error(err))
			return fmt.Errorf("failed to reduce stock: %w", err)
		}
		if remaining < 0 {
			r.logger.Warn("Insufficient stock",
				zap.Uint64("product_id", param.ProductID),
				zap.Uint64("requested", param.Quantity),
				zap.Int64("remaining", remaining))
			return fmt.Errorf("product %d: %w", param.ProductID, models.ErrInsufficientStock)
		}
		r.invalidateProductCache(ctx, tx, param.ProductID)
	}
	return nil
}

func (r *repository) Restock(ctx context.Context, tx pgx.Tx, params []RestockParams) error {
	batch := &pgx.Batch{}
	for _, param := range params {
		batch.Queue(
			`UPDATE products SET quantity = quantity + $2, updated_at = $3 WHERE id = $1`,
			param.ProductID, param.Quantity, param.LastUpdated,
		)
	}

	br := driver.Q(r.conn, tx).SendBatch(ctx, batch)
	defer br.Close()

	for _, param := range params {
		tag, err := br.Exec()
		if err != nil {
			r.logger.Error("Failed to restock", zap.Uint64("product_id", param.ProductID), zap.Error(err))
			return fmt.Errorf("failed to restock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("product %d: %w", param.ProductID, models.ErrProductNotFound)
		}
		r.invalidateProductCache(ctx, tx, param.ProductID)
	}
	return nil
}

func (r *repository) AdjustStock(ctx context.Context, tx pgx.Tx, params AdjustStockParams) (int64, error) {
	var quantity int64
	err := driver.Q(r.conn, tx).QueryRow(ctx,
		`UPDATE products SET quantity = quantity + $2, updated_at = $3 WHERE id = $1 RETURNING quantity`,
		params.ProductID, params.Delta, params.LastUpdated,
	).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrProductNotFound
		}
		r.logger.Error("Failed to adjust stock", zap.Uint64("product_id", params.ProductID), zap.Error(err))
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}
	if quantity < 0 {
		return 0, models.ErrInsufficientStock
	}

	r.invalidateProductCache(ctx, tx, params.ProductID)
	return quantity, nil
}

func (r *repository) CreateStockMovements(ctx context.Context, tx pgx.Tx, params []CreateStockMovementParams) error {
	if len(params) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(params))
	for _, param := range params {
		rows = append(rows, []any{param.ProductID, param.Quantity, param.Type, param.ReferenceType, param.ReferenceID})
	}

	if _, err := driver.Q(r.conn, tx).Exec(ctx, insertMovementsSQL(len(rows)), flatten(rows)...); err != nil {
		r.logger.Error("Failed to create stock movements", zap.Int("count", len(params)), zap.Error(err))
		return fmt.Errorf("failed to create stock movements: %w", err)
	}
	return nil
}

func (r *repository) ListStockMovements(ctx context.Context, tx pgx.Tx, productID uint64, limit, offset uint64) ([]*models.StockMovement, error) {
	rows, err := driver.Q(r.conn, tx).Query(ctx, `
		SELECT id, product_id, quantity, type, reference_type, reference_id, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		productID, limit, offset,
	)
	if err != nil {
		r.logger.Error("Failed to list stock movements", zap.Uint64("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]*models.StockMovement, 0)
	for rows.Next() {
		m := &models.StockMovement{}
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Quantity, &m.Type, &m.ReferenceType, &m.ReferenceID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *repository) invalidateProductCache(ctx context.Context, tx pgx.Tx, productID uint64) {
	ctx = context.WithoutCancel(ctx)
	driver.AfterCommit(tx, func() {
		if err := r.cache.Delete(ctx, fmt.Sprintf("product:%d", productID)); err != nil {
			r.logger.Warn("Failed to invalidate product cache", zap.Uint64("product_id", productID), zap.Error(err))
		}
	})
}

func insertMovementsSQL(n int) string {
	sql := `INSERT INTO stock_movements (product_id, quantity, type, reference_type, reference_id) VALUES `
	for i := 0; i < n; i++ {
		if i > 0 {
			sql += ", "
		}
		base := i * 5
		sql += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
	}
	return sql
}

func flatten(rows [][]any) []any {
	args := make([]any, 0, len(rows)*5)
	for _, row := range rows {
		args = append(args, row...)
	}
	return args
}
