package category

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
)

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, category *models.Category) (*models.Category, error)
	GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Category, error)
	Update(ctx context.Context, tx pgx.Tx, category *models.Category) (*models.Category, error)
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
	List(ctx context.Context, tx pgx.Tx) ([]*models.Category, error)
	ListSubcategories(ctx context.Context, tx pgx.Tx, parentID uint64) ([]*models.Category, error)
	SetProductCategories(ctx context.Context, tx pgx.Tx, productID uint64, categoryIDs []uint64) error
	ListByProductIDs(ctx context.Context, tx pgx.Tx, productIDs []uint64) (map[uint64][]*models.Category, error)
}

const categoryCacheTTL = 30 * time.Minute

const categoryListCacheKey = "categories:all"

const categoryColumns = `id, name, description, parent_id, created_at, updated_at`

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

func (r *repository) Create(ctx context.Context, tx pgx.Tx, category *models.Category) (*models.Category, error) {
	created, err := scanCategory(driver.Q(r.conn, tx).QueryRow(ctx, `
		INSERT INTO categories (name, description, parent_id)
		VALUES ($1, $2, $3)
		RETURNING `+categoryColumns,
		category.Name, category.Description, category.ParentID,
	))
	if err != nil {
		r.logger.Error("Failed to create category", zap.Error(err))
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	// 父分類的子分類清單需失效
	r.invalidateCategoryCache(ctx, tx, created.ID, created.ParentID)
	return created, nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Category, error) {
	cacheKey := fmt.Sprintf("category:%d", id)

	if tx == nil {
		var cached models.Category
		found, err := r.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			r.logger.Warn("Failed to get category from cache", zap.Error(err))
		}
		if found {
			return &cached, nil
		}
	}

	category, err := scanCategory(driver.Q(r.conn, tx).QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCategoryNotFound
		}
		r.logger.Error("Failed to get category", zap.Uint64("category_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	if tx == nil {
		if err := r.cache.Set(ctx, cacheKey, category, categoryCacheTTL); err != nil {
			r.logger.Warn("Failed to cache category", zap.Error(err))
		}
	}

	return category, nil
}

func (r *repository) Update(ctx context.Context, tx pgx.Tx, category *models.Category) (*models.Category, error) {
	var previousParent *uint64
	if err := driver.Q(r.conn, tx).QueryRow(ctx,
		`SELECT parent_id FROM categories WHERE id = $1`, category.ID,
	).Scan(&previousParent); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCategoryNotFound
		}
		r.logger.Error("Failed to get category", zap.Uint64("category_id", category.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	updated, err := scanCategory(driver.Q(r.conn, tx).QueryRow(ctx, `
		UPDATE categories
		SET name = $2, description = $3, parent_id = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+categoryColumns,
		category.ID, category.Name, category.Description, category.ParentID,
	))
	if err != nil {
		r.logger.Error("Failed to update category", zap.Uint64("category_id", category.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	r.invalidateCategoryCache(ctx, tx, updated.ID, previousParent)
	r.invalidateCategoryCache(ctx, tx, updated.ID, updated.ParentID)
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	var parentID *uint64
	if err := driver.Q(r.conn, tx).QueryRow(ctx,
		`DELETE FROM categories WHERE id = $1 RETURNING parent_id`, id,
	).Scan(&parentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrCategoryNotFound
		}
		r.logger.Error("Failed to delete category", zap.Uint64("category_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete category: %w", err)
	}

	r.invalidateCategoryCache(ctx, tx, id, parentID)
	return nil
}

func (r *repository) List(ctx context.Context, tx pgx.Tx) ([]*models.Category, error) {
	if tx == nil {
		var cached []*models.Category
		found, err := r.cache.Get(ctx, categoryListCacheKey, &cached)
		if err != nil {
			r.logger.Warn("Failed to get categories from cache", zap.Error(err))
		}
		if found {
			return cached, nil
		}
	}

	categories, err := r.query(ctx, tx, `SELECT `+categoryColumns+` FROM categories ORDER BY name, id`)
	if err != nil {
		r.logger.Error("Failed to list categories", zap.Error(err))
		return nil, err
	}

	if tx == nil {
		if err := r.cache.Set(ctx, categoryListCacheKey, categories, categoryCacheTTL); err != nil {
			r.logger.Warn("Failed to cache categories", zap.Error(err))
		}
	}
	return categories, nil
}

func (r *repository) ListSubcategories(ctx context.Context, tx pgx.Tx, parentID uint64) ([]*models.Category, error) {
	cacheKey := fmt.Sprintf("subcategories:%d", parentID)

	if tx == nil {
		var cached []*models.Category
		found, err := r.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			r.logger.Warn("Failed to get subcategories from cache", zap.Error(err))
		}
		if found {
			return cached, nil
		}
	}

	categories, err := r.query(ctx, tx,
		`SELECT `+categoryColumns+` FROM categories WHERE parent_id = $1 ORDER BY name, id`, parentID)
	if err != nil {
		r.logger.Error("Failed to list subcategories", zap.Uint64("parent_id", parentID), zap.Error(err))
		return nil, err
	}

	if tx == nil {
		if err := r.cache.Set(ctx, cacheKey, categories, categoryCacheTTL); err != nil {
			r.logger.Warn("Failed to cache subcategories", zap.Error(err))
		}
	}
	return categories, nil
}

// SetProductCategories 以新的分類集合取代商品原有的分類
func (r *repository) SetProductCategories(ctx context.Context, tx pgx.Tx, productID uint64, categoryIDs []uint64) error {
	q := driver.Q(r.conn, tx)
	if _, err := q.Exec(ctx, `DELETE FROM product_categories WHERE product_id = $1`, productID); err != nil {
		r.logger.Error("Failed to clear product categories", zap.Uint64("product_id", productID), zap.Error(err))
		return fmt.Errorf("failed to clear product categories: %w", err)
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO product_categories (product_id, category_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`,
		productID, categoryIDs,
	); err != nil {
		r.logger.Error("Failed to assign product to categories", zap.Uint64("product_id", productID), zap.Error(err))
		return fmt.Errorf("failed to assign product to categories: %w", err)
	}
	return nil
}

func (r *repository) ListByProductIDs(ctx context.Context, tx pgx.Tx, productIDs []uint64) (map[uint64][]*models.Category, error) {
	result := make(map[uint64][]*models.Category, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	rows, err := driver.Q(r.conn, tx).Query(ctx, `
		SELECT pc.product_id, c.id, c.name, c.description, c.parent_id, c.created_at, c.updated_at
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1)
		ORDER BY c.name, c.id`,
		productIDs,
	)
	if err != nil {
		r.logger.Error("Failed to list product categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list product categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID uint64
		c := &models.Category{}
		if err := rows.Scan(&productID, &c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product category: %w", err)
		}
		result[productID] = append(result[productID], c)
	}
	return result, rows.Err()
}

func (r *repository) query(ctx context.Context, tx pgx.Tx, sql string, args ...any) ([]*models.Category, error) {
	rows, err := driver.Q(r.conn, tx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// invalidateCategoryCache 交易中延後到提交之後才清除快取
func (r *repository) invalidateCategoryCache(ctx context.Context, tx pgx.Tx, categoryID uint64, parentID *uint64) {
	cacheKeys := []string{
		fmt.Sprintf("category:%d", categoryID),
		fmt.Sprintf("subcategories:%d", categoryID),
		categoryListCacheKey,
	}
	if parentID != nil {
		cacheKeys = append(cacheKeys, fmt.Sprintf("subcategories:%d", *parentID))
	}
	ctx = context.WithoutCancel(ctx)
	driver.AfterCommit(tx, func() {
		if err := r.cache.Delete(ctx, cacheKeys...); err != nil {
			r.logger.Warn("Failed to invalidate category cache", zap.Error(err), zap.Strings("keys", cacheKeys))
		}
	})
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	c := &models.Category{}
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}
