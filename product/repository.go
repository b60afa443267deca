package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"goflare.io/estore/cache"
	"goflare.io/estore/driver"
	"goflare.io/estore/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	CreateProduct(ctx context.Context, tx pgx.Tx, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, tx pgx.Tx, product *models.Product) (*models.Product, error)
	GetProduct(ctx context.Context, tx pgx.Tx, productID uint64) (*models.Product, error)
	GetProductBySlug(ctx context.Context, tx pgx.Tx, slug string) (*models.Product, error)
	ListProducts(ctx context.Context, tx pgx.Tx, categoryID *uint64, limit, offset uint64) ([]*models.Product, error)
	DeleteProduct(ctx context.Context, tx pgx.Tx, productID uint64) error
	SlugTaken(ctx context.Context, tx pgx.Tx, slug string, excludeID uint64) (bool, error)

	CreatePlan(ctx context.Context, tx pgx.Tx, plan *models.ProductPlan) (*models.ProductPlan, error)
	UpdatePlan(ctx context.Context, tx pgx.Tx, plan *models.ProductPlan) (*models.ProductPlan, error)
	GetPlan(ctx context.Context, tx pgx.Tx, planID uint64) (*models.ProductPlan, error)
	ListPlans(ctx context.Context, tx pgx.Tx, productID uint64) ([]*models.ProductPlan, error)
	DeletePlan(ctx context.Context, tx pgx.Tx, planID uint64) error
}

const productCacheTTL = 10 * time.Minute

const productColumns = `id, name, slug, description, price, image, serial_no, quantity, vendor, created_at, updated_at`

const planColumns = `id, product_id, name, price, guarantee, maintenance, created_at, updated_at`

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

func (r *repository) CreateProduct(ctx context.Context, tx pgx.Tx, product *models.Product) (*models.Product, error) {
	created, err := scanProduct(driver.Q(r.conn, tx).QueryRow(ctx, `
		INSERT INTO products (name, slug, description, price, image, serial_no, quantity, vendor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		product.Name, product.Slug, product.Description, product.Price,
		product.Image, product.SerialNo, product.Quantity, product.Vendor,
	))
	if err != nil {
		if violates(err, uniqueViolation) {
			return nil, fmt.Errorf("slug %q: %w", product.Slug, models.ErrSlugTaken)
		}
		r.logger.Error("Failed to create product", zap.String("slug", product.Slug), zap.Error(err))
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	created.Plans = make([]*models.ProductPlan, 0)
	return created, nil
}

// UpdateProduct 不更新庫存數量，庫存只透過 stock 調整
func (r *repository) UpdateProduct(ctx context.Context, tx pgx.Tx, product *models.Product) (*models.Product, error) {
	updated, err := scanProduct(driver.Q(r.conn, tx).QueryRow(ctx, `
		UPDATE products
		SET name = $2, slug = $3, description = $4, price = $5, image = $6, serial_no = $7, vendor = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Slug, product.Description, product.Price,
		product.Image, product.SerialNo, product.Vendor,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}
		if violates(err, uniqueViolation) {
			return nil, fmt.Errorf("slug %q: %w", product.Slug, models.ErrSlugTaken)
		}
		r.logger.Error("Failed to update product", zap.Uint64("product_id", product.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	plans, err := r.ListPlans(ctx, tx, updated.ID)
	if err != nil {
		return nil, err
	}
	updated.Plans = plans

	r.invalidateProductCache(ctx, tx, product.ID)
	return updated, nil
}

func (r *repository) GetProduct(ctx context.Context, tx pgx.Tx, productID uint64) (*models.Product, error) {
	cacheKey := productCacheKey(productID)

	if tx == nil {
		var cached models.Product
		found, err := r.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			r.logger.Warn("Failed to get product from cache", zap.Uint64("product_id", productID), zap.Error(err))
		}
		if found {
			return &cached, nil
		}
	}

	product, err := scanProduct(driver.Q(r.conn, tx).QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		productID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}
		r.logger.Error("Failed to get product", zap.Uint64("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	plans, err := r.ListPlans(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	product.Plans = plans

	if tx == nil {
		if err := r.cache.Set(ctx, cacheKey, product, productCacheTTL); err != nil {
			r.logger.Warn("Failed to cache product", zap.Uint64("product_id", productID), zap.Error(err))
		}
	}

	return product, nil
}

func (r *repository) GetProductBySlug(ctx context.Context, tx pgx.Tx, slug string) (*models.Product, error) {
	var productID uint64
	if err := driver.Q(r.conn, tx).QueryRow(ctx,
		`SELECT id FROM products WHERE slug = $1`, slug,
	).Scan(&productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}
		r.logger.Error("Failed to get product by slug", zap.String("slug", slug), zap.Error(err))
		return nil, fmt.Errorf("failed to get product by slug: %w", err)
	}
	return r.GetProduct(ctx, tx, productID)
}

func (r *repository) ListProducts(ctx context.Context, tx pgx.Tx, categoryID *uint64, limit, offset uint64) ([]*models.Product, error) {
	rows, err := driver.Q(r.conn, tx).Query(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE $1::bigint IS NULL
		   OR EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = p.id AND pc.category_id = $1)
		ORDER BY name, id
		LIMIT $2 OFFSET $3`,
		categoryID, limit, offset,
	)
	if err != nil {
		r.logger.Error("Failed to list products", zap.Error(err))
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]*models.Product, 0)
	byID := make(map[uint64]*models.Product)
	ids := make([]uint64, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		product.Plans = make([]*models.ProductPlan, 0)
		products = append(products, product)
		byID[product.ID] = product
		ids = append(ids, product.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if len(ids) == 0 {
		return products, nil
	}

	planRows, err := driver.Q(r.conn, tx).Query(ctx,
		`SELECT `+planColumns+` FROM product_plans WHERE product_id = ANY($1) ORDER BY price, id`,
		ids,
	)
	if err != nil {
		r.logger.Error("Failed to list product plans", zap.Error(err))
		return nil, fmt.Errorf("failed to list product plans: %w", err)
	}
	defer planRows.Close()

	for planRows.Next() {
		plan, err := scanPlan(planRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product plan: %w", err)
		}
		if product, ok := byID[plan.ProductID]; ok {
			product.Plans = append(product.Plans, plan)
		}
	}
	return products, planRows.Err()
}

func (r *repository) DeleteProduct(ctx context.Context, tx pgx.Tx, productID uint64) error {
	tag, err := driver.Q(r.conn, tx).Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		// 已有訂單明細引用的商品不能刪除
		if violates(err, foreignKeyViolation) {
			return fmt.Errorf("product %d: %w", productID, models.ErrProductInUse)
		}
		r.logger.Error("Failed to delete product", zap.Uint64("product_id", productID), zap.Error(err))
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrProductNotFound
	}

	r.invalidateProductCache(ctx, tx, productID)
	return nil
}

func (r *repository) SlugTaken(ctx context.Context, tx pgx.Tx, slug string, excludeID uint64) (bool, error) {
	var exists bool
	if err := driver.Q(r.conn, tx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE slug = $1 AND id <> $2)`,
		slug, excludeID,
	).Scan(&exists); err != nil {
		r.logger.Error("Failed to check product slug", zap.String("slug", slug), zap.Error(err))
		return false, fmt.Errorf("failed to check product slug: %w", err)
	}
	return exists, nil
}

func (r *repository) CreatePlan(ctx context.Context, tx pgx.Tx, plan *models.ProductPlan) (*models.ProductPlan, error) {
	created, err := scanPlan(driver.Q(r.conn, tx).QueryRow(ctx, `
		INSERT INTO product_plans (product_id, name, price, guarantee, maintenance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+planColumns,
		plan.ProductID, plan.Name, plan.Price, plan.Guarantee, plan.Maintenance,
	))
	if err != nil {
		r.logger.Error("Failed to create product plan", zap.Uint64("product_id", plan.ProductID), zap.Error(err))
		return nil, fmt.Errorf("failed to create product plan: %w", err)
	}

	r.invalidateProductCache(ctx, tx, plan.ProductID)
	return created, nil
}

func (r *repository) UpdatePlan(ctx context.Context, tx pgx.Tx, plan *models.ProductPlan) (*models.ProductPlan, error) {
	updated, err := scanPlan(driver.Q(r.conn, tx).QueryRow(ctx, `
		UPDATE product_plans
		SET name = $2, price = $3, guarantee = $4, maintenance = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+planColumns,
		plan.ID, plan.Name, plan.Price, plan.Guarantee, plan.Maintenance,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPlanNotFound
		}
		r.logger.Error("Failed to update product plan", zap.Uint64("plan_id", plan.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to update product plan: %w", err)
	}

	r.invalidateProductCache(ctx, tx, updated.ProductID)
	return updated, nil
}

func (r *repository) GetPlan(ctx context.Context, tx pgx.Tx, planID uint64) (*models.ProductPlan, error) {
	plan, err := scanPlan(driver.Q(r.conn, tx).QueryRow(ctx,
		`SELECT `+planColumns+` FROM product_plans WHERE id = $1`,
		planID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPlanNotFound
		}
		r.logger.Error("Failed to get product plan", zap.Uint64("plan_id", planID), zap.Error(err))
		return nil, fmt.Errorf("failed to get product plan: %w", err)
	}
	return plan, nil
}

func (r *repository) ListPlans(ctx context.Context, tx pgx.Tx, productID uint64) ([]*models.ProductPlan, error) {
	rows, err := driver.Q(r.conn, tx).Query(ctx,
		`SELECT `+planColumns+` FROM product_plans WHERE product_id = $1 ORDER BY price, id`,
		productID,
	)
	if err != nil {
		r.logger.Error("Failed to list product plans", zap.Uint64("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("failed to list product plans: %w", err)
	}
	defer rows.Close()

	plans := make([]*models.ProductPlan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *repository) DeletePlan(ctx context.Context, tx pgx.Tx, planID uint64) error {
	var productID uint64
	if err := driver.Q(r.conn, tx).QueryRow(ctx,
		`DELETE FROM product_plans WHERE id = $1 RETURNING product_id`, planID,
	).Scan(&productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrPlanNotFound
		}
		r.logger.Error("Failed to delete product plan", zap.Uint64("plan_id", planID), zap.Error(err))
		return fmt.Errorf("failed to delete product plan: %w", err)
	}

	r.invalidateProductCache(ctx, tx, productID)
	return nil
}

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

func violates(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// invalidateProductCache 交易中延後到提交之後才清除快取
func (r *repository) invalidateProductCache(ctx context.Context, tx pgx.Tx, productID uint64) {
	ctx = context.WithoutCancel(ctx)
	driver.AfterCommit(tx, func() {
		if err := r.cache.Delete(ctx, productCacheKey(productID)); err != nil {
			r.logger.Warn("Failed to invalidate product cache", zap.Uint64("product_id", productID), zap.Error(err))
		}
	})
}

func productCacheKey(productID uint64) string {
	return fmt.Sprintf("product:%d", productID)
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	p := &models.Product{}
	if err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Image,
		&p.SerialNo, &p.Quantity, &p.Vendor, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return p, nil
}

func scanPlan(row pgx.Row) (*models.ProductPlan, error) {
	p := &models.ProductPlan{}
	if err := row.Scan(
		&p.ID, &p.ProductID, &p.Name, &p.Price, &p.Guarantee, &p.Maintenance, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return p, nil
}
