package estore

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
	"goflare.io/estore/stock"
)

// SaveProduct 新增或更新商品，並以 CategoryIDs 取代原有分類
func (s *service) SaveProduct(ctx context.Context, req SaveProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("product name is required: %w", models.ErrInvalidArgument)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("product price must not be negative: %w", models.ErrInvalidArgument)
	}
	if req.Quantity < 0 {
		return nil, models.ErrInvalidQuantity
	}

	var saved *models.Product
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		// 1. 檢查分類
		for _, categoryID := range req.CategoryIDs {
			if _, err := s.category.GetByID(ctx, tx, categoryID); err != nil {
				return fmt.Errorf("category %d: %w", categoryID, err)
			}
		}

		// 2. 產生唯一 slug
		productSlug, err := s.uniqueSlug(ctx, tx, name, req.ID)
		if err != nil {
			return err
		}

		productModel := &models.Product{
			ID:          req.ID,
			Name:        name,
			Slug:        productSlug,
			Description: req.Description,
			Price:       req.Price,
			Image:       req.Image,
			SerialNo:    req.SerialNo,
			Quantity:    req.Quantity,
			Vendor:      req.Vendor,
		}

		// 3. 新增或更新
		if req.ID == 0 {
			if saved, err = s.product.CreateProduct(ctx, tx, productModel); err != nil {
				return err
			}
			if saved.Quantity > 0 {
				if err = s.stock.CreateStockMovements(ctx, tx, []stock.CreateStockMovementParams{{
					ProductID:     saved.ID,
					Quantity:      saved.Quantity,
					Type:          enum.StockMovementTypeIn,
					ReferenceID:   saved.ID,
					ReferenceType: enum.StockMovementReferenceTypeAdjustment,
				}}); err != nil {
					return fmt.Errorf("failed to create stock movements: %w", err)
				}
			}
		} else if saved, err = s.product.UpdateProduct(ctx, tx, productModel); err != nil {
			return err
		}

		// 4. 取代分類
		if err = s.category.SetProductCategories(ctx, tx, saved.ID, req.CategoryIDs); err != nil {
			return err
		}
		return s.attachCategories(ctx, tx, saved)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product saved", zap.Uint64("product_id", saved.ID), zap.String("slug", saved.Slug))
	return saved, nil
}

func (s *service) GetProduct(ctx context.Context, productID uint64) (*models.Product, error) {
	productModel, err := s.product.GetProduct(ctx, nil, productID)
	if err != nil {
		return nil, err
	}
	if err = s.attachCategories(ctx, nil, productModel); err != nil {
		return nil, err
	}
	return productModel, nil
}

func (s *service) GetProductBySlug(ctx context.Context, productSlug string) (*models.Product, error) {
	productModel, err := s.product.GetProductBySlug(ctx, nil, productSlug)
	if err != nil {
		return nil, err
	}
	if err = s.attachCategories(ctx, nil, productModel); err != nil {
		return nil, err
	}
	return productModel, nil
}

func (s *service) ListProducts(ctx context.Context, categoryID *uint64, limit, offset uint64) ([]*models.Product, error) {
	products, err := s.product.ListProducts(ctx, nil, categoryID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	if err = s.attachCategories(ctx, nil, products...); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uint64) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.product.DeleteProduct(ctx, tx, productID)
	})
}

// AdjustProductStock 管理員手動調整庫存，結果不可小於零
func (s *service) AdjustProductStock(ctx context.Context, productID uint64, delta int64) (*models.Product, error) {
	if delta == 0 {
		return nil, models.ErrInvalidQuantity
	}

	movementType := enum.StockMovementTypeIn
	quantity := delta
	if delta < 0 {
		movementType = enum.StockMovementTypeOut
		quantity = -delta
	}

	var productModel *models.Product
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.stock.AdjustStock(ctx, tx, stock.AdjustStockParams{
			ProductID:   productID,
			Delta:       delta,
			LastUpdated: s.now(),
		}); err != nil {
			return err
		}

		if err := s.stock.CreateStockMovements(ctx, tx, []stock.CreateStockMovementParams{{
			ProductID:     productID,
			Quantity:      quantity,
			Type:          movementType,
			ReferenceID:   productID,
			ReferenceType: enum.StockMovementReferenceTypeAdjustment,
		}}); err != nil {
			return fmt.Errorf("failed to create stock movements: %w", err)
		}

		var err error
		productModel, err = s.product.GetProduct(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product stock adjusted",
		zap.Uint64("product_id", productID),
		zap.Int64("delta", delta),
		zap.Int64("quantity", productModel.Quantity))
	s.metrics.StockMoved(movementType, enum.StockMovementReferenceTypeAdjustment, 1)
	return productModel, nil
}

func (s *service) ListStockMovements(ctx context.Context, productID uint64, limit, offset uint64) ([]*models.StockMovement, error) {
	if _, err := s.product.GetProduct(ctx, nil, productID); err != nil {
		return nil, err
	}
	return s.stock.ListStockMovements(ctx, nil, productID, normalizeLimit(limit), offset)
}

// SaveProductPlan 新增或更新商品方案，更新時方案必須屬於同一商品
func (s *service) SaveProductPlan(ctx context.Context, plan *models.ProductPlan) (*models.ProductPlan, error) {
	plan.Name = strings.TrimSpace(plan.Name)
	if plan.Name == "" {
		return nil, fmt.Errorf("plan name is required: %w", models.ErrInvalidArgument)
	}
	if plan.Price.IsNegative() || plan.Guarantee < 0 || plan.Maintenance < 0 {
		return nil, fmt.Errorf("plan price and terms must not be negative: %w", models.ErrInvalidArgument)
	}

	var saved *models.ProductPlan
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.product.GetProduct(ctx, tx, plan.ProductID); err != nil {
			return err
		}

		var err error
		if plan.ID == 0 {
			saved, err = s.product.CreatePlan(ctx, tx, plan)
			return err
		}

		existing, err := s.product.GetPlan(ctx, tx, plan.ID)
		if err != nil {
			return err
		}
		if existing.ProductID != plan.ProductID {
			return models.ErrPlanNotFound
		}
		saved, err = s.product.UpdatePlan(ctx, tx, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *service) ListProductPlans(ctx context.Context, productID uint64) ([]*models.ProductPlan, error) {
	if _, err := s.product.GetProduct(ctx, nil, productID); err != nil {
		return nil, err
	}
	return s.product.ListPlans(ctx, nil, productID)
}

func (s *service) DeleteProductPlan(ctx context.Context, planID uint64) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.product.DeletePlan(ctx, tx, planID)
	})
}

// uniqueSlug 名稱重複時加上數字後綴
func (s *service) uniqueSlug(ctx context.Context, tx pgx.Tx, name string, productID uint64) (string, error) {
	base := slug.Make(name)
	if base == "" {
		return "", fmt.Errorf("product name %q has no usable characters: %w", name, models.ErrInvalidArgument)
	}

	candidate := base
	for i := 2; ; i++ {
		taken, err := s.product.SlugTaken(ctx, tx, candidate, productID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *service) attachCategories(ctx context.Context, tx pgx.Tx, products ...*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	categories, err := s.category.ListByProductIDs(ctx, tx, ids)
	if err != nil {
		return fmt.Errorf("failed to list product categories: %w", err)
	}
	for _, p := range products {
		p.Categories = categories[p.ID]
		if p.Categories == nil {
			p.Categories = make([]*models.Category, 0)
		}
	}
	return nil
}
