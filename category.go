package estore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"goflare.io/estore/models"
)

// SaveCategory 新增或更新分類，父分類不可形成循環
func (s *service) SaveCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("category name is required: %w", models.ErrInvalidArgument)
	}

	var saved *models.Category
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if c.ParentID != nil {
			if err := s.checkParent(ctx, tx, c.ID, *c.ParentID); err != nil {
				return err
			}
		}

		var err error
		if c.ID == 0 {
			saved, err = s.category.Create(ctx, tx, c)
		} else {
			saved, err = s.category.Update(ctx, tx, c)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *service) GetCategory(ctx context.Context, id uint64) (*models.Category, error) {
	return s.category.GetByID(ctx, nil, id)
}

func (s *service) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.category.List(ctx, nil)
}

func (s *service) ListSubcategories(ctx context.Context, parentID uint64) ([]*models.Category, error) {
	if _, err := s.category.GetByID(ctx, nil, parentID); err != nil {
		return nil, err
	}
	return s.category.ListSubcategories(ctx, nil, parentID)
}

func (s *service) GetCategoryTree(ctx context.Context) ([]*models.CategoryTree, error) {
	categories, err := s.category.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return buildCategoryTree(categories), nil
}

func (s *service) DeleteCategory(ctx context.Context, id uint64) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.category.Delete(ctx, tx, id)
	})
}

// checkParent 父分類必須存在，且沿著祖先往上不會遇到自己
func (s *service) checkParent(ctx context.Context, tx pgx.Tx, categoryID, parentID uint64) error {
	seen := make(map[uint64]struct{})
	next := &parentID
	for next != nil {
		if categoryID != 0 && *next == categoryID {
			return fmt.Errorf("category cannot be its own ancestor: %w", models.ErrInvalidArgument)
		}
		if _, ok := seen[*next]; ok {
			break
		}
		seen[*next] = struct{}{}

		parent, err := s.category.GetByID(ctx, tx, *next)
		if err != nil {
			return fmt.Errorf("parent category %d: %w", *next, err)
		}
		next = parent.ParentID
	}
	return nil
}

func buildCategoryTree(categories []*models.Category) []*models.CategoryTree {
	categoryMap := make(map[uint64]*models.CategoryTree, len(categories))
	roots := make([]*models.CategoryTree, 0)

	for _, cat := range categories {
		categoryMap[cat.ID] = &models.CategoryTree{Category: cat}
	}

	for _, cat := range categories {
		node := categoryMap[cat.ID]
		if cat.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		// 父分類不存在時視為根節點
		parent, exists := categoryMap[*cat.ParentID]
		if !exists {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return roots
}
