package estore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/estore/models"
)

func TestSaveCategoryRejectsCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.svc.SaveCategory(ctx, &models.Category{Name: "Electronics"})
	require.NoError(t, err)
	child, err := f.svc.SaveCategory(ctx, &models.Category{Name: "Phones", ParentID: &root.ID})
	require.NoError(t, err)
	grandchild, err := f.svc.SaveCategory(ctx, &models.Category{Name: "Cases", ParentID: &child.ID})
	require.NoError(t, err)

	_, err = f.svc.SaveCategory(ctx, &models.Category{ID: root.ID, Name: "Electronics", ParentID: &grandchild.ID})
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.SaveCategory(ctx, &models.Category{ID: child.ID, Name: "Phones", ParentID: &child.ID})
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	missing := uint64(404)
	_, err = f.svc.SaveCategory(ctx, &models.Category{Name: "Orphan", ParentID: &missing})
	require.ErrorIs(t, err, models.ErrCategoryNotFound)

	_, err = f.svc.SaveCategory(ctx, &models.Category{Name: " "})
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	stored, err := f.svc.GetCategory(ctx, root.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ParentID)
}

func TestCategoryTreeAndSubcategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	electronics, err := f.svc.SaveCategory(ctx, &models.Category{Name: "Electronics"})
	require.NoError(t, err)
	books, err := f.svc.SaveCategory(ctx, &models.Category{Name: "Books"})
	require.NoError(t, err)
	phones, err := f.svc.SaveCategory(ctx, &models.Category{Name: "Phones", ParentID: &electronics.ID})
	require.NoError(t, err)
	_, err = f.svc.SaveCategory(ctx, &models.Category{Name: "Cases", ParentID: &phones.ID})
	require.NoError(t, err)

	tree, err := f.svc.GetCategoryTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, electronics.ID, tree[0].ID)
	assert.Equal(t, books.ID, tree[1].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Phones", tree[0].Children[0].Name)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, "Cases", tree[0].Children[0].Children[0].Name)

	subs, err := f.svc.ListSubcategories(ctx, electronics.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, phones.ID, subs[0].ID)

	_, err = f.svc.ListSubcategories(ctx, 404)
	require.ErrorIs(t, err, models.ErrCategoryNotFound)

	require.NoError(t, f.svc.DeleteCategory(ctx, books.ID))
	require.ErrorIs(t, f.svc.DeleteCategory(ctx, books.ID), models.ErrCategoryNotFound)

	all, err := f.svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBuildCategoryTreeTreatsOrphansAsRoots(t *testing.T) {
	missing := uint64(99)
	tree := buildCategoryTree([]*models.Category{
		{ID: 1, Name: "a"},
		{ID: 2, Name: "b", ParentID: &missing},
	})
	require.Len(t, tree, 2)
	assert.Empty(t, tree[0].Children)
	assert.Equal(t, uint64(2), tree[1].ID)
}
