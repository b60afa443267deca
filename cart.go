package estore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

// GetOrCreateActiveCart 回傳顧客目前的購物車，過期的購物車會先標記為 abandoned
func (s *service) GetOrCreateActiveCart(ctx context.Context, customerID uint64, currency stripe.Currency) (*models.Cart, error) {
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	var cartModel *models.Cart
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		existingCart, err := s.cart.GetActiveCartByCustomerID(ctx, tx, customerID)
		switch {
		case err == nil && !existingCart.Expired(s.now()):
			cartModel = existingCart
			return nil
		case err == nil:
			if err = s.cart.UpdateCartStatus(ctx, tx, existingCart.ID, enum.CartStatusAbandoned); err != nil {
				return fmt.Errorf("failed to abandon expired cart: %w", err)
			}
		case !errors.Is(err, models.ErrCartNotFound):
			return fmt.Errorf("failed to get active cart: %w", err)
		}

		now := s.now()
		cartModel, err = s.cart.CreateCart(ctx, tx, &models.Cart{
			CustomerID: customerID,
			Status:     enum.CartStatusActive,
			Currency:   currency,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.cfg.CartTTL),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return cartModel, nil
}

func (s *service) GetCart(ctx context.Context, cartID uint64) (*models.Cart, error) {
	return s.cart.GetCart(ctx, nil, cartID)
}

// AddItemToCart 相同商品與方案會合併數量，價格在加入時快照
func (s *service) AddItemToCart(ctx context.Context, cartID, productID uint64, planID *uint64, quantity uint64) (*models.Cart, error) {
	if !validQuantity(quantity) {
		return nil, models.ErrInvalidQuantity
	}

	return s.mutateCart(ctx, cartID, func(tx pgx.Tx, cartModel *models.Cart) error {
		// 1. 獲取商品與方案價格
		productModel, err := s.product.GetProduct(ctx, tx, productID)
		if err != nil {
			return fmt.Errorf("failed to get product: %w", err)
		}
		item := &models.CartItem{
			CartID:        cartID,
			ProductID:     productID,
			ProductPlanID: planID,
			UnitPrice:     productModel.Price,
		}
		if planID != nil {
			plan, ok := productModel.Plan(*planID)
			if !ok {
				return models.ErrPlanNotFound
			}
			item.PlanPrice = plan.Price
		}

		// 2. 檢查是否已存在相同商品
		for _, existing := range cartModel.Items {
			if existing.ProductID == productID && models.SamePlan(existing.ProductPlanID, planID) {
				item.ID = existing.ID
				quantity += existing.Quantity
				break
			}
		}

		// 3. 檢查庫存
		if !validQuantity(quantity) {
			return models.ErrInvalidQuantity
		}
		if int64(quantity) > productModel.Quantity {
			return fmt.Errorf("product %d has %d left: %w", productID, productModel.Quantity, models.ErrInsufficientStock)
		}
		item.Quantity = quantity

		if item.ID != 0 {
			return s.cart.UpdateCartItem(ctx, tx, item)
		}
		_, err = s.cart.AddCartItem(ctx, tx, item)
		return err
	})
}

// UpdateCartItemQuantity 數量為零時移除項目
func (s *service) UpdateCartItemQuantity(ctx context.Context, cartID, itemID, quantity uint64) (*models.Cart, error) {
	if quantity == 0 {
		return s.RemoveItemFromCart(ctx, cartID, itemID)
	}
	if !validQuantity(quantity) {
		return nil, models.ErrInvalidQuantity
	}

	return s.mutateCart(ctx, cartID, func(tx pgx.Tx, cartModel *models.Cart) error {
		item, err := s.cart.GetCartItem(ctx, tx, cartID, itemID)
		if err != nil {
			return err
		}

		productModel, err := s.product.GetProduct(ctx, tx, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to get product: %w", err)
		}
		if int64(quantity) > productModel.Quantity {
			return fmt.Errorf("product %d has %d left: %w", item.ProductID, productModel.Quantity, models.ErrInsufficientStock)
		}

		item.Quantity = quantity
		return s.cart.UpdateCartItem(ctx, tx, item)
	})
}

func (s *service) RemoveItemFromCart(ctx context.Context, cartID, itemID uint64) (*models.Cart, error) {
	return s.mutateCart(ctx, cartID, func(tx pgx.Tx, _ *models.Cart) error {
		return s.cart.RemoveCartItem(ctx, tx, cartID, itemID)
	})
}

func (s *service) ClearCart(ctx context.Context, cartID uint64) (*models.Cart, error) {
	return s.mutateCart(ctx, cartID, func(tx pgx.Tx, _ *models.Cart) error {
		return s.cart.ClearCartItems(ctx, tx, cartID)
	})
}

// AbandonExpiredCarts 由排程呼叫，筆數由排程記錄
func (s *service) AbandonExpiredCarts(ctx context.Context) (int64, error) {
	n, err := s.cart.AbandonExpiredCarts(ctx, nil, s.now())
	if err != nil {
		return 0, err
	}
	return n, nil
}

// mutateCart 在交易中鎖定 active 購物車後執行 fn，並回傳更新後的購物車
func (s *service) mutateCart(ctx context.Context, cartID uint64, fn func(tx pgx.Tx, cartModel *models.Cart) error) (*models.Cart, error) {
	var updated *models.Cart
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		cartModel, err := s.cart.GetCart(ctx, tx, cartID)
		if err != nil {
			return fmt.Errorf("failed to get cart: %w", err)
		}
		if cartModel.Status != enum.CartStatusActive || cartModel.Expired(s.now()) {
			return models.ErrCartNotActive
		}

		if err = fn(tx, cartModel); err != nil {
			return err
		}

		updated, err = s.cart.GetCart(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
