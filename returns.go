package estore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/estore/broker"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

// ReturnOrder 顧客申請整單退貨，此時不回補庫存
func (s *service) ReturnOrder(ctx context.Context, orderID, customerID uint64) (*models.Order, error) {
	var (
		orderModel *models.Order
		previous   enum.OrderStatus
	)

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		if orderModel, err = s.loadOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if orderModel.CustomerID != customerID {
			return models.ErrOrderNotFound
		}
		if !orderModel.CanReturn() {
			return fmt.Errorf("order %d is %s: %w", orderID, orderModel.Status, models.ErrOrderNotReturnable)
		}

		if err = s.order.MarkReturnRequested(ctx, tx, orderID); err != nil {
			return fmt.Errorf("failed to mark return requested: %w", err)
		}

		now := s.now()
		if err = s.order.UpdateOrderStatus(ctx, tx, orderID, enum.OrderStatusReturnRequested, now); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		for _, item := range orderModel.Items {
			item.ReturnRequested = true
		}
		previous = orderModel.Status
		orderModel.Status = enum.OrderStatusReturnRequested
		orderModel.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Return requested", zap.Uint64("order_id", orderID), zap.Uint64("customer_id", customerID))
	s.metrics.ReturnRequested()
	s.metrics.StatusChanged(enum.OrderStatusReturnRequested)
	s.publish(ctx, broker.EventOrderReturnRequested, orderModel, previous, 0)
	return orderModel, nil
}

// ApproveReturnRequest 核准退貨：回補尚未退貨的項目，全部項目標記已退貨，付款金額歸零
func (s *service) ApproveReturnRequest(ctx context.Context, orderID uint64) (*models.Order, error) {
	var orderModel *models.Order

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error

		// 1. 獲取訂單並檢查狀態
		if orderModel, err = s.loadOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if orderModel.Status != enum.OrderStatusReturnRequested {
			return fmt.Errorf("order %d is %s: %w", orderID, orderModel.Status, models.ErrInvalidStatusTransition)
		}
		if orderModel.Payment == nil {
			return models.ErrPaymentNotFound
		}

		// 2. 回補庫存
		if err = s.restockItems(ctx, tx, orderModel, orderModel.Items, enum.StockMovementReferenceTypeReturn); err != nil {
			return err
		}

		// 3. 項目全部退貨
		if err = s.order.MarkAllItemsReturned(ctx, tx, orderID); err != nil {
			return fmt.Errorf("failed to mark items returned: %w", err)
		}

		// 4. 付款金額歸零
		now := s.now()
		if err = s.payment.UpdatePaymentAmount(ctx, tx, orderModel.Payment.ID, decimal.Zero, now); err != nil {
			return fmt.Errorf("failed to update payment amount: %w", err)
		}

		// 5. 更新訂單狀態
		if err = s.order.UpdateOrderStatus(ctx, tx, orderID, enum.OrderStatusReturned, now); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		for _, item := range orderModel.Items {
			item.IsReturned = true
			item.Amount = decimal.Zero
			item.Quantity = 0
		}
		orderModel.Payment.Amount = decimal.Zero
		orderModel.Payment.UpdatedAt = now
		orderModel.Status = enum.OrderStatusReturned
		orderModel.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Return request approved", zap.Uint64("order_id", orderID))
	s.metrics.ReturnApproved()
	s.metrics.StatusChanged(enum.OrderStatusReturned)
	s.publish(ctx, broker.EventOrderReturnApproved, orderModel, enum.OrderStatusReturnRequested, 0)
	return orderModel, nil
}

// RejectReturnRequest 拒絕退貨，付款金額歸零
func (s *service) RejectReturnRequest(ctx context.Context, orderID uint64) (*models.Order, error) {
	var orderModel *models.Order

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		if orderModel, err = s.loadOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if orderModel.Status != enum.OrderStatusReturnRequested {
			return fmt.Errorf("order %d is %s: %w", orderID, orderModel.Status, models.ErrInvalidStatusTransition)
		}
		if orderModel.Payment == nil {
			return models.ErrPaymentNotFound
		}

		now := s.now()
		if err = s.order.UpdateOrderStatus(ctx, tx, orderID, enum.OrderStatusReturnRejected, now); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if err = s.payment.UpdatePaymentAmount(ctx, tx, orderModel.Payment.ID, decimal.Zero, now); err != nil {
			return fmt.Errorf("failed to update payment amount: %w", err)
		}

		orderModel.Payment.Amount = decimal.Zero
		orderModel.Payment.UpdatedAt = now
		orderModel.Status = enum.OrderStatusReturnRejected
		orderModel.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Return request rejected", zap.Uint64("order_id", orderID))
	s.metrics.ReturnRejected()
	s.metrics.StatusChanged(enum.OrderStatusReturnRejected)
	s.publish(ctx, broker.EventOrderReturnRejected, orderModel, enum.OrderStatusReturnRequested, 0)
	return orderModel, nil
}

// ReturnItem 單品退貨：回補該項目庫存並從付款金額扣除，最後一項退貨時訂單轉為 RETURNED
func (s *service) ReturnItem(ctx context.Context, orderID, itemID, customerID uint64) (*models.Order, error) {
	var (
		orderModel *models.Order
		previous   enum.OrderStatus
	)

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error

		// 1. 檢查訂單、付款與項目
		if orderModel, err = s.loadOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if orderModel.CustomerID != customerID {
			return models.ErrOrderNotFound
		}
		if orderModel.Payment == nil {
			return models.ErrPaymentNotFound
		}
		item, ok := orderModel.Item(itemID)
		if !ok {
			return models.ErrItemNotFound
		}
		if item.IsReturned {
			return models.ErrItemAlreadyReturned
		}
		if !orderModel.CanReturn() {
			return fmt.Errorf("order %d is %s: %w", orderID, orderModel.Status, models.ErrOrderNotReturnable)
		}

		// 2. 回補庫存
		if err = s.restockItems(ctx, tx, orderModel, []*models.ProductOrder{item}, enum.StockMovementReferenceTypeReturn); err != nil {
			return err
		}

		// 3. 標記項目已退貨
		if err = s.order.MarkItemReturned(ctx, tx, orderID, itemID); err != nil {
			return fmt.Errorf("failed to mark item returned: %w", err)
		}
		item.IsReturned = true

		// 4. 扣除付款金額
		now := s.now()
		amount := orderModel.Payment.Amount.Sub(item.Amount)
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		if err = s.payment.UpdatePaymentAmount(ctx, tx, orderModel.Payment.ID, amount, now); err != nil {
			return fmt.Errorf("failed to update payment amount: %w", err)
		}
		orderModel.Payment.Amount = amount
		orderModel.Payment.UpdatedAt = now

		// 5. 全部項目都已退貨時更新訂單狀態
		previous = orderModel.Status
		if orderModel.AllItemsReturned() {
			if err = s.order.UpdateOrderStatus(ctx, tx, orderID, enum.OrderStatusReturned, now); err != nil {
				return fmt.Errorf("failed to update order status: %w", err)
			}
			orderModel.Status = enum.OrderStatusReturned
			orderModel.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order item returned",
		zap.Uint64("order_id", orderID),
		zap.Uint64("item_id", itemID),
		zap.String("remaining_amount", orderModel.Payment.Amount.StringFixed(2)))
	s.metrics.ItemReturned()
	if orderModel.Status != previous {
		s.metrics.StatusChanged(orderModel.Status)
	}
	s.publish(ctx, broker.EventOrderItemReturned, orderModel, previous, itemID)
	return orderModel, nil
}
