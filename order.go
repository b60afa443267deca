package estore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/estore/broker"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
	"goflare.io/estore/stock"
)

// PlaceOrder 建立訂單與付款紀錄並扣減庫存，任何商品庫存不足則整筆交易回滾
func (s *service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	p := placement{
		customerID:      req.CustomerID,
		orderType:       req.Type,
		method:          req.PaymentMethod,
		address:         req.Address,
		pickupAt:        req.PickupAt,
		currency:        req.Currency,
		paymentIntentID: req.PaymentIntentID,
	}
	if err := validatePlacement(p, req.Entries); err != nil {
		return nil, err
	}

	var newOrder *models.Order
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		newOrder, err = s.createOrder(ctx, tx, p, req.Entries)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.orderPlaced(ctx, newOrder)
	return newOrder, nil
}

// CheckoutCart 將購物車轉為訂單，購物車在同一交易中標記為 converted
func (s *service) CheckoutCart(ctx context.Context, cartID uint64, req CheckoutRequest) (*models.Order, error) {
	p := placement{
		customerID:      req.CustomerID,
		orderType:       req.Type,
		method:          req.PaymentMethod,
		address:         req.Address,
		pickupAt:        req.PickupAt,
		paymentIntentID: req.PaymentIntentID,
	}
	if err := validatePlacement(p, nil); err != nil && !errors.Is(err, models.ErrEmptyOrder) {
		return nil, err
	}

	var newOrder *models.Order
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		// 1. 獲取購物車
		cartModel, err := s.cart.GetCart(ctx, tx, cartID)
		if err != nil {
			return fmt.Errorf("failed to get cart: %w", err)
		}
		if cartModel.CustomerID != req.CustomerID {
			return models.ErrCartNotFound
		}
		if cartModel.Status != enum.CartStatusActive || cartModel.Expired(s.now()) {
			return models.ErrCartNotActive
		}
		if len(cartModel.Items) == 0 {
			return models.ErrEmptyOrder
		}

		// 2. 建立訂單
		entries := make([]OrderEntry, 0, len(cartModel.Items))
		for _, item := range cartModel.Items {
			entries = append(entries, OrderEntry{
				ProductID:     item.ProductID,
				ProductPlanID: item.ProductPlanID,
				Quantity:      item.Quantity,
			})
		}
		p.currency = cartModel.Currency
		if newOrder, err = s.createOrder(ctx, tx, p, entries); err != nil {
			return err
		}

		// 3. 更新購物車狀態
		if err = s.cart.UpdateCartStatus(ctx, tx, cartID, enum.CartStatusConverted); err != nil {
			return fmt.Errorf("failed to update cart status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.orderPlaced(ctx, newOrder)
	return newOrder, nil
}

func (s *service) createOrder(ctx context.Context, tx pgx.Tx, p placement, entries []OrderEntry) (*models.Order, error) {
	// 1. 以目前價格計算每個項目金額
	amounts := make([]decimal.Decimal, len(entries))
	total := decimal.Zero
	for i, entry := range entries {
		productModel, err := s.product.GetProduct(ctx, tx, entry.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to get product %d: %w", entry.ProductID, err)
		}
		unitPrice := productModel.Price
		if entry.ProductPlanID != nil {
			plan, err := s.product.GetPlan(ctx, tx, *entry.ProductPlanID)
			if err != nil {
				return nil, fmt.Errorf("failed to get product plan %d: %w", *entry.ProductPlanID, err)
			}
			if plan.ProductID != productModel.ID {
				return nil, fmt.Errorf("plan %d does not belong to product %d: %w", plan.ID, productModel.ID, models.ErrPlanNotFound)
			}
			unitPrice = unitPrice.Add(plan.Price)
		}
		amounts[i] = unitPrice.Mul(decimal.NewFromInt(int64(entry.Quantity)))
		total = total.Add(amounts[i])
	}

	// 2. 建立訂單
	newOrder, err := s.order.CreateOrder(ctx, tx, &models.Order{
		CustomerID: p.customerID,
		Type:       p.orderType,
		Status:     enum.OrderStatusPending,
		PickupAt:   p.pickupAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// 3. 建立付款紀錄
	currency := p.currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	newOrder.Payment, err = s.payment.CreatePayment(ctx, tx, &models.Payment{
		OrderID:         newOrder.ID,
		CustomerID:      p.customerID,
		Method:          p.method,
		Address:         strings.TrimSpace(p.address),
		Amount:          total,
		Currency:        currency,
		Status:          enum.PaymentStatusUnpaid,
		PaymentIntentID: p.paymentIntentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	// 4. 建立訂單項目
	orderItems := make([]*models.ProductOrder, len(entries))
	reduceStockParams := make([]stock.ReduceStockParams, len(entries))
	stockMoveParams := make([]stock.CreateStockMovementParams, len(entries))
	for i, entry := range entries {
		serialNo, err := newSerialNo()
		if err != nil {
			return nil, err
		}
		orderItems[i] = &models.ProductOrder{
			OrderID:       newOrder.ID,
			ProductID:     entry.ProductID,
			ProductPlanID: entry.ProductPlanID,
			Quantity:      entry.Quantity,
			SerialNo:      serialNo,
			Amount:        amounts[i],
		}
		reduceStockParams[i] = stock.ReduceStockParams{
			ProductID:   entry.ProductID,
			Quantity:    entry.Quantity,
			LastUpdated: s.now(),
		}
		stockMoveParams[i] = stock.CreateStockMovementParams{
			ProductID:     entry.ProductID,
			Quantity:      int64(entry.Quantity),
			Type:          enum.StockMovementTypeOut,
			ReferenceID:   newOrder.ID,
			ReferenceType: enum.StockMovementReferenceTypeOrder,
		}
	}

	if newOrder.Items, err = s.order.AddOrderItems(ctx, tx, orderItems); err != nil {
		return nil, fmt.Errorf("failed to add order items: %w", err)
	}

	// 5. 扣減庫存，不足時回滾
	if err = s.stock.ReduceStock(ctx, tx, reduceStockParams); err != nil {
		return nil, fmt.Errorf("failed to reduce stock: %w", err)
	}

	// 6. 庫存變動紀錄
	if err = s.stock.CreateStockMovements(ctx, tx, stockMoveParams); err != nil {
		return nil, fmt.Errorf("failed to create stock movements: %w", err)
	}

	return newOrder, nil
}

func (s *service) orderPlaced(ctx context.Context, o *models.Order) {
	s.logger.Info("Order placed",
		zap.Uint64("order_id", o.ID),
		zap.Uint64("customer_id", o.CustomerID),
		zap.String("amount", o.Payment.Amount.StringFixed(2)))
	s.metrics.OrderPlaced(o.Payment.Amount)
	s.metrics.StockMoved(enum.StockMovementTypeOut, enum.StockMovementReferenceTypeOrder, len(o.Items))
	s.publish(ctx, broker.EventOrderPlaced, o, "", 0)
}

func (s *service) GetOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	return s.loadOrder(ctx, nil, orderID)
}

// ListCustomerOrders 由新到舊列出顧客的訂單
func (s *service) ListCustomerOrders(ctx context.Context, customerID uint64, limit, offset uint64) ([]*models.Order, error) {
	orders, err := s.order.ListOrdersByCustomer(ctx, nil, customerID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer orders: %w", err)
	}
	return s.attachPayments(ctx, orders)
}

func (s *service) ListOrders(ctx context.Context, status *enum.OrderStatus, limit, offset uint64) ([]*models.Order, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", *status, models.ErrInvalidArgument)
	}
	orders, err := s.order.ListOrders(ctx, nil, status, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.attachPayments(ctx, orders)
}

func (s *service) AcceptOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	return s.changeStatus(ctx, orderID, enum.OrderStatusAccepted, nil, false)
}

// RejectOrder 拒絕訂單並回補庫存
func (s *service) RejectOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	return s.changeStatus(ctx, orderID, enum.OrderStatusRejected, nil, true)
}

// UpdateOrderStatus 管理員推進訂單出貨流程
func (s *service) UpdateOrderStatus(ctx context.Context, orderID uint64, status enum.OrderStatus) (*models.Order, error) {
	switch status {
	case enum.OrderStatusPreparing, enum.OrderStatusReady, enum.OrderStatusDelivered, enum.OrderStatusCompleted:
	default:
		if !status.Valid() {
			return nil, fmt.Errorf("unknown order status %q: %w", status, models.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("status %s cannot be set directly: %w", status, models.ErrInvalidStatusTransition)
	}
	return s.changeStatus(ctx, orderID, status, nil, false)
}

// CancelOrder 顧客取消自己尚未受理的訂單
func (s *service) CancelOrder(ctx context.Context, orderID, customerID uint64) (*models.Order, error) {
	return s.changeStatus(ctx, orderID, enum.OrderStatusCancelled, &customerID, true)
}

func (s *service) changeStatus(ctx context.Context, orderID uint64, next enum.OrderStatus, customerID *uint64, restock bool) (*models.Order, error) {
	var (
		orderModel *models.Order
		previous   enum.OrderStatus
	)

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error

		// 1. 獲取訂單
		if orderModel, err = s.loadOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if customerID != nil && orderModel.CustomerID != *customerID {
			return models.ErrOrderNotFound
		}

		// 2. 檢查狀態轉換
		if !orderModel.AllowChangeStatus(next) {
			return fmt.Errorf("order %d cannot change from %s to %s: %w",
				orderID, orderModel.Status, next, models.ErrInvalidStatusTransition)
		}

		// 3. 回補庫存
		if restock {
			if err = s.restockItems(ctx, tx, orderModel, orderModel.Items, enum.StockMovementReferenceTypeOrder); err != nil {
				return err
			}
		}

		// 4. 更新訂單狀態
		now := s.now()
		if err = s.order.UpdateOrderStatus(ctx, tx, orderID, next, now); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		previous = orderModel.Status
		orderModel.Status = next
		orderModel.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.Uint64("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)))
	s.metrics.StatusChanged(next)

	eventType := broker.EventOrderStatusChanged
	if next == enum.OrderStatusCancelled {
		eventType = broker.EventOrderCancelled
	}
	s.publish(ctx, eventType, orderModel, previous, 0)
	return orderModel, nil
}

// restockItems 將項目數量加回庫存並記錄 in 異動，數量為零或已退貨的項目略過
func (s *service) restockItems(ctx context.Context, tx pgx.Tx, o *models.Order, items []*models.ProductOrder, ref enum.StockMovementReferenceType) error {
	restockParams := make([]stock.RestockParams, 0, len(items))
	moveParams := make([]stock.CreateStockMovementParams, 0, len(items))
	for _, item := range items {
		if item.IsReturned || item.Quantity == 0 {
			continue
		}
		restockParams = append(restockParams, stock.RestockParams{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			LastUpdated: s.now(),
		})
		moveParams = append(moveParams, stock.CreateStockMovementParams{
			ProductID:     item.ProductID,
			Quantity:      int64(item.Quantity),
			Type:          enum.StockMovementTypeIn,
			ReferenceID:   o.ID,
			ReferenceType: ref,
		})
	}
	if len(restockParams) == 0 {
		return nil
	}

	if err := s.stock.Restock(ctx, tx, restockParams); err != nil {
		return fmt.Errorf("failed to restock: %w", err)
	}
	if err := s.stock.CreateStockMovements(ctx, tx, moveParams); err != nil {
		return fmt.Errorf("failed to create stock movements: %w", err)
	}
	s.metrics.StockMoved(enum.StockMovementTypeIn, ref, len(moveParams))
	return nil
}

// loadOrder 獲取訂單、項目與付款紀錄，付款不存在時 Payment 為 nil
func (s *service) loadOrder(ctx context.Context, tx pgx.Tx, orderID uint64) (*models.Order, error) {
	orderModel, err := s.order.GetOrder(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	paymentModel, err := s.payment.GetPaymentByOrderID(ctx, tx, orderID)
	switch {
	case err == nil:
		orderModel.Payment = paymentModel
	case errors.Is(err, models.ErrPaymentNotFound):
		orderModel.Payment = nil
	default:
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return orderModel, nil
}

func (s *service) attachPayments(ctx context.Context, orders []*models.Order) ([]*models.Order, error) {
	ids := make([]uint64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	payments, err := s.payment.ListPaymentsByOrderIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	for _, o := range orders {
		o.Payment = payments[o.ID]
	}
	return orders, nil
}

func validatePlacement(p placement, entries []OrderEntry) error {
	if !p.orderType.Valid() {
		return fmt.Errorf("unknown order type %q: %w", p.orderType, models.ErrInvalidArgument)
	}
	if !p.method.Valid() {
		return fmt.Errorf("unknown payment method %q: %w", p.method, models.ErrInvalidArgument)
	}
	switch p.orderType {
	case enum.OrderTypeDelivery:
		if strings.TrimSpace(p.address) == "" {
			return models.ErrAddressRequired
		}
	case enum.OrderTypePickup:
		if p.pickupAt == nil || p.pickupAt.IsZero() {
			return models.ErrPickupTimeRequired
		}
	}
	if len(entries) == 0 {
		return models.ErrEmptyOrder
	}
	for _, entry := range entries {
		if !validQuantity(entry.Quantity) {
			return fmt.Errorf("quantity %d: %w", entry.Quantity, models.ErrInvalidQuantity)
		}
	}
	return nil
}

// 數量存於 BIGINT 欄位，必須落在 1 到 int64 上限之間
func validQuantity(q uint64) bool {
	return q > 0 && q <= math.MaxInt64
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizeLimit(limit uint64) uint64 {
	if limit == 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
