package enum

// OrderStatus 表示訂單的狀態
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"          // 訂單已創建，等待店家確認
	OrderStatusAccepted        OrderStatus = "ACCEPTED"         // 店家已接單
	OrderStatusRejected        OrderStatus = "REJECTED"         // 店家拒單
	OrderStatusPreparing       OrderStatus = "PREPARING"        // 備貨中
	OrderStatusReady           OrderStatus = "READY"            // 可自取
	OrderStatusDelivered       OrderStatus = "DELIVERED"        // 已送達
	OrderStatusCompleted       OrderStatus = "COMPLETED"        // 訂單完成
	OrderStatusCancelled       OrderStatus = "CANCELLED"        // 顧客取消
	OrderStatusReturnRequested OrderStatus = "RETURN_REQUESTED" // 顧客申請退貨
	OrderStatusReturned        OrderStatus = "RETURNED"         // 退貨完成
	OrderStatusReturnRejected  OrderStatus = "RETURN_REJECTED"  // 退貨被拒
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:         {},
	OrderStatusAccepted:        {},
	OrderStatusRejected:        {},
	OrderStatusPreparing:       {},
	OrderStatusReady:           {},
	OrderStatusDelivered:       {},
	OrderStatusCompleted:       {},
	OrderStatusCancelled:       {},
	OrderStatusReturnRequested: {},
	OrderStatusReturned:        {},
	OrderStatusReturnRejected:  {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// Terminal 表示該狀態之後不再有任何轉換
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusRejected, OrderStatusCancelled, OrderStatusReturned, OrderStatusReturnRejected:
		return true
	}
	return false
}

// Returnable 表示顧客可以在此狀態下申請整單或單品退貨
func (s OrderStatus) Returnable() bool {
	switch s {
	case OrderStatusReady, OrderStatusDelivered, OrderStatusCompleted:
		return true
	}
	return false
}
