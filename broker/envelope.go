// Package broker 發布訂單領域事件到 NATS 或 Kafka
package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"goflare.io/estore/models/enum"
)

type EventType string

const (
	EventOrderPlaced          EventType = "order.placed"
	EventOrderStatusChanged   EventType = "order.status_changed"
	EventOrderReturnRequested EventType = "order.return_requested"
	EventOrderReturnApproved  EventType = "order.return_approved"
	EventOrderReturnRejected  EventType = "order.return_rejected"
	EventOrderItemReturned    EventType = "order.item_returned"
	EventOrderCancelled       EventType = "order.cancelled"
)

const eventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     EventType       `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// OrderPayload 所有訂單事件共用的內容
type OrderPayload struct {
	OrderID        uint64           `json:"order_id"`
	CustomerID     uint64           `json:"customer_id"`
	Status         enum.OrderStatus `json:"status"`
	PreviousStatus enum.OrderStatus `json:"previous_status,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	ItemID         uint64           `json:"item_id,omitempty"`
}

func NewEnvelope(eventType EventType, producer string, payload OrderPayload) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatUint(payload.OrderID, 10),
		Payload:       raw,
	}, nil
}

// DecodePayload 解析信封中的訂單內容
func (e Envelope) DecodePayload() (OrderPayload, error) {
	var p OrderPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
