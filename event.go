package estore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

// PaymentEventSubject 金流服務轉發 Stripe 事件的主題
const PaymentEventSubject = "payment.service.event.>"

// EventHandler 在事件處理交易中執行
type EventHandler func(ctx context.Context, tx pgx.Tx, event *stripe.Event) error

type EventManager struct {
	mu           sync.Mutex
	handlers     map[stripe.EventType]EventHandler
	subscription *nats.Subscription
	logger       *zap.Logger
}

func NewEventManager(logger *zap.Logger) *EventManager {
	return &EventManager{
		handlers: make(map[stripe.EventType]EventHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(eventType stripe.EventType, handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handlers[eventType] = handler
}

func (em *EventManager) GetHandler(eventType stripe.EventType) (EventHandler, bool) {
	em.mu.Lock()
	defer em.mu.Unlock()
	handler, exists := em.handlers[eventType]
	return handler, exists
}

func (em *EventManager) SubscribeToEvents(conn *nats.Conn, wp *WorkerPool) error {
	sub, err := conn.Subscribe(PaymentEventSubject, func(msg *nats.Msg) {
		var event stripe.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("Failed to unmarshal event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}

		wp.Submit(context.Background(), &event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", PaymentEventSubject, err)
	}

	em.mu.Lock()
	em.subscription = sub
	em.mu.Unlock()
	return nil
}

func (em *EventManager) Unsubscribe() {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.subscription == nil {
		return
	}
	if err := em.subscription.Unsubscribe(); err != nil {
		em.logger.Warn("Failed to unsubscribe payment events", zap.Error(err))
	}
	em.subscription = nil
}

func (s *service) registerEventHandlers() {
	eventHandlers := map[stripe.EventType]EventHandler{
		stripe.EventTypePaymentIntentSucceeded:     s.paymentStatusHandler(enum.PaymentStatusPaid),
		stripe.EventTypePaymentIntentPaymentFailed: s.paymentStatusHandler(enum.PaymentStatusFailed),
		stripe.EventTypeChargeRefunded:             s.handleChargeRefunded,
	}

	for eventType, handler := range eventHandlers {
		s.eventManager.RegisterHandler(eventType, handler)
	}
}

// paymentStatusHandler 以 PaymentIntent ID 找到付款並更新狀態
func (s *service) paymentStatusHandler(status enum.PaymentStatus) EventHandler {
	return func(ctx context.Context, tx pgx.Tx, event *stripe.Event) error {
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			s.logger.Error("Failed to unmarshal PaymentIntent", zap.Error(err))
			return err
		}
		return s.setPaymentStatus(ctx, tx, paymentIntent.ID, status)
	}
}

func (s *service) handleChargeRefunded(ctx context.Context, tx pgx.Tx, event *stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		s.logger.Error("Failed to unmarshal Charge", zap.Error(err))
		return err
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return fmt.Errorf("charge %s has no payment intent: %w", charge.ID, models.ErrPaymentNotFound)
	}
	return s.setPaymentStatus(ctx, tx, charge.PaymentIntent.ID, enum.PaymentStatusRefunded)
}

func (s *service) setPaymentStatus(ctx context.Context, tx pgx.Tx, paymentIntentID string, status enum.PaymentStatus) error {
	paymentModel, err := s.payment.GetPaymentByIntentID(ctx, tx, paymentIntentID)
	if err != nil {
		s.logger.Error("Payment not found for PaymentIntent", zap.String("payment_intent_id", paymentIntentID), zap.Error(err))
		return err
	}

	if err = s.payment.UpdatePaymentStatus(ctx, tx, paymentModel.ID, status, s.now()); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	s.logger.Info("Payment status updated",
		zap.Uint64("order_id", paymentModel.OrderID),
		zap.String("status", string(status)))
	return nil
}

// ProcessEvent 每個事件 ID 只處理一次，事件紀錄與處理結果在同一交易中。
// 同一事件並行重送時序列化衝突會重試，重試後看到 processed 而略過。
func (s *service) ProcessEvent(ctx context.Context, event *stripe.Event) error {
	handler, exists := s.eventManager.GetHandler(event.Type)
	if !exists {
		return fmt.Errorf("no handler registered for event type: %s", event.Type)
	}

	var skipped bool
	err := s.transactionManager.ExecuteSerializableTransaction(ctx, func(tx pgx.Tx) error {
		now := s.now()
		if err := s.event.Create(ctx, tx, &models.Event{
			ID:        event.ID,
			Type:      event.Type,
			Processed: false,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		stored, err := s.event.GetByID(ctx, tx, event.ID)
		if err != nil {
			return err
		}
		if stored.Processed {
			skipped = true
			return nil
		}

		if err = handler(ctx, tx, event); err != nil {
			return err
		}
		return s.event.MarkAsProcessed(ctx, tx, event.ID)
	})
	s.metrics.PaymentEvent(string(event.Type), err)
	if err != nil {
		s.logger.Error("Failed to process event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		return err
	}

	if skipped {
		s.logger.Info("Event already processed", zap.String("event_id", event.ID))
		return nil
	}
	s.logger.Info("Stripe event processed", zap.String("event_id", event.ID))
	return nil
}
