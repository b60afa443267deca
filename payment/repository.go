package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/estore/driver"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	CreatePayment(ctx context.Context, tx pgx.Tx, payment *models.Payment) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, tx pgx.Tx, orderID uint64) (*models.Payment, error)
	GetPaymentByIntentID(ctx context.Context, tx pgx.Tx, paymentIntentID string) (*models.Payment, error)
	ListPaymentsByOrderIDs(ctx context.Context, tx pgx.Tx, orderIDs []uint64) (map[uint64]*models.Payment, error)
	UpdatePaymentAmount(ctx context.Context, tx pgx.Tx, paymentID uint64, amount decimal.Decimal, updatedAt time.Time) error
	UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, paymentID uint64, status enum.PaymentStatus, updatedAt time.Time) error
}

const paymentColumns = `id, order_id, customer_id, method, address, amount, currency, status, payment_intent_id, created_at, updated_at`

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		logger: logger,
	}
}

func (r *repository) CreatePayment(ctx context.Context, tx pgx.Tx, payment *models.Payment) (*models.Payment, error) {
	var intentID *string
	if payment.PaymentIntentID != "" {
		intentID = &payment.PaymentIntentID
	}

	row := driver.Q(r.conn, tx).QueryRow(ctx, `
		INSERT INTO payments (order_id, customer_id, method, address, amount, currency, status, payment_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		payment.OrderID, payment.CustomerID, payment.Method, payment.Address,
		payment.Amount, payment.Currency, payment.Status, intentID,
	)
	created, err := scanPayment(row)
	if err != nil {
		r.logger.Error("Failed to create payment", zap.Uint64("order_id", payment.OrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return created, nil
}

func (r *repository) GetPaymentByOrderID(ctx context.Context, tx pgx.Tx, orderID uint64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	payment, err := scanPayment(driver.Q(r.conn, tx).QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPaymentNotFound
		}
		r.logger.Error("Failed to get payment", zap.Uint64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (r *repository) GetPaymentByIntentID(ctx context.Context, tx pgx.Tx, paymentIntentID string) (*models.Payment, error) {
	payment, err := scanPayment(driver.Q(r.conn, tx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_intent_id = $1`,
		paymentIntentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPaymentNotFound
		}
		r.logger.Error("Failed to get payment by intent", zap.String("payment_intent_id", paymentIntentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment by intent: %w", err)
	}
	return payment, nil
}

func (r *repository) ListPaymentsByOrderIDs(ctx context.Context, tx pgx.Tx, orderIDs []uint64) (map[uint64]*models.Payment, error) {
	payments := make(map[uint64]*models.Payment, len(orderIDs))
	if len(orderIDs) == 0 {
		return payments, nil
	}

	rows, err := driver.Q(r.conn, tx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = ANY($1)`,
		orderIDs,
	)
	if err != nil {
		r.logger.Error("Failed to list payments", zap.Error(err))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments[payment.OrderID] = payment
	}
	return payments, rows.Err()
}

func (r *repository) UpdatePaymentAmount(ctx context.Context, tx pgx.Tx, paymentID uint64, amount decimal.Decimal, updatedAt time.Time) error {
	tag, err := driver.Q(r.conn, tx).Exec(ctx,
		`UPDATE payments SET amount = $2, updated_at = $3 WHERE id = $1`,
		paymentID, amount, updatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update payment amount", zap.Uint64("payment_id", paymentID), zap.Error(err))
		return fmt.Errorf("failed to update payment amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPaymentNotFound
	}
	return nil
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, paymentID uint64, status enum.PaymentStatus, updatedAt time.Time) error {
	tag, err := driver.Q(r.conn, tx).Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`,
		paymentID, status, updatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update payment status", zap.Uint64("payment_id", paymentID), zap.Error(err))
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPaymentNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := &models.Payment{}
	var intentID *string
	if err := row.Scan(
		&p.ID, &p.OrderID, &p.CustomerID, &p.Method, &p.Address, &p.Amount,
		&p.Currency, &p.Status, &intentID, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if intentID != nil {
		p.PaymentIntentID = *intentID
	}
	return p, nil
}
