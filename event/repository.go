package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/estore/driver"
	"goflare.io/estore/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	// Create 新增事件紀錄，已存在時不覆寫
	Create(ctx context.Context, tx pgx.Tx, event *models.Event) error
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.Event, error)
	MarkAsProcessed(ctx context.Context, tx pgx.Tx, id string) error
}

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

func (r *repository) Create(ctx context.Context, tx pgx.Tx, event *models.Event) error {
	if _, err := driver.Q(r.conn, tx).Exec(ctx, `
		INSERT INTO events (id, type, processed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Type, event.Processed, event.CreatedAt, event.UpdatedAt,
	); err != nil {
		r.logger.Error("Failed to create event", zap.String("event_id", event.ID), zap.Error(err))
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.Event, error) {
	query := `SELECT id, type, processed, created_at, updated_at FROM events WHERE id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	event := &models.Event{}
	if err := driver.Q(r.conn, tx).QueryRow(ctx, query, id).Scan(
		&event.ID, &event.Type, &event.Processed, &event.CreatedAt, &event.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get event", zap.String("event_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (r *repository) MarkAsProcessed(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := driver.Q(r.conn, tx).Exec(ctx,
		`UPDATE events SET processed = true, updated_at = $2 WHERE id = $1`,
		id, time.Now(),
	); err != nil {
		r.logger.Error("Failed to mark event as processed", zap.String("event_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}
