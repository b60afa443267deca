package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"goflare.io/estore/driver"
	"goflare.io/estore/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	CreateUser(ctx context.Context, tx pgx.Tx, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, tx pgx.Tx, userID uint64) (*models.User, error)
	GetUserByEmail(ctx context.Context, tx pgx.Tx, email string) (*models.User, error)
}

const userColumns = `id, name, email, password_hash, address, role, created_at, updated_at`

const uniqueViolation = "23505"

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

func (r *repository) CreateUser(ctx context.Context, tx pgx.Tx, user *models.User) (*models.User, error) {
	created, err := scanUser(driver.Q(r.conn, tx).QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, address, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.Name, user.Email, user.PasswordHash, user.Address, user.Role,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.ErrEmailTaken
		}
		r.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *repository) GetUser(ctx context.Context, tx pgx.Tx, userID uint64) (*models.User, error) {
	return r.getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

func (r *repository) GetUserByEmail(ctx context.Context, tx pgx.Tx, email string) (*models.User, error) {
	return r.getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *repository) getUser(ctx context.Context, tx pgx.Tx, query string, arg any) (*models.User, error) {
	user, err := scanUser(driver.Q(r.conn, tx).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user", zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Address, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}
