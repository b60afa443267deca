package estore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

const (
	minPasswordLength = 8
	// bcrypt 只接受 72 bytes 以內的密碼
	maxPasswordLength = 72
)

func (s *service) RegisterUser(ctx context.Context, req RegisterUserRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", models.ErrInvalidArgument)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, fmt.Errorf("invalid email: %w", models.ErrInvalidArgument)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, models.ErrInvalidArgument)
	}
	if len(req.Password) > maxPasswordLength {
		return nil, fmt.Errorf("password must be at most %d bytes: %w", maxPasswordLength, models.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var created *models.User
	err = s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		email := strings.ToLower(addr.Address)
		if _, err := s.user.GetUserByEmail(ctx, tx, email); err == nil {
			return models.ErrEmailTaken
		} else if !errors.Is(err, models.ErrUserNotFound) {
			return err
		}

		var err error
		created, err = s.user.CreateUser(ctx, tx, &models.User{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			Address:      strings.TrimSpace(req.Address),
			Role:         enum.RoleCustomer,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.Uint64("user_id", created.ID))
	return created, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.user.GetUserByEmail(ctx, nil, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return u, nil
}

func (s *service) GetUser(ctx context.Context, userID uint64) (*models.User, error) {
	return s.user.GetUser(ctx, nil, userID)
}
