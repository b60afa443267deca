package job

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CartExpirer 將過期的有效購物車標記為 abandoned
type CartExpirer interface {
	AbandonExpiredCarts(ctx context.Context) (int64, error)
}

type CartExpiryJob struct {
	carts  CartExpirer
	logger *zap.Logger
}

func NewCartExpiryJob(carts CartExpirer, logger *zap.Logger) *CartExpiryJob {
	return &CartExpiryJob{carts: carts, logger: logger}
}

func (j *CartExpiryJob) Name() string {
	return "cart.expiry"
}

func (j *CartExpiryJob) Run(ctx context.Context) error {
	abandoned, err := j.carts.AbandonExpiredCarts(ctx)
	if err != nil {
		return fmt.Errorf("cart expiry job: %w", err)
	}
	if abandoned > 0 {
		j.logger.Info("Abandoned expired carts", zap.Int64("carts", abandoned))
	}
	return nil
}
