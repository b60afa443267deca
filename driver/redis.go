package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions 零值欄位使用套件預設
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

const (
	redisMaxRetries   = 3
	redisMinBackoff   = 100 * time.Millisecond
	redisMaxBackoff   = 300 * time.Millisecond
	redisDialTimeout  = 5 * time.Second
	redisIOTimeout    = 3 * time.Second
	redisPingDeadline = 5 * time.Second
)

// ConnectRedis 建立 client 並以 PING 確認連線，失敗時關閉 client
func ConnectRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            opts.Addr,
		Password:        opts.Password,
		DB:              opts.DB,
		PoolSize:        opts.PoolSize,
		MaxRetries:      redisMaxRetries,
		MinRetryBackoff: redisMinBackoff,
		MaxRetryBackoff: redisMaxBackoff,
		DialTimeout:     redisDialTimeout,
		ReadTimeout:     redisIOTimeout,
		WriteTimeout:    redisIOTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingDeadline)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
	}
	return client, nil
}
