package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/estore"
	"goflare.io/estore/api"
	"goflare.io/estore/broker"
	"goflare.io/estore/cache"
	"goflare.io/estore/cart"
	"goflare.io/estore/category"
	"goflare.io/estore/driver"
	"goflare.io/estore/event"
	"goflare.io/estore/job"
	"goflare.io/estore/metrics"
	"goflare.io/estore/migrations"
	"goflare.io/estore/order"
	"goflare.io/estore/payment"
	"goflare.io/estore/product"
	"goflare.io/estore/stock"
	"goflare.io/estore/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, payment event consumer and scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	// 1. 資料庫
	db, err := driver.ConnectSQL(ctx, cfg.Database.DSN, driver.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer db.Pool.Close()

	if cfg.Database.AutoMigrate {
		sqlDB := migrations.OpenDB(db.Pool)
		err = migrations.Up(ctx, sqlDB)
		_ = sqlDB.Close()
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// 2. 快取
	var remote redis.UniversalClient
	if cfg.Redis.Addr != "" {
		client, err := driver.ConnectRedis(ctx, driver.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer client.Close()
		remote = client
	} else {
		log.Info("Redis not configured, using in-process cache only")
	}
	c := cache.New(remote, cache.Options{
		Prefix:          cfg.Cache.Prefix,
		LocalTTL:        cfg.Cache.LocalTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})

	// 3. 訊息
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		if nc, err = driver.ConnectNATS(cfg.NATS.URL, cfg.NATS.Name, log); err != nil {
			return fmt.Errorf("failed to connect nats: %w", err)
		}
		defer nc.Close()
	}

	publisher, err := newPublisher(nc)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Failed to close publisher", zap.Error(err))
		}
	}()

	// 4. 服務
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repos := estore.Repositories{
		User:     user.NewRepository(db.Pool, log),
		Category: category.NewRepository(db.Pool, c, log),
		Product:  product.NewRepository(db.Pool, c, log),
		Cart:     cart.NewRepository(db.Pool, log),
		Order:    order.NewRepository(db.Pool, c, log),
		Payment:  payment.NewRepository(db.Pool, log),
		Stock:    stock.NewRepository(db.Pool, c, log),
		Event:    event.NewRepository(db.Pool, log),
	}
	svc := estore.NewService(repos, driver.NewTransactionManager(db.Pool, log), publisher, metrics.NewShop(reg), estore.Config{
		Producer:        cfg.Events.Producer,
		DefaultCurrency: stripe.Currency(cfg.Shop.Currency),
		CartTTL:         cfg.Shop.CartTTL,
		Workers:         cfg.Events.Workers,
	}, log)
	defer svc.Close()

	if nc != nil {
		if err = svc.SubscribePaymentEvents(nc); err != nil {
			return err
		}
		log.Info("Subscribed to payment events", zap.String("subject", estore.PaymentEventSubject))
	}

	// 5. 排程
	if cfg.Jobs.Enabled {
		scheduler := job.NewScheduler(cfg.Jobs.Timeout, log)
		if _, err = scheduler.Register(cfg.Jobs.CartExpiry, job.NewCartExpiryJob(svc, log)); err != nil {
			return fmt.Errorf("failed to register cart expiry job: %w", err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	// 6. HTTP
	opts := api.Options{
		Logger:         log,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MetricsPath:    cfg.Metrics.Path,
		HealthCheck:    db.Pool.Ping,
	}
	if cfg.Metrics.Enabled {
		opts.Registry = reg
	}
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewRouter(svc, opts),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	return nil
}

// newPublisher 依 events.publisher 選擇領域事件的發布端
func newPublisher(nc *nats.Conn) (broker.Publisher, error) {
	switch cfg.Events.Publisher {
	case "nats":
		if nc == nil {
			return nil, errors.New("nats publisher requires a nats connection")
		}
		return broker.NewNATSPublisher(nc), nil
	case "kafka":
		return broker.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Buffer, log), nil
	default:
		return broker.Noop{}, nil
	}
}
